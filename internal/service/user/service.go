package user

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"triad-service/internal/model"
	"triad-service/internal/service/game"
	appErr "triad-service/pkg/errors"

	"gorm.io/gorm"
)

const maxNicknameLength = 32

type Service struct {
	db *gorm.DB
}

type UpdateProfileRequest struct {
	Nickname *string
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

func (s *Service) GetProfile(ctx context.Context, userID int64) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErr.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *Service) UpdateProfile(ctx context.Context, userID int64, req UpdateProfileRequest) (*model.User, error) {
	updates := map[string]interface{}{}
	if req.Nickname != nil {
		nick := strings.TrimSpace(*req.Nickname)
		if utf8.RuneCountInString(nick) > maxNicknameLength {
			return nil, appErr.ErrInvalidName
		}
		updates["nickname"] = nick
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", userID).Updates(updates).Error; err != nil {
			return nil, err
		}
	}

	return s.GetProfile(ctx, userID)
}

// Identity resolves the caller into the fields a match records about a player.
func (s *Service) Identity(ctx context.Context, userID int64) (game.Identity, error) {
	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return game.Identity{}, err
	}
	if strings.EqualFold(user.Status, "banned") {
		return game.Identity{}, appErr.ErrUnauthorized
	}
	return game.Identity{
		UserID:       user.ID,
		Name:         user.DisplayName(),
		IdentityHash: user.IdentityHash,
	}, nil
}
