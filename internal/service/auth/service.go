package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"regexp"
	"strings"
	"time"

	"triad-service/internal/model"
	"triad-service/internal/service/game"
	pkgAuth "triad-service/pkg/auth"
	appErr "triad-service/pkg/errors"
	"triad-service/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// StarterGranter hands initial cards to a new account.
type StarterGranter interface {
	GrantStarter(ctx context.Context, userID int64, n int) ([]game.CardRef, error)
}

type Service struct {
	db           *gorm.DB
	cards        StarterGranter
	starterCards int
}

type LoginResult struct {
	Token    string     `json:"token"`
	ExpireAt time.Time  `json:"expireAt"`
	User     model.User `json:"user"`
}

func NewService(db *gorm.DB, cards StarterGranter, starterCards int) *Service {
	return &Service{db: db, cards: cards, starterCards: starterCards}
}

var namePattern = regexp.MustCompile(`^[a-zA-Z0-9_\-]{3,32}$`)

const minPasswordLength = 6

func (s *Service) Register(ctx context.Context, name, password string) (*LoginResult, error) {
	name = strings.TrimSpace(name)
	if !namePattern.MatchString(name) {
		return nil, appErr.ErrInvalidName
	}
	if len(password) < minPasswordLength {
		return nil, appErr.ErrWeakPassword
	}

	var existing int64
	if err := s.db.WithContext(ctx).Model(&model.User{}).Where("name = ?", name).Count(&existing).Error; err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, appErr.ErrNameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user := model.User{
		Name:         name,
		IdentityHash: IdentityHash(name),
		PasswordHash: string(hash),
		Status:       "normal",
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}

	if s.cards != nil && s.starterCards > 0 {
		if _, err := s.cards.GrantStarter(ctx, user.ID, s.starterCards); err != nil {
			logger.Log.Warn("starter grant failed", zap.Int64("userID", user.ID), zap.Error(err))
		}
	}
	logger.Log.Info("user registered", zap.Int64("userID", user.ID), zap.String("name", name))
	return s.issue(user)
}

func (s *Service) Login(ctx context.Context, name, password string) (*LoginResult, error) {
	var user model.User
	err := s.db.WithContext(ctx).Where("name = ?", strings.TrimSpace(name)).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErr.ErrInvalidCredentials
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, appErr.ErrInvalidCredentials
	}
	if strings.EqualFold(user.Status, "banned") {
		return nil, appErr.ErrUnauthorized
	}
	return s.issue(user)
}

func (s *Service) issue(user model.User) (*LoginResult, error) {
	token, expireAt, err := pkgAuth.GenerateToken(user.ID)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, ExpireAt: expireAt, User: user}, nil
}

// IdentityHash is a stable public fingerprint of a login name, used by
// clients to render avatars without exposing the name itself.
func IdentityHash(name string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(name))))
	return hex.EncodeToString(sum[:16])
}
