package card

import (
	"context"
	"fmt"
	"time"

	"triad-service/internal/model"
	"triad-service/internal/service/game"
	appErr "triad-service/pkg/errors"
	"triad-service/pkg/logger"
	"triad-service/pkg/utils/random"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service is the card-ownership ledger backed by the user_cards table.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

var _ game.CardLedger = (*Service)(nil)

type OwnedCardDetail struct {
	game.Card
	Count int `json:"count"`
}

func (s *Service) ListOwned(ctx context.Context, userID int64) ([]game.OwnedCard, error) {
	var rows []model.UserCard
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND quantity > 0", userID).
		Order("edition ASC, kind ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]game.OwnedCard, 0, len(rows))
	for _, r := range rows {
		out = append(out, game.OwnedCard{Ref: game.CardRef{Kind: r.Kind, Edition: r.Edition}, Count: r.Count})
	}
	return out, nil
}

// ListOwnedDetails joins owned counts with catalog definitions for display.
func (s *Service) ListOwnedDetails(ctx context.Context, userID int64) ([]OwnedCardDetail, error) {
	owned, err := s.ListOwned(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]OwnedCardDetail, 0, len(owned))
	for _, o := range owned {
		c, ok := game.LookupCard(o.Ref)
		if !ok {
			continue
		}
		out = append(out, OwnedCardDetail{Card: c, Count: o.Count})
	}
	return out, nil
}

func (s *Service) AddCards(ctx context.Context, userID int64, refs []game.CardRef) error {
	if len(refs) == 0 {
		return nil
	}
	now := time.Now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for ref, n := range countRefs(refs) {
			row := model.UserCard{UserID: userID, Kind: ref.Kind, Edition: ref.Edition, Count: n, UpdatedAt: now}
			err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "user_id"}, {Name: "kind"}, {Name: "edition"}},
				DoUpdates: clause.Assignments(map[string]interface{}{
					"quantity":   gorm.Expr("user_cards.quantity + ?", n),
					"updated_at": now,
				}),
			}).Create(&row).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Service) RemoveCards(ctx context.Context, userID int64, refs []game.CardRef) error {
	if len(refs) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for ref, n := range countRefs(refs) {
			res := tx.Model(&model.UserCard{}).
				Where("user_id = ? AND kind = ? AND edition = ? AND quantity >= ?", userID, ref.Kind, ref.Edition, n).
				Updates(map[string]interface{}{
					"quantity":   gorm.Expr("quantity - ?", n),
					"updated_at": time.Now(),
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("%w: %s", appErr.ErrCardNotOwned, ref)
			}
		}
		return nil
	})
}

// GrantStarter gives a new player n random first-edition cards.
func (s *Service) GrantStarter(ctx context.Context, userID int64, n int) ([]game.CardRef, error) {
	pool := game.CatalogEdition(1)
	refs := make([]game.CardRef, 0, n)
	for _, i := range random.Sample(len(pool), n) {
		refs = append(refs, pool[i].Ref())
	}
	if err := s.AddCards(ctx, userID, refs); err != nil {
		return nil, err
	}
	logger.Log.Info("starter cards granted", zap.Int64("userID", userID), zap.Int("count", len(refs)))
	return refs, nil
}

func countRefs(refs []game.CardRef) map[game.CardRef]int {
	counts := make(map[game.CardRef]int, len(refs))
	for _, r := range refs {
		counts[r]++
	}
	return counts
}
