package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"triad-service/internal/model"
	appErr "triad-service/pkg/errors"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore persists each match as one row carrying the full state as JSON.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func toRecord(state *MatchState) (*model.Match, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return nil, err
	}
	rec := &model.Match{
		ID:        state.ID,
		Status:    string(state.Status),
		CreatorID: state.Creator().ID,
		RulesKey:  state.Rules.Key(),
		TradeRule: string(state.TradeRule),
		StateJSON: datatypes.JSON(data),
		CreatedAt: state.CreatedAt,
		UpdatedAt: state.UpdatedAt,
	}
	if len(state.Players) > 1 {
		opp := state.Players[1].ID
		rec.OpponentID = &opp
	}
	if state.Status.Ended() {
		ended := state.UpdatedAt
		if ended.IsZero() {
			ended = time.Now()
		}
		rec.EndedAt = &ended
	}
	return rec, nil
}

func (s *GormStore) Create(ctx context.Context, state *MatchState) error {
	rec, err := toRecord(state)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Create(rec).Error
}

// CreatePending inserts a waiting match unless its creator already has more
// than maxPending identical ones waiting. The creator's row is locked so
// concurrent creates for the same player are checked one at a time.
func (s *GormStore) CreatePending(ctx context.Context, state *MatchState, maxPending int) error {
	rec, err := toRecord(state)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var creator model.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").First(&creator, rec.CreatorID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return appErr.ErrUserNotFound
			}
			return err
		}
		pending, err := countPending(tx, rec.CreatorID, rec.RulesKey, rec.TradeRule)
		if err != nil {
			return err
		}
		if pending > int64(maxPending) {
			return fmt.Errorf("%w: %d already waiting", appErr.ErrTooManyPending, pending)
		}
		return tx.Create(rec).Error
	})
}

func (s *GormStore) Save(ctx context.Context, state *MatchState) error {
	rec, err := toRecord(state)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Save(rec).Error
}

func (s *GormStore) Load(ctx context.Context, matchID string) (*MatchState, error) {
	var rec model.Match
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", matchID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErr.ErrMatchNotFound
		}
		return nil, err
	}
	var state MatchState
	if err := json.Unmarshal(rec.StateJSON, &state); err != nil {
		return nil, err
	}
	if state.Rules == nil {
		state.Rules = RuleSet{}
	}
	return &state, nil
}

func (s *GormStore) CountPending(ctx context.Context, creatorID int64, rulesKey string, trade TradeRule) (int64, error) {
	return countPending(s.db.WithContext(ctx), creatorID, rulesKey, string(trade))
}

func countPending(db *gorm.DB, creatorID int64, rulesKey, trade string) (int64, error) {
	var count int64
	err := db.Model(&model.Match{}).
		Where("creator_id = ? AND status = ? AND rules_key = ? AND trade_rule = ?",
			creatorID, string(StatusWaitingForOpponent), rulesKey, trade).
		Count(&count).Error
	return count, err
}
