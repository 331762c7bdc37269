package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"triad-service/internal/service/game"
	"triad-service/pkg/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultListLimit = 50

// Service keeps match listings in redis:
//
//	triad:open              zset of public open match ids scored by creation time
//	triad:listing:<id>      listing JSON
//	triad:user:<uid>:open   set of the user's open match ids
//	triad:user:<uid>:active set of the user's in-progress match ids
type Service struct {
	rdb *redis.Client
}

func NewService(rdb *redis.Client) *Service {
	return &Service{rdb: rdb}
}

var _ game.Directory = (*Service)(nil)

type UserListings struct {
	Open       []game.Listing `json:"open"`
	InProgress []game.Listing `json:"inProgress"`
}

func (s *Service) MarkOpen(ctx context.Context, listing game.Listing) error {
	data, err := json.Marshal(listing)
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, buildListingKey(listing.MatchID), data, 0)
		pipe.SAdd(ctx, buildUserOpenKey(listing.CreatorID), listing.MatchID)
		if listing.Public {
			pipe.ZAdd(ctx, openKey, redis.Z{
				Score:  float64(listing.CreatedAt.UnixMilli()),
				Member: listing.MatchID,
			})
		}
		return nil
	})
	return err
}

func (s *Service) MoveToInProgress(ctx context.Context, matchID string, userIDs ...int64) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, openKey, matchID)
		for _, uid := range userIDs {
			pipe.SRem(ctx, buildUserOpenKey(uid), matchID)
			pipe.SAdd(ctx, buildUserActiveKey(uid), matchID)
		}
		return nil
	})
	if err == nil {
		logger.Log.Debug("listing moved to in-progress", zap.String("matchID", matchID))
	}
	return err
}

func (s *Service) Remove(ctx context.Context, matchID string, userIDs ...int64) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, openKey, matchID)
		pipe.Del(ctx, buildListingKey(matchID))
		for _, uid := range userIDs {
			pipe.SRem(ctx, buildUserOpenKey(uid), matchID)
			pipe.SRem(ctx, buildUserActiveKey(uid), matchID)
		}
		return nil
	})
	return err
}

// ListOpen returns public open listings, oldest first.
func (s *Service) ListOpen(ctx context.Context, limit int) ([]game.Listing, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	ids, err := s.rdb.ZRange(ctx, openKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	return s.loadListings(ctx, ids)
}

func (s *Service) ListForUser(ctx context.Context, userID int64) (*UserListings, error) {
	openIDs, err := s.rdb.SMembers(ctx, buildUserOpenKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	activeIDs, err := s.rdb.SMembers(ctx, buildUserActiveKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	open, err := s.loadListings(ctx, openIDs)
	if err != nil {
		return nil, err
	}
	active, err := s.loadListings(ctx, activeIDs)
	if err != nil {
		return nil, err
	}
	return &UserListings{Open: open, InProgress: active}, nil
}

func (s *Service) loadListings(ctx context.Context, ids []string) ([]game.Listing, error) {
	out := make([]game.Listing, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = buildListingKey(id)
	}
	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var listing game.Listing
		if err := json.Unmarshal([]byte(str), &listing); err != nil {
			logger.Log.Warn("corrupt listing", zap.String("matchID", ids[i]), zap.Error(err))
			continue
		}
		out = append(out, listing)
	}
	return out, nil
}

const openKey = "triad:open"

func buildListingKey(matchID string) string {
	return fmt.Sprintf("triad:listing:%s", matchID)
}

func buildUserOpenKey(userID int64) string {
	return "triad:user:" + strconv.FormatInt(userID, 10) + ":open"
}

func buildUserActiveKey(userID int64) string {
	return "triad:user:" + strconv.FormatInt(userID, 10) + ":active"
}
