package ticket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	appErr "triad-service/pkg/errors"
	"triad-service/pkg/utils/random"

	"github.com/redis/go-redis/v9"
)

const ticketLength = 32

// ErrCodeCollision means every generated code was already taken.
var ErrCodeCollision = errors.New("ticket code collision")

// Service issues single-use realtime tickets. A ticket is exchanged once
// through an authenticated request and consumed by the websocket upgrade.
type Service struct {
	rdb     *redis.Client
	ttl     time.Duration
	newCode func() string
}

type Option func(*Service)

// WithCodeGenerator replaces the random ticket code source.
func WithCodeGenerator(fn func() string) Option {
	return func(s *Service) {
		s.newCode = fn
	}
}

func NewService(rdb *redis.Client, ttl time.Duration, opts ...Option) *Service {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	s := &Service{
		rdb:     rdb,
		ttl:     ttl,
		newCode: func() string { return random.Code(ticketLength) },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type Claim struct {
	UserID  int64  `json:"userId"`
	MatchID string `json:"matchId"`
}

type Issued struct {
	Ticket   string    `json:"ticket"`
	ExpireAt time.Time `json:"expireAt"`
}

func (s *Service) Issue(ctx context.Context, userID int64, matchID string) (*Issued, error) {
	data, err := json.Marshal(Claim{UserID: userID, MatchID: matchID})
	if err != nil {
		return nil, err
	}
	for attempt := 0; attempt < 3; attempt++ {
		code := s.newCode()
		ok, err := s.rdb.SetNX(ctx, buildTicketKey(code), data, s.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return &Issued{Ticket: code, ExpireAt: time.Now().Add(s.ttl)}, nil
		}
	}
	return nil, ErrCodeCollision
}

// Consume redeems a ticket for matchID. A ticket can be redeemed once.
func (s *Service) Consume(ctx context.Context, code, matchID string) (*Claim, error) {
	if code == "" {
		return nil, appErr.ErrInvalidTicket
	}
	data, err := s.rdb.GetDel(ctx, buildTicketKey(code)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, appErr.ErrInvalidTicket
		}
		return nil, err
	}
	var claim Claim
	if err := json.Unmarshal([]byte(data), &claim); err != nil {
		return nil, err
	}
	if claim.MatchID != matchID {
		return nil, appErr.ErrInvalidTicket
	}
	return &claim, nil
}

func buildTicketKey(code string) string {
	return fmt.Sprintf("ws:ticket:%s", code)
}
