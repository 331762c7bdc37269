package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	appErr "triad-service/pkg/errors"
	"triad-service/pkg/logger"
	"triad-service/pkg/utils/random"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type Config struct {
	TurnLimit           time.Duration
	MaxPendingIdentical int
	OutboundBuffer      int
}

func defaultConfig() Config {
	return Config{
		TurnLimit:           5 * time.Minute,
		MaxPendingIdentical: 1,
		OutboundBuffer:      16,
	}
}

type CreateRequest struct {
	Rules        RuleSet
	TradeRule    TradeRule
	OpponentKind OpponentKind
}

// Service routes commands to the runtime owning each match and loads
// runtimes on demand.
type Service struct {
	store     Store
	ledger    CardLedger
	directory Directory
	cfg       Config
	now       func() time.Time

	runtimes sync.Map // matchID -> *Runtime
	loads    singleflight.Group
}

type Option func(*Service)

func WithConfig(cfg Config) Option {
	return func(s *Service) {
		if cfg.TurnLimit > 0 {
			s.cfg.TurnLimit = cfg.TurnLimit
		}
		if cfg.MaxPendingIdentical > 0 {
			s.cfg.MaxPendingIdentical = cfg.MaxPendingIdentical
		}
		if cfg.OutboundBuffer > 0 {
			s.cfg.OutboundBuffer = cfg.OutboundBuffer
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(store Store, ledger CardLedger, directory Directory, opts ...Option) *Service {
	s := &Service{
		store:     store,
		ledger:    ledger,
		directory: directory,
		cfg:       defaultConfig(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) OutboundBuffer() int {
	return s.cfg.OutboundBuffer
}

func (s *Service) deps() runtimeDeps {
	return runtimeDeps{
		store:     s.store,
		ledger:    s.ledger,
		directory: s.directory,
		now:       s.now,
		drawHand:  s.drawHand,
	}
}

// Create starts a match with the caller as its only player.
func (s *Service) Create(ctx context.Context, creator Identity, req CreateRequest) (MatchView, error) {
	if req.Rules == nil {
		req.Rules = RuleSet{}
	}
	if req.TradeRule == "" {
		req.TradeRule = TradeNone
	}
	if req.OpponentKind == "" {
		req.OpponentKind = OpponentPublic
	}

	entry := PlayerEntry{ID: creator.UserID, Name: creator.Name, IdentityHash: creator.IdentityHash}
	if req.Rules.Has(RuleRandom) {
		hand, err := s.drawHand(ctx, creator.UserID)
		if err != nil {
			return MatchView{}, err
		}
		entry.Hand = hand
	}

	now := s.now()
	state := NewMatch(NewMatchParams{
		ID:           uuid.NewString(),
		Creator:      entry,
		Rules:        req.Rules,
		TradeRule:    req.TradeRule,
		OpponentKind: req.OpponentKind,
		TurnLimit:    s.cfg.TurnLimit,
		Elements:     randomElements(),
		Now:          now,
	})
	if err := s.store.CreatePending(ctx, state, s.cfg.MaxPendingIdentical); err != nil {
		if len(entry.Hand) > 0 {
			releaseHand(ctx, s.ledger, state.ID, creator.UserID, entry.Hand)
		}
		return MatchView{}, err
	}

	listing := Listing{
		MatchID:     state.ID,
		CreatorID:   creator.UserID,
		CreatorName: creator.Name,
		Rules:       state.Rules.List(),
		TradeRule:   state.TradeRule,
		Public:      state.OpponentKind == OpponentPublic,
		CreatedAt:   now,
	}
	if err := s.directory.MarkOpen(ctx, listing); err != nil {
		logger.Log.Warn("directory mark open failed", zap.String("matchID", state.ID), zap.Error(err))
	}

	rt := newRuntime(state, s.deps(), s.evict)
	s.runtimes.Store(state.ID, rt)

	logger.Log.Info("match created",
		zap.String("matchID", state.ID),
		zap.Int64("userID", creator.UserID),
		zap.String("rules", state.Rules.Key()),
		zap.String("tradeRule", string(state.TradeRule)),
	)
	return BuildView(state, creator.UserID)
}

func (s *Service) Join(ctx context.Context, player Identity, matchID string) (MatchView, error) {
	return withRuntime(ctx, s, matchID, func(rt *Runtime) (MatchView, error) {
		return rt.Join(ctx, player)
	})
}

func (s *Service) PickCards(ctx context.Context, userID int64, matchID string, refs []CardRef) (MatchView, error) {
	return withRuntime(ctx, s, matchID, func(rt *Runtime) (MatchView, error) {
		return rt.PickCards(ctx, userID, refs)
	})
}

func (s *Service) PlayCard(ctx context.Context, userID int64, matchID string, space, handIndex int) (MatchView, error) {
	return withRuntime(ctx, s, matchID, func(rt *Runtime) (MatchView, error) {
		return rt.PlayCard(ctx, userID, space, handIndex)
	})
}

func (s *Service) TradeCards(ctx context.Context, userID int64, matchID string) error {
	_, err := withRuntime(ctx, s, matchID, func(rt *Runtime) (struct{}, error) {
		return struct{}{}, rt.TradeCards(ctx, userID)
	})
	return err
}

func (s *Service) Show(ctx context.Context, userID int64, matchID string) (MatchView, error) {
	return withRuntime(ctx, s, matchID, func(rt *Runtime) (MatchView, error) {
		return rt.Show(ctx, userID)
	})
}

// Connect registers a realtime connection with the match runtime and
// returns the runtime the connection must send its commands to.
func (s *Service) Connect(ctx context.Context, matchID string, conn *Connection) (*Runtime, error) {
	return withRuntime(ctx, s, matchID, func(rt *Runtime) (*Runtime, error) {
		if err := rt.Register(ctx, conn); err != nil {
			return nil, err
		}
		return rt, nil
	})
}

// Shutdown stops every loaded runtime and waits for them to exit.
func (s *Service) Shutdown(ctx context.Context) error {
	var wg conc.WaitGroup
	s.runtimes.Range(func(_, v any) bool {
		rt := v.(*Runtime)
		rt.Stop()
		wg.Go(func() { <-rt.Done() })
		return true
	})
	stopped := make(chan struct{})
	go func() {
		wg.Wait()
		close(stopped)
	}()
	select {
	case <-stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// withRuntime retries once when the runtime it picked exited between the
// lookup and the command.
func withRuntime[T any](ctx context.Context, s *Service, matchID string, fn func(rt *Runtime) (T, error)) (T, error) {
	var zero T
	for attempt := 0; attempt < 2; attempt++ {
		rt, err := s.runtime(ctx, matchID)
		if err != nil {
			return zero, err
		}
		out, err := fn(rt)
		if errors.Is(err, errRuntimeStopped) {
			continue
		}
		return out, err
	}
	return zero, errRuntimeStopped
}

func (s *Service) runtime(ctx context.Context, matchID string) (*Runtime, error) {
	if v, ok := s.runtimes.Load(matchID); ok {
		return v.(*Runtime), nil
	}
	if _, err := uuid.Parse(matchID); err != nil {
		return nil, appErr.ErrMatchNotFound
	}

	v, err, _ := s.loads.Do(matchID, func() (interface{}, error) {
		if v, ok := s.runtimes.Load(matchID); ok {
			return v, nil
		}
		state, err := s.store.Load(ctx, matchID)
		if err != nil {
			return nil, err
		}
		rt := newRuntime(state, s.deps(), s.evict)
		s.runtimes.Store(matchID, rt)
		return rt, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Runtime), nil
}

func (s *Service) evict(rt *Runtime) {
	s.runtimes.CompareAndDelete(rt.matchID, rt)
}

// drawHand picks five distinct owned cards at random and holds them.
func (s *Service) drawHand(ctx context.Context, userID int64) ([]Card, error) {
	owned, err := s.ledger.ListOwned(ctx, userID)
	if err != nil {
		return nil, err
	}
	pool := make([]Card, 0, len(owned))
	for _, o := range owned {
		if o.Count <= 0 {
			continue
		}
		if c, ok := LookupCard(o.Ref); ok {
			pool = append(pool, c)
		}
	}
	if len(pool) < HandSize {
		return nil, fmt.Errorf("%w: need %d distinct cards, own %d", appErr.ErrNotEnoughCards, HandSize, len(pool))
	}
	hand := make([]Card, 0, HandSize)
	for _, i := range random.Sample(len(pool), HandSize) {
		hand = append(hand, pool[i])
	}
	if err := holdHand(ctx, s.ledger, userID, hand); err != nil {
		return nil, err
	}
	return hand, nil
}

// randomElements tags roughly a third of the spaces with a terrain element.
func randomElements() [BoardSize]Element {
	var out [BoardSize]Element
	for i := range out {
		out[i] = ElementNone
		if random.Intn(3) == 0 {
			out[i] = BoardElements[random.Intn(len(BoardElements))]
		}
	}
	return out
}
