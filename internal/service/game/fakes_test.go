package game_test

import (
	"context"
	"errors"
	"sync"

	"triad-service/internal/service/game"
	appErr "triad-service/pkg/errors"
)

var errInjected = errors.New("injected failure")

type memStore struct {
	mu       sync.Mutex
	matches  map[string]*game.MatchState
	failSave bool
	saves    int
}

func newMemStore() *memStore {
	return &memStore{matches: make(map[string]*game.MatchState)}
}

func (s *memStore) CreatePending(_ context.Context, state *game.MatchState, maxPending int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var pending int
	for _, m := range s.matches {
		if m.Status == game.StatusWaitingForOpponent && m.Creator().ID == state.Creator().ID &&
			m.Rules.Key() == state.Rules.Key() && m.TradeRule == state.TradeRule {
			pending++
		}
	}
	if pending > maxPending {
		return appErr.ErrTooManyPending
	}
	s.matches[state.ID] = state.Clone()
	return nil
}

func (s *memStore) Save(_ context.Context, state *game.MatchState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSave {
		return errInjected
	}
	s.saves++
	s.matches[state.ID] = state.Clone()
	return nil
}

func (s *memStore) Load(_ context.Context, matchID string) (*game.MatchState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.matches[matchID]
	if !ok {
		return nil, appErr.ErrMatchNotFound
	}
	return state.Clone(), nil
}

func (s *memStore) setFailSave(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failSave = v
}

type memLedger struct {
	mu         sync.Mutex
	owned      map[int64]map[game.CardRef]int
	failList   bool
	failRemove bool
	failAdd    bool
}

func newMemLedger() *memLedger {
	return &memLedger{owned: make(map[int64]map[game.CardRef]int)}
}

func (l *memLedger) grant(userID int64, cards ...game.Card) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.owned[userID] == nil {
		l.owned[userID] = make(map[game.CardRef]int)
	}
	for _, c := range cards {
		l.owned[userID][c.Ref()]++
	}
}

func (l *memLedger) count(userID int64, ref game.CardRef) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.owned[userID][ref]
}

func (l *memLedger) setFailRemove(v bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failRemove = v
}

func (l *memLedger) setFailAdd(v bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failAdd = v
}

func (l *memLedger) ListOwned(_ context.Context, userID int64) ([]game.OwnedCard, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failList {
		return nil, errInjected
	}
	out := make([]game.OwnedCard, 0, len(l.owned[userID]))
	for ref, n := range l.owned[userID] {
		out = append(out, game.OwnedCard{Ref: ref, Count: n})
	}
	return out, nil
}

func (l *memLedger) AddCards(_ context.Context, userID int64, refs []game.CardRef) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failAdd {
		return errInjected
	}
	if l.owned[userID] == nil {
		l.owned[userID] = make(map[game.CardRef]int)
	}
	for _, ref := range refs {
		l.owned[userID][ref]++
	}
	return nil
}

func (l *memLedger) RemoveCards(_ context.Context, userID int64, refs []game.CardRef) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failRemove {
		return errInjected
	}
	for _, ref := range refs {
		if l.owned[userID][ref] <= 0 {
			return appErr.ErrCardNotOwned
		}
	}
	for _, ref := range refs {
		l.owned[userID][ref]--
	}
	return nil
}

type directoryCall struct {
	op      string
	matchID string
	userIDs []int64
}

type memDirectory struct {
	mu    sync.Mutex
	calls []directoryCall
	fail  bool
}

func (d *memDirectory) record(op, matchID string, userIDs []int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, directoryCall{op: op, matchID: matchID, userIDs: userIDs})
	if d.fail {
		return errInjected
	}
	return nil
}

func (d *memDirectory) MarkOpen(_ context.Context, listing game.Listing) error {
	return d.record("open", listing.MatchID, []int64{listing.CreatorID})
}

func (d *memDirectory) MoveToInProgress(_ context.Context, matchID string, userIDs ...int64) error {
	return d.record("in-progress", matchID, userIDs)
}

func (d *memDirectory) Remove(_ context.Context, matchID string, userIDs ...int64) error {
	return d.record("remove", matchID, userIDs)
}

func (d *memDirectory) ops() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.calls))
	for _, c := range d.calls {
		out = append(out, c.op)
	}
	return out
}
