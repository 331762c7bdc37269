package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	appErr "triad-service/pkg/errors"
	"triad-service/pkg/logger"

	"go.uber.org/zap"
)

const (
	EventStateChanged = "state-changed"
	EventCardPlayed   = "card-played"
	EventError        = "error"
	EventPong         = "pong"
)

var errRuntimeStopped = errors.New("match runtime stopped")

type OutgoingMessage struct {
	Type string      `json:"type"`
	Seq  int64       `json:"seq"`
	Data interface{} `json:"data"`
}

type CardPlayedPayload struct {
	Changes []ChangeSet `json:"changes"`
	Match   MatchView   `json:"match"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// Connection is one live realtime session. Its outbound channel is written
// and closed only by the owning runtime.
type Connection struct {
	Identity
	out     chan OutgoingMessage
	closing bool
}

func NewConnection(id Identity, buffer int) *Connection {
	if buffer <= 0 {
		buffer = 16
	}
	return &Connection{Identity: id, out: make(chan OutgoingMessage, buffer)}
}

func (c *Connection) Outbound() <-chan OutgoingMessage {
	return c.out
}

type runtimeDeps struct {
	store     Store
	ledger    CardLedger
	directory Directory
	now       func() time.Time
	drawHand  func(ctx context.Context, userID int64) ([]Card, error)
}

type result struct {
	value interface{}
	err   error
}

type command struct {
	name  string
	apply func() (interface{}, error)
	reply chan result
}

// Runtime is the single writer of one match. Every command, whether it
// arrives over HTTP or a websocket, runs on the runtime goroutine in
// arrival order.
type Runtime struct {
	matchID string
	state   *MatchState
	deps    runtimeDeps

	conns map[*Connection]struct{}
	seq   int64

	commands chan command
	quit     chan struct{}
	done     chan struct{}

	onStop func(*Runtime)
}

func newRuntime(state *MatchState, deps runtimeDeps, onStop func(*Runtime)) *Runtime {
	rt := &Runtime{
		matchID:  state.ID,
		state:    state,
		deps:     deps,
		conns:    make(map[*Connection]struct{}),
		commands: make(chan command, 64),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		onStop:   onStop,
	}
	go rt.run()
	return rt
}

func (rt *Runtime) MatchID() string {
	return rt.matchID
}

func (rt *Runtime) Done() <-chan struct{} {
	return rt.done
}

func (rt *Runtime) run() {
	defer close(rt.done)
	for {
		select {
		case cmd := <-rt.commands:
			started := time.Now()
			value, err := cmd.apply()
			cmd.reply <- result{value: value, err: err}
			logger.Log.Debug("match command",
				zap.String("matchID", rt.matchID),
				zap.String("command", cmd.name),
				zap.Duration("took", time.Since(started)),
				zap.Error(err),
			)
			if rt.idle() {
				rt.shutdown("ended")
				return
			}
		case <-rt.quit:
			rt.shutdown("stopped")
			return
		}
	}
}

// idle reports whether nothing can change the match anymore and nobody is watching.
func (rt *Runtime) idle() bool {
	return rt.state.Status.Ended() && len(rt.conns) == 0
}

func (rt *Runtime) shutdown(reason string) {
	if rt.onStop != nil {
		rt.onStop(rt)
	}
	for conn := range rt.conns {
		rt.dropLocked(conn)
	}
	logger.Log.Debug("match runtime stopped", zap.String("matchID", rt.matchID), zap.String("reason", reason))
}

// Stop asks the runtime to exit after the command it is running.
func (rt *Runtime) Stop() {
	select {
	case <-rt.quit:
	default:
		close(rt.quit)
	}
}

func submit[T any](rt *Runtime, ctx context.Context, name string, fn func() (T, error)) (T, error) {
	var zero T
	cmd := command{
		name: name,
		apply: func() (interface{}, error) {
			return fn()
		},
		reply: make(chan result, 1),
	}
	select {
	case rt.commands <- cmd:
	case <-rt.done:
		return zero, errRuntimeStopped
	case <-ctx.Done():
		return zero, ctx.Err()
	}

	select {
	case res := <-cmd.reply:
		return unwrap[T](res)
	case <-rt.done:
		// The command may have been answered right before the runtime exited.
		select {
		case res := <-cmd.reply:
			return unwrap[T](res)
		default:
			return zero, errRuntimeStopped
		}
	}
}

func unwrap[T any](res result) (T, error) {
	var zero T
	if res.err != nil {
		return zero, res.err
	}
	if res.value == nil {
		return zero, nil
	}
	return res.value.(T), nil
}

// The methods below with a Locked suffix run on the runtime goroutine only.

func (rt *Runtime) Show(ctx context.Context, userID int64) (MatchView, error) {
	return submit(rt, ctx, "show", func() (MatchView, error) {
		return BuildView(rt.state, userID)
	})
}

func (rt *Runtime) Join(ctx context.Context, player Identity) (MatchView, error) {
	return submit(rt, ctx, "join", func() (MatchView, error) {
		return rt.joinLocked(ctx, player)
	})
}

func (rt *Runtime) PickCards(ctx context.Context, userID int64, refs []CardRef) (MatchView, error) {
	return submit(rt, ctx, "pick-cards", func() (MatchView, error) {
		return rt.pickLocked(ctx, userID, refs)
	})
}

func (rt *Runtime) PlayCard(ctx context.Context, userID int64, space, handIndex int) (MatchView, error) {
	return submit(rt, ctx, "play-card", func() (MatchView, error) {
		return rt.playLocked(ctx, userID, space, handIndex)
	})
}

// TradeCards is reserved; trading has no resolution algorithm yet.
func (rt *Runtime) TradeCards(ctx context.Context, userID int64) error {
	_, err := submit(rt, ctx, "trade-cards", func() (struct{}, error) {
		return struct{}{}, rt.tradeLocked(userID)
	})
	return err
}

// Register attaches a connection and sends it a full snapshot. Reconnecting
// clients get no replay of missed events, only the current state.
func (rt *Runtime) Register(ctx context.Context, conn *Connection) error {
	_, err := submit(rt, ctx, "register", func() (struct{}, error) {
		view, err := BuildView(rt.state, conn.UserID)
		if err != nil {
			return struct{}{}, err
		}
		rt.conns[conn] = struct{}{}
		rt.pushLocked(conn, OutgoingMessage{Type: EventStateChanged, Seq: rt.nextSeqLocked(), Data: view})
		logger.Log.Info("connection registered",
			zap.String("matchID", rt.matchID),
			zap.Int64("userID", conn.UserID),
			zap.Int("connections", len(rt.conns)),
		)
		return struct{}{}, nil
	})
	return err
}

func (rt *Runtime) Unregister(conn *Connection) {
	_, err := submit(rt, context.Background(), "unregister", func() (struct{}, error) {
		if _, ok := rt.conns[conn]; ok {
			rt.dropLocked(conn)
		}
		return struct{}{}, nil
	})
	if err != nil && !errors.Is(err, errRuntimeStopped) {
		logger.Log.Warn("unregister failed", zap.String("matchID", rt.matchID), zap.Error(err))
	}
}

type realtimeCommand struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type pickPayload struct {
	Cards []CardRef `json:"cards"`
}

type playPayload struct {
	Space     *int `json:"space"`
	HandIndex *int `json:"handIndex"`
}

// Dispatch handles one raw realtime message from conn. Failures become an
// error event for that connection only.
func (rt *Runtime) Dispatch(ctx context.Context, conn *Connection, raw []byte) error {
	_, err := submit(rt, ctx, "dispatch", func() (struct{}, error) {
		if err := rt.dispatchLocked(ctx, conn, raw); err != nil {
			logger.Log.Info("realtime command rejected",
				zap.String("matchID", rt.matchID),
				zap.Int64("userID", conn.UserID),
				zap.Error(err),
			)
			rt.pushLocked(conn, OutgoingMessage{Type: EventError, Seq: 0, Data: ErrorPayload{Message: err.Error()}})
		}
		return struct{}{}, nil
	})
	return err
}

func (rt *Runtime) dispatchLocked(ctx context.Context, conn *Connection, raw []byte) error {
	var cmd realtimeCommand
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return fmt.Errorf("%w: invalid payload", appErr.ErrInvalidCommand)
	}
	switch cmd.Type {
	case "pick-cards":
		var p pickPayload
		if err := json.Unmarshal(cmd.Data, &p); err != nil {
			return fmt.Errorf("%w: invalid pick-cards payload", appErr.ErrInvalidCommand)
		}
		_, err := rt.pickLocked(ctx, conn.UserID, p.Cards)
		return err
	case "play-card":
		var p playPayload
		if err := json.Unmarshal(cmd.Data, &p); err != nil || p.Space == nil || p.HandIndex == nil {
			return fmt.Errorf("%w: invalid play-card payload", appErr.ErrInvalidCommand)
		}
		_, err := rt.playLocked(ctx, conn.UserID, *p.Space, *p.HandIndex)
		return err
	case "trade-cards":
		return rt.tradeLocked(conn.UserID)
	case "show":
		view, err := BuildView(rt.state, conn.UserID)
		if err != nil {
			return err
		}
		rt.pushLocked(conn, OutgoingMessage{Type: EventStateChanged, Seq: rt.nextSeqLocked(), Data: view})
		return nil
	case "ping":
		rt.pushLocked(conn, OutgoingMessage{Type: EventPong, Seq: 0})
		return nil
	default:
		return fmt.Errorf("%w: unsupported command %q", appErr.ErrInvalidCommand, cmd.Type)
	}
}

func (rt *Runtime) joinLocked(ctx context.Context, player Identity) (MatchView, error) {
	if rt.state.Status != StatusWaitingForOpponent {
		return MatchView{}, fmt.Errorf("%w: cannot join a match in %s", appErr.ErrInvalidState, rt.state.Status)
	}
	entry := PlayerEntry{ID: player.UserID, Name: player.Name, IdentityHash: player.IdentityHash}
	if rt.state.Rules.Has(RuleRandom) && rt.state.PlayerIndex(player.UserID) < 0 {
		hand, err := rt.deps.drawHand(ctx, player.UserID)
		if err != nil {
			return MatchView{}, err
		}
		entry.Hand = hand
	}

	_, err := rt.mutateLocked(ctx, func(next *MatchState) ([]ChangeSet, error) {
		return nil, next.Join(entry, rt.deps.now())
	})
	if err != nil {
		if len(entry.Hand) > 0 {
			releaseHand(ctx, rt.deps.ledger, rt.matchID, player.UserID, entry.Hand)
		}
		return MatchView{}, err
	}
	if err := rt.deps.directory.MoveToInProgress(ctx, rt.matchID, rt.state.Players[0].ID, player.UserID); err != nil {
		logger.Log.Warn("directory move failed", zap.String("matchID", rt.matchID), zap.Error(err))
	}
	rt.broadcastLocked(EventStateChanged, nil)
	return BuildView(rt.state, player.UserID)
}

func (rt *Runtime) pickLocked(ctx context.Context, userID int64, refs []CardRef) (MatchView, error) {
	if rt.state.Status != StatusPickInProgress && rt.state.Status != StatusWaitingForOtherPlayer {
		return MatchView{}, fmt.Errorf("%w: cannot pick cards in %s", appErr.ErrInvalidState, rt.state.Status)
	}
	idx := rt.state.PlayerIndex(userID)
	if idx < 0 {
		return MatchView{}, appErr.ErrNotParticipant
	}
	if rt.state.Players[idx].HasPicked() {
		return MatchView{}, appErr.ErrAlreadyPicked
	}
	hand, err := rt.resolvePickLocked(ctx, userID, refs)
	if err != nil {
		return MatchView{}, err
	}
	if err := holdHand(ctx, rt.deps.ledger, userID, hand); err != nil {
		return MatchView{}, err
	}

	if _, err := rt.mutateLocked(ctx, func(next *MatchState) ([]ChangeSet, error) {
		return nil, next.PickCards(userID, hand, rt.deps.now())
	}); err != nil {
		releaseHand(ctx, rt.deps.ledger, rt.matchID, userID, hand)
		return MatchView{}, err
	}
	rt.broadcastLocked(EventStateChanged, nil)
	return BuildView(rt.state, userID)
}

// resolvePickLocked checks a submission against the catalog and the
// caller's collection.
func (rt *Runtime) resolvePickLocked(ctx context.Context, userID int64, refs []CardRef) ([]Card, error) {
	if len(refs) != HandSize {
		return nil, fmt.Errorf("%w: exactly %d cards required, got %d", appErr.ErrInvalidPick, HandSize, len(refs))
	}
	owned, err := rt.deps.ledger.ListOwned(ctx, userID)
	if err != nil {
		return nil, err
	}
	counts := make(map[CardRef]int, len(owned))
	for _, o := range owned {
		counts[o.Ref] += o.Count
	}

	hand := make([]Card, 0, HandSize)
	seen := make(map[CardRef]bool, HandSize)
	for _, ref := range refs {
		if seen[ref] {
			return nil, fmt.Errorf("%w: duplicate card %s", appErr.ErrInvalidPick, ref)
		}
		seen[ref] = true
		c, ok := LookupCard(ref)
		if !ok {
			return nil, fmt.Errorf("%w: unknown card %s", appErr.ErrInvalidPick, ref)
		}
		if counts[ref] <= 0 {
			return nil, fmt.Errorf("%w: %s", appErr.ErrCardNotOwned, ref)
		}
		hand = append(hand, c)
	}
	return hand, nil
}

func (rt *Runtime) playLocked(ctx context.Context, userID int64, space, handIndex int) (MatchView, error) {
	changes, err := rt.mutateLocked(ctx, func(next *MatchState) ([]ChangeSet, error) {
		changes, err := next.PlayCard(userID, space, handIndex, rt.deps.now())
		if err != nil {
			return nil, err
		}
		if err := rt.settleLocked(ctx, next); err != nil {
			return nil, err
		}
		return changes, nil
	})
	if err != nil {
		return MatchView{}, err
	}

	logger.Log.Info("card played",
		zap.String("matchID", rt.matchID),
		zap.Int64("userID", userID),
		zap.Int("space", space),
		zap.Int("waves", len(changes)),
		zap.String("status", string(rt.state.Status)),
	)
	if rt.state.Status.Ended() {
		ids := make([]int64, 0, len(rt.state.Players))
		for _, p := range rt.state.Players {
			ids = append(ids, p.ID)
		}
		if err := rt.deps.directory.Remove(ctx, rt.matchID, ids...); err != nil {
			logger.Log.Warn("directory remove failed", zap.String("matchID", rt.matchID), zap.Error(err))
		}
	}
	rt.broadcastLocked(EventCardPlayed, changes)
	return BuildView(rt.state, userID)
}

func (rt *Runtime) tradeLocked(userID int64) error {
	if rt.state.PlayerIndex(userID) < 0 {
		return appErr.ErrNotParticipant
	}
	return fmt.Errorf("%w: trade-cards", appErr.ErrNotImplemented)
}

// settleLocked pays the held hands out once the board closes. It runs before
// the final state is persisted so a ledger failure rejects the move and the
// move can be retried.
func (rt *Runtime) settleLocked(ctx context.Context, next *MatchState) error {
	payouts := next.Payouts()
	paid := make([]Payout, 0, len(payouts))
	for _, p := range payouts {
		if err := rt.deps.ledger.AddCards(ctx, p.UserID, p.Cards); err != nil {
			rt.reclaimLocked(ctx, paid)
			return err
		}
		paid = append(paid, p)
	}
	return nil
}

// reclaimLocked takes back payouts whose match state was never persisted.
func (rt *Runtime) reclaimLocked(ctx context.Context, paid []Payout) {
	for _, p := range paid {
		if err := rt.deps.ledger.RemoveCards(ctx, p.UserID, p.Cards); err != nil {
			logger.Log.Error("payout reclaim failed",
				zap.String("matchID", rt.matchID),
				zap.Int64("userID", p.UserID),
				zap.Error(err),
			)
		}
	}
}

// mutateLocked applies fn to a copy, persists it and only then swaps it in,
// so a failure at any step leaves the current state untouched.
func (rt *Runtime) mutateLocked(ctx context.Context, fn func(next *MatchState) ([]ChangeSet, error)) ([]ChangeSet, error) {
	next := rt.state.Clone()
	changes, err := fn(next)
	if err != nil {
		return nil, err
	}
	if err := rt.deps.store.Save(ctx, next); err != nil {
		if next.Status.Ended() && !rt.state.Status.Ended() {
			rt.reclaimLocked(ctx, next.Payouts())
		}
		logger.Log.Error("match save failed", zap.String("matchID", rt.matchID), zap.Error(err))
		return nil, err
	}
	rt.state = next
	return changes, nil
}

func (rt *Runtime) nextSeqLocked() int64 {
	rt.seq++
	return rt.seq
}

// broadcastLocked sends every connection its own projection of the current
// state. card-played events also carry the ordered change sets.
func (rt *Runtime) broadcastLocked(eventType string, changes []ChangeSet) {
	seq := rt.nextSeqLocked()
	for conn := range rt.conns {
		view, err := BuildView(rt.state, conn.UserID)
		if err != nil {
			rt.dropLocked(conn)
			continue
		}
		var data interface{} = view
		if eventType == EventCardPlayed {
			data = CardPlayedPayload{Changes: changes, Match: view}
		}
		rt.pushLocked(conn, OutgoingMessage{Type: eventType, Seq: seq, Data: data})
	}
}

func (rt *Runtime) pushLocked(conn *Connection, msg OutgoingMessage) {
	if conn.closing {
		return
	}
	select {
	case conn.out <- msg:
	default:
		logger.Log.Warn("ws subscriber channel full",
			zap.String("matchID", rt.matchID),
			zap.Int64("userID", conn.UserID),
		)
		rt.dropLocked(conn)
	}
}

func (rt *Runtime) dropLocked(conn *Connection) {
	if conn.closing {
		delete(rt.conns, conn)
		return
	}
	conn.closing = true
	delete(rt.conns, conn)
	close(conn.out)
}
