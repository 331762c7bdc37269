package game_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"triad-service/internal/service/game"
	appErr "triad-service/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = game.Identity{UserID: 1, Name: "alice", IdentityHash: "h1"}
	bob   = game.Identity{UserID: 2, Name: "bob", IdentityHash: "h2"}
	carol = game.Identity{UserID: 3, Name: "carol", IdentityHash: "h3"}
)

type harness struct {
	svc    *game.Service
	store  *memStore
	ledger *memLedger
	dir    *memDirectory
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{store: newMemStore(), ledger: newMemLedger(), dir: &memDirectory{}}
	h.svc = game.NewService(h.store, h.ledger, h.dir,
		game.WithConfig(game.Config{TurnLimit: time.Minute, OutboundBuffer: 32}),
		game.WithClock(func() time.Time { return epoch }),
	)
	h.ledger.grant(alice.UserID, game.CatalogEdition(4)...)
	h.ledger.grant(bob.UserID, game.CatalogEdition(1)...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		h.svc.Shutdown(ctx)
	})
	return h
}

func refs(cards []game.Card) []game.CardRef {
	out := make([]game.CardRef, len(cards))
	for i, c := range cards {
		out[i] = c.Ref()
	}
	return out
}

var (
	aliceHand = refs(game.CatalogEdition(4))
	bobHand   = refs(game.CatalogEdition(1)[:5])
)

// startMatch creates a match as alice, seats bob and submits both hands.
func (h *harness) startMatch(t *testing.T, rules game.RuleSet, trade game.TradeRule) string {
	t.Helper()
	ctx := context.Background()
	view, err := h.svc.Create(ctx, alice, game.CreateRequest{Rules: rules, TradeRule: trade})
	require.NoError(t, err)
	_, err = h.svc.Join(ctx, bob, view.ID)
	require.NoError(t, err)
	_, err = h.svc.PickCards(ctx, alice.UserID, view.ID, aliceHand)
	require.NoError(t, err)
	picked, err := h.svc.PickCards(ctx, bob.UserID, view.ID, bobHand)
	require.NoError(t, err)
	require.Equal(t, game.StatusInProgress, picked.State)
	require.True(t, picked.IsYourTurn, "the joiner moves first")
	return view.ID
}

type move struct {
	userID    int64
	space     int
	handIndex int
}

// script ends 9-1 for alice under the basic rule.
var script = []move{
	{2, 0, 0}, {1, 1, 0}, {2, 2, 1}, {1, 5, 1}, {2, 4, 2},
	{1, 3, 2}, {2, 6, 3}, {1, 7, 3}, {2, 8, 4},
}

func (h *harness) play(t *testing.T, matchID string, moves []move) game.MatchView {
	t.Helper()
	var view game.MatchView
	for _, m := range moves {
		var err error
		view, err = h.svc.PlayCard(context.Background(), m.userID, matchID, m.space, m.handIndex)
		require.NoError(t, err)
	}
	return view
}

func nextEvent(t *testing.T, conn *game.Connection) game.OutgoingMessage {
	t.Helper()
	select {
	case msg, ok := <-conn.Outbound():
		require.True(t, ok, "connection closed")
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return game.OutgoingMessage{}
}

func assertNoEvent(t *testing.T, conn *game.Connection) {
	t.Helper()
	select {
	case msg := <-conn.Outbound():
		t.Fatalf("unexpected event %s", msg.Type)
	default:
	}
}

func TestCreateMarksOpen(t *testing.T) {
	h := newHarness(t)

	view, err := h.svc.Create(context.Background(), alice, game.CreateRequest{
		Rules: game.NewRuleSet(game.RuleSame), TradeRule: game.TradeOne, OpponentKind: game.OpponentPrivate,
	})
	require.NoError(t, err)

	_, err = uuid.Parse(view.ID)
	assert.NoError(t, err)
	assert.Equal(t, game.StatusWaitingForOpponent, view.State)
	assert.Equal(t, game.TradeOne, view.TradeRule)
	assert.Equal(t, game.OpponentPrivate, view.OpponentKind)
	assert.Equal(t, []string{"open"}, h.dir.ops())
	for _, slot := range view.You.Hand {
		assert.False(t, slot.Chosen)
	}
}

func TestCreateLimitsPendingIdenticalMatches(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	req := game.CreateRequest{Rules: game.NewRuleSet(game.RuleSame), TradeRule: game.TradeNone}

	_, err := h.svc.Create(ctx, alice, req)
	require.NoError(t, err)
	_, err = h.svc.Create(ctx, alice, req)
	require.NoError(t, err)
	_, err = h.svc.Create(ctx, alice, req)
	assert.ErrorIs(t, err, appErr.ErrTooManyPending)

	_, err = h.svc.Create(ctx, alice, game.CreateRequest{Rules: game.NewRuleSet(game.RulePlus)})
	assert.NoError(t, err, "a different rule set is not identical")
	_, err = h.svc.Create(ctx, bob, req)
	assert.NoError(t, err)
}

func TestCreateSurvivesDirectoryFailure(t *testing.T) {
	h := newHarness(t)
	h.dir.fail = true

	_, err := h.svc.Create(context.Background(), alice, game.CreateRequest{})
	assert.NoError(t, err)
}

func TestRandomRuleDrawsHands(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	view, err := h.svc.Create(ctx, alice, game.CreateRequest{Rules: game.NewRuleSet(game.RuleRandom)})
	require.NoError(t, err)
	for _, slot := range view.You.Hand {
		require.NotNil(t, slot.Card)
		assert.Zero(t, h.ledger.count(alice.UserID, slot.Card.Ref()), "drawn cards are held")
	}
	_, err = h.svc.Create(ctx, alice, game.CreateRequest{Rules: game.NewRuleSet(game.RuleRandom, game.RuleSame)})
	assert.ErrorIs(t, err, appErr.ErrNotEnoughCards, "held cards cannot be drawn again")

	joined, err := h.svc.Join(ctx, bob, view.ID)
	require.NoError(t, err)
	assert.Equal(t, game.StatusInProgress, joined.State)
	assert.True(t, joined.IsYourTurn)
	assert.Equal(t, []string{"open", "in-progress"}, h.dir.ops())

	_, err = h.svc.PickCards(ctx, bob.UserID, view.ID, bobHand)
	assert.ErrorIs(t, err, appErr.ErrInvalidState)
}

func TestRandomRuleNeedsFiveCards(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Create(context.Background(), carol, game.CreateRequest{Rules: game.NewRuleSet(game.RuleRandom)})
	assert.ErrorIs(t, err, appErr.ErrNotEnoughCards)
}

func TestJoinRules(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	view, err := h.svc.Create(ctx, alice, game.CreateRequest{})
	require.NoError(t, err)

	_, err = h.svc.Join(ctx, alice, view.ID)
	assert.ErrorIs(t, err, appErr.ErrCannotJoinOwnMatch)

	joined, err := h.svc.Join(ctx, bob, view.ID)
	require.NoError(t, err)
	assert.Equal(t, game.StatusPickInProgress, joined.State)
	require.NotNil(t, joined.Opponent)
	assert.Equal(t, "alice", joined.Opponent.Name)

	_, err = h.svc.Join(ctx, carol, view.ID)
	assert.ErrorIs(t, err, appErr.ErrInvalidState)
	assert.Equal(t, []string{"open", "in-progress"}, h.dir.ops())
	assert.ElementsMatch(t, []int64{1, 2}, h.dir.calls[1].userIDs)
}

func TestUnknownMatch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Show(ctx, alice.UserID, "not-a-uuid")
	assert.ErrorIs(t, err, appErr.ErrMatchNotFound)
	_, err = h.svc.Show(ctx, alice.UserID, uuid.NewString())
	assert.ErrorIs(t, err, appErr.ErrMatchNotFound)
}

func TestPickRejectsUnownedAndForeignCards(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	view, err := h.svc.Create(ctx, alice, game.CreateRequest{})
	require.NoError(t, err)
	_, err = h.svc.Join(ctx, bob, view.ID)
	require.NoError(t, err)

	_, err = h.svc.PickCards(ctx, bob.UserID, view.ID, aliceHand)
	assert.ErrorIs(t, err, appErr.ErrCardNotOwned)

	unknown := append([]game.CardRef{{Kind: "nope", Edition: 1}}, bobHand[1:]...)
	_, err = h.svc.PickCards(ctx, bob.UserID, view.ID, unknown)
	assert.ErrorIs(t, err, appErr.ErrInvalidPick)

	_, err = h.svc.PickCards(ctx, carol.UserID, view.ID, bobHand)
	assert.ErrorIs(t, err, appErr.ErrNotParticipant)

	shown, err := h.svc.Show(ctx, bob.UserID, view.ID)
	require.NoError(t, err)
	assert.Equal(t, game.StatusPickInProgress, shown.State)
}

func TestPickPropagatesLedgerFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	view, err := h.svc.Create(ctx, alice, game.CreateRequest{})
	require.NoError(t, err)
	_, err = h.svc.Join(ctx, bob, view.ID)
	require.NoError(t, err)

	h.ledger.mu.Lock()
	h.ledger.failList = true
	h.ledger.mu.Unlock()

	_, err = h.svc.PickCards(ctx, bob.UserID, view.ID, bobHand)
	assert.ErrorIs(t, err, errInjected)
}

func TestFullMatchCompletes(t *testing.T) {
	h := newHarness(t)
	id := h.startMatch(t, game.RuleSet{}, game.TradeNone)

	_, err := h.svc.PlayCard(context.Background(), alice.UserID, id, 0, 0)
	assert.ErrorIs(t, err, appErr.ErrNotYourTurn)

	final := h.play(t, id, script)

	assert.Equal(t, game.StatusCompleted, final.State)
	assert.Equal(t, 1, final.You.Score)
	assert.Equal(t, 9, final.Opponent.Score)
	assert.False(t, final.IsYourTurn)
	assert.Nil(t, final.TurnEndsAt)
	assert.Equal(t, []string{"open", "in-progress", "remove"}, h.dir.ops())

	// The runtime exits once nobody can act; reads reload from the store.
	shown, err := h.svc.Show(context.Background(), alice.UserID, id)
	require.NoError(t, err)
	assert.Equal(t, game.StatusCompleted, shown.State)
	assert.Equal(t, 9, shown.You.Score)

	for _, ref := range aliceHand {
		assert.Equal(t, 1, h.ledger.count(alice.UserID, ref))
	}
	for _, ref := range bobHand {
		assert.Equal(t, 1, h.ledger.count(bob.UserID, ref))
	}
}

func TestPickedCardsAreHeldUntilTheMatchEnds(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.startMatch(t, game.RuleSet{}, game.TradeNone)

	for _, ref := range bobHand {
		assert.Zero(t, h.ledger.count(bob.UserID, ref))
	}

	view, err := h.svc.Create(ctx, carol, game.CreateRequest{})
	require.NoError(t, err)
	_, err = h.svc.Join(ctx, bob, view.ID)
	require.NoError(t, err)
	_, err = h.svc.PickCards(ctx, bob.UserID, view.ID, bobHand)
	assert.ErrorIs(t, err, appErr.ErrCardNotOwned, "a copy is staked in one match at a time")

	h.play(t, id, script)
	_, err = h.svc.PickCards(ctx, bob.UserID, view.ID, bobHand)
	assert.NoError(t, err)
}

func TestPickReleasesHandWhenSaveFails(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	view, err := h.svc.Create(ctx, alice, game.CreateRequest{})
	require.NoError(t, err)
	_, err = h.svc.Join(ctx, bob, view.ID)
	require.NoError(t, err)

	h.store.setFailSave(true)
	_, err = h.svc.PickCards(ctx, bob.UserID, view.ID, bobHand)
	assert.ErrorIs(t, err, errInjected)
	h.store.setFailSave(false)

	for _, ref := range bobHand {
		assert.Equal(t, 1, h.ledger.count(bob.UserID, ref))
	}
	_, err = h.svc.PickCards(ctx, bob.UserID, view.ID, bobHand)
	require.NoError(t, err)
	_, err = h.svc.PickCards(ctx, bob.UserID, view.ID, bobHand)
	assert.ErrorIs(t, err, appErr.ErrAlreadyPicked)
	for _, ref := range bobHand {
		assert.Zero(t, h.ledger.count(bob.UserID, ref), "a rejected repick holds nothing more")
	}
}

func TestTradeOneEntersTrading(t *testing.T) {
	h := newHarness(t)
	id := h.startMatch(t, game.RuleSet{}, game.TradeOne)

	conn := game.NewConnection(alice, 32)
	rt, err := h.svc.Connect(context.Background(), id, conn)
	require.NoError(t, err)

	final := h.play(t, id, script)
	assert.Equal(t, game.StatusTrading, final.State)
	assert.Equal(t, "remove", h.dir.ops()[len(h.dir.ops())-1])
	for _, ref := range bobHand {
		assert.Equal(t, 1, h.ledger.count(bob.UserID, ref), "trading returns held hands")
	}

	// Nothing can change a trading match, so its runtime exits once unwatched.
	rt.Unregister(conn)
	select {
	case <-rt.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("trading runtime still running")
	}

	err = h.svc.TradeCards(context.Background(), alice.UserID, id)
	assert.ErrorIs(t, err, appErr.ErrNotImplemented)
	err = h.svc.TradeCards(context.Background(), carol.UserID, id)
	assert.ErrorIs(t, err, appErr.ErrNotParticipant)
}

func TestTradeAllSettlesOnCompletion(t *testing.T) {
	h := newHarness(t)
	id := h.startMatch(t, game.RuleSet{}, game.TradeAll)

	final := h.play(t, id, script)
	require.Equal(t, game.StatusCompleted, final.State)

	for _, ref := range bobHand {
		assert.Equal(t, 0, h.ledger.count(bob.UserID, ref), "bob lost %s", ref)
		assert.Equal(t, 1, h.ledger.count(alice.UserID, ref), "alice won %s", ref)
	}
}

func TestTradeDirectMovesCapturedCards(t *testing.T) {
	h := newHarness(t)
	id := h.startMatch(t, game.RuleSet{}, game.TradeDirect)

	h.play(t, id, script)

	captured := bobHand[:4]
	for _, ref := range captured {
		assert.Equal(t, 1, h.ledger.count(alice.UserID, ref))
		assert.Equal(t, 0, h.ledger.count(bob.UserID, ref))
	}
	assert.Equal(t, 1, h.ledger.count(bob.UserID, bobHand[4]))
}

func TestSettlementFailureLeavesStateUnchanged(t *testing.T) {
	h := newHarness(t)
	id := h.startMatch(t, game.RuleSet{}, game.TradeAll)
	h.play(t, id, script[:8])

	h.ledger.setFailAdd(true)
	last := script[8]
	_, err := h.svc.PlayCard(context.Background(), last.userID, id, last.space, last.handIndex)
	assert.ErrorIs(t, err, errInjected)

	shown, err := h.svc.Show(context.Background(), bob.UserID, id)
	require.NoError(t, err)
	assert.Equal(t, game.StatusInProgress, shown.State)
	assert.Equal(t, game.OwnerEmpty, shown.Board[8].Owner)
	assert.True(t, shown.IsYourTurn)

	h.ledger.setFailAdd(false)
	final := h.play(t, id, script[8:])
	assert.Equal(t, game.StatusCompleted, final.State)
	for _, ref := range bobHand {
		assert.Equal(t, 1, h.ledger.count(alice.UserID, ref))
	}
}

func TestTradeAllMatchesStakingTheSameCardsBothSettle(t *testing.T) {
	h := newHarness(t)
	h.ledger.grant(alice.UserID, game.CatalogEdition(4)...)
	h.ledger.grant(bob.UserID, game.CatalogEdition(1)[:5]...)

	first := h.startMatch(t, game.RuleSet{}, game.TradeAll)
	second := h.startMatch(t, game.RuleSet{}, game.TradeAll)

	require.Equal(t, game.StatusCompleted, h.play(t, first, script).State)
	h.play(t, second, script[:8])

	last := script[8]
	final, err := h.svc.PlayCard(context.Background(), last.userID, second, last.space, last.handIndex)
	require.NoError(t, err, "losing the first match must not block the second")
	assert.Equal(t, game.StatusCompleted, final.State)
	assert.Equal(t, game.OwnerYou, final.Board[8].Owner)

	for _, ref := range bobHand {
		assert.Zero(t, h.ledger.count(bob.UserID, ref))
		assert.Equal(t, 2, h.ledger.count(alice.UserID, ref))
	}
	for _, ref := range aliceHand {
		assert.Equal(t, 2, h.ledger.count(alice.UserID, ref))
	}
}

func TestConcurrentCreatesRespectPendingLimit(t *testing.T) {
	h := newHarness(t)
	req := game.CreateRequest{Rules: game.NewRuleSet(game.RulePlus), TradeRule: game.TradeDirect}

	const workers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.svc.Create(context.Background(), alice, req)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				accepted++
				return
			}
			if !errors.Is(err, appErr.ErrTooManyPending) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 2, accepted)
}

func TestSaveFailureLeavesStateUnchanged(t *testing.T) {
	h := newHarness(t)
	id := h.startMatch(t, game.RuleSet{}, game.TradeNone)

	h.store.setFailSave(true)
	_, err := h.svc.PlayCard(context.Background(), bob.UserID, id, 0, 0)
	assert.ErrorIs(t, err, errInjected)
	h.store.setFailSave(false)

	shown, err := h.svc.Show(context.Background(), bob.UserID, id)
	require.NoError(t, err)
	assert.Equal(t, game.OwnerEmpty, shown.Board[0].Owner)
	assert.False(t, shown.You.Hand[0].Played)
	assert.True(t, shown.IsYourTurn)
}

func TestConcurrentPlaysAreSerialized(t *testing.T) {
	h := newHarness(t)
	id := h.startMatch(t, game.RuleSet{}, game.TradeNone)

	const workers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.svc.PlayCard(context.Background(), bob.UserID, id, 4, 0)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				success++
				return
			}
			if !errors.Is(err, appErr.ErrNotYourTurn) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, success)
}

func TestRealtimeBroadcasts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.startMatch(t, game.RuleSet{}, game.TradeNone)

	aliceConn := game.NewConnection(alice, 8)
	bobConn := game.NewConnection(bob, 8)
	_, err := h.svc.Connect(ctx, id, aliceConn)
	require.NoError(t, err)
	_, err = h.svc.Connect(ctx, id, bobConn)
	require.NoError(t, err)

	snapshot := nextEvent(t, aliceConn)
	assert.Equal(t, game.EventStateChanged, snapshot.Type)
	assert.Equal(t, game.EventStateChanged, nextEvent(t, bobConn).Type)

	_, err = h.svc.PlayCard(ctx, bob.UserID, id, 4, 0)
	require.NoError(t, err)

	forAlice := nextEvent(t, aliceConn)
	forBob := nextEvent(t, bobConn)
	require.Equal(t, game.EventCardPlayed, forAlice.Type)
	require.Equal(t, game.EventCardPlayed, forBob.Type)
	assert.Equal(t, forAlice.Seq, forBob.Seq)
	assert.Greater(t, forAlice.Seq, snapshot.Seq)

	pa := forAlice.Data.(game.CardPlayedPayload)
	pb := forBob.Data.(game.CardPlayedPayload)
	assert.Equal(t, pa.Changes, pb.Changes)
	require.Len(t, pa.Changes, 1)
	assert.True(t, pa.Match.IsYourTurn)
	assert.False(t, pb.Match.IsYourTurn)
	assert.Equal(t, game.OwnerOpponent, pa.Match.Board[4].Owner)
	assert.Equal(t, game.OwnerYou, pb.Match.Board[4].Owner)
}

func TestRealtimeRejectsStrangers(t *testing.T) {
	h := newHarness(t)
	id := h.startMatch(t, game.RuleSet{}, game.TradeNone)

	_, err := h.svc.Connect(context.Background(), id, game.NewConnection(carol, 4))
	assert.ErrorIs(t, err, appErr.ErrNotParticipant)
}

func TestDispatch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.startMatch(t, game.RuleSet{}, game.TradeNone)

	aliceConn := game.NewConnection(alice, 8)
	bobConn := game.NewConnection(bob, 8)
	_, err := h.svc.Connect(ctx, id, aliceConn)
	require.NoError(t, err)
	rt, err := h.svc.Connect(ctx, id, bobConn)
	require.NoError(t, err)
	nextEvent(t, aliceConn)
	nextEvent(t, bobConn)

	cases := []struct {
		name string
		raw  string
	}{
		{"not json", `{{`},
		{"unknown type", `{"type":"dance"}`},
		{"bad play payload", `{"type":"play-card","data":{"space":"x"}}`},
		{"missing hand index", `{"type":"play-card","data":{"space":1}}`},
		{"bad hand index", `{"type":"play-card","data":{"space":4,"handIndex":9}}`},
		{"trade", `{"type":"trade-cards"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.NoError(t, rt.Dispatch(ctx, bobConn, []byte(tc.raw)))
			msg := nextEvent(t, bobConn)
			assert.Equal(t, game.EventError, msg.Type)
			assert.NotEmpty(t, msg.Data.(game.ErrorPayload).Message)
			assertNoEvent(t, aliceConn)
		})
	}

	require.NoError(t, rt.Dispatch(ctx, bobConn, []byte(`{"type":"ping"}`)))
	assert.Equal(t, game.EventPong, nextEvent(t, bobConn).Type)

	require.NoError(t, rt.Dispatch(ctx, bobConn, []byte(`{"type":"play-card","data":{"space":4,"handIndex":0}}`)))
	assert.Equal(t, game.EventCardPlayed, nextEvent(t, bobConn).Type)
	assert.Equal(t, game.EventCardPlayed, nextEvent(t, aliceConn).Type)

	require.NoError(t, rt.Dispatch(ctx, bobConn, []byte(`{"type":"play-card","data":{"space":0,"handIndex":1}}`)))
	msg := nextEvent(t, bobConn)
	assert.Equal(t, game.EventError, msg.Type, "it is alice's turn now")
	assertNoEvent(t, aliceConn)

	require.NoError(t, rt.Dispatch(ctx, aliceConn, []byte(`{"type":"show"}`)))
	shown := nextEvent(t, aliceConn)
	assert.Equal(t, game.EventStateChanged, shown.Type)
	assert.True(t, shown.Data.(game.MatchView).IsYourTurn)
}

func TestUnregisterClosesOutbound(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.startMatch(t, game.RuleSet{}, game.TradeNone)

	conn := game.NewConnection(alice, 4)
	rt, err := h.svc.Connect(ctx, id, conn)
	require.NoError(t, err)
	nextEvent(t, conn)

	rt.Unregister(conn)
	_, ok := <-conn.Outbound()
	assert.False(t, ok)

	rt.Unregister(conn)
}

func TestSlowConnectionIsDropped(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.startMatch(t, game.RuleSet{}, game.TradeNone)

	slow := game.NewConnection(alice, 1)
	_, err := h.svc.Connect(ctx, id, slow)
	require.NoError(t, err)

	_, err = h.svc.PlayCard(ctx, bob.UserID, id, 4, 0)
	require.NoError(t, err, "a full subscriber never blocks the match")

	assert.Equal(t, game.EventStateChanged, nextEvent(t, slow).Type)
	_, ok := <-slow.Outbound()
	assert.False(t, ok)
}
