package game

import (
	"fmt"
	"time"

	appErr "triad-service/pkg/errors"
)

type MatchStatus string

const (
	StatusWaitingForOpponent    MatchStatus = "waiting_for_opponent"
	StatusPickInProgress        MatchStatus = "pick_in_progress"
	StatusWaitingForOtherPlayer MatchStatus = "waiting_for_other_player"
	StatusInProgress            MatchStatus = "in_progress"
	StatusTrading               MatchStatus = "trading"
	StatusCompleted             MatchStatus = "completed"
)

// Picking reports whether hands are still being chosen.
func (s MatchStatus) Picking() bool {
	return s == StatusWaitingForOpponent || s == StatusPickInProgress || s == StatusWaitingForOtherPlayer
}

// Ended reports whether no further move can be made on the board.
func (s MatchStatus) Ended() bool {
	return s == StatusCompleted || s == StatusTrading
}

type OpponentKind string

const (
	OpponentPublic  OpponentKind = "public"
	OpponentPrivate OpponentKind = "private"
)

func ParseOpponentKind(name string) (OpponentKind, error) {
	switch k := OpponentKind(name); k {
	case "":
		return OpponentPublic, nil
	case OpponentPublic, OpponentPrivate:
		return k, nil
	default:
		return "", fmt.Errorf("%w: opponent kind %q", appErr.ErrInvalidRule, name)
	}
}

const (
	HandSize     = 5
	MaxPlayers   = 2
	InitialScore = 5
)

type PlayerEntry struct {
	ID           int64          `json:"id"`
	Name         string         `json:"name"`
	IdentityHash string         `json:"identityHash"`
	Score        int            `json:"score"`
	Hand         []Card         `json:"hand"`
	Played       [HandSize]bool `json:"played"`
}

func (p *PlayerEntry) HasPicked() bool {
	return len(p.Hand) == HandSize
}

type MatchState struct {
	ID           string         `json:"id"`
	Status       MatchStatus    `json:"status"`
	Players      []PlayerEntry  `json:"players"`
	Turn         int            `json:"turn"`
	TurnDeadline time.Time      `json:"turnDeadline"`
	TurnLimit    time.Duration  `json:"turnLimit"`
	Board        Board          `json:"board"`
	Origins      [BoardSize]int `json:"origins"`
	Rules        RuleSet        `json:"rules"`
	TradeRule    TradeRule      `json:"tradeRule"`
	OpponentKind OpponentKind   `json:"opponentKind"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

type NewMatchParams struct {
	ID           string
	Creator      PlayerEntry
	Rules        RuleSet
	TradeRule    TradeRule
	OpponentKind OpponentKind
	TurnLimit    time.Duration
	// Elements tags spaces when the elemental rule is on; ignored otherwise.
	Elements [BoardSize]Element
	Now      time.Time
}

func NewMatch(p NewMatchParams) *MatchState {
	creator := p.Creator
	creator.Score = InitialScore
	creator.Played = [HandSize]bool{}

	board := EmptyBoard()
	if p.Rules.Has(RuleElemental) {
		for i, el := range p.Elements {
			if el != "" {
				board[i].Element = el
			}
		}
	}
	var origins [BoardSize]int
	for i := range origins {
		origins[i] = NoOwner
	}
	rules := p.Rules
	if rules == nil {
		rules = RuleSet{}
	}
	return &MatchState{
		ID:           p.ID,
		Status:       StatusWaitingForOpponent,
		Players:      []PlayerEntry{creator},
		Turn:         0,
		TurnLimit:    p.TurnLimit,
		Board:        board,
		Origins:      origins,
		Rules:        rules,
		TradeRule:    p.TradeRule,
		OpponentKind: p.OpponentKind,
		CreatedAt:    p.Now,
		UpdatedAt:    p.Now,
	}
}

func (s *MatchState) PlayerIndex(userID int64) int {
	for i := range s.Players {
		if s.Players[i].ID == userID {
			return i
		}
	}
	return -1
}

func (s *MatchState) Creator() PlayerEntry {
	return s.Players[0]
}

func (s *MatchState) advanceTurn(now time.Time) {
	s.Turn = (s.Turn + 1) % len(s.Players)
	s.TurnDeadline = now.Add(s.TurnLimit)
	s.UpdatedAt = now
}

// Join seats the second player. A joiner of a random-rule match must
// already carry a drawn hand.
func (s *MatchState) Join(player PlayerEntry, now time.Time) error {
	if s.Status != StatusWaitingForOpponent {
		return fmt.Errorf("%w: cannot join a match in %s", appErr.ErrInvalidState, s.Status)
	}
	if len(s.Players) != 1 {
		return appErr.ErrMatchFull
	}
	if s.Players[0].ID == player.ID {
		return appErr.ErrCannotJoinOwnMatch
	}

	player.Score = InitialScore
	player.Played = [HandSize]bool{}
	if s.Rules.Has(RuleRandom) {
		if !player.HasPicked() || !s.Players[0].HasPicked() {
			return fmt.Errorf("%w: random hands must be drawn before joining", appErr.ErrInvalidPick)
		}
		s.Status = StatusInProgress
	} else {
		player.Hand = nil
		s.Status = StatusPickInProgress
	}
	s.Players = append(s.Players, player)
	s.advanceTurn(now)
	return nil
}

// PickCards sets the caller's hand. Ownership is checked by the caller.
func (s *MatchState) PickCards(userID int64, hand []Card, now time.Time) error {
	if s.Status != StatusPickInProgress && s.Status != StatusWaitingForOtherPlayer {
		return fmt.Errorf("%w: cannot pick cards in %s", appErr.ErrInvalidState, s.Status)
	}
	idx := s.PlayerIndex(userID)
	if idx < 0 {
		return appErr.ErrNotParticipant
	}
	if s.Players[idx].HasPicked() {
		return appErr.ErrAlreadyPicked
	}
	if len(hand) != HandSize {
		return fmt.Errorf("%w: exactly %d cards required, got %d", appErr.ErrInvalidPick, HandSize, len(hand))
	}
	seen := make(map[CardRef]bool, HandSize)
	for _, c := range hand {
		if seen[c.Ref()] {
			return fmt.Errorf("%w: duplicate card %s", appErr.ErrInvalidPick, c.Ref())
		}
		seen[c.Ref()] = true
	}

	s.Players[idx].Hand = append([]Card(nil), hand...)
	if s.Status == StatusPickInProgress {
		s.Status = StatusWaitingForOtherPlayer
	} else {
		s.Status = StatusInProgress
	}
	s.advanceTurn(now)
	return nil
}

// PlayCard places a hand card, resolves flips and applies the score deltas.
func (s *MatchState) PlayCard(userID int64, space, handIndex int, now time.Time) ([]ChangeSet, error) {
	if s.Status != StatusInProgress {
		return nil, fmt.Errorf("%w: cannot play a card in %s", appErr.ErrInvalidState, s.Status)
	}
	idx := s.PlayerIndex(userID)
	if idx < 0 {
		return nil, appErr.ErrNotParticipant
	}
	if idx != s.Turn {
		return nil, appErr.ErrNotYourTurn
	}
	if space < 0 || space >= BoardSize {
		return nil, fmt.Errorf("%w: %d", appErr.ErrInvalidSpace, space)
	}
	if !s.Board[space].Empty() {
		return nil, fmt.Errorf("%w: %d", appErr.ErrSpaceOccupied, space)
	}
	player := &s.Players[idx]
	if handIndex < 0 || handIndex >= len(player.Hand) {
		return nil, fmt.Errorf("%w: %d", appErr.ErrInvalidHandIndex, handIndex)
	}
	if player.Played[handIndex] {
		return nil, fmt.Errorf("%w: slot %d", appErr.ErrCardAlreadyPlayed, handIndex)
	}

	player.Played[handIndex] = true
	placed := player.Hand[handIndex]
	s.Board[space].Card = &placed
	s.Board[space].Owner = idx
	s.Origins[space] = idx

	changes := Resolve(s.Board, s.Rules, space)
	opponent := 1 - idx
	for _, wave := range changes[1:] {
		for flipped := range wave {
			s.Board[flipped].Owner = idx
			s.Players[idx].Score++
			s.Players[opponent].Score--
		}
	}

	s.advanceTurn(now)
	if s.Board.Full() {
		if s.TradeRule.SettlesImmediately() {
			s.Status = StatusCompleted
		} else {
			s.Status = StatusTrading
		}
	}
	return changes, nil
}

// Winner returns the index of the player with the higher score, or -1 on a draw.
func (s *MatchState) Winner() int {
	if len(s.Players) < MaxPlayers || s.Players[0].Score == s.Players[1].Score {
		return -1
	}
	if s.Players[0].Score > s.Players[1].Score {
		return 0
	}
	return 1
}

type Transfer struct {
	From  int64
	To    int64
	Cards []CardRef
}

// TradeTransfers lists the card movements owed once a match completes.
func (s *MatchState) TradeTransfers() []Transfer {
	if s.Status != StatusCompleted || len(s.Players) < MaxPlayers {
		return nil
	}
	switch s.TradeRule {
	case TradeDirect:
		won := [MaxPlayers][]CardRef{}
		for i, sp := range s.Board {
			origin := s.Origins[i]
			if sp.Empty() || origin == NoOwner || sp.Owner == origin {
				continue
			}
			won[sp.Owner] = append(won[sp.Owner], sp.Card.Ref())
		}
		out := make([]Transfer, 0, MaxPlayers)
		for winner, cards := range won {
			if len(cards) == 0 {
				continue
			}
			out = append(out, Transfer{From: s.Players[1-winner].ID, To: s.Players[winner].ID, Cards: cards})
		}
		return out
	case TradeAll:
		winner := s.Winner()
		if winner < 0 {
			return nil
		}
		loser := s.Players[1-winner]
		cards := make([]CardRef, 0, len(loser.Hand))
		for _, c := range loser.Hand {
			cards = append(cards, c.Ref())
		}
		return []Transfer{{From: loser.ID, To: s.Players[winner].ID, Cards: cards}}
	default:
		return nil
	}
}

// Payout is what a player takes back out of the match once it ends.
type Payout struct {
	UserID int64
	Cards  []CardRef
}

// Payouts releases every held hand once the board is closed, moved according
// to TradeTransfers. A trading match hands each player their own cards back.
func (s *MatchState) Payouts() []Payout {
	if !s.Status.Ended() {
		return nil
	}
	held := make(map[int64][]CardRef, len(s.Players))
	for _, p := range s.Players {
		for _, c := range p.Hand {
			held[p.ID] = append(held[p.ID], c.Ref())
		}
	}
	for _, t := range s.TradeTransfers() {
		held[t.From] = withoutRefs(held[t.From], t.Cards)
		held[t.To] = append(held[t.To], t.Cards...)
	}
	out := make([]Payout, 0, len(s.Players))
	for _, p := range s.Players {
		if len(held[p.ID]) > 0 {
			out = append(out, Payout{UserID: p.ID, Cards: held[p.ID]})
		}
	}
	return out
}

// withoutRefs drops one occurrence of each ref in drop.
func withoutRefs(refs, drop []CardRef) []CardRef {
	pending := make(map[CardRef]int, len(drop))
	for _, r := range drop {
		pending[r]++
	}
	out := make([]CardRef, 0, len(refs))
	for _, r := range refs {
		if pending[r] > 0 {
			pending[r]--
			continue
		}
		out = append(out, r)
	}
	return out
}

// Clone returns a deep copy safe to mutate independently.
func (s *MatchState) Clone() *MatchState {
	out := *s
	out.Players = make([]PlayerEntry, len(s.Players))
	for i, p := range s.Players {
		p.Hand = append([]Card(nil), p.Hand...)
		out.Players[i] = p
	}
	out.Rules = make(RuleSet, len(s.Rules))
	for r, on := range s.Rules {
		out.Rules[r] = on
	}
	return &out
}
