package game

import (
	"time"

	appErr "triad-service/pkg/errors"
)

type HandSlot struct {
	Hidden bool  `json:"hidden"`
	Card   *Card `json:"card,omitempty"`
	Played bool  `json:"played"`
	Chosen bool  `json:"chosen"`
}

type PlayerView struct {
	ID           int64              `json:"id,string"`
	Name         string             `json:"name"`
	IdentityHash string             `json:"identityHash"`
	Score        int                `json:"score"`
	Hand         [HandSize]HandSlot `json:"hand"`
}

type SpaceOwner string

const (
	OwnerYou      SpaceOwner = "you"
	OwnerOpponent SpaceOwner = "opponent"
	OwnerEmpty    SpaceOwner = "empty"
)

type SpaceView struct {
	Card    *Card      `json:"card,omitempty"`
	Element Element    `json:"element"`
	Owner   SpaceOwner `json:"owner"`
}

// MatchView is a match as one participant is allowed to see it.
type MatchView struct {
	ID           string               `json:"id"`
	State        MatchStatus          `json:"state"`
	You          *PlayerView          `json:"you"`
	Opponent     *PlayerView          `json:"opponent"`
	IsYourTurn   bool                 `json:"isYourTurn"`
	TurnEndsAt   *time.Time           `json:"turnEndsAt,omitempty"`
	Board        [BoardSize]SpaceView `json:"board"`
	Rules        []Rule               `json:"rules"`
	TradeRule    TradeRule            `json:"tradeRule"`
	OpponentKind OpponentKind         `json:"opponentKind"`
}

// BuildView projects state for viewerID. It is recomputed on every read so
// hidden cards never leak through a cached copy.
func BuildView(s *MatchState, viewerID int64) (MatchView, error) {
	me := s.PlayerIndex(viewerID)
	if me < 0 {
		return MatchView{}, appErr.ErrNotParticipant
	}

	view := MatchView{
		ID:           s.ID,
		State:        s.Status,
		Rules:        s.Rules.List(),
		TradeRule:    s.TradeRule,
		OpponentKind: s.OpponentKind,
	}
	you := playerView(s.Players[me], true)
	view.You = &you

	if len(s.Players) == MaxPlayers {
		reveal := s.Rules.Has(RuleOpen) && !s.Status.Picking()
		opp := playerView(s.Players[1-me], reveal)
		view.Opponent = &opp
		view.IsYourTurn = s.Status == StatusInProgress && s.Turn == me
		if !s.TurnDeadline.IsZero() && (s.Status == StatusInProgress || s.Status.Picking()) {
			deadline := s.TurnDeadline
			view.TurnEndsAt = &deadline
		}
	}

	for i, sp := range s.Board {
		sv := SpaceView{Element: sp.Element, Owner: OwnerEmpty}
		if sv.Element == "" {
			sv.Element = ElementNone
		}
		if !sp.Empty() {
			c := *sp.Card
			sv.Card = &c
			if sp.Owner == me {
				sv.Owner = OwnerYou
			} else {
				sv.Owner = OwnerOpponent
			}
		}
		view.Board[i] = sv
	}
	return view, nil
}

func playerView(p PlayerEntry, reveal bool) PlayerView {
	pv := PlayerView{
		ID:           p.ID,
		Name:         p.Name,
		IdentityHash: p.IdentityHash,
		Score:        p.Score,
	}
	for i := range pv.Hand {
		if i >= len(p.Hand) {
			continue
		}
		slot := HandSlot{Chosen: true, Played: p.Played[i]}
		if reveal || slot.Played {
			c := p.Hand[i]
			slot.Card = &c
		} else {
			slot.Hidden = true
		}
		pv.Hand[i] = slot
	}
	return pv
}
