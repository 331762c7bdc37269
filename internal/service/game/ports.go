package game

import (
	"context"
	"time"
)

// Identity is the caller as resolved by the auth layer.
type Identity struct {
	UserID       int64
	Name         string
	IdentityHash string
}

type OwnedCard struct {
	Ref   CardRef `json:"ref"`
	Count int     `json:"count"`
}

// CardLedger is the card-ownership collaborator.
type CardLedger interface {
	ListOwned(ctx context.Context, userID int64) ([]OwnedCard, error)
	AddCards(ctx context.Context, userID int64, refs []CardRef) error
	RemoveCards(ctx context.Context, userID int64, refs []CardRef) error
}

type Listing struct {
	MatchID     string    `json:"matchId"`
	CreatorID   int64     `json:"creatorId,string"`
	CreatorName string    `json:"creatorName"`
	Rules       []Rule    `json:"rules"`
	TradeRule   TradeRule `json:"tradeRule"`
	Public      bool      `json:"public"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Directory tracks open and in-progress listings. Failures are logged, never
// surfaced to the player whose command triggered them.
type Directory interface {
	MarkOpen(ctx context.Context, listing Listing) error
	MoveToInProgress(ctx context.Context, matchID string, userIDs ...int64) error
	Remove(ctx context.Context, matchID string, userIDs ...int64) error
}

type Store interface {
	// CreatePending checks the pending-identical limit and inserts in one step.
	CreatePending(ctx context.Context, state *MatchState, maxPending int) error
	Save(ctx context.Context, state *MatchState) error
	Load(ctx context.Context, matchID string) (*MatchState, error)
}
