package game

import (
	"context"

	"triad-service/pkg/logger"

	"go.uber.org/zap"
)

// Hands are held out of the owner's collection from pick (or draw) until the
// match ends, so the same copy cannot be staked twice and settlement never
// depends on what the loser still owns.

func handRefs(hand []Card) []CardRef {
	out := make([]CardRef, 0, len(hand))
	for _, c := range hand {
		out = append(out, c.Ref())
	}
	return out
}

func holdHand(ctx context.Context, ledger CardLedger, userID int64, hand []Card) error {
	return ledger.RemoveCards(ctx, userID, handRefs(hand))
}

// releaseHand gives a held hand back after a command that took it failed.
func releaseHand(ctx context.Context, ledger CardLedger, matchID string, userID int64, hand []Card) {
	if err := ledger.AddCards(ctx, userID, handRefs(hand)); err != nil {
		logger.Log.Error("held cards release failed",
			zap.String("matchID", matchID),
			zap.Int64("userID", userID),
			zap.Error(err),
		)
	}
}
