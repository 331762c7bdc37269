package ticket_test

import (
	"context"
	"testing"
	"time"

	"triad-service/internal/service/ticket"
	appErr "triad-service/pkg/errors"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *ticket.Service) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, ticket.NewService(rdb, ttl)
}

func TestTicketIsSingleUse(t *testing.T) {
	_, svc := newTestService(t, time.Minute)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, 7, "match-1")
	require.NoError(t, err)
	assert.Len(t, issued.Ticket, 32)

	claim, err := svc.Consume(ctx, issued.Ticket, "match-1")
	require.NoError(t, err)
	assert.Equal(t, int64(7), claim.UserID)
	assert.Equal(t, "match-1", claim.MatchID)

	_, err = svc.Consume(ctx, issued.Ticket, "match-1")
	assert.ErrorIs(t, err, appErr.ErrInvalidTicket)
}

func TestTicketBoundToMatch(t *testing.T) {
	_, svc := newTestService(t, time.Minute)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, 7, "match-1")
	require.NoError(t, err)

	_, err = svc.Consume(ctx, issued.Ticket, "match-2")
	assert.ErrorIs(t, err, appErr.ErrInvalidTicket)
	_, err = svc.Consume(ctx, issued.Ticket, "match-1")
	assert.ErrorIs(t, err, appErr.ErrInvalidTicket, "a mismatched attempt still burns the ticket")
}

func TestTicketExpires(t *testing.T) {
	mr, svc := newTestService(t, 30*time.Second)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, 7, "match-1")
	require.NoError(t, err)
	mr.FastForward(31 * time.Second)

	_, err = svc.Consume(ctx, issued.Ticket, "match-1")
	assert.ErrorIs(t, err, appErr.ErrInvalidTicket)
}

func TestConsumeEmptyTicket(t *testing.T) {
	_, svc := newTestService(t, 0)
	_, err := svc.Consume(context.Background(), "", "match-1")
	assert.ErrorIs(t, err, appErr.ErrInvalidTicket)
}

func TestIssueGivesUpWhenCodesCollide(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	svc := ticket.NewService(rdb, time.Minute, ticket.WithCodeGenerator(func() string { return "fixed" }))
	ctx := context.Background()

	issued, err := svc.Issue(ctx, 7, "match-1")
	require.NoError(t, err)
	assert.Equal(t, "fixed", issued.Ticket)

	_, err = svc.Issue(ctx, 8, "match-1")
	assert.ErrorIs(t, err, ticket.ErrCodeCollision)

	claim, err := svc.Consume(ctx, "fixed", "match-1")
	require.NoError(t, err)
	assert.Equal(t, int64(7), claim.UserID, "the first holder keeps the code")
}
