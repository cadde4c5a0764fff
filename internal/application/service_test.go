package application

import (
	"context"
	"testing"
	"time"

	"github.com/bnema/stellar-site/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newVisitorService(visitors *inMemoryVisitors) *VisitorService {
	return NewVisitorService(visitors, TabConfig{AppID: "app-123"}, fixedClock{now: testNow}, nil)
}

func TestVisitorServiceIdentifyAndGetStatus(t *testing.T) {
	t.Parallel()

	visitors := &inMemoryVisitors{}
	svc := newVisitorService(visitors)
	ctx := context.Background()

	status, err := svc.Identify(ctx, IdentifyCommand{
		VisitorID: "v-1",
		Identity:  domain.PartialIdentity{Email: "A@B.com", Name: "A"},
	})
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", status.Snapshot.UserID)

	kv := visitors.ForVisitor("v-1")
	require.NoError(t, NewSessionStore(kv, nil).MergeCustomAttributes(ctx, domain.NewPageVisit("/contact", 1_700_000_000).Attributes()))

	status, err = svc.GetStatus(ctx, "v-1")
	require.NoError(t, err)
	assert.Equal(t, "v-1", status.VisitorID)
	assert.Equal(t, "A", status.Snapshot.Name)
	assert.Equal(t, "stellar/contact", status.LastPage)
	assert.Equal(t, time.Unix(1_700_000_000, 0).UTC(), status.LastSeen)
}

func TestVisitorServiceGetStatusMissing(t *testing.T) {
	t.Parallel()

	_, err := newVisitorService(&inMemoryVisitors{}).GetStatus(context.Background(), "v-unknown")
	require.ErrorIs(t, err, domain.ErrSnapshotNotFound)
}

func TestVisitorServiceClear(t *testing.T) {
	t.Parallel()

	svc := newVisitorService(&inMemoryVisitors{})
	ctx := context.Background()
	_, err := svc.Identify(ctx, IdentifyCommand{VisitorID: "v-1", Identity: domain.PartialIdentity{UserID: "u-1"}})
	require.NoError(t, err)

	require.NoError(t, svc.Clear(ctx, ClearSessionCommand{VisitorID: "v-1"}))

	_, err = svc.GetStatus(ctx, "v-1")
	require.ErrorIs(t, err, domain.ErrSnapshotNotFound)
}

func TestVisitorServiceRejectsInvalidVisitorID(t *testing.T) {
	t.Parallel()

	svc := newVisitorService(&inMemoryVisitors{})
	for _, id := range []string{"", " ", "..", "a/b", `a\b`} {
		_, err := svc.GetStatus(context.Background(), id)
		assert.ErrorIs(t, err, ErrInvalidVisitorID, id)
	}
	require.ErrorIs(t, svc.Clear(context.Background(), ClearSessionCommand{VisitorID: "../etc"}), ErrInvalidVisitorID)
}
