package application

import (
	"context"
	"errors"
	"testing"

	"github.com/bnema/stellar-site/internal/domain"
	"github.com/bnema/stellar-site/internal/ports/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStoreSaveAndLoad(t *testing.T) {
	t.Parallel()

	store := NewSessionStore(newInMemoryKV(), nil)
	snapshot := domain.IdentitySnapshot{
		UserID:    "a@b.com",
		Email:     " A@B.com ",
		Name:      "A",
		CreatedAt: 1_700_000_000,
		CustomAttributes: domain.Attributes{
			domain.AttrLastPageURL:       "stellar/contact",
			domain.AttrLastURLUpdateTime: int64(1_700_000_100),
		},
	}

	require.NoError(t, store.Save(context.Background(), snapshot))

	loaded, ok := store.Load(context.Background())
	require.True(t, ok)
	assert.Equal(t, "a@b.com", loaded.Email)
	assert.Equal(t, int64(1_700_000_000), loaded.CreatedAt)
	assert.Equal(t, "stellar/contact", loaded.CustomAttributes.String(domain.AttrLastPageURL))
	assert.Equal(t, int64(1_700_000_100), loaded.CustomAttributes[domain.AttrLastURLUpdateTime])
}

func TestSessionStoreLoadMissingReportsAbsence(t *testing.T) {
	t.Parallel()

	_, ok := NewSessionStore(newInMemoryKV(), nil).Load(context.Background())
	assert.False(t, ok)
}

func TestSessionStoreLoadClearsCorruptedEntry(t *testing.T) {
	kv := mocks.NewMockKeyValueStore(t)
	store := NewSessionStore(kv, nil)

	kv.EXPECT().Get(mockAnyContext(), SnapshotKey).Return("{not json", nil).Once()
	kv.EXPECT().Delete(mockAnyContext(), SnapshotKey).Return(nil).Once()
	kv.EXPECT().Get(mockAnyContext(), LegacySnapshotKey).Return("", domain.ErrValueNotFound).Once()

	_, ok := store.Load(context.Background())
	assert.False(t, ok)
}

func TestSessionStoreLoadTreatsBackendFailureAsAbsence(t *testing.T) {
	kv := mocks.NewMockKeyValueStore(t)
	store := NewSessionStore(kv, nil)

	kv.EXPECT().Get(mockAnyContext(), SnapshotKey).Return("", errors.New("disk I/O error")).Once()
	kv.EXPECT().Get(mockAnyContext(), LegacySnapshotKey).Return("", errors.New("disk I/O error")).Once()

	_, ok := store.Load(context.Background())
	assert.False(t, ok)
}

func TestSessionStoreConvertsLegacyEntry(t *testing.T) {
	t.Parallel()

	kv := newInMemoryKV()
	require.NoError(t, kv.Put(context.Background(), LegacySnapshotKey,
		`{"user_id":"","email":"Old@Site.com","name":"Old","created_at":1600000000,"Last Page URL":"stellar/login","Last URL Update Time":1600000100}`))

	snapshot, ok := NewSessionStore(kv, nil).Load(context.Background())
	require.True(t, ok)
	assert.Equal(t, "old@site.com", snapshot.UserID)
	assert.Equal(t, "old@site.com", snapshot.Email)
	assert.Equal(t, int64(1_600_000_000), snapshot.CreatedAt)
	assert.Equal(t, "stellar/login", snapshot.CustomAttributes.String(domain.AttrLastPageURL))
	assert.Equal(t, int64(1_600_000_100), snapshot.CustomAttributes.Int64(domain.AttrLastURLUpdateTime))
}

func TestSessionStorePrefersCurrentKeyOverLegacy(t *testing.T) {
	t.Parallel()

	kv := newInMemoryKV()
	store := NewSessionStore(kv, nil)
	require.NoError(t, kv.Put(context.Background(), LegacySnapshotKey, `{"user_id":"old"}`))
	require.NoError(t, store.Save(context.Background(), domain.IdentitySnapshot{UserID: "new"}))

	snapshot, ok := store.Load(context.Background())
	require.True(t, ok)
	assert.Equal(t, "new", snapshot.UserID)
}

func TestSessionStoreSaveWrapsStorageUnavailable(t *testing.T) {
	kv := mocks.NewMockKeyValueStore(t)
	store := NewSessionStore(kv, nil)

	kv.EXPECT().Put(mockAnyContext(), SnapshotKey, `{"user_id":"u-1"}`).Return(errors.New("quota exceeded")).Once()

	err := store.Save(context.Background(), domain.IdentitySnapshot{UserID: "u-1"})
	require.ErrorIs(t, err, domain.ErrStorageUnavailable)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestSessionStoreClearRemovesBothKeys(t *testing.T) {
	t.Parallel()

	kv := newInMemoryKV()
	store := NewSessionStore(kv, nil)
	require.NoError(t, store.Save(context.Background(), domain.IdentitySnapshot{UserID: "u-1"}))
	require.NoError(t, kv.Put(context.Background(), LegacySnapshotKey, `{"user_id":"u-1"}`))

	require.NoError(t, store.Clear(context.Background()))

	_, ok := store.Load(context.Background())
	assert.False(t, ok)
	assert.Empty(t, kv.values)
}

func TestSessionStoreClearReportsEveryFailure(t *testing.T) {
	kv := mocks.NewMockKeyValueStore(t)
	store := NewSessionStore(kv, nil)

	kv.EXPECT().Delete(mockAnyContext(), SnapshotKey).Return(errors.New("locked")).Once()
	kv.EXPECT().Delete(mockAnyContext(), LegacySnapshotKey).Return(nil).Once()

	err := store.Clear(context.Background())
	require.ErrorIs(t, err, domain.ErrStorageUnavailable)
	assert.Contains(t, err.Error(), "locked")
}

func TestSessionStoreMergeCustomAttributesKeepsIdentity(t *testing.T) {
	t.Parallel()

	store := NewSessionStore(newInMemoryKV(), nil)
	require.NoError(t, store.Save(context.Background(), domain.IdentitySnapshot{UserID: "u-1", Name: "A"}))

	require.NoError(t, store.MergeCustomAttributes(context.Background(), domain.Attributes{"plan": "pro"}))

	snapshot, ok := store.Load(context.Background())
	require.True(t, ok)
	assert.Equal(t, "A", snapshot.Name)
	assert.Equal(t, "pro", snapshot.CustomAttributes.String("plan"))
}
