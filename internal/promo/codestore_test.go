package promo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promogate/internal/store"
)

func testCode(code string, codeType CodeType, at time.Time) PromoCode {
	return PromoCode{Code: code, Type: codeType, CreatedAt: at}
}

func TestCodeStoreAddAndContains(t *testing.T) {
	cs := newTestCodeStore(t)
	now := newFakeClock().Now()

	require.NoError(t, cs.Add(testCode("LT-AAAAAAAA", CodeTypeLifetime, now)))
	assert.True(t, cs.Contains("LT-AAAAAAAA"))
	assert.False(t, cs.Contains("LT-BBBBBBBB"))

	codeType, ok := cs.TypeOf("LT-AAAAAAAA")
	require.True(t, ok)
	assert.Equal(t, CodeTypeLifetime, codeType)
}

func TestCodeStoreRejectsDuplicate(t *testing.T) {
	cs := newTestCodeStore(t)
	now := newFakeClock().Now()

	require.NoError(t, cs.Add(testCode("LT-AAAAAAAA", CodeTypeLifetime, now)))
	err := cs.Add(testCode("LT-AAAAAAAA", CodeTypeMonthly, now))
	require.Error(t, err)
}

func TestCodeStoreMarkRedeemedIdempotent(t *testing.T) {
	cs := newTestCodeStore(t)
	now := newFakeClock().Now()

	require.NoError(t, cs.Add(testCode("LT-AAAAAAAA", CodeTypeLifetime, now)))
	require.NoError(t, cs.MarkRedeemed("install-a", "LT-AAAAAAAA", now))
	assert.True(t, cs.IsRedeemed("install-a", "LT-AAAAAAAA"))

	// Re-marking keeps the original timestamp.
	require.NoError(t, cs.MarkRedeemed("install-a", "LT-AAAAAAAA", now.Add(time.Hour)))
	records := cs.RecordsFor("install-a")
	require.Len(t, records, 1)
	assert.Equal(t, now, records[0].RedeemedAt)
}

func TestCodeStoreRedemptionIsPerInstall(t *testing.T) {
	cs := newTestCodeStore(t)
	now := newFakeClock().Now()

	require.NoError(t, cs.Add(testCode("LT-AAAAAAAA", CodeTypeLifetime, now)))
	require.NoError(t, cs.MarkRedeemed("install-a", "LT-AAAAAAAA", now))

	assert.True(t, cs.IsRedeemed("install-a", "LT-AAAAAAAA"))
	assert.False(t, cs.IsRedeemed("install-b", "LT-AAAAAAAA"))
	assert.Empty(t, cs.RecordsFor("install-b"))
}

func TestCodeStoreAllSortsNewestFirst(t *testing.T) {
	cs := newTestCodeStore(t)
	base := newFakeClock().Now()

	require.NoError(t, cs.Add(testCode("LT-AAAAAAAA", CodeTypeLifetime, base)))
	require.NoError(t, cs.Add(testCode("MO-BBBBBBBB", CodeTypeMonthly, base.Add(time.Hour))))
	require.NoError(t, cs.Add(testCode("LT-CCCCCCCC", CodeTypeLifetime, base.Add(2*time.Hour))))

	codes := cs.All()
	require.Len(t, codes, 3)
	assert.Equal(t, "LT-CCCCCCCC", codes[0].Code)
	assert.Equal(t, "MO-BBBBBBBB", codes[1].Code)
	assert.Equal(t, "LT-AAAAAAAA", codes[2].Code)
}

func TestCodeStorePersistsAcrossReload(t *testing.T) {
	kv := store.NewMemStore()
	backup := store.NewMemStore()
	now := newFakeClock().Now()

	cs, err := NewCodeStore(kv, backup)
	require.NoError(t, err)
	require.NoError(t, cs.Add(testCode("LT-AAAAAAAA", CodeTypeLifetime, now)))
	require.NoError(t, cs.MarkRedeemed("install-a", "LT-AAAAAAAA", now))

	reloaded, err := NewCodeStore(kv, backup)
	require.NoError(t, err)
	assert.True(t, reloaded.Contains("LT-AAAAAAAA"))
	assert.True(t, reloaded.IsRedeemed("install-a", "LT-AAAAAAAA"))
}

func TestCodeStoreBackupAndRestore(t *testing.T) {
	backup := store.NewMemStore()
	now := newFakeClock().Now()

	cs, err := NewCodeStore(store.NewMemStore(), backup)
	require.NoError(t, err)
	require.NoError(t, cs.Add(testCode("LT-AAAAAAAA", CodeTypeLifetime, now)))
	require.NoError(t, cs.MarkRedeemed("install-a", "LT-AAAAAAAA", now))
	require.NoError(t, cs.Backup("install-a", now))

	// Fresh primary store, same backup, same install identity.
	restoredStore, err := NewCodeStore(store.NewMemStore(), backup)
	require.NoError(t, err)
	restored, err := restoredStore.RestoreIfEmpty("install-a")
	require.NoError(t, err)
	assert.True(t, restored)
	assert.True(t, restoredStore.Contains("LT-AAAAAAAA"))
	assert.True(t, restoredStore.IsRedeemed("install-a", "LT-AAAAAAAA"))
}

func TestCodeStoreRestoreRefusesForeignInstall(t *testing.T) {
	backup := store.NewMemStore()
	now := newFakeClock().Now()

	cs, err := NewCodeStore(store.NewMemStore(), backup)
	require.NoError(t, err)
	require.NoError(t, cs.Add(testCode("LT-AAAAAAAA", CodeTypeLifetime, now)))
	require.NoError(t, cs.Backup("install-a", now))

	other, err := NewCodeStore(store.NewMemStore(), backup)
	require.NoError(t, err)
	restored, err := other.RestoreIfEmpty("install-b")
	require.NoError(t, err)
	assert.False(t, restored)
	assert.False(t, other.Contains("LT-AAAAAAAA"))
}

func TestCodeStoreRestoreSkipsNonEmptyStore(t *testing.T) {
	backup := store.NewMemStore()
	now := newFakeClock().Now()

	cs, err := NewCodeStore(store.NewMemStore(), backup)
	require.NoError(t, err)
	require.NoError(t, cs.Add(testCode("LT-AAAAAAAA", CodeTypeLifetime, now)))
	require.NoError(t, cs.Backup("install-a", now))

	kv := store.NewMemStore()
	live, err := NewCodeStore(kv, backup)
	require.NoError(t, err)
	require.NoError(t, live.Add(testCode("MO-BBBBBBBB", CodeTypeMonthly, now)))

	restored, err := live.RestoreIfEmpty("install-a")
	require.NoError(t, err)
	assert.False(t, restored)
	assert.False(t, live.Contains("LT-AAAAAAAA"))
}

func TestCodeStoreRestoreWithoutBackupIsNoop(t *testing.T) {
	cs, err := NewCodeStore(store.NewMemStore(), store.NewMemStore())
	require.NoError(t, err)

	restored, err := cs.RestoreIfEmpty("install-a")
	require.NoError(t, err)
	assert.False(t, restored)
}
