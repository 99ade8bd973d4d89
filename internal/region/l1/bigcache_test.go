package l1

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"go-offline-proxy/internal/config"
	"go-offline-proxy/internal/models"
)

func newTestStore(t *testing.T) *BigCacheStore {
	t.Helper()
	store, err := NewBigCacheStore(&config.L1Config{Size: 10, MaxEntrySizeKB: 64}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func okResponse(body string) *models.ResponseSnapshot {
	return &models.ResponseSnapshot{
		Status: http.StatusOK,
		Header: http.Header{"Content-Type": {"text/html"}},
		Body:   []byte(body),
		Type:   models.ResponseTypeBasic,
	}
}

func TestNewBigCacheStore(t *testing.T) {
	logger := zap.NewNop()

	store, err := NewBigCacheStore(&config.L1Config{Size: 10, MaxEntrySizeKB: 64}, logger)

	assert.NoError(t, err)
	assert.NotNil(t, store)
	assert.NotNil(t, store.cache)
	assert.Equal(t, logger, store.logger)
	assert.Equal(t, 64*1024, store.maxEntryBytes)
	assert.NoError(t, store.Close())
}

func TestBigCacheStore_PutAndMatch(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	region, err := store.Open(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, "v1", region.Name())

	require.NoError(t, region.Put(ctx, "GET https://app.example.com/a.html", okResponse("<html>a</html>")))

	resp, found := region.Match(ctx, "GET https://app.example.com/a.html")

	assert.True(t, found)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, []byte("<html>a</html>"), resp.Body)
	assert.Equal(t, "text/html", resp.Header.Get("Content-Type"))
	assert.Equal(t, models.ResponseTypeBasic, resp.Type)
}

func TestBigCacheStore_Match_NotFound(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	region, err := store.Open(ctx, "v1")
	require.NoError(t, err)

	resp, found := region.Match(ctx, "GET https://app.example.com/missing")

	assert.False(t, found)
	assert.Nil(t, resp)
}

func TestBigCacheStore_Put_Overwrites(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	region, _ := store.Open(ctx, "v1")

	require.NoError(t, region.Put(ctx, "k", okResponse("old")))
	require.NoError(t, region.Put(ctx, "k", okResponse("new")))

	resp, found := region.Match(ctx, "k")
	assert.True(t, found)
	assert.Equal(t, []byte("new"), resp.Body)
}

func TestBigCacheStore_Put_TooLarge(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	region, _ := store.Open(ctx, "v1")

	err := region.Put(ctx, "big", okResponse(strings.Repeat("x", 128*1024)))

	assert.Error(t, err)
	_, found := region.Match(ctx, "big")
	assert.False(t, found)
}

func TestBigCacheStore_Put_Nil(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	region, _ := store.Open(ctx, "v1")

	assert.Error(t, region.Put(ctx, "k", nil))
}

func TestBigCacheStore_Match_CorruptedEntry(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	region, _ := store.Open(ctx, "v1")

	require.NoError(t, store.cache.Set("v1"+keySeparator+"k", []byte("not json")))

	resp, found := region.Match(ctx, "k")
	assert.False(t, found)
	assert.Nil(t, resp)

	// Corrupted entry is removed
	_, err := store.cache.Get("v1" + keySeparator + "k")
	assert.Error(t, err)
}

func TestBigCacheStore_RegionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	v1, _ := store.Open(ctx, "v1")
	v2, _ := store.Open(ctx, "v2")

	require.NoError(t, v1.Put(ctx, "k", okResponse("one")))

	_, found := v2.Match(ctx, "k")
	assert.False(t, found)

	resp, found := v1.Match(ctx, "k")
	assert.True(t, found)
	assert.Equal(t, []byte("one"), resp.Body)
}

func TestBigCacheStore_NamesAndDelete(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	old, _ := store.Open(ctx, "app-v1")
	current, _ := store.Open(ctx, "app-v2")
	require.NoError(t, old.Put(ctx, "a", okResponse("a1")))
	require.NoError(t, old.Put(ctx, "b", okResponse("b1")))
	require.NoError(t, current.Put(ctx, "a", okResponse("a2")))

	names, err := store.Names(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"app-v1", "app-v2"}, names)

	existed, err := store.Delete(ctx, "app-v1")
	require.NoError(t, err)
	assert.True(t, existed)

	names, err = store.Names(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"app-v2"}, names)

	_, found := old.Match(ctx, "a")
	assert.False(t, found)

	resp, found := current.Match(ctx, "a")
	assert.True(t, found)
	assert.Equal(t, []byte("a2"), resp.Body)

	existed, err = store.Delete(ctx, "never-existed")
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestBigCacheStore_PutAfterDelete(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	old, _ := store.Open(ctx, "app-v1")
	require.NoError(t, old.Put(ctx, "a", okResponse("a1")))

	_, err := store.Delete(ctx, "app-v1")
	require.NoError(t, err)

	err = old.Put(ctx, "late", okResponse("late"))
	assert.ErrorIs(t, err, models.ErrRegionDeleted)

	names, err := store.Names(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)

	keys, err := old.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)

	// reopening brings the region back
	reopened, err := store.Open(ctx, "app-v1")
	require.NoError(t, err)
	assert.NoError(t, reopened.Put(ctx, "late", okResponse("late")))
}

func TestBigCacheStore_Keys(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	region, _ := store.Open(ctx, "v1")
	other, _ := store.Open(ctx, "v2")

	require.NoError(t, region.Put(ctx, "GET https://app.example.com/b", okResponse("b")))
	require.NoError(t, region.Put(ctx, "GET https://app.example.com/a", okResponse("a")))
	require.NoError(t, other.Put(ctx, "GET https://app.example.com/c", okResponse("c")))

	keys, err := region.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"GET https://app.example.com/a", "GET https://app.example.com/b"}, keys)

	require.NoError(t, region.Delete(ctx, "GET https://app.example.com/a"))
	require.NoError(t, region.Delete(ctx, "GET https://app.example.com/missing"))

	keys, err = region.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"GET https://app.example.com/b"}, keys)
}

func TestBigCacheStore_Open_EmptyName(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Open(context.Background(), "")
	assert.Error(t, err)
}

func TestBigCacheStore_ConcurrentPuts(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	region, _ := store.Open(ctx, "v1")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, region.Put(ctx, "same-key", okResponse("same")))
			_, _ = region.Match(ctx, "same-key")
		}()
	}
	wg.Wait()

	resp, found := region.Match(ctx, "same-key")
	assert.True(t, found)
	assert.Equal(t, []byte("same"), resp.Body)
}

func TestBigCacheStore_GetStats(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	region, _ := store.Open(ctx, "v1")
	require.NoError(t, region.Put(ctx, "k", okResponse("x")))

	capacity, entries := store.GetStats()

	assert.Greater(t, capacity, int64(0))
	assert.Equal(t, int64(1), entries)
}
