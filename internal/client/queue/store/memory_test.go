package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func sampleRequest(id string, seq int64) Request {
	return Request{
		ID:        id,
		Method:    "POST",
		Path:      "https://api.example.test/rest/v1/transactions",
		Body:      []byte(`{"amount":100}`),
		Headers:   map[string]string{"Prefer": "return=representation"},
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
		Seq:       seq,
	}
}

// testStoreConformance exercises the Store contract shared by every backend.
func testStoreConformance(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, s.Clear(ctx))

	a := sampleRequest("a", 1)
	b := sampleRequest("b", 2)
	c := sampleRequest("c", 3)
	for _, r := range []Request{a, b, c} {
		require.NoError(t, s.Append(ctx, r))
	}

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	require.Equal(t, []string{"a", "b", "c"}, idsOf(list))

	// Round-trip every field, retry count included.
	got := list[0]
	require.Equal(t, a.Method, got.Method)
	require.Equal(t, a.Path, got.Path)
	require.Equal(t, a.Body, got.Body)
	require.Equal(t, a.Headers, got.Headers)
	require.True(t, a.CreatedAt.Equal(got.CreatedAt))
	require.Equal(t, a.Seq, got.Seq)
	require.Equal(t, 0, got.RetryCount)

	// Upsert: bumping the retry count must not move the entry.
	b.RetryCount = 2
	require.NoError(t, s.Append(ctx, b))
	list, err = s.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, idsOf(list))
	require.Equal(t, 2, list[1].RetryCount)

	// Remove from the middle.
	require.NoError(t, s.Remove(ctx, "b"))
	list, err = s.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "c"}, idsOf(list))

	// Removing an unknown id is not an error.
	require.NoError(t, s.Remove(ctx, "nope"))

	require.NoError(t, s.Clear(ctx))
	list, err = s.List(ctx)
	require.NoError(t, err)
	require.Empty(t, list)
}

func testStoreConcurrentAppends(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.Clear(ctx))

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			require.NoError(t, s.Append(ctx, sampleRequest(fmt.Sprintf("id-%02d", i), int64(i))))
		}(i)
	}
	wg.Wait()

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, n, "concurrent appends must not lose or corrupt entries")
}

func idsOf(list []Request) []string {
	ids := make([]string, len(list))
	for i, r := range list {
		ids[i] = r.ID
	}
	return ids
}

func TestMemoryStore_Conformance(t *testing.T) {
	testStoreConformance(t, NewMemory())
}

func TestMemoryStore_ConcurrentAppends(t *testing.T) {
	testStoreConcurrentAppends(t, NewMemory())
}

func TestMemoryStore_ListReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	require.NoError(t, s.Append(ctx, sampleRequest("a", 1)))

	list, err := s.List(ctx)
	require.NoError(t, err)
	list[0].ID = "mutated"

	list2, err := s.List(ctx)
	require.NoError(t, err)
	require.Equal(t, "a", list2[0].ID)
}
