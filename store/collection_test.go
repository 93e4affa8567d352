package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberpath/sentinel/errors"
	"github.com/cyberpath/sentinel/query"
	"github.com/cyberpath/sentinel/value"
)

func testCollection(t *testing.T) (*Store, *Collection) {
	t.Helper()
	s := openTestStore(t, t.TempDir(), Options{})
	c, err := s.Collection(context.Background(), "users")
	require.NoError(t, err)
	return s, c
}

func TestInsertAndGet(t *testing.T) {
	ctx := context.Background()
	_, users := testCollection(t)

	data := value.MustParse(`{"name":"alice","tags":["a","b"],"meta":{"active":true}}`)
	doc, err := users.Insert(ctx, "alice", data)
	require.NoError(t, err)
	assert.Equal(t, "alice", doc.ID)
	assert.Equal(t, uint64(1), doc.Version)
	assert.Equal(t, doc.CreatedAt, doc.UpdatedAt)
	assert.NotEmpty(t, doc.Hash)

	got, ok, err := users.Get(ctx, "alice")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.Data.Equal(data))
}

func TestInsertConflict(t *testing.T) {
	ctx := context.Background()
	_, users := testCollection(t)

	_, err := users.Insert(ctx, "alice", value.MustParse(`{}`))
	require.NoError(t, err)
	_, err = users.Insert(ctx, "alice", value.MustParse(`{"other":1}`))
	assert.ErrorIs(t, err, errors.ErrConflict)
}

func TestDocumentIDValidation(t *testing.T) {
	ctx := context.Background()
	_, users := testCollection(t)

	for _, id := range []string{"", ".hidden", "a/b", `a\b`} {
		_, err := users.Insert(ctx, id, value.MustParse(`{}`))
		assert.ErrorIs(t, err, errors.ErrInvalidArgument, "id %q", id)
	}
}

func TestUpdateMergesMappings(t *testing.T) {
	ctx := context.Background()
	_, users := testCollection(t)

	first, err := users.Insert(ctx, "alice", value.MustParse(`{"name":"alice","age":30}`))
	require.NoError(t, err)

	next, err := users.Update(ctx, "alice", value.MustParse(`{"age":31}`))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), next.Version)
	assert.True(t, next.CreatedAt.Equal(first.CreatedAt))
	assert.True(t, next.Data.Equal(value.MustParse(`{"name":"alice","age":31}`)))
	assert.NotEqual(t, first.Hash, next.Hash)

	// Non-mapping payloads replace rather than merge.
	next, err = users.Update(ctx, "alice", value.MustParse(`[1,2,3]`))
	require.NoError(t, err)
	assert.Equal(t, uint64(3), next.Version)
	assert.True(t, next.Data.Equal(value.MustParse(`[1,2,3]`)))
}

func TestUpdateAbsent(t *testing.T) {
	ctx := context.Background()
	_, users := testCollection(t)

	_, err := users.Update(ctx, "ghost", value.MustParse(`{}`))
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestUpsertBranches(t *testing.T) {
	ctx := context.Background()
	_, users := testCollection(t)

	doc, created, err := users.Upsert(ctx, "alice", value.MustParse(`{"n":1}`))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, uint64(1), doc.Version)

	doc, created, err = users.Upsert(ctx, "alice", value.MustParse(`{"n":2}`))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, uint64(2), doc.Version)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	_, users := testCollection(t)

	_, err := users.Insert(ctx, "alice", value.MustParse(`{}`))
	require.NoError(t, err)
	require.Equal(t, 1, users.Count())

	require.NoError(t, users.Delete(ctx, "alice"))
	assert.Equal(t, 0, users.Count())

	_, ok, err := users.Get(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, ok)

	// Absent ids delete without error.
	require.NoError(t, users.Delete(ctx, "alice"))
}

func TestDeletedAndRestore(t *testing.T) {
	ctx := context.Background()
	_, users := testCollection(t)

	_, err := users.Insert(ctx, "alice", value.MustParse(`{"n":1}`))
	require.NoError(t, err)
	_, err = users.Update(ctx, "alice", value.MustParse(`{"n":2}`))
	require.NoError(t, err)
	require.NoError(t, users.Delete(ctx, "alice"))

	ids, err := users.Deleted(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, ids)

	doc, err := users.Restore(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), doc.Version)
	assert.Equal(t, 1, users.Count())

	_, err = users.Restore(ctx, "alice")
	assert.ErrorIs(t, err, errors.ErrConflict)
	_, err = users.Restore(ctx, "ghost")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestGetMany(t *testing.T) {
	ctx := context.Background()
	_, users := testCollection(t)

	_, err := users.Insert(ctx, "a", value.MustParse(`{"n":1}`))
	require.NoError(t, err)
	_, err = users.Insert(ctx, "b", value.MustParse(`{"n":2}`))
	require.NoError(t, err)

	docs, err := users.GetMany(ctx, []string{"a", "ghost", "b"})
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "a", docs[0].ID)
	assert.Nil(t, docs[1])
	assert.Equal(t, "b", docs[2].ID)
}

func TestBulkInsertAllOrNothing(t *testing.T) {
	ctx := context.Background()
	_, users := testCollection(t)

	_, err := users.Insert(ctx, "b", value.MustParse(`{}`))
	require.NoError(t, err)

	_, err = users.BulkInsert(ctx, []Pair{
		{ID: "a", Data: value.MustParse(`{}`)},
		{ID: "b", Data: value.MustParse(`{}`)},
		{ID: "c", Data: value.MustParse(`{}`)},
	})
	require.ErrorIs(t, err, errors.ErrConflict)
	assert.Contains(t, err.Error(), "b")

	// Nothing from the failed batch was inserted.
	assert.Equal(t, 1, users.Count())
	_, ok, err := users.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBulkInsertRejectsDuplicateIDs(t *testing.T) {
	ctx := context.Background()
	_, users := testCollection(t)

	_, err := users.BulkInsert(ctx, []Pair{
		{ID: "a", Data: value.MustParse(`{}`)},
		{ID: "a", Data: value.MustParse(`{}`)},
	})
	assert.ErrorIs(t, err, errors.ErrConflict)
	assert.Equal(t, 0, users.Count())
}

func TestBulkInsertSucceeds(t *testing.T) {
	ctx := context.Background()
	_, users := testCollection(t)

	docs, err := users.BulkInsert(ctx, []Pair{
		{ID: "a", Data: value.MustParse(`{"n":1}`)},
		{ID: "b", Data: value.MustParse(`{"n":2}`)},
	})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, 2, users.Count())
}

func TestQueryComposition(t *testing.T) {
	ctx := context.Background()
	_, users := testCollection(t)

	_, err := users.Insert(ctx, "A", value.MustParse(`{"x":1}`))
	require.NoError(t, err)
	_, err = users.Insert(ctx, "B", value.MustParse(`{"x":2}`))
	require.NoError(t, err)
	_, err = users.Insert(ctx, "C", value.MustParse(`{"x":3}`))
	require.NoError(t, err)

	q := query.New().
		Filter("x", query.GreaterOrEqual, value.Int(2)).
		Sort("x", query.Descending).
		Limit(1).
		Build()

	res, err := users.Query(ctx, q)
	require.NoError(t, err)
	require.Len(t, res.Documents, 1)
	assert.Equal(t, "C", res.Documents[0].ID)
	assert.Equal(t, 2, res.TotalCount)
}

func TestAggregate(t *testing.T) {
	ctx := context.Background()
	_, users := testCollection(t)

	for id, v := range map[string]string{
		"a": `{"amount":10,"kind":"x"}`,
		"b": `{"amount":20,"kind":"x"}`,
		"c": `{"amount":30,"kind":"y"}`,
		"d": `{"kind":"x"}`,
	} {
		_, err := users.Insert(ctx, id, value.MustParse(v))
		require.NoError(t, err)
	}

	sum, err := users.Aggregate(ctx, nil, Aggregation{Kind: Sum, Field: "amount"})
	require.NoError(t, err)
	assert.Equal(t, 60.0, sum)

	avg, err := users.Aggregate(ctx, nil, Aggregation{Kind: Average, Field: "amount"})
	require.NoError(t, err)
	assert.Equal(t, 20.0, avg)

	min, err := users.Aggregate(ctx, nil, Aggregation{Kind: Min, Field: "amount"})
	require.NoError(t, err)
	assert.Equal(t, 10.0, min)

	max, err := users.Aggregate(ctx, nil, Aggregation{Kind: Max, Field: "amount"})
	require.NoError(t, err)
	assert.Equal(t, 30.0, max)

	filters := []query.Filter{{Field: "kind", Op: query.Equal, Value: value.String("x")}}
	count, err := users.Aggregate(ctx, filters, Aggregation{Kind: Count})
	require.NoError(t, err)
	assert.Equal(t, 3.0, count)

	sum, err = users.Aggregate(ctx, filters, Aggregation{Kind: Sum, Field: "amount"})
	require.NoError(t, err)
	assert.Equal(t, 30.0, sum)
}

func TestAggregateEmptySet(t *testing.T) {
	ctx := context.Background()
	_, users := testCollection(t)

	count, err := users.Aggregate(ctx, nil, Aggregation{Kind: Count})
	require.NoError(t, err)
	assert.Equal(t, 0.0, count)

	sum, err := users.Aggregate(ctx, nil, Aggregation{Kind: Sum, Field: "amount"})
	require.NoError(t, err)
	assert.Equal(t, 0.0, sum)

	_, err = users.Aggregate(ctx, nil, Aggregation{Kind: Average, Field: "amount"})
	assert.ErrorIs(t, err, errors.ErrEmptyAggregation)

	_, err = users.Aggregate(ctx, nil, Aggregation{Kind: Sum})
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)
}

func TestVerifyDetectsCorruption(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s := openTestStore(t, dir, Options{})
	users, err := s.Collection(ctx, "users")
	require.NoError(t, err)
	_, err = users.Insert(ctx, "alice", value.MustParse(`{"balance":100}`))
	require.NoError(t, err)

	n, err := users.Verify(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NoError(t, s.Close())

	// Tamper with the stored payload without refreshing the hash.
	path := filepath.Join(dir, "data", "users", "alice.json")
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	tampered := strings.Replace(string(raw), "100", "999", 1)
	require.NoError(t, os.WriteFile(path, []byte(tampered), 0o644))

	s = openTestStore(t, dir, Options{})
	users, err = s.Collection(ctx, "users")
	require.NoError(t, err)

	_, _, err = users.Get(ctx, "alice")
	assert.ErrorIs(t, err, errors.ErrIntegrity)
	_, err = users.Verify(ctx)
	assert.ErrorIs(t, err, errors.ErrIntegrity)
}

func TestConcurrentUpdatesToOneID(t *testing.T) {
	ctx := context.Background()
	_, users := testCollection(t)

	_, err := users.Insert(ctx, "counter", value.MustParse(`{"n":0}`))
	require.NoError(t, err)

	const n = 32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := users.Update(ctx, "counter", value.MustParse(`{"n":1}`))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	doc, ok, err := users.Get(ctx, "counter")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(1+n), doc.Version)
}

func TestConcurrentInsertsToDistinctIDs(t *testing.T) {
	ctx := context.Background()
	_, users := testCollection(t)

	const n = 32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := users.Insert(ctx, fmt.Sprintf("id-%02d", i), value.MustParse(`{}`))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, n, users.Count())
}
