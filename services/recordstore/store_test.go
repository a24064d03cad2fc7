package recordstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/AleutianAI/scholar/pkg/records"
)

// backends opens every embedded backend, seeded with the demo students.
func backends(t *testing.T) map[string]Store {
	t.Helper()
	ctx := context.Background()

	bs, err := OpenBadgerStore(BadgerConfig{InMemory: true})
	require.NoError(t, err)

	ss, err := OpenSQLiteStore(ctx, filepath.Join(t.TempDir(), "students.db"))
	require.NoError(t, err)

	stores := map[string]Store{
		BackendMemory: NewMemoryStore(),
		BackendBadger: bs,
		BackendSQLite: ss,
	}
	for name, s := range stores {
		require.NoError(t, SeedStore(ctx, s, DemoStudents()), name)
		t.Cleanup(func() { _ = s.Close() })
	}
	return stores
}

func TestStores_Get(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			rec, err := store.Get(ctx, "689cef602490264c7f2dd235", []string{"G3", "name", "G1"})
			require.NoError(t, err)
			assert.Equal(t, []string{"G3", "name", "G1"}, rec.Keys())
			assert.Equal(t, 10.0, rec.NumberOr("G3", -1))
			assert.Equal(t, "Student 1", rec.Text("name"))
			assert.Equal(t, "", rec.ID())
		})
	}
}

func TestStores_GetWholeRecord(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			rec, err := store.Get(ctx, "5f43a1a8a1a1a1a1a1a1a1a1", nil)
			require.NoError(t, err)
			assert.Equal(t, []string{"name", "age", "sex", "G3"}, rec.Keys())
		})
	}
}

func TestStores_GetMissing(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Get(ctx, "000000000000000000000000", []string{"name"})
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStores_ListProjectsWithIDFirst(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			list, err := store.List(ctx, 0, []string{records.IDField, "name", "G3"})
			require.NoError(t, err)
			require.Len(t, list, 5)
			for _, rec := range list {
				assert.Equal(t, records.IDField, rec.Keys()[0])
				assert.NotEmpty(t, rec.ID())
			}

			limited, err := store.List(ctx, 2, nil)
			require.NoError(t, err)
			assert.Len(t, limited, 2)
		})
	}
}

func TestStores_PutReplaces(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			id := "5f43a1a8b2b2b2b2b2b2b2b2"
			updated := records.FromPairs(
				records.Field{Name: records.IDField, Value: id},
				records.Field{Name: "name", Value: "Robert"},
				records.Field{Name: "G3", Value: 16},
			)
			require.NoError(t, store.Put(ctx, id, updated))

			rec, err := store.Get(ctx, id, []string{"name", "G3"})
			require.NoError(t, err)
			assert.Equal(t, "Robert", rec.Text("name"))
			assert.Equal(t, 16.0, rec.NumberOr("G3", 0))

			list, err := store.List(ctx, 0, nil)
			require.NoError(t, err)
			assert.Len(t, list, 5)
		})
	}
}

func TestMemoryStore_ListKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, SeedStore(ctx, store, DemoStudents()))

	list, err := store.List(ctx, 0, records.ListingFields)
	require.NoError(t, err)
	ids := make([]string, 0, len(list))
	for _, rec := range list {
		ids = append(ids, rec.ID())
	}
	assert.Equal(t, []string{
		"689cef602490264c7f2dd235",
		"689cef602490264c7f2dd260",
		"689cef602490264c7f2dd239",
		"5f43a1a8a1a1a1a1a1a1a1a1",
		"5f43a1a8b2b2b2b2b2b2b2b2",
	}, ids)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, SeedStore(ctx, store, DemoStudents()))

	rec, err := store.Get(ctx, "5f43a1a8a1a1a1a1a1a1a1a1", nil)
	require.NoError(t, err)
	rec.Set("name", "changed")

	again, err := store.Get(ctx, "5f43a1a8a1a1a1a1a1a1a1a1", nil)
	require.NoError(t, err)
	assert.Equal(t, "Alice", again.Text("name"))
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("memory with demo", func(t *testing.T) {
		store, err := Open(ctx, StoreConfig{SeedDemo: true}, nil)
		require.NoError(t, err)
		defer store.Close()
		mem, ok := store.(*MemoryStore)
		require.True(t, ok)
		assert.Equal(t, 5, mem.Len())
	})

	t.Run("sqlite needs path", func(t *testing.T) {
		_, err := Open(ctx, StoreConfig{Backend: BackendSQLite}, nil)
		assert.ErrorContains(t, err, "requires a path")
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := Open(ctx, StoreConfig{Backend: "redis"}, nil)
		assert.ErrorContains(t, err, `unknown records backend "redis"`)
	})

	t.Run("badger on disk", func(t *testing.T) {
		store, err := Open(ctx, StoreConfig{Backend: BackendBadger, Path: filepath.Join(t.TempDir(), "db")}, nil)
		require.NoError(t, err)
		assert.NoError(t, store.Close())
	})
}

func TestFromBSON(t *testing.T) {
	oid, err := primitive.ObjectIDFromHex("689cef602490264c7f2dd235")
	require.NoError(t, err)

	rec := fromBSON(bson.D{
		{Key: "_id", Value: oid},
		{Key: "name", Value: "Sample"},
		{Key: "G3", Value: int32(10)},
	})
	assert.Equal(t, "689cef602490264c7f2dd235", rec.ID())
	assert.Equal(t, []string{"_id", "name", "G3"}, rec.Keys())
	assert.Equal(t, 10.0, rec.NumberOr("G3", 0))
}

func TestMongoProjection(t *testing.T) {
	assert.Equal(t, bson.D{{Key: "_id", Value: 0}, {Key: "name", Value: 1}}, mongoProjection([]string{"name"}, false))
	assert.Equal(t, bson.D{{Key: "_id", Value: 1}, {Key: "G3", Value: 1}}, mongoProjection([]string{"G3"}, true))
}

func TestMongoStore_Live(t *testing.T) {
	uri := os.Getenv("SCHOLAR_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("SCHOLAR_TEST_MONGO_URI not set")
	}
	ctx := context.Background()
	store, err := OpenMongoStore(ctx, MongoConfig{URI: uri, Database: "scholar_test", Collection: "students"})
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, SeedStore(ctx, store, DemoStudents()))
	rec, err := store.Get(ctx, "689cef602490264c7f2dd235", []string{"name", "G3"})
	require.NoError(t, err)
	assert.Equal(t, 10.0, rec.NumberOr("G3", 0))
}
