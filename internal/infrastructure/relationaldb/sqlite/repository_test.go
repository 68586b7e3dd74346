package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/kin-core/internal/domain/entities"
	"github.com/ersonp/kin-core/internal/domain/ports"
	"github.com/ersonp/kin-core/internal/domain/services"
	"github.com/ersonp/kin-core/internal/infrastructure/config"
)

// setupTestRepo creates an in-memory SQLite repository for testing.
func setupTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(config.SQLiteConfig{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	err = repo.EnsureSchema(context.Background())
	require.NoError(t, err)

	return repo
}

// inTx runs fn in a transaction and fails the test on error.
func inTx(t *testing.T, repo *Repository, fn func(st ports.Stores)) {
	t.Helper()
	err := repo.RunInTx(context.Background(), func(st ports.Stores) error {
		fn(st)
		return nil
	})
	require.NoError(t, err)
}

func seedPersons(t *testing.T, repo *Repository, ids ...string) {
	t.Helper()
	ctx := context.Background()
	inTx(t, repo, func(st ports.Stores) {
		for _, id := range ids {
			require.NoError(t, st.Persons.Create(ctx, &entities.Person{ID: id, Name: "Person " + id}))
		}
	})
}

func TestNewRepository(t *testing.T) {
	t.Run("success with memory database", func(t *testing.T) {
		repo, err := NewRepository(config.SQLiteConfig{Path: ":memory:"})
		require.NoError(t, err)
		defer repo.Close()
		assert.NotNil(t, repo)
		assert.Equal(t, DefaultTxTimeout, repo.txTimeout)
	})

	t.Run("success with file database", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "kin.db")
		repo, err := NewRepository(config.SQLiteConfig{Path: path}, WithTxTimeout(time.Second))
		require.NoError(t, err)
		defer repo.Close()
		assert.Equal(t, path, repo.Path())
		assert.Equal(t, time.Second, repo.txTimeout)
	})

	t.Run("error with empty path", func(t *testing.T) {
		_, err := NewRepository(config.SQLiteConfig{Path: ""})
		require.Error(t, err)
	})
}

func TestRepository_EnsureSchema(t *testing.T) {
	repo := setupTestRepo(t)

	// Verify tables exist
	tables := []string{"persons", "relationships", "audit_log"}
	for _, table := range tables {
		var count int
		err := repo.db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count, "table %s should exist", table)
	}
}

func TestRepository_EnsureSchema_Idempotent(t *testing.T) {
	repo := setupTestRepo(t)

	// Should not error when called again
	err := repo.EnsureSchema(context.Background())
	require.NoError(t, err)
}

func TestRepository_Persons(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	seedPersons(t, repo, "p-1", "p-2", "p-3")

	t.Run("get missing returns nil", func(t *testing.T) {
		inTx(t, repo, func(st ports.Stores) {
			person, err := st.Persons.Get(ctx, "nope")
			require.NoError(t, err)
			assert.Nil(t, person)
		})
	})

	t.Run("create duplicate id conflicts", func(t *testing.T) {
		err := repo.RunInTx(ctx, func(st ports.Stores) error {
			return st.Persons.Create(ctx, &entities.Person{ID: "p-1", Name: "Again"})
		})
		require.ErrorIs(t, err, entities.ErrConflict)
	})

	t.Run("update sets and clears references", func(t *testing.T) {
		inTx(t, repo, func(st ports.Stores) {
			name := "Renamed"
			gender := entities.GenderFemale
			require.NoError(t, st.Persons.Update(ctx, "p-2", entities.PersonPatch{
				Name:     &name,
				Gender:   &gender,
				FatherID: entities.SetID("p-1"),
				SpouseID: entities.SetID("p-3"),
			}))

			person, err := st.Persons.Get(ctx, "p-2")
			require.NoError(t, err)
			assert.Equal(t, "Renamed", person.Name)
			assert.Equal(t, entities.GenderFemale, person.Gender)
			assert.Equal(t, "p-1", person.FatherID)
			assert.Equal(t, "p-3", person.SpouseID)
			assert.Empty(t, person.MotherID)

			require.NoError(t, st.Persons.Update(ctx, "p-2", entities.PersonPatch{SpouseID: entities.ClearID()}))
			person, err = st.Persons.Get(ctx, "p-2")
			require.NoError(t, err)
			assert.Empty(t, person.SpouseID)
			assert.Equal(t, "p-1", person.FatherID)
		})
	})

	t.Run("update missing person", func(t *testing.T) {
		err := repo.RunInTx(ctx, func(st ports.Stores) error {
			name := "x"
			return st.Persons.Update(ctx, "nope", entities.PersonPatch{Name: &name})
		})
		require.ErrorIs(t, err, entities.ErrNotFound)
	})

	t.Run("update where clears matching references", func(t *testing.T) {
		inTx(t, repo, func(st ports.Stores) {
			require.NoError(t, st.Persons.Update(ctx, "p-3", entities.PersonPatch{FatherID: entities.SetID("p-1")}))

			n, err := st.Persons.UpdateWhere(ctx,
				entities.PersonFilter{Ref: entities.RefFather, Equals: "p-1"},
				entities.RefFather.Clear(),
			)
			require.NoError(t, err)
			assert.Equal(t, 2, n)

			n, err = st.Persons.UpdateWhere(ctx,
				entities.PersonFilter{Ref: entities.RefFather, Equals: ""},
				entities.RefFather.Clear(),
			)
			require.NoError(t, err)
			assert.Equal(t, 0, n, "empty filter value matches nothing")
		})
	})

	t.Run("list and count", func(t *testing.T) {
		inTx(t, repo, func(st ports.Stores) {
			all, err := st.Persons.List(ctx, 0, 0)
			require.NoError(t, err)
			require.Len(t, all, 3)
			assert.Equal(t, "Person p-1", all[0].Name)

			page, err := st.Persons.List(ctx, 1, 1)
			require.NoError(t, err)
			require.Len(t, page, 1)

			n, err := st.Persons.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 3, n)
		})
	})

	t.Run("referenced person cannot be deleted", func(t *testing.T) {
		err := repo.RunInTx(ctx, func(st ports.Stores) error {
			if err := st.Persons.Update(ctx, "p-3", entities.PersonPatch{MotherID: entities.SetID("p-2")}); err != nil {
				return err
			}
			return st.Persons.Delete(ctx, "p-2")
		})
		require.Error(t, err)

		inTx(t, repo, func(st ports.Stores) {
			person, err := st.Persons.Get(ctx, "p-3")
			require.NoError(t, err)
			assert.Empty(t, person.MotherID, "failed transaction rolled back")
		})
	})

	t.Run("delete", func(t *testing.T) {
		inTx(t, repo, func(st ports.Stores) {
			require.NoError(t, st.Persons.Delete(ctx, "p-3"))
			require.ErrorIs(t, st.Persons.Delete(ctx, "p-3"), entities.ErrNotFound)
		})
	})
}

func TestRepository_Relationships(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	seedPersons(t, repo, "a", "b", "c")
	since := time.Date(2001, 6, 1, 0, 0, 0, 0, time.UTC)

	inTx(t, repo, func(st ports.Stores) {
		require.NoError(t, st.Relationships.Insert(ctx, &entities.Relationship{
			ID: "r-1", FromID: "a", ToID: "b", Type: "Sibling",
			Strength: 0.5, Since: &since, Notes: "twins", CreatedAt: time.Now(),
		}))
		require.NoError(t, st.Relationships.Insert(ctx, &entities.Relationship{
			ID: "r-2", FromID: "b", ToID: "c", Type: "colleague",
			ReciprocalSuppressed: true, CreatedAt: time.Now().Add(time.Second),
		}))
	})

	t.Run("find is case-insensitive and keeps the stored type", func(t *testing.T) {
		inTx(t, repo, func(st ports.Stores) {
			found, err := st.Relationships.Find(ctx, "a", "b", " SIBLING ")
			require.NoError(t, err)
			require.NotNil(t, found)
			assert.Equal(t, "r-1", found.ID)
			assert.Equal(t, "Sibling", found.Type)
			assert.Equal(t, 0.5, found.Strength)
			require.NotNil(t, found.Since)
			assert.True(t, since.Equal(*found.Since))
			assert.Equal(t, "twins", found.Notes)
			assert.False(t, found.ReciprocalSuppressed)
		})
	})

	t.Run("find missing returns nil", func(t *testing.T) {
		inTx(t, repo, func(st ports.Stores) {
			found, err := st.Relationships.Find(ctx, "b", "a", "sibling")
			require.NoError(t, err)
			assert.Nil(t, found)

			byID, err := st.Relationships.FindByID(ctx, "nope")
			require.NoError(t, err)
			assert.Nil(t, byID)
		})
	})

	t.Run("duplicate triple conflicts", func(t *testing.T) {
		err := repo.RunInTx(ctx, func(st ports.Stores) error {
			return st.Relationships.Insert(ctx, &entities.Relationship{ID: "r-3", FromID: "a", ToID: "b", Type: "sibling"})
		})
		require.ErrorIs(t, err, entities.ErrConflict)
	})

	t.Run("find by endpoint", func(t *testing.T) {
		inTx(t, repo, func(st ports.Stores) {
			rels, err := st.Relationships.FindByEndpoint(ctx, "b")
			require.NoError(t, err)
			require.Len(t, rels, 2)
			assert.Equal(t, "r-1", rels[0].ID)
			assert.Equal(t, "r-2", rels[1].ID)
			assert.True(t, rels[1].ReciprocalSuppressed)
			assert.Nil(t, rels[1].Since)
		})
	})

	t.Run("delete by id", func(t *testing.T) {
		err := repo.RunInTx(ctx, func(st ports.Stores) error {
			return st.Relationships.DeleteByID(ctx, "nope")
		})
		require.ErrorIs(t, err, entities.ErrNotFound)
	})

	t.Run("delete by endpoint", func(t *testing.T) {
		inTx(t, repo, func(st ports.Stores) {
			n, err := st.Relationships.DeleteByEndpoint(ctx, "b")
			require.NoError(t, err)
			assert.Equal(t, 2, n)

			count, err := st.Relationships.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 0, count)
		})
	})
}

func TestRepository_AuditLog(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	inTx(t, repo, func(st ports.Stores) {
		require.NoError(t, st.Audit.LogAction(ctx, entities.ActionPersonCreate, "p-1", map[string]any{"name": "Alice"}))
		require.NoError(t, st.Audit.LogAction(ctx, entities.ActionPersonUpdate, "p-1", nil))
		require.NoError(t, st.Audit.LogAction(ctx, entities.ActionPersonCreate, "p-2", nil))

		entries, err := st.Audit.FindAuditLog(ctx, "p-1")
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, entities.ActionPersonUpdate, entries[0].Action)
		assert.Equal(t, entities.ActionPersonCreate, entries[1].Action)
		assert.Equal(t, "Alice", entries[1].Details["name"])
		assert.Nil(t, entries[0].Details)
	})
}

func TestRepository_RunInTx(t *testing.T) {
	ctx := context.Background()

	t.Run("rolls back on error", func(t *testing.T) {
		repo := setupTestRepo(t)
		boom := errors.New("boom")

		err := repo.RunInTx(ctx, func(st ports.Stores) error {
			require.NoError(t, st.Persons.Create(ctx, &entities.Person{ID: "p-1", Name: "Alice"}))
			return boom
		})
		require.ErrorIs(t, err, boom)

		inTx(t, repo, func(st ports.Stores) {
			n, err := st.Persons.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 0, n)
		})
	})

	t.Run("cancelled context never starts", func(t *testing.T) {
		repo := setupTestRepo(t)
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		called := false
		err := repo.RunInTx(cancelled, func(_ ports.Stores) error {
			called = true
			return nil
		})
		require.ErrorIs(t, err, context.Canceled)
		assert.False(t, called)
	})

	t.Run("cancellation before commit rolls back", func(t *testing.T) {
		// A cancelled transaction may discard its connection, which would
		// drop an in-memory database, so use a file.
		repo, err := NewRepository(config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "kin.db")})
		require.NoError(t, err)
		t.Cleanup(func() { repo.Close() })
		require.NoError(t, repo.EnsureSchema(ctx))
		cancellable, cancel := context.WithCancel(ctx)

		err = repo.RunInTx(cancellable, func(st ports.Stores) error {
			if err := st.Persons.Create(cancellable, &entities.Person{ID: "p-1", Name: "Alice"}); err != nil {
				return err
			}
			cancel()
			return nil
		})
		require.Error(t, err)

		inTx(t, repo, func(st ports.Stores) {
			n, err := st.Persons.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 0, n)
		})
	})
}

func TestRepository_WithGraphService(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	persons := services.NewPersonService(repo)
	graph := services.NewGraphService(repo)

	husband, err := persons.Create(ctx, "John", entities.GenderMale)
	require.NoError(t, err)
	wife, err := persons.Create(ctx, "Jane", entities.GenderFemale)
	require.NoError(t, err)

	rel, err := graph.CreateRelationship(ctx, services.CreateRelationshipRequest{
		FromID: husband.ID, ToID: wife.ID, Type: "spouse",
	})
	require.NoError(t, err)

	rels, err := graph.Relationships(ctx, wife.ID)
	require.NoError(t, err)
	require.Len(t, rels, 2)

	john, err := persons.Get(ctx, husband.ID)
	require.NoError(t, err)
	assert.Equal(t, wife.ID, john.SpouseID)
	jane, err := persons.Get(ctx, wife.ID)
	require.NoError(t, err)
	assert.Equal(t, husband.ID, jane.SpouseID)

	require.NoError(t, graph.DeletePerson(ctx, wife.ID))

	john, err = persons.Get(ctx, husband.ID)
	require.NoError(t, err)
	assert.Empty(t, john.SpouseID)

	_, err = graph.Relationship(ctx, rel.ID)
	require.ErrorIs(t, err, entities.ErrNotFound)
}

func TestRepository_RelationshipTypeStoredAsSupplied(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	persons := services.NewPersonService(repo)
	graph := services.NewGraphService(repo)

	a, err := persons.Create(ctx, "A", entities.GenderMale)
	require.NoError(t, err)
	b, err := persons.Create(ctx, "B", entities.GenderFemale)
	require.NoError(t, err)

	rel, err := graph.CreateRelationship(ctx, services.CreateRelationshipRequest{
		FromID: a.ID, ToID: b.ID, Type: " Colleague ",
	})
	require.NoError(t, err)

	got, err := graph.Relationship(ctx, rel.ID)
	require.NoError(t, err)
	assert.Equal(t, " Colleague ", got.Type)

	_, err = graph.CreateRelationship(ctx, services.CreateRelationshipRequest{
		FromID: a.ID, ToID: b.ID, Type: "colleague",
	})
	require.ErrorIs(t, err, entities.ErrConflict)
}
