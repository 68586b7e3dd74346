package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ersonp/kin-core/internal/domain/entities"
	"github.com/ersonp/kin-core/internal/domain/ports"
	"github.com/ersonp/kin-core/internal/infrastructure/relationaldb/memory"
)

type testGraph struct {
	store   *memory.Store
	graph   *GraphService
	persons *PersonService
}

func newTestGraph(t *testing.T, opts ...GraphOption) *testGraph {
	t.Helper()
	store := memory.NewStore()
	return &testGraph{
		store:   store,
		graph:   NewGraphService(store, opts...),
		persons: NewPersonService(store),
	}
}

func (g *testGraph) person(t *testing.T, name string, gender entities.Gender) *entities.Person {
	t.Helper()
	p, err := g.persons.Create(context.Background(), name, gender)
	require.NoError(t, err)
	return p
}

func (g *testGraph) reload(t *testing.T, id string) *entities.Person {
	t.Helper()
	p, err := g.persons.Get(context.Background(), id)
	require.NoError(t, err)
	return p
}

func (g *testGraph) relate(t *testing.T, from, to *entities.Person, relType string) *entities.Relationship {
	t.Helper()
	rel, err := g.graph.CreateRelationship(context.Background(), CreateRelationshipRequest{
		FromID: from.ID,
		ToID:   to.ID,
		Type:   relType,
	})
	require.NoError(t, err)
	return rel
}

// edges returns every edge from -> to.
func (g *testGraph) edges(t *testing.T, fromID, toID string) []entities.Relationship {
	t.Helper()
	var out []entities.Relationship
	err := g.store.RunInTx(context.Background(), func(st ports.Stores) error {
		all, err := st.Relationships.List(context.Background())
		if err != nil {
			return err
		}
		for _, r := range all {
			if r.FromID == fromID && r.ToID == toID {
				out = append(out, r)
			}
		}
		return nil
	})
	require.NoError(t, err)
	return out
}

func (g *testGraph) edgeCount(t *testing.T) int {
	t.Helper()
	n, err := g.graph.Count(context.Background())
	require.NoError(t, err)
	return n
}

// insertEdge writes an edge directly, bypassing the engine.
func (g *testGraph) insertEdge(t *testing.T, rel entities.Relationship) {
	t.Helper()
	err := g.store.RunInTx(context.Background(), func(st ports.Stores) error {
		return st.Relationships.Insert(context.Background(), &rel)
	})
	require.NoError(t, err)
}

// patchPerson writes Person fields directly, bypassing the engine.
func (g *testGraph) patchPerson(t *testing.T, id string, patch entities.PersonPatch) {
	t.Helper()
	err := g.store.RunInTx(context.Background(), func(st ports.Stores) error {
		return st.Persons.Update(context.Background(), id, patch)
	})
	require.NoError(t, err)
}

// failingStore wraps a GraphStore and fails reciprocal inserts.
type failingStore struct {
	ports.GraphStore
}

func (f *failingStore) RunInTx(ctx context.Context, fn func(ports.Stores) error) error {
	return f.GraphStore.RunInTx(ctx, func(st ports.Stores) error {
		st.Relationships = &failingRelationships{RelationshipStore: st.Relationships}
		return fn(st)
	})
}

var errDiskFull = errors.New("disk full")

type failingRelationships struct {
	ports.RelationshipStore
}

func (r *failingRelationships) Insert(ctx context.Context, rel *entities.Relationship) error {
	if strings.HasPrefix(rel.Notes, reciprocalNotesPrefix) {
		return errDiskFull
	}
	return r.RelationshipStore.Insert(ctx, rel)
}

type recordedOp struct {
	op      string
	outcome string
}

type fakeRecorder struct {
	mu  sync.Mutex
	ops []recordedOp
}

func (f *fakeRecorder) ObserveOperation(op, outcome string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, recordedOp{op: op, outcome: outcome})
}
