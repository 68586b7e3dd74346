package handlers

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/kin-core/internal/domain/entities"
	"github.com/ersonp/kin-core/internal/domain/services"
	"github.com/ersonp/kin-core/internal/infrastructure/config"
	"github.com/ersonp/kin-core/internal/infrastructure/relationaldb/memory"
)

type fixture struct {
	store   *memory.Store
	graph   *services.GraphService
	people  *PersonHandler
	rels    *RelationshipHandler
	check   *CheckHandler
	imports *ImportHandler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	graph := services.NewGraphService(store)
	persons := services.NewPersonService(store)
	return &fixture{
		store:   store,
		graph:   graph,
		people:  NewPersonHandler(persons, graph),
		rels:    NewRelationshipHandler(graph),
		check:   NewCheckHandler(services.NewCheckService(store)),
		imports: NewImportHandler(services.NewImportService(graph), 2),
	}
}

func (f *fixture) add(t *testing.T, name, gender string) *entities.Person {
	t.Helper()
	p, err := f.people.HandleAdd(context.Background(), name, gender)
	require.NoError(t, err)
	return p
}

func strPtr(s string) *string {
	return &s
}

func TestInitHandler_Handle(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		tmpDir := t.TempDir()
		handler := NewInitHandler(memory.NewStore())

		result, err := handler.Handle(ctx, tmpDir, DefaultRegister)
		require.NoError(t, err)
		assert.Contains(t, result.ConfigPath, "config.yaml")
		assert.Equal(t, config.SQLitePathForRegister(tmpDir, DefaultRegister), result.DatabasePath)
		assert.True(t, config.Exists(tmpDir))

		regs, err := config.LoadRegisters(tmpDir)
		require.NoError(t, err)
		assert.True(t, regs.Exists(DefaultRegister))
	})

	t.Run("already initialized", func(t *testing.T) {
		tmpDir := t.TempDir()
		require.NoError(t, config.WriteDefault(tmpDir))

		_, err := NewInitHandler(memory.NewStore()).Handle(ctx, tmpDir, DefaultRegister)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already initialized")
	})
}

func TestPersonHandler(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.add(t, "Arthur", "m")
	b := f.add(t, "Beth", "FEMALE")
	assert.Equal(t, entities.GenderMale, a.Gender)
	assert.Equal(t, entities.GenderFemale, b.Gender)

	t.Run("add rejects unknown gender", func(t *testing.T) {
		_, err := f.people.HandleAdd(ctx, "X", "robot")
		require.ErrorIs(t, err, entities.ErrInvalidOperation)
	})

	t.Run("list", func(t *testing.T) {
		result, err := f.people.HandleList(ctx, 1, 0)
		require.NoError(t, err)
		assert.Len(t, result.Persons, 1)
		assert.Equal(t, 2, result.Total)
	})

	t.Run("update spouse and clear it", func(t *testing.T) {
		updated, err := f.people.HandleUpdate(ctx, a.ID, UpdateOptions{Spouse: strPtr(b.ID)})
		require.NoError(t, err)
		assert.Equal(t, b.ID, updated.SpouseID)

		detail, err := f.people.HandleShow(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, a.ID, detail.Person.SpouseID)
		assert.Empty(t, detail.Relationships)

		updated, err = f.people.HandleUpdate(ctx, a.ID, UpdateOptions{Spouse: strPtr("")})
		require.NoError(t, err)
		assert.Empty(t, updated.SpouseID)
	})

	t.Run("update name and gender", func(t *testing.T) {
		updated, err := f.people.HandleUpdate(ctx, b.ID, UpdateOptions{Name: strPtr(" Bethany "), Gender: strPtr("u")})
		require.NoError(t, err)
		assert.Equal(t, "Bethany", updated.Name)
		assert.Equal(t, entities.GenderUnspecified, updated.Gender)
	})

	t.Run("update with nothing to change", func(t *testing.T) {
		_, err := f.people.HandleUpdate(ctx, b.ID, UpdateOptions{})
		require.ErrorIs(t, err, entities.ErrInvalidOperation)
	})

	t.Run("history", func(t *testing.T) {
		entries, err := f.people.HandleHistory(ctx, b.ID)
		require.NoError(t, err)
		require.NotEmpty(t, entries)
		assert.Equal(t, entities.ActionPersonUpdate, entries[0].Action)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, f.people.HandleDelete(ctx, b.ID))
		_, err := f.people.HandleShow(ctx, b.ID)
		require.ErrorIs(t, err, entities.ErrNotFound)
	})
}

func TestRelationshipHandler(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mum := f.add(t, "Mum", "f")
	kid := f.add(t, "Kid", "")

	rel, err := f.rels.HandleCreate(ctx, mum.ID, "child", kid.ID, CreateOptions{
		Strength: 1,
		Since:    "2015-02-03",
		Notes:    "adopted",
	})
	require.NoError(t, err)
	assert.Equal(t, "adopted", rel.Notes)
	require.NotNil(t, rel.Since)
	assert.Equal(t, "2015-02-03", rel.Since.Format(services.SinceLayout))

	_, err = f.rels.HandleCreate(ctx, mum.ID, "neighbour", kid.ID, CreateOptions{NoReciprocal: true})
	require.NoError(t, err)

	t.Run("invalid since", func(t *testing.T) {
		_, err := f.rels.HandleCreate(ctx, mum.ID, "friend", kid.ID, CreateOptions{Since: "03/02/2015"})
		require.ErrorIs(t, err, entities.ErrInvalidOperation)
	})

	t.Run("list all", func(t *testing.T) {
		result, err := f.rels.HandleList(ctx, kid.ID, ListOptions{})
		require.NoError(t, err)
		assert.Len(t, result.Relationships, 3)
	})

	t.Run("list filtered by type", func(t *testing.T) {
		result, err := f.rels.HandleList(ctx, kid.ID, ListOptions{Type: "MOTHER"})
		require.NoError(t, err)
		require.Len(t, result.Relationships, 1)
		assert.Equal(t, kid.ID, result.Relationships[0].FromID)

		result, err = f.rels.HandleList(ctx, kid.ID, ListOptions{Type: "spouse"})
		require.NoError(t, err)
		assert.NotNil(t, result.Relationships)
		assert.Empty(t, result.Relationships)
	})

	t.Run("list unknown person", func(t *testing.T) {
		_, err := f.rels.HandleList(ctx, "ghost", ListOptions{})
		require.ErrorIs(t, err, entities.ErrNotFound)
	})

	t.Run("delete and count", func(t *testing.T) {
		require.NoError(t, f.rels.HandleDelete(ctx, rel.ID))
		n, err := f.rels.HandleCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})
}

func TestCheckHandler(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.add(t, "A", "m")
	b := f.add(t, "B", "f")

	_, err := f.rels.HandleCreate(ctx, a.ID, "spouse", b.ID, CreateOptions{})
	require.NoError(t, err)

	report, err := f.check.Handle(ctx)
	require.NoError(t, err)
	assert.True(t, report.OK())

	_, err = f.people.HandleUpdate(ctx, b.ID, UpdateOptions{Father: strPtr(a.ID)})
	require.NoError(t, err)

	report, err = f.check.Handle(ctx)
	require.NoError(t, err)
	require.Len(t, report.Violations, 1)
	assert.Equal(t, services.ViolationParentWithoutEdge, report.Violations[0].Kind)
}

func TestImportHandler_Handle(t *testing.T) {
	ctx := context.Background()

	t.Run("json file", func(t *testing.T) {
		f := newFixture(t)
		a := f.add(t, "A", "m")
		b := f.add(t, "B", "")

		path := filepath.Join(t.TempDir(), "rels.json")
		content := `[{"from": "` + a.ID + `", "to": "` + b.ID + `", "type": "father", "since": "2000-01-01"}]`
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		result, err := f.imports.Handle(ctx, path, ImportOptions{})
		require.NoError(t, err)
		assert.Equal(t, 1, result.Imported)
		assert.Empty(t, result.Errors)

		n, err := f.rels.HandleCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("csv file with explicit format", func(t *testing.T) {
		f := newFixture(t)
		a := f.add(t, "A", "m")
		b := f.add(t, "B", "f")

		path := filepath.Join(t.TempDir(), "rels.txt")
		content := "from,to,type,reciprocal\n" + a.ID + "," + b.ID + ",spouse,false\n" + a.ID + ",ghost,friend,\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		result, err := f.imports.Handle(ctx, path, ImportOptions{Format: "csv"})
		require.NoError(t, err)
		assert.Equal(t, 1, result.Imported)
		require.Len(t, result.Errors, 1)
		assert.Equal(t, 3, result.Errors[0].Line)
	})

	t.Run("dry run", func(t *testing.T) {
		f := newFixture(t)
		path := filepath.Join(t.TempDir(), "rels.json")
		require.NoError(t, os.WriteFile(path, []byte(`[{"from": "x", "to": "y", "type": "sibling"}]`), 0644))

		result, err := f.imports.Handle(ctx, path, ImportOptions{DryRun: true})
		require.NoError(t, err)
		assert.Equal(t, 1, result.Imported)
	})

	t.Run("empty file", func(t *testing.T) {
		f := newFixture(t)
		path := filepath.Join(t.TempDir(), "rels.json")
		require.NoError(t, os.WriteFile(path, []byte(`[]`), 0644))

		result, err := f.imports.Handle(ctx, path, ImportOptions{})
		require.NoError(t, err)
		assert.Equal(t, 0, result.Imported)
	})

	t.Run("unsupported format", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.imports.Handle(ctx, "rels.xml", ImportOptions{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported format")
	})

	t.Run("missing file", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.imports.Handle(ctx, filepath.Join(t.TempDir(), "none.json"), ImportOptions{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "opening file")
	})

	t.Run("unknown explicit format", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.imports.Handle(ctx, "rels.json", ImportOptions{Format: "yaml"})
		require.ErrorIs(t, err, entities.ErrInvalidOperation)
		assert.Contains(t, err.Error(), `unsupported format "yaml"`)
	})

	t.Run("malformed file names the path", func(t *testing.T) {
		f := newFixture(t)
		path := filepath.Join(t.TempDir(), "rels.json")
		require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0644))

		_, err := f.imports.Handle(ctx, path, ImportOptions{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parsing "+path)
	})
}

func TestImportHandler_Options(t *testing.T) {
	ctx := context.Background()

	writeRows := func(t *testing.T) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "rels.json")
		require.NoError(t, os.WriteFile(path, []byte(`[{"from": "x", "to": "y", "type": "sibling"}]`), 0644))
		return path
	}

	t.Run("invalid options are rejected before reading", func(t *testing.T) {
		f := newFixture(t)
		missing := filepath.Join(t.TempDir(), "none.json")

		_, err := f.imports.Handle(ctx, missing, ImportOptions{Workers: -1})
		require.ErrorIs(t, err, entities.ErrInvalidOperation)
		assert.Contains(t, err.Error(), "invalid worker count -1")

		_, err = f.imports.Handle(ctx, missing, ImportOptions{OnConflict: "merge"})
		require.ErrorIs(t, err, entities.ErrInvalidOperation)
		assert.Contains(t, err.Error(), `invalid conflict strategy "merge"`)
	})

	t.Run("zero workers uses the handler default", func(t *testing.T) {
		f := newFixture(t)
		result, err := f.imports.Handle(ctx, writeRows(t), ImportOptions{DryRun: true})
		require.NoError(t, err)
		assert.Equal(t, 2, result.Workers)
		assert.Equal(t, 1, result.Rows)
	})

	t.Run("explicit workers win", func(t *testing.T) {
		f := newFixture(t)
		result, err := f.imports.Handle(ctx, writeRows(t), ImportOptions{DryRun: true, Workers: 4})
		require.NoError(t, err)
		assert.Equal(t, 4, result.Workers)
	})

	t.Run("default below one is sequential", func(t *testing.T) {
		h := NewImportHandler(services.NewImportService(services.NewGraphService(memory.NewStore())), 0)
		result, err := h.Handle(ctx, writeRows(t), ImportOptions{DryRun: true})
		require.NoError(t, err)
		assert.Equal(t, 1, result.Workers)
	})

	t.Run("fail strategy reports existing rows", func(t *testing.T) {
		f := newFixture(t)
		a := f.add(t, "A", "m")
		b := f.add(t, "B", "f")
		_, err := f.rels.HandleCreate(ctx, a.ID, "sibling", b.ID, CreateOptions{})
		require.NoError(t, err)

		path := filepath.Join(t.TempDir(), "rels.json")
		content := `[{"from": "` + a.ID + `", "to": "` + b.ID + `", "type": "sibling"}]`
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		result, err := f.imports.Handle(ctx, path, ImportOptions{OnConflict: services.ConflictFail})
		require.NoError(t, err)
		assert.Zero(t, result.Skipped)
		require.Len(t, result.Errors, 1)

		result, err = f.imports.Handle(ctx, path, ImportOptions{})
		require.NoError(t, err)
		assert.Equal(t, 1, result.Skipped)
		assert.Empty(t, result.Errors)
	})
}
