package fs_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/audittrail/pkg/adapters/fs"
	"github.com/aretw0/audittrail/pkg/core"
)

// setupRepo creates an initialized repository rooted in a temp directory.
func setupRepo(t *testing.T, opts ...func(*fs.Config)) (*fs.Repository, string) {
	t.Helper()

	root := filepath.Join(t.TempDir(), "content")
	cfg := fs.Config{Path: root}
	for _, opt := range opts {
		opt(&cfg)
	}

	repo := fs.NewRepository(cfg)
	if err := repo.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	return repo, root
}

func homeRecord() *core.Record {
	return &core.Record{
		ID:       "home",
		Store:    "master",
		Path:     "/content/home",
		Name:     "home",
		Language: "en",
		Version:  1,
		ParentID: "content",
		Fields: []core.Field{
			{ID: "f-title", Name: "Title", Value: "Welcome"},
		},
		Statistics: core.Statistics{
			Created: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
			Updated: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		},
	}
}

// touch bumps the modification time so coarse filesystem clocks cannot hide a change.
func touch(t *testing.T, file string) {
	t.Helper()
	later := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(file, later, later); err != nil {
		t.Fatalf("Chtimes failed: %v", err)
	}
}

func TestInitialize(t *testing.T) {
	t.Run("Creates Directory if Missing", func(t *testing.T) {
		_, root := setupRepo(t)

		if _, err := os.Stat(root); os.IsNotExist(err) {
			t.Errorf("expected directory to be created at %s", root)
		}
	})

	t.Run("Fails if MustExist and Missing", func(t *testing.T) {
		repo := fs.NewRepository(fs.Config{Path: filepath.Join(t.TempDir(), "missing"), MustExist: true})

		if err := repo.Initialize(context.Background()); err == nil {
			t.Error("expected error when path is missing and MustExist is set")
		}
	})

	t.Run("Indexes Existing Files Without Events", func(t *testing.T) {
		root := t.TempDir()
		file := filepath.Join(root, "master", "content", "about.yaml")
		os.MkdirAll(filepath.Dir(file), 0755)
		os.WriteFile(file, []byte("id: about\nfields:\n  - id: f-title\n    name: Title\n    value: About\n"), 0644)

		repo := fs.NewRepository(fs.Config{Path: root})
		if err := repo.Initialize(context.Background()); err != nil {
			t.Fatalf("Initialize failed: %v", err)
		}

		rec, err := repo.Get(context.Background(), core.Ref{Store: "master", ID: "about"})
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if rec.Path != "/content/about" || rec.Name != "about" {
			t.Errorf("expected location derived from file, got path=%s name=%s", rec.Path, rec.Name)
		}
		if rec.Value("Title") != "About" {
			t.Errorf("expected Title 'About', got '%s'", rec.Value("Title"))
		}

		events, err := repo.Reconcile(context.Background())
		if err != nil {
			t.Fatalf("Reconcile failed: %v", err)
		}
		if len(events) != 0 {
			t.Errorf("expected no events after rebuild, got %d", len(events))
		}
	})
}

func TestPutAndGet(t *testing.T) {
	ctx := context.Background()
	repo, root := setupRepo(t)

	if err := repo.Put(ctx, homeRecord()); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "master", "content", "home.en.yaml")); err != nil {
		t.Fatalf("expected record file on disk: %v", err)
	}

	got, err := repo.Get(ctx, core.Ref{Store: "master", ID: "home", Language: "en"})
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Value("Title") != "Welcome" {
		t.Errorf("expected Title 'Welcome', got '%s'", got.Value("Title"))
	}

	got.SetValue("Title", "mutated")
	again, _ := repo.Get(ctx, core.Ref{Store: "master", ID: "home"})
	if again.Value("Title") != "Welcome" {
		t.Error("Get must return a copy")
	}

	if _, err := repo.Get(ctx, core.Ref{Store: "web", ID: "home"}); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected ErrNotFound for other store, got %v", err)
	}
}

func TestPut_Relocates(t *testing.T) {
	ctx := context.Background()
	repo, root := setupRepo(t)

	rec := homeRecord()
	repo.Put(ctx, rec)

	rec.Path = "/content/start"
	rec.Name = "start"
	if err := repo.Put(ctx, rec); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(root, "master", "content", "home.en.yaml")); !os.IsNotExist(err) {
		t.Error("expected old file to be removed")
	}
	if _, err := os.Stat(filepath.Join(root, "master", "content", "start.en.yaml")); err != nil {
		t.Errorf("expected new file: %v", err)
	}
	if state := repo.State().(fs.RepositoryState); state.IndexSize != 1 {
		t.Errorf("expected a single index entry, got %d", state.IndexSize)
	}
}

func TestChildrenAndReadAll(t *testing.T) {
	ctx := context.Background()
	repo, _ := setupRepo(t)

	repo.Put(ctx, &core.Record{ID: "tpl", Store: "master", Path: "/templates/tpl", Name: "tpl",
		Fields: []core.Field{{ID: "f-body", Name: "Body"}}})
	repo.Put(ctx, &core.Record{ID: "b", Store: "master", Path: "/content/b", Name: "b", ParentID: "content", SortOrder: "200", TemplateID: "tpl"})
	repo.Put(ctx, &core.Record{ID: "a", Store: "master", Path: "/content/a", Name: "a", ParentID: "content", SortOrder: "100"})

	children, err := repo.Children(ctx, "master", "content")
	if err != nil {
		t.Fatalf("Children failed: %v", err)
	}
	if len(children) != 2 || children[0].ID != "a" || children[1].ID != "b" {
		t.Fatalf("expected children [a b], got %v", children)
	}

	b := children[1]
	if err := repo.ReadAll(ctx, b); err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if _, ok := b.Field("Body"); !ok {
		t.Error("expected template field to be materialized")
	}
}

func TestReadOnly(t *testing.T) {
	ctx := context.Background()
	repo, _ := setupRepo(t, func(c *fs.Config) { c.ReadOnly = true })

	if err := repo.Put(ctx, homeRecord()); !errors.Is(err, core.ErrReadOnly) {
		t.Errorf("expected ErrReadOnly from Put, got %v", err)
	}
	if err := repo.Remove(ctx, "master", "home"); !errors.Is(err, core.ErrReadOnly) {
		t.Errorf("expected ErrReadOnly from Remove, got %v", err)
	}

	repo.SetReadOnly(false)
	if err := repo.Put(ctx, homeRecord()); err != nil {
		t.Errorf("expected Put to succeed after SetReadOnly(false), got %v", err)
	}
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	repo, root := setupRepo(t)
	repo.Put(ctx, homeRecord())

	if err := repo.Remove(ctx, "master", "home"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "master", "content", "home.en.yaml")); !os.IsNotExist(err) {
		t.Error("expected file to be removed")
	}
	if err := repo.Remove(ctx, "master", "home"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second Remove, got %v", err)
	}
}

func TestDetect(t *testing.T) {
	ctx := context.Background()

	t.Run("Saving Keeps Baseline Until Commit", func(t *testing.T) {
		repo, root := setupRepo(t)
		repo.Put(ctx, homeRecord())

		file := filepath.Join(root, "master", "content", "home.en.yaml")
		edited := homeRecord()
		edited.SetValue("Title", "Hello")
		writeRecord(t, file, edited)
		touch(t, file)

		ev, err := repo.Detect("master/content/home.en.yaml")
		if err != nil {
			t.Fatalf("Detect failed: %v", err)
		}
		saving, ok := ev.(*core.SavingEvent)
		if !ok {
			t.Fatalf("expected SavingEvent, got %T", ev)
		}
		if saving.Record.Value("Title") != "Hello" {
			t.Errorf("expected new version in event, got '%s'", saving.Record.Value("Title"))
		}
		if !saving.Record.Statistics.Updated.After(edited.Statistics.Updated) {
			t.Error("expected Updated to follow the file modification time")
		}

		baseline, _ := repo.Get(ctx, core.Ref{Store: "master", ID: "home", Language: "en", Version: 1})
		if baseline.Value("Title") != "Welcome" {
			t.Errorf("expected baseline before Commit, got '%s'", baseline.Value("Title"))
		}
		if state := repo.State().(fs.RepositoryState); state.PendingChanges != 1 {
			t.Errorf("expected one pending change, got %d", state.PendingChanges)
		}

		if err := repo.Commit(ev); err != nil {
			t.Fatalf("Commit failed: %v", err)
		}
		current, _ := repo.Get(ctx, core.Ref{Store: "master", ID: "home"})
		if current.Value("Title") != "Hello" {
			t.Errorf("expected committed version, got '%s'", current.Value("Title"))
		}

		again, _ := repo.Detect("master/content/home.en.yaml")
		if again != nil {
			t.Errorf("expected no event after Commit, got %v", again)
		}
	})

	t.Run("Creating Resolves Parent", func(t *testing.T) {
		repo, root := setupRepo(t)
		repo.Put(ctx, &core.Record{ID: "content", Store: "master", Path: "/content", Name: "content"})

		writeRecord(t, filepath.Join(root, "master", "content", "news.yaml"), &core.Record{ID: "news", Name: "news"})

		ev, err := repo.Detect("master/content/news.yaml")
		if err != nil {
			t.Fatalf("Detect failed: %v", err)
		}
		creating, ok := ev.(*core.CreatingEvent)
		if !ok {
			t.Fatalf("expected CreatingEvent, got %T", ev)
		}
		if creating.Parent.ID != "content" || creating.Name != "news" || creating.ID != "news" {
			t.Errorf("unexpected creating event: parent=%s name=%s id=%s", creating.Parent.ID, creating.Name, creating.ID)
		}
	})

	t.Run("Vetoed Creating Is Not Indexed", func(t *testing.T) {
		repo, root := setupRepo(t)
		writeRecord(t, filepath.Join(root, "master", "content", "dup.yaml"), &core.Record{ID: "dup"})

		ev, _ := repo.Detect("master/content/dup.yaml")
		creating := ev.(*core.CreatingEvent)
		creating.Cancel = true
		creating.Rejection = "taken"

		if err := repo.Commit(ev); err != nil {
			t.Fatalf("Commit failed: %v", err)
		}
		if _, err := repo.Get(ctx, core.Ref{Store: "master", ID: "dup"}); !errors.Is(err, core.ErrNotFound) {
			t.Errorf("expected vetoed record to stay unindexed, got %v", err)
		}
	})

	t.Run("Deleting Uses Indexed Snapshot", func(t *testing.T) {
		repo, root := setupRepo(t)
		repo.Put(ctx, homeRecord())
		os.Remove(filepath.Join(root, "master", "content", "home.en.yaml"))

		ev, err := repo.Detect("master/content/home.en.yaml")
		if err != nil {
			t.Fatalf("Detect failed: %v", err)
		}
		deleting, ok := ev.(*core.DeletingEvent)
		if !ok {
			t.Fatalf("expected DeletingEvent, got %T", ev)
		}
		if deleting.Record.Value("Title") != "Welcome" {
			t.Errorf("expected snapshot in event, got '%s'", deleting.Record.Value("Title"))
		}

		repo.Discard(ev)
		if _, err := repo.Get(ctx, core.Ref{Store: "master", ID: "home"}); err != nil {
			t.Errorf("expected record to remain after Discard, got %v", err)
		}
	})

	t.Run("Own Writes Are Silent", func(t *testing.T) {
		repo, _ := setupRepo(t)
		repo.Put(ctx, homeRecord())

		events, err := repo.Reconcile(ctx)
		if err != nil {
			t.Fatalf("Reconcile failed: %v", err)
		}
		if len(events) != 0 {
			t.Errorf("expected no events for own writes, got %d", len(events))
		}
	})
}

func writeRecord(t *testing.T, file string, rec *core.Record) {
	t.Helper()
	data, err := fs.NewYAMLSerializer(false).Serialize(rec)
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	if err := os.WriteFile(file, data, 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
}

func TestLanguageTieBreak(t *testing.T) {
	ctx := context.Background()
	repo, _ := setupRepo(t)

	german := homeRecord()
	german.Language = "de"
	german.Name = "startseite"
	for _, rec := range []*core.Record{homeRecord(), german} {
		if err := repo.Put(ctx, rec); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	for i := 0; i < 20; i++ {
		got, err := repo.Get(ctx, core.Ref{Store: "master", ID: "home"})
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.Language != "de" {
			t.Fatalf("expected lowest language 'de' without a preference, got %q", got.Language)
		}

		got, err = repo.Get(core.WithLanguage(ctx, "en"), core.Ref{Store: "master", ID: "home"})
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.Language != "en" {
			t.Fatalf("expected preferred language 'en', got %q", got.Language)
		}

		children, err := repo.Children(core.WithLanguage(ctx, "en"), "master", "content")
		if err != nil {
			t.Fatalf("Children failed: %v", err)
		}
		if len(children) != 1 || children[0].Name != "home" {
			t.Fatalf("expected the english child, got %+v", children)
		}
	}
}
