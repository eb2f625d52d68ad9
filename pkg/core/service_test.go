package core_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/audittrail/pkg/adapters/memory"
	"github.com/aretw0/audittrail/pkg/core"
)

type raised struct {
	events []core.Event
	veto   string
	err    error
}

func (r *raised) Raise(_ context.Context, _ core.Actor, ev core.Event) error {
	r.events = append(r.events, ev)
	if c, ok := ev.(*core.CreatingEvent); ok && r.veto != "" {
		c.Cancel = true
		c.Rejection = r.veto
	}
	return r.err
}

func (r *raised) kinds() []core.EventKind {
	var kinds []core.EventKind
	for _, ev := range r.events {
		kinds = append(kinds, ev.Kind())
	}
	return kinds
}

func newService(t *testing.T) (*core.Service, *memory.Store, *raised) {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	for _, rec := range []*core.Record{
		{ID: "root", Store: "master", Path: "/content", Name: "content", Language: "en", Version: 1},
		{ID: "home", Store: "master", Path: "/content/home", Name: "home", Language: "en", Version: 1, ParentID: "root"},
		{ID: "child", Store: "master", Path: "/content/home/child", Name: "child", Language: "en", Version: 1, ParentID: "home"},
		{ID: "tpl-a", Store: "master", Name: "A", Fields: []core.Field{{ID: "f1", Name: "Title"}, {ID: "f2", Name: "Body"}}},
		{ID: "tpl-b", Store: "master", Name: "B", Fields: []core.Field{{ID: "f1", Name: "Title"}, {ID: "f3", Name: "Body"}}},
	} {
		require.NoError(t, store.Put(ctx, rec))
	}
	r := &raised{}
	return core.NewService(store, r), store, r
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("Persists With Template Fields", func(t *testing.T) {
		svc, store, r := newService(t)
		svc.SetClock(func() time.Time { return time.Unix(100, 0) })

		rec, err := svc.Create(ctx, core.Actor{}, core.Ref{Store: "master", ID: "home"}, "news", "tpl-a")
		require.NoError(t, err)
		assert.Equal(t, "/content/home/news", rec.Path)
		assert.Equal(t, "en", rec.Language)
		assert.Len(t, rec.Fields, 2)
		assert.Equal(t, time.Unix(100, 0), rec.Statistics.Created)
		assert.Equal(t, []core.EventKind{core.KindCreating}, r.kinds())

		_, err = store.Get(ctx, rec.Ref())
		assert.NoError(t, err)
	})

	t.Run("Vetoed", func(t *testing.T) {
		svc, store, r := newService(t)
		r.veto = "taken"
		before := store.Len()

		_, err := svc.Create(ctx, core.Actor{}, core.Ref{Store: "master", ID: "home"}, "news", "")
		assert.ErrorIs(t, err, core.ErrCancelled)
		assert.EqualError(t, err, `creating "news": taken`)
		assert.Equal(t, before, store.Len())
	})

	t.Run("Missing Parent", func(t *testing.T) {
		svc, _, _ := newService(t)
		_, err := svc.Create(ctx, core.Actor{}, core.Ref{Store: "master", ID: "nope"}, "news", "")
		assert.ErrorIs(t, err, core.ErrNotFound)
	})
}

func TestService_Mutations(t *testing.T) {
	ctx := context.Background()

	t.Run("Delete Removes Subtree", func(t *testing.T) {
		svc, store, r := newService(t)
		require.NoError(t, svc.Delete(ctx, core.Actor{}, core.Ref{Store: "master", ID: "home"}))

		_, err := store.Get(ctx, core.Ref{Store: "master", ID: "child"})
		assert.ErrorIs(t, err, core.ErrNotFound)
		assert.Equal(t, []core.EventKind{core.KindDeleting}, r.kinds())
	})

	t.Run("Handler Error Aborts", func(t *testing.T) {
		svc, store, r := newService(t)
		r.err = errors.New("sink down")

		assert.Error(t, svc.Delete(ctx, core.Actor{}, core.Ref{Store: "master", ID: "child"}))
		_, err := store.Get(ctx, core.Ref{Store: "master", ID: "child"})
		assert.NoError(t, err)
	})

	t.Run("Deep Copy", func(t *testing.T) {
		svc, store, r := newService(t)
		copied, err := svc.Copy(ctx, core.Actor{}, core.Ref{Store: "master", ID: "home"}, core.Ref{Store: "master", ID: "root"}, "home-2", true)
		require.NoError(t, err)

		children, err := store.Children(ctx, "master", copied.ID)
		require.NoError(t, err)
		require.Len(t, children, 1)
		assert.Equal(t, "/content/home-2/child", children[0].Path)

		ev := r.events[0].(*core.CopyingEvent)
		assert.True(t, ev.Recursive)
		assert.Equal(t, copied.ID, ev.NewID)
	})

	t.Run("Move Repaths Descendants", func(t *testing.T) {
		svc, store, _ := newService(t)
		_, err := svc.Create(ctx, core.Actor{}, core.Ref{Store: "master", ID: "root"}, "archive", "")
		require.NoError(t, err)
		archive, err := store.Children(ctx, "master", "root")
		require.NoError(t, err)

		var archiveID core.ID
		for _, c := range archive {
			if c.Name == "archive" {
				archiveID = c.ID
			}
		}
		require.NoError(t, svc.Move(ctx, core.Actor{}, core.Ref{Store: "master", ID: "home"}, core.Ref{Store: "master", ID: archiveID}))

		child, err := store.Get(ctx, core.Ref{Store: "master", ID: "child"})
		require.NoError(t, err)
		assert.Equal(t, "/content/archive/home/child", child.Path)
	})

	t.Run("Rename Raises Previous Name", func(t *testing.T) {
		svc, _, r := newService(t)
		require.NoError(t, svc.Rename(ctx, core.Actor{}, core.Ref{Store: "master", ID: "child"}, "kid"))

		ev := r.events[0].(*core.RenamedEvent)
		assert.Equal(t, "child", ev.PreviousName)
		assert.Equal(t, "/content/home/kid", ev.Record.Path)
	})

	t.Run("Sort Order", func(t *testing.T) {
		svc, _, r := newService(t)
		require.NoError(t, svc.SetSortOrder(ctx, core.Actor{}, core.Ref{Store: "master", ID: "child"}, "25"))

		ev := r.events[0].(*core.SortOrderChangedEvent)
		assert.Equal(t, "", ev.PreviousSortOrder)
		assert.Equal(t, "25", ev.Record.SortOrder)
	})

	t.Run("Change Template", func(t *testing.T) {
		svc, _, r := newService(t)
		rec, err := svc.Create(ctx, core.Actor{}, core.Ref{Store: "master", ID: "home"}, "news", "tpl-a")
		require.NoError(t, err)
		rec.SetValue("Body", "text")
		require.NoError(t, svc.Save(ctx, core.Actor{}, rec))

		require.NoError(t, svc.ChangeTemplate(ctx, core.Actor{}, rec.Ref(), "tpl-b"))
		ev := r.events[len(r.events)-1].(*core.TemplateChangedEvent)
		require.Len(t, ev.Changes.Changes, 1)
		assert.Equal(t, core.ActionChangeFieldID, ev.Changes.Changes[0].Action)
		assert.Equal(t, "text", ev.Record.Value("Body"))
		assert.Equal(t, core.ID("f3"), ev.Record.Fields[1].ID)
	})
}

func TestService_State(t *testing.T) {
	svc, _, _ := newService(t)
	state, ok := svc.State().(core.ServiceState)
	require.True(t, ok)
	assert.Equal(t, "memory", state.StoreType)
	assert.True(t, state.Raising)
}

func TestPrefer(t *testing.T) {
	v1en := &core.Record{Version: 1, Language: "en"}
	v1de := &core.Record{Version: 1, Language: "de"}
	v2fr := &core.Record{Version: 2, Language: "fr"}

	tests := []struct {
		name      string
		candidate *core.Record
		current   *core.Record
		language  string
		want      bool
	}{
		{name: "First Match", candidate: v1en, current: nil, want: true},
		{name: "Higher Version", candidate: v2fr, current: v1en, language: "en", want: true},
		{name: "Lower Version", candidate: v1en, current: v2fr, language: "en", want: false},
		{name: "Preferred Language", candidate: v1en, current: v1de, language: "en", want: true},
		{name: "Keeps Preferred Language", candidate: v1de, current: v1en, language: "en", want: false},
		{name: "Lowest Language", candidate: v1de, current: v1en, want: true},
		{name: "Unknown Preference", candidate: v1en, current: v1de, language: "fr", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, core.Prefer(tt.candidate, tt.current, tt.language))
		})
	}
}
