package platform

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/audittrail/pkg/sink"
)

const editorialScript = `
start: 2024-03-01T09:00:00Z
actor:
  user: editor
  site: shell
steps:
  - op: seed
    record: {id: home, store: master, path: /home, name: home, language: en, version: 1}
  - op: seed
    record:
      id: tpl-article
      store: master
      path: /templates/article
      name: Article
      fields: [{id: f-title, name: Title}]
  - op: seed
    record:
      id: page
      store: master
      path: /home/page
      name: page
      language: en
      version: 1
      parent: home
      template: tpl-article
      fields: [{id: f-title, name: Title, value: Old}]
  - op: save
    after: 10s
    ref: {store: master, id: page, language: en, version: 1}
    fields: {Title: New}
  - op: rename
    ref: {store: master, id: page}
    name: article
  - op: create
    parent: {store: master, id: home}
    name: news
    template: tpl-article
  - op: create
    parent: {store: master, id: home}
    name: Article
  - op: publish
    user: publisher
    ref: {store: master, id: page}
    publish:
      options: {compareRevisions: true}
      result: {operation: Updated}
`

func TestReplay(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	reg := prometheus.NewRegistry()

	settings := DefaultSettings()
	settings.Audit.ItemPublished = true
	settings.Audit.PreventDuplicateItemNames = true

	rt, err := New(ctx, settings, WithSink(sink.NewWriter(&buf)), WithRegisterer(reg))
	require.NoError(t, err)
	defer rt.Close()

	script, err := ReadScript(strings.NewReader(editorialScript))
	require.NoError(t, err)

	result, err := rt.Replay(ctx, script)
	require.NoError(t, err)
	assert.Equal(t, 7, result.Applied)
	require.Len(t, result.Rejected, 1)
	assert.Contains(t, result.Rejected[0], `Name "article" is already in use.`)

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 5, buf.String())
	assert.Equal(t, "(editor): SAVE: master:/home/page, name: page, language: en, version: 1, id: page", lines[0])
	assert.Equal(t, "(editor): SAVE: master:/home/page, name: page, language: en, version: 1, id: page, ** [Title]: new: New, old: Old", lines[1])
	assert.Equal(t, "(editor): RENAME: master:/home/page, as: article", lines[2])
	assert.True(t, strings.HasPrefix(lines[3], "(editor): CREATE: master:/home/news, id: "), lines[3])
	assert.True(t, strings.HasSuffix(lines[3], ", template: Article"), lines[3])
	assert.Equal(t, "(publisher): PUBLISH [Updated]: master:/home/article, name: article, language: en, version: 1, id: page", lines[4])

	m := rt.Engine.Metrics()
	assert.Equal(t, float64(2), testutil.ToFloat64(m.Lines.WithLabelValues("record:saving")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Vetoes))
}

func TestReplay_StopsOnError(t *testing.T) {
	ctx := context.Background()
	rt, err := New(ctx, DefaultSettings(), WithSink(sink.NewWriter(&bytes.Buffer{})))
	require.NoError(t, err)
	defer rt.Close()

	script, err := ReadScript(strings.NewReader(`
actor: {user: editor}
steps:
  - op: delete
    ref: {store: master, id: missing}
  - op: seed
    record: {id: never, store: master, path: /never, name: never}
`))
	require.NoError(t, err)

	result, err := rt.Replay(ctx, script)
	assert.ErrorContains(t, err, "step 1 (delete)")
	assert.Equal(t, 0, result.Applied)
}

func TestReadScript(t *testing.T) {
	t.Run("Rejects Unknown Op", func(t *testing.T) {
		_, err := ReadScript(strings.NewReader("steps:\n  - op: publishAll\n"))
		assert.ErrorContains(t, err, `unknown op "publishAll"`)
	})

	t.Run("Rejects Unknown Keys", func(t *testing.T) {
		_, err := ReadScript(strings.NewReader("steps:\n  - op: save\n    colour: red\n"))
		assert.Error(t, err)
	})

	t.Run("Rejects Empty Document", func(t *testing.T) {
		_, err := ReadScript(strings.NewReader(""))
		assert.Error(t, err)
	})
}
