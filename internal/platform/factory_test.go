package platform

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/audittrail/pkg/adapters/fs"
	"github.com/aretw0/audittrail/pkg/adapters/memory"
	"github.com/aretw0/audittrail/pkg/audit"
	"github.com/aretw0/audittrail/pkg/core"
	"github.com/aretw0/audittrail/pkg/sink"
)

func TestNew_SubscribesEnabledKinds(t *testing.T) {
	settings := DefaultSettings()
	rt, err := New(context.Background(), settings, WithSink(sink.NewWriter(&bytes.Buffer{})))
	require.NoError(t, err)

	assert.IsType(t, &memory.Store{}, rt.Store)
	for kind, enabled := range settings.Audit.Switches() {
		want := 0
		if enabled {
			want = 1
		}
		assert.Equal(t, want, rt.Bus.Subscribed(kind), kind)
	}

	require.NoError(t, rt.Close())
	for _, kind := range core.Kinds() {
		assert.Zero(t, rt.Bus.Subscribed(kind), "Close removes %s", kind)
	}
}

func TestNew_FsStore(t *testing.T) {
	t.Run("Requires a Path", func(t *testing.T) {
		settings := DefaultSettings()
		settings.Store.Adapter = "fs"
		_, err := New(context.Background(), settings)
		assert.Error(t, err)
	})

	t.Run("Opens Repository", func(t *testing.T) {
		settings := DefaultSettings()
		settings.Store = StoreSettings{Adapter: "fs", Path: filepath.Join(t.TempDir(), "content")}

		rt, err := New(context.Background(), settings, WithSink(sink.NewWriter(&bytes.Buffer{})))
		require.NoError(t, err)
		defer rt.Close()

		assert.IsType(t, &fs.Repository{}, rt.Store)
		state := rt.Engine.State().(audit.EngineState)
		assert.Equal(t, "fs", state.StoreType)
	})
}

func TestNew_SinkSettings(t *testing.T) {
	ctx := context.Background()
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()
	logFile := filepath.Join(t.TempDir(), "audit.log")

	settings := DefaultSettings()
	settings.Sink = SinkSettings{
		File:     logFile,
		RedisURL: "redis://" + server.Addr(),
		Stream:   "trail",
	}

	rt, err := New(ctx, settings)
	require.NoError(t, err)
	require.NoError(t, rt.WriteLine(ctx, "hello", "editor"))
	require.NoError(t, rt.Close())

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Equal(t, "(editor): hello\n", string(data))

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer client.Close()
	entries, err := client.XRange(ctx, "trail", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "hello", entries[0].Values["message"])
	assert.Equal(t, "editor", entries[0].Values["user"])
}

func TestNew_UnreachableRedis(t *testing.T) {
	settings := DefaultSettings()
	settings.Sink = SinkSettings{RedisURL: "redis://127.0.0.1:1"}

	_, err := New(context.Background(), settings)
	assert.ErrorContains(t, err, "redis ping failed")
}
