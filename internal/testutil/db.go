package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/maniacs-db/drizzle-sub000/internal/engine/kvengine"
	"github.com/maniacs-db/drizzle-sub000/internal/kv/memory"
	kvpebble "github.com/maniacs-db/drizzle-sub000/internal/kv/pebble"
	"github.com/stretchr/testify/require"
)

func TempDir(t testing.TB) string {
	dir, err := os.MkdirTemp("", "drizzle")
	require.NoError(t, err)

	t.Cleanup(func() {
		os.RemoveAll(dir)
	})
	return dir
}

func NewPebble(t testing.TB) *pebble.DB {
	t.Helper()

	db, err := pebble.Open(filepath.Join(TempDir(t), "pebble"), &pebble.Options{})
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})
	return db
}

func NewMemPebble(t testing.TB) *pebble.DB {
	t.Helper()

	db, err := pebble.Open("", &pebble.Options{FS: vfs.NewStrictMem()})
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})
	return db
}

// NewMemoryEngine returns an engine on an in-memory B-tree.
func NewMemoryEngine(t testing.TB, opts kvengine.Options) *kvengine.Engine {
	t.Helper()

	ng := kvengine.OpenMemory(opts, memory.Options{})
	t.Cleanup(func() {
		ng.Close()
	})
	return ng
}

// NewPebbleEngine returns an engine on a Pebble database
// stored in memory.
func NewPebbleEngine(t testing.TB, opts kvengine.Options) *kvengine.Engine {
	t.Helper()

	ng := kvengine.New("pebble", kvpebble.NewStore(NewMemPebble(t), false), opts)
	t.Cleanup(func() {
		ng.Close()
	})
	return ng
}

// Engines returns one engine of each kind, to run the same test on all of them.
func Engines(t testing.TB, opts kvengine.Options) map[string]*kvengine.Engine {
	return map[string]*kvengine.Engine{
		"memory": NewMemoryEngine(t, opts),
		"pebble": NewPebbleEngine(t, opts),
	}
}
