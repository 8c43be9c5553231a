package kvengine

import (
	"github.com/maniacs-db/drizzle-sub000/internal/kv/memory"
	kvpebble "github.com/maniacs-db/drizzle-sub000/internal/kv/pebble"
)

// OpenMemory returns an engine keeping its tables in memory.
func OpenMemory(opts Options, mopts memory.Options) *Engine {
	return New("memory", memory.NewStore(mopts), opts)
}

// OpenPebble returns an engine storing its tables in a Pebble database.
func OpenPebble(opts Options, popts kvpebble.Options) (*Engine, error) {
	if popts.Logger == nil {
		popts.Logger = opts.Logger
	}

	s, err := kvpebble.Open(popts)
	if err != nil {
		return nil, err
	}

	return New("pebble", s, opts), nil
}
