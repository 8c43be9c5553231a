// Package changelog stores replicated statements in a Pebble database.
package changelog

import (
	"encoding/binary"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/maniacs-db/drizzle-sub000/internal/encoding"
	"github.com/maniacs-db/drizzle-sub000/internal/replication"
	"github.com/maniacs-db/drizzle-sub000/internal/row"
)

const statementPrefix = 'l'

// Options of a change log.
type Options struct {
	// Path of the database directory. Ignored if InMemory is true.
	Path     string
	InMemory bool
	// Sync makes every append durable before it returns.
	Sync bool
	// Logger defaults to pebble.DefaultLogger.
	Logger pebble.Logger
}

// Log is a replication.Replicator appending statements to Pebble.
// Statements are numbered from 1, in append order.
type Log struct {
	db        *pebble.DB
	writeOpts *pebble.WriteOptions
	owned     bool

	mu      sync.Mutex
	lastSeq uint64
}

var _ replication.Replicator = (*Log)(nil)

// Open the change log stored at opts.Path.
func Open(opts Options) (*Log, error) {
	popts := pebble.Options{Logger: opts.Logger}
	if popts.Logger == nil {
		popts.Logger = pebble.DefaultLogger
	}

	path := opts.Path
	if opts.InMemory {
		popts.FS = vfs.NewMem()
		path = ""
	}

	db, err := pebble.Open(path, &popts)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open change log %q", path)
	}

	l, err := New(db, opts.Sync)
	if err != nil {
		db.Close()
		return nil, err
	}
	l.owned = true

	popts.Logger.Infof("change log %q opened at sequence %d", path, l.lastSeq)
	return l, nil
}

// New returns a change log stored in db. Closing the log doesn't close db.
func New(db *pebble.DB, sync bool) (*Log, error) {
	l := Log{
		db:        db,
		writeOpts: pebble.NoSync,
	}
	if sync {
		l.writeOpts = pebble.Sync
	}

	it, err := db.NewIter(&pebble.IterOptions{
		LowerBound: []byte{statementPrefix},
		UpperBound: []byte{statementPrefix + 1},
	})
	if err != nil {
		return nil, err
	}
	defer it.Close()

	if it.Last() {
		l.lastSeq, err = encoding.DecodeUint64(it.Key()[1:])
		if err != nil {
			return nil, err
		}
	}

	return &l, it.Error()
}

func statementKey(seq uint64) []byte {
	return encoding.EncodeUint64([]byte{statementPrefix}, seq)
}

// Append assigns the next sequence number to s and stores it.
func (l *Log) Append(s *replication.Statement) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	seq := l.lastSeq + 1
	err := l.db.Set(statementKey(seq), encodeStatement(nil, s), l.writeOpts)
	if err != nil {
		return err
	}

	l.lastSeq = seq
	s.Seq = seq
	return nil
}

// LastSeq returns the sequence number of the last statement.
func (l *Log) LastSeq() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.lastSeq
}

// Iterate calls fn on every statement whose sequence number is greater
// than or equal to from, in order.
func (l *Log) Iterate(from uint64, fn func(s *replication.Statement) error) error {
	it, err := l.db.NewIter(&pebble.IterOptions{
		LowerBound: statementKey(from),
		UpperBound: []byte{statementPrefix + 1},
	})
	if err != nil {
		return err
	}
	defer it.Close()

	for it.First(); it.Valid(); it.Next() {
		s, err := decodeStatement(it.Value())
		if err != nil {
			return errors.Wrapf(err, "statement %x", it.Key())
		}
		s.Seq, err = encoding.DecodeUint64(it.Key()[1:])
		if err != nil {
			return err
		}

		if err := fn(s); err != nil {
			return err
		}
	}

	return it.Error()
}

func (l *Log) Close() error {
	if !l.owned {
		return nil
	}

	return l.db.Close()
}

// Image flags of an encoded event.
const (
	hasBefore = 1 << iota
	hasAfter
)

func encodeStatement(dst []byte, s *replication.Statement) []byte {
	dst = encoding.EncodeUint64(dst, s.QueryID)
	dst = append(dst, byte(s.Type))
	dst = binary.BigEndian.AppendUint32(dst, s.TableID)
	dst = encoding.EncodeText(dst, s.Table)
	dst = binary.AppendUvarint(dst, uint64(len(s.Events)))

	for i := range s.Events {
		ev := &s.Events[i]
		var flags byte
		if ev.Before != nil {
			flags |= hasBefore
		}
		if ev.After != nil {
			flags |= hasAfter
		}
		dst = append(dst, byte(ev.Type), flags)
		if ev.Before != nil {
			dst = appendRow(dst, ev.Before)
		}
		if ev.After != nil {
			dst = appendRow(dst, ev.After)
		}
	}

	return dst
}

func appendRow(dst []byte, r *row.Row) []byte {
	b := row.Encode(nil, r)
	dst = binary.AppendUvarint(dst, uint64(len(b)))
	return append(dst, b...)
}

type decoder struct {
	b []byte
}

func (d *decoder) uint64() (uint64, error) {
	n, err := encoding.DecodeUint64(d.b)
	if err != nil {
		return 0, err
	}
	d.b = d.b[8:]
	return n, nil
}

func (d *decoder) byte() (byte, error) {
	if len(d.b) == 0 {
		return 0, errors.Wrap(encoding.ErrInvalidEncoding, "unexpected end of statement")
	}
	c := d.b[0]
	d.b = d.b[1:]
	return c, nil
}

func (d *decoder) uvarint() (uint64, error) {
	n, sz := binary.Uvarint(d.b)
	if sz <= 0 {
		return 0, errors.Wrap(encoding.ErrInvalidEncoding, "invalid length")
	}
	d.b = d.b[sz:]
	return n, nil
}

func (d *decoder) row() (*row.Row, error) {
	n, err := d.uvarint()
	if err != nil {
		return nil, err
	}
	if uint64(len(d.b)) < n {
		return nil, errors.Wrap(encoding.ErrInvalidEncoding, "truncated row")
	}

	r, err := row.Decode(d.b[:n])
	if err != nil {
		return nil, err
	}
	d.b = d.b[n:]
	return r, nil
}

func decodeStatement(b []byte) (*replication.Statement, error) {
	d := decoder{b: b}
	var s replication.Statement
	var err error

	if s.QueryID, err = d.uint64(); err != nil {
		return nil, err
	}
	typ, err := d.byte()
	if err != nil {
		return nil, err
	}
	s.Type = replication.EventType(typ)

	if len(d.b) < 4 {
		return nil, errors.Wrap(encoding.ErrInvalidEncoding, "truncated table id")
	}
	s.TableID = binary.BigEndian.Uint32(d.b)
	d.b = d.b[4:]

	v, n, err := encoding.DecodeValue(d.b)
	if err != nil {
		return nil, err
	}
	name, ok := v.V().(string)
	if !ok {
		return nil, errors.Wrapf(encoding.ErrInvalidEncoding, "table name of type %s", v.Type())
	}
	s.Table = name
	d.b = d.b[n:]

	count, err := d.uvarint()
	if err != nil {
		return nil, err
	}

	for i := uint64(0); i < count; i++ {
		ev := replication.Event{TableID: s.TableID, Table: s.Table}
		typ, err := d.byte()
		if err != nil {
			return nil, err
		}
		ev.Type = replication.EventType(typ)

		flags, err := d.byte()
		if err != nil {
			return nil, err
		}
		if flags&hasBefore != 0 {
			if ev.Before, err = d.row(); err != nil {
				return nil, err
			}
		}
		if flags&hasAfter != 0 {
			if ev.After, err = d.row(); err != nil {
				return nil, err
			}
		}
		s.Events = append(s.Events, ev)
	}

	return &s, nil
}
