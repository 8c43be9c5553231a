package replication

import (
	"github.com/cockroachdb/errors"
	"github.com/maniacs-db/drizzle-sub000/internal/catalog"
	"github.com/maniacs-db/drizzle-sub000/internal/row"
)

// A Statement groups consecutive events of the same type
// on the same table.
type Statement struct {
	// Seq is assigned by the replicator.
	Seq     uint64
	QueryID uint64
	Type    EventType
	TableID uint32
	Table   string
	Events  []Event
}

// A Replicator receives the statements of the change log, in order.
type Replicator interface {
	Append(s *Statement) error
}

// Hook builds statements out of the mutations of a session
// and hands them to a replicator.
// A Hook is used by one session at a time.
type Hook struct {
	r       Replicator
	queryID uint64
	pending *Statement
}

// NewHook returns a hook writing to r. A nil replicator
// makes an inactive hook.
func NewHook(r Replicator) *Hook {
	return &Hook{r: r}
}

// Active returns true if mutations are replicated.
func (h *Hook) Active() bool {
	return h != nil && h.r != nil
}

// Begin sets the query id of the following events.
// Events of different queries never share a statement.
func (h *Hook) Begin(queryID uint64) error {
	if h.queryID == queryID {
		return nil
	}
	err := h.Finalize()
	h.queryID = queryID
	return err
}

// OnWrite is called after every successful mutation of a row.
// It returns the event appended to the pending statement,
// or nil if the mutation isn't replicated.
func (h *Hook) OnWrite(kind Kind, style ReplaceStyle, table *catalog.TableInfo, before, after *row.Row) (*Event, error) {
	if !h.Active() || table.Temporary {
		return nil, nil
	}

	typ, ok := Classify(kind, style, before, after)
	if !ok {
		return nil, nil
	}

	if h.pending != nil && (h.pending.Type != typ || h.pending.TableID != table.ID) {
		if err := h.Finalize(); err != nil {
			return nil, err
		}
	}

	if h.pending == nil {
		h.pending = &Statement{
			QueryID: h.queryID,
			Type:    typ,
			TableID: table.ID,
			Table:   table.Name,
		}
	}

	ev := Event{
		Type:    typ,
		TableID: table.ID,
		Table:   table.Name,
	}
	if typ != EventInsert {
		ev.Before = before.Clone()
	}
	if typ != EventDelete {
		ev.After = after.Clone()
	}
	h.pending.Events = append(h.pending.Events, ev)

	// a delete-then-insert REPLACE must never be merged
	// into the surrounding changes.
	if kind.IsReplace() && typ != EventUpdate {
		if err := h.Finalize(); err != nil {
			return nil, err
		}
	}

	return &ev, nil
}

// Finalize hands the pending statement to the replicator.
func (h *Hook) Finalize() error {
	if h.pending == nil {
		return nil
	}

	s := h.pending
	h.pending = nil

	if err := h.r.Append(s); err != nil {
		return errors.Wrapf(errors.Join(ErrLoggingFailed, err), "cannot log %s on table %q", s.Type, s.Table)
	}
	return nil
}

// Discard drops the pending statement.
func (h *Hook) Discard() {
	h.pending = nil
}
