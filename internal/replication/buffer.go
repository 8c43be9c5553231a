package replication

import "sync"

// Buffer is a Replicator keeping statements in memory.
type Buffer struct {
	mu         sync.Mutex
	statements []*Statement
}

func (b *Buffer) Append(s *Statement) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	s.Seq = uint64(len(b.statements)) + 1
	b.statements = append(b.statements, s)
	return nil
}

// Statements returns the statements appended so far.
func (b *Buffer) Statements() []*Statement {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]*Statement(nil), b.statements...)
}

// Events returns the events of every statement, in order.
func (b *Buffer) Events() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	var events []Event
	for _, s := range b.statements {
		events = append(events, s.Events...)
	}
	return events
}

func (b *Buffer) Reset() {
	b.mu.Lock()
	b.statements = nil
	b.mu.Unlock()
}
