// Package replication turns the physical mutations of a statement
// into the logical changes appended to a change log.
package replication

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/maniacs-db/drizzle-sub000/internal/row"
)

// ErrLoggingFailed is returned when the replicator refused a statement.
var ErrLoggingFailed = errors.New("row logging failed")

// Kind of the SQL statement that caused a mutation.
type Kind uint8

const (
	KindOther Kind = iota
	KindInsert
	KindInsertSelect
	KindLoad
	KindCreateTableSelect
	KindReplace
	KindReplaceSelect
	KindUpdate
	KindDelete
)

var kindNames = [...]string{
	KindOther:             "OTHER",
	KindInsert:            "INSERT",
	KindInsertSelect:      "INSERT SELECT",
	KindLoad:              "LOAD",
	KindCreateTableSelect: "CREATE TABLE SELECT",
	KindReplace:           "REPLACE",
	KindReplaceSelect:     "REPLACE SELECT",
	KindUpdate:            "UPDATE",
	KindDelete:            "DELETE",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// IsReplace returns true for REPLACE statements.
func (k Kind) IsReplace() bool {
	return k == KindReplace || k == KindReplaceSelect
}

// ReplaceStyle tells how an engine executes REPLACE on a conflicting row.
type ReplaceStyle uint8

const (
	// ReplaceInferred derives the change from the row images.
	ReplaceInferred ReplaceStyle = iota
	// ReplaceCollapsed engines update the conflicting row in place.
	ReplaceCollapsed
	// ReplaceDeleteThenInsert engines delete the conflicting row,
	// then insert the new one.
	ReplaceDeleteThenInsert
)

func (s ReplaceStyle) String() string {
	switch s {
	case ReplaceCollapsed:
		return "collapsed"
	case ReplaceDeleteThenInsert:
		return "delete-then-insert"
	}
	return "inferred"
}

// EventType is the logical change of a row.
type EventType uint8

const (
	EventInsert EventType = iota + 1
	EventUpdate
	EventDelete
)

func (t EventType) String() string {
	switch t {
	case EventInsert:
		return "INSERT"
	case EventUpdate:
		return "UPDATE"
	case EventDelete:
		return "DELETE"
	}
	return fmt.Sprintf("EventType(%d)", t)
}

// An Event is the logical change of one row.
// Insert events only have an After image, delete events only
// a Before image.
type Event struct {
	Type    EventType
	TableID uint32
	Table   string
	Before  *row.Row
	After   *row.Row
}

func (e *Event) String() string {
	switch e.Type {
	case EventInsert:
		return fmt.Sprintf("INSERT %s %s", e.Table, e.After)
	case EventUpdate:
		return fmt.Sprintf("UPDATE %s %s -> %s", e.Table, e.Before, e.After)
	}
	return fmt.Sprintf("DELETE %s %s", e.Table, e.Before)
}

// Classify returns the logical change caused by a mutation
// of a statement of the given kind, and false if the mutation
// must not be logged.
// It panics if the images can't be produced by an engine
// of the given replace style.
func Classify(kind Kind, style ReplaceStyle, before, after *row.Row) (EventType, bool) {
	switch kind {
	case KindInsert, KindInsertSelect, KindLoad, KindCreateTableSelect:
		switch {
		case before == nil && after != nil:
			return EventInsert, true
		case before != nil && after != nil:
			// ON DUPLICATE KEY UPDATE
			return EventUpdate, true
		}
	case KindReplace, KindReplaceSelect:
		switch {
		case before == nil && after != nil:
			return EventInsert, true
		case before != nil && after != nil:
			if style == ReplaceDeleteThenInsert {
				panic(errors.AssertionFailedf("%s: update of a row by a delete-then-insert engine", kind))
			}
			return EventUpdate, true
		case before != nil && after == nil:
			if style == ReplaceCollapsed {
				panic(errors.AssertionFailedf("%s: delete of a row by a collapsing engine", kind))
			}
			return EventDelete, true
		}
	case KindUpdate:
		if before != nil && after != nil {
			return EventUpdate, true
		}
	case KindDelete:
		if before != nil && after == nil {
			return EventDelete, true
		}
	}

	return 0, false
}
