// Package session holds the statement scoped state shared by the cursors
// of a connection.
package session

import (
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/maniacs-db/drizzle-sub000/internal/autoinc"
	"github.com/maniacs-db/drizzle-sub000/internal/catalog"
	"github.com/maniacs-db/drizzle-sub000/internal/replication"
	"github.com/maniacs-db/drizzle-sub000/internal/row"
)

// MaxAutoIncrementIncrement is the largest increment and offset allowed.
const MaxAutoIncrementIncrement = 65535

// Variables of a session.
type Variables struct {
	AutoIncrementIncrement uint64
	AutoIncrementOffset    uint64
	// StrictMode turns data truncation warnings into errors.
	StrictMode bool
}

// DefaultVariables returns the variables of a new session.
func DefaultVariables() Variables {
	return Variables{
		AutoIncrementIncrement: 1,
		AutoIncrementOffset:    1,
	}
}

// normalize clamps the variables to their valid range.
// An offset greater than the increment is ignored.
func (v Variables) normalize() Variables {
	v.AutoIncrementIncrement = max(1, min(v.AutoIncrementIncrement, MaxAutoIncrementIncrement))
	v.AutoIncrementOffset = max(1, min(v.AutoIncrementOffset, MaxAutoIncrementIncrement))
	if v.AutoIncrementOffset > v.AutoIncrementIncrement {
		v.AutoIncrementOffset = 1
	}
	return v
}

// QueryIDCounter allocates query ids. It is shared by the sessions
// of a server and safe for concurrent use.
type QueryIDCounter struct {
	n atomic.Uint64
}

// Next returns a new query id. Ids start at 1.
func (c *QueryIDCounter) Next() uint64 {
	return c.n.Add(1)
}

// A StatementResource holds state that must be released at the end
// of every statement.
type StatementResource interface {
	EndStatement() error
}

// Options of a session.
type Options struct {
	Vars Variables
	// QueryIDs defaults to a counter private to the session.
	QueryIDs *QueryIDCounter
	// Replicator receives the changes of the session.
	// Nil disables replication.
	Replicator replication.Replicator
	// Logger defaults to pebble.DefaultLogger.
	Logger pebble.Logger
}

// Session is the state of one connection.
// It is not safe for concurrent use.
type Session struct {
	vars   Variables
	ids    *QueryIDCounter
	hook   *replication.Hook
	logger pebble.Logger

	queryID     uint64
	kind        replication.Kind
	style       replication.ReplaceStyle
	inStatement bool

	resources []StatementResource
	warnings  []error
	forced    []autoinc.Interval

	firstInsertID uint64
	lastInsertID  uint64
}

// New creates a session.
func New(opts Options) *Session {
	s := Session{
		ids:    opts.QueryIDs,
		hook:   replication.NewHook(opts.Replicator),
		logger: opts.Logger,
	}
	if s.ids == nil {
		s.ids = new(QueryIDCounter)
	}
	if s.logger == nil {
		s.logger = pebble.DefaultLogger
	}
	if opts.Vars == (Variables{}) {
		opts.Vars = DefaultVariables()
	}
	s.SetVariables(opts.Vars)

	return &s
}

// Variables returns the normalized variables of the session.
func (s *Session) Variables() Variables {
	return s.vars
}

func (s *Session) SetVariables(v Variables) {
	s.vars = v.normalize()
}

func (s *Session) Logger() pebble.Logger {
	return s.logger
}

// BeginStatement starts a statement of the given kind and returns its query id.
func (s *Session) BeginStatement(kind replication.Kind, style replication.ReplaceStyle) (uint64, error) {
	if s.inStatement {
		panic(errors.AssertionFailedf("statement %d (%s) is still running", s.queryID, s.kind))
	}

	s.queryID = s.ids.Next()
	s.kind = kind
	s.style = style
	s.inStatement = true
	s.warnings = nil
	s.firstInsertID = 0

	return s.queryID, s.hook.Begin(s.queryID)
}

// EndStatement releases the statement state of every attached resource
// and sends the changes of the statement to the replicator.
func (s *Session) EndStatement() error {
	err := s.release()
	err = errors.CombineErrors(err, s.hook.Finalize())
	return err
}

// AbortStatement releases the statement state and drops the changes
// not yet sent to the replicator.
func (s *Session) AbortStatement() error {
	s.hook.Discard()
	return s.release()
}

func (s *Session) release() error {
	var err error
	for _, r := range s.resources {
		err = errors.CombineErrors(err, r.EndStatement())
	}

	if s.firstInsertID != 0 {
		s.lastInsertID = s.firstInsertID
	}
	s.forced = nil
	s.kind = replication.KindOther
	s.style = replication.ReplaceInferred
	s.inStatement = false
	return err
}

// InStatement returns true between BeginStatement and EndStatement.
func (s *Session) InStatement() bool {
	return s.inStatement
}

// Statement returns the kind of the running statement.
func (s *Session) Statement() (replication.Kind, replication.ReplaceStyle) {
	return s.kind, s.style
}

// QueryID returns the id of the last statement.
func (s *Session) QueryID() uint64 {
	return s.queryID
}

// Attach registers a resource released at the end of every statement.
func (s *Session) Attach(r StatementResource) {
	s.resources = append(s.resources, r)
}

// Detach unregisters a resource.
func (s *Session) Detach(r StatementResource) {
	for i := range s.resources {
		if s.resources[i] == r {
			s.resources = append(s.resources[:i], s.resources[i+1:]...)
			return
		}
	}
}

// Replicate hands a successful mutation of table to the replication hook.
func (s *Session) Replicate(table *catalog.TableInfo, before, after *row.Row) (*replication.Event, error) {
	return s.hook.OnWrite(s.kind, s.style, table, before, after)
}

// Warn records a warning of the running statement.
func (s *Session) Warn(err error) {
	s.warnings = append(s.warnings, err)
	s.logger.Infof("query %d: warning: %v", s.queryID, err)
}

// Warnings returns the warnings of the last statement.
func (s *Session) Warnings() []error {
	return s.warnings
}

// RecordInsertID records a value generated for an inserted row.
// Only the first one of a statement is kept.
func (s *Session) RecordInsertID(v uint64) {
	if s.firstInsertID == 0 {
		s.firstInsertID = v
	}
}

// FirstInsertID returns the first value generated by the running statement.
func (s *Session) FirstInsertID() uint64 {
	return s.firstInsertID
}

// LastInsertID returns the first value generated by the last
// statement that generated values.
func (s *Session) LastInsertID() uint64 {
	return s.lastInsertID
}

// SetForcedIntervals makes the next statement generate its auto increment
// values from the given intervals, before asking the engines.
// Used to replay a logged statement.
func (s *Session) SetForcedIntervals(intervals ...autoinc.Interval) {
	s.forced = append(s.forced[:0], intervals...)
}

// TakeForcedIntervals returns the forced intervals and forgets them.
func (s *Session) TakeForcedIntervals() []autoinc.Interval {
	f := s.forced
	s.forced = nil
	return f
}
