// Package session implements the shared-state synchronization engine for one
// open Mural document: the mutation API every writer funnels through, the
// capture side that turns interactive gestures into throttled preview writes
// plus unthrottled commits, and the application side that replays document
// changes into the rendering engine with echo suppression.
//
// A Session is single-writer by design. Each participant's process runs its
// own event loop; the only place true concurrent multi-writer merging happens
// is inside the replicated store, which the session treats as opaque.
package session

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dyluth/mural/internal/document"
	"github.com/dyluth/mural/pkg/board"
)

// Session is the synchronization engine for one open document in this
// process. It owns the session token used to tag outgoing transactions so
// that their echo (the store notifying us of our own write) is recognised
// and skipped.
//
// Session methods are not safe for concurrent use: the engine assumes the
// caller's single-threaded event loop, matching the cooperative scheduling
// model of an interactive canvas.
type Session struct {
	store    document.Store
	renderer Renderer

	// author is the free-form identifier stamped into LastModifiedBy on
	// every write made through this session.
	author string

	// token tags every outgoing transaction for echo suppression.
	token string

	log *slog.Logger
	now func() time.Time

	userCount int
	selection []string

	// applied mirrors what the renderer currently shows, keyed by object
	// ID. It is updated for every change set, including our own echoes, so
	// connector refresh and create-vs-update decisions have a consistent
	// local view.
	applied map[string]*board.Object

	// gesture is the active manipulation, if any (capture.go).
	gesture *gesture
}

// Option configures a Session.
type Option func(*Session)

// WithClock overrides the session's time source. Used by tests to drive the
// preview throttle deterministically.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithLogger overrides the session's logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Session) { s.log = log }
}

// New creates a session for one open document. The author string identifies
// this participant in authorship stamps; it is supplied by the caller and
// not interpreted.
func New(store document.Store, renderer Renderer, author string, opts ...Option) *Session {
	s := &Session{
		store:     store,
		renderer:  renderer,
		author:    author,
		token:     uuid.New().String(),
		log:       slog.Default(),
		now:       time.Now,
		userCount: 1,
		applied:   map[string]*board.Object{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Token returns the session's echo-suppression token.
func (s *Session) Token() string {
	return s.token
}

// SetUserCount records the number of connected participants, as reported by
// the presence layer. It feeds the preview throttle.
func (s *Session) SetUserCount(n int) {
	if n < 1 {
		n = 1
	}
	s.userCount = n
}

// SetSelection records the set of objects the local participant currently
// has selected.
func (s *Session) SetSelection(ids ...string) {
	s.selection = append([]string(nil), ids...)
}

// Selection returns the current selection.
func (s *Session) Selection() []string {
	return s.selection
}

func (s *Session) stamp(o *board.Object) {
	o.LastModifiedBy = s.author
	o.LastModifiedAt = s.now().UnixMilli()
}
