// Package events routes the three invite outcomes (join, leave, error) to
// dynamically registered handlers. Handlers for one kind run in registration
// order; a failing or panicking handler is logged and never blocks the rest.
package events

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"invitetrack/lib/sl"
)

type Kind string

const (
	KindJoin  Kind = "inviteJoin"
	KindLeave Kind = "inviteLeave"
	KindError Kind = "inviteError"
)

// Event is one delivered outcome. Join and Leave events carry Member data;
// error events carry Err.
type Event struct {
	ID        string
	Kind      Kind
	Timestamp time.Time

	GuildID   string
	MemberID  string
	InviterID string
	Code      string
	IsFake    bool

	Err error
}

type Handler func(evt Event) error

type subscription struct {
	id      string
	handler Handler
}

type Router struct {
	log *slog.Logger
	mu  sync.RWMutex
	// per kind, in registration order
	handlers map[Kind][]subscription
}

func NewRouter(log *slog.Logger) *Router {
	return &Router{
		log:      log.With(sl.Module("events")),
		handlers: make(map[Kind][]subscription),
	}
}

// Subscribe registers a handler for the given kind and returns a
// subscription id usable with Unsubscribe.
func (r *Router) Subscribe(kind Kind, handler Handler) string {
	id := uuid.NewString()
	r.mu.Lock()
	r.handlers[kind] = append(r.handlers[kind], subscription{id: id, handler: handler})
	r.mu.Unlock()
	return id
}

func (r *Router) Unsubscribe(kind Kind, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	subs := r.handlers[kind]
	for i, s := range subs {
		if s.id == id {
			r.handlers[kind] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

func (r *Router) EmitJoin(guildID, memberID, inviterID, code string, isFake bool) {
	r.emit(Event{
		Kind:      KindJoin,
		GuildID:   guildID,
		MemberID:  memberID,
		InviterID: inviterID,
		Code:      code,
		IsFake:    isFake,
	})
}

func (r *Router) EmitLeave(guildID, memberID, inviterID, code string) {
	r.emit(Event{
		Kind:      KindLeave,
		GuildID:   guildID,
		MemberID:  memberID,
		InviterID: inviterID,
		Code:      code,
	})
}

func (r *Router) EmitError(err error) {
	r.emit(Event{Kind: KindError, Err: err})
}

func (r *Router) emit(evt Event) {
	evt.ID = uuid.NewString()
	evt.Timestamp = time.Now()

	r.mu.RLock()
	subs := make([]subscription, len(r.handlers[evt.Kind]))
	copy(subs, r.handlers[evt.Kind])
	r.mu.RUnlock()

	for _, s := range subs {
		r.deliver(s, evt)
	}
}

func (r *Router) deliver(s subscription, evt Event) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("handler panic",
				slog.String("kind", string(evt.Kind)),
				slog.Any("panic", rec),
			)
		}
	}()
	if err := s.handler(evt); err != nil {
		r.log.Warn("handler failed",
			slog.String("kind", string(evt.Kind)),
			slog.String("event_id", evt.ID),
			sl.Err(err),
		)
	}
}
