// Package bridge dispatches finalized invite outcomes to operator-bound
// script commands. The scripting language itself lives behind the
// Interpreter interface; the bridge only resolves the target channel and
// hands over the event payload.
package bridge

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"invitetrack/entity"
	"invitetrack/internal/events"
	"invitetrack/lib/sl"
)

// Command is one bound script. Channel is a literal channel reference, or,
// when prefixed with $, an expression the interpreter evaluates to one.
type Command struct {
	Name    string
	Channel string
	Code    string
}

// Interpreter runs a script with the given globals and returns its result
// as a string.
type Interpreter interface {
	Eval(ctx context.Context, script string, env map[string]interface{}) (string, error)
}

// Query is the attribution query surface handed to the bridge at
// construction. No shared globals: whoever builds the bridge injects it.
type Query interface {
	GetInviteeData(ctx context.Context, guildID, memberID string) (*entity.JoinRecord, error)
}

type Bridge struct {
	log   *slog.Logger
	itp   Interpreter
	query Query

	mu   sync.RWMutex
	cmds map[events.Kind][]Command
}

func New(itp Interpreter, query Query, log *slog.Logger) *Bridge {
	return &Bridge{
		log:   log.With(sl.Module("bridge")),
		itp:   itp,
		query: query,
		cmds:  make(map[events.Kind][]Command),
	}
}

// Bind attaches a command to an outcome kind. Commands run in bind order.
func (b *Bridge) Bind(kind events.Kind, cmd Command) {
	b.mu.Lock()
	b.cmds[kind] = append(b.cmds[kind], cmd)
	b.mu.Unlock()
}

// Attach subscribes the bridge to all three outcome kinds on the router.
func (b *Bridge) Attach(router *events.Router) {
	for _, kind := range []events.Kind{events.KindJoin, events.KindLeave, events.KindError} {
		router.Subscribe(kind, b.Dispatch)
	}
}

// Dispatch runs every command bound to the event's kind. A failing command
// is logged and does not stop later ones.
func (b *Bridge) Dispatch(evt events.Event) error {
	b.mu.RLock()
	cmds := make([]Command, len(b.cmds[evt.Kind]))
	copy(cmds, b.cmds[evt.Kind])
	b.mu.RUnlock()
	if len(cmds) == 0 {
		return nil
	}

	ctx := context.Background()
	env := b.buildEnv(ctx, evt)
	for _, cmd := range cmds {
		if err := b.run(ctx, cmd, env); err != nil {
			b.log.Warn("command failed",
				slog.String("command", cmd.Name),
				slog.String("kind", string(evt.Kind)),
				sl.Err(err),
			)
		}
	}
	return nil
}

func (b *Bridge) run(ctx context.Context, cmd Command, env map[string]interface{}) error {
	channel, err := b.resolveChannel(ctx, cmd, env)
	if err != nil {
		return err
	}
	scoped := make(map[string]interface{}, len(env)+1)
	for k, v := range env {
		scoped[k] = v
	}
	scoped["channel"] = channel
	_, err = b.itp.Eval(ctx, cmd.Code, scoped)
	return err
}

// resolveChannel evaluates Channel when it is a $-prefixed expression; a
// plain id or name is taken literally.
func (b *Bridge) resolveChannel(ctx context.Context, cmd Command, env map[string]interface{}) (string, error) {
	script, ok := strings.CutPrefix(cmd.Channel, "$")
	if !ok {
		return cmd.Channel, nil
	}
	return b.itp.Eval(ctx, script, env)
}

// buildEnv packs the outcome arguments, plus the member's stored invite
// data when available, into the eventInfo payload scripts receive.
func (b *Bridge) buildEnv(ctx context.Context, evt events.Event) map[string]interface{} {
	info := map[string]interface{}{
		"guild":   evt.GuildID,
		"member":  evt.MemberID,
		"inviter": evt.InviterID,
		"code":    evt.Code,
		"isFake":  evt.IsFake,
	}
	if evt.Err != nil {
		info["error"] = evt.Err.Error()
	}
	if b.query != nil && evt.Kind != events.KindError && evt.MemberID != "" {
		if rec, err := b.query.GetInviteeData(ctx, evt.GuildID, evt.MemberID); err == nil && rec != nil {
			info["invitee"] = map[string]interface{}{
				"inviter": rec.InviterID,
				"code":    rec.Code,
				"fake":    rec.IsFake,
				"join":    rec.JoinedAt.Unix(),
			}
		}
	}
	return map[string]interface{}{"eventInfo": info}
}
