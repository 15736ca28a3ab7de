// Package webhook is the intake for platform notifications: invite and
// guild lifecycle plus member join/leave/ban. One endpoint, typed payload,
// dispatched to the core by notification type.
package webhook

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"invitetrack/entity"
	"invitetrack/internal/invites"
	"invitetrack/lib/api/response"
	"invitetrack/lib/sl"
	"invitetrack/lib/validate"
)

const (
	TypeInviteCreate = "invite_create"
	TypeInviteDelete = "invite_delete"
	TypeGuildCreate  = "guild_create"
	TypeGuildDelete  = "guild_delete"
	TypeMemberJoin   = "member_join"
	TypeMemberLeave  = "member_leave"
	TypeMemberBan    = "member_ban"
)

type InvitePayload struct {
	Code      string    `json:"code" validate:"required"`
	Uses      int       `json:"uses" validate:"min=0"`
	InviterID string    `json:"inviter_id"`
	MaxUses   int       `json:"max_uses"`
	CreatedAt time.Time `json:"created_at"`
}

type MemberPayload struct {
	ID               string    `json:"id" validate:"required"`
	AccountCreatedAt time.Time `json:"account_created_at"`
	JoinedAt         time.Time `json:"joined_at"`
}

type Notification struct {
	Type    string         `json:"type" validate:"required,oneof=invite_create invite_delete guild_create guild_delete member_join member_leave member_ban"`
	GuildID string         `json:"guild_id" validate:"required"`
	Invite  *InvitePayload `json:"invite,omitempty"`
	Member  *MemberPayload `json:"member,omitempty"`
}

type Core interface {
	InviteCreated(ctx context.Context, snap entity.InviteSnapshot) error
	InviteDeleted(ctx context.Context, guildID, code string) error
	GuildCreated(ctx context.Context, guildID string) error
	GuildDeleted(ctx context.Context, guildID string) error
	MemberJoined(ctx context.Context, guildID, memberID string, accountCreatedAt, joinedAt time.Time) error
	MemberLeft(ctx context.Context, guildID, memberID string) error
	MemberBanned(ctx context.Context, guildID, userID string) error
}

func Event(logger *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.webhook")
		log := logger.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var n Notification
		if err := render.DecodeJSON(r.Body, &n); err != nil {
			log.Warn("malformed payload", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("Malformed payload"))
			return
		}
		if err := validate.Struct(n); err != nil {
			log.Warn("invalid payload", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("Invalid payload: "+err.Error()))
			return
		}

		log = log.With(slog.String("type", n.Type), sl.Guild(n.GuildID))

		err := dispatch(r.Context(), handler, n)
		if errors.Is(err, invites.ErrNotEnabled) {
			render.Status(r, http.StatusNotImplemented)
			render.JSON(w, r, response.Error("Invite tracking is not enabled"))
			return
		}
		if errors.Is(err, errMissingField) {
			log.Warn("invalid payload", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(err.Error()))
			return
		}
		if err != nil {
			// already routed to the error outcome by the manager
			log.Error("notification failed", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("Request failed"))
			return
		}
		render.JSON(w, r, response.Ok("accepted"))
	}
}

var errMissingField = errors.New("notification payload incomplete")

func dispatch(ctx context.Context, handler Core, n Notification) error {
	switch n.Type {
	case TypeInviteCreate:
		if n.Invite == nil {
			return errMissingField
		}
		return handler.InviteCreated(ctx, entity.InviteSnapshot{
			GuildID:   n.GuildID,
			Code:      n.Invite.Code,
			Uses:      n.Invite.Uses,
			InviterID: n.Invite.InviterID,
			MaxUses:   n.Invite.MaxUses,
			CreatedAt: n.Invite.CreatedAt,
		})
	case TypeInviteDelete:
		if n.Invite == nil {
			return errMissingField
		}
		return handler.InviteDeleted(ctx, n.GuildID, n.Invite.Code)
	case TypeGuildCreate:
		return handler.GuildCreated(ctx, n.GuildID)
	case TypeGuildDelete:
		return handler.GuildDeleted(ctx, n.GuildID)
	case TypeMemberJoin:
		if n.Member == nil {
			return errMissingField
		}
		return handler.MemberJoined(ctx, n.GuildID, n.Member.ID, n.Member.AccountCreatedAt, n.Member.JoinedAt)
	case TypeMemberLeave:
		if n.Member == nil {
			return errMissingField
		}
		return handler.MemberLeft(ctx, n.GuildID, n.Member.ID)
	case TypeMemberBan:
		if n.Member == nil {
			return errMissingField
		}
		return handler.MemberBanned(ctx, n.GuildID, n.Member.ID)
	}
	return errMissingField
}
