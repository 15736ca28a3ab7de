package invitee

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"invitetrack/entity"
	"invitetrack/internal/invites"
	"invitetrack/lib/api/response"
	"invitetrack/lib/sl"
)

type Core interface {
	InviteeData(ctx context.Context, guildID, memberID string) (*entity.JoinRecord, error)
}

// Get answers "who invited this member". The option query parameter picks a
// single field or the whole record. A missing record (404) and a deployment
// without invite tracking (501) are distinct payloads.
func Get(logger *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.invitee")
		guildID := chi.URLParam(r, "guildID")
		memberID := chi.URLParam(r, "memberID")
		option := r.URL.Query().Get("option")
		if option == "" {
			option = "all"
		}

		log := logger.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
			sl.Guild(guildID),
			sl.Member(memberID),
		)

		switch option {
		case "all", "inviter", "code", "fake", "join":
		default:
			log.Warn("invalid option", slog.String("option", option))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("Invalid option: "+option))
			return
		}

		rec, err := handler.InviteeData(r.Context(), guildID, memberID)
		if errors.Is(err, invites.ErrNotEnabled) {
			render.Status(r, http.StatusNotImplemented)
			render.JSON(w, r, response.Error("Invite tracking is not enabled"))
			return
		}
		if err != nil {
			log.Error("invitee lookup", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("Request failed"))
			return
		}
		if rec == nil {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("No invite data for this member"))
			return
		}

		var data interface{}
		switch option {
		case "inviter":
			data = rec.InviterID
		case "code":
			data = rec.Code
		case "fake":
			data = rec.IsFake
		case "join":
			data = rec.JoinedAt
		default:
			data = rec
		}
		render.JSON(w, r, response.Ok(data))
	}
}
