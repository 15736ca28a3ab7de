package core

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"time"

	"invitetrack/entity"
	"invitetrack/internal/invites"
	"invitetrack/lib/sl"
)

// Core is the facade the HTTP layer talks to. The invite manager is
// optional: a deployment without it still serves the API, answering every
// attribution call with invites.ErrNotEnabled.
type Core struct {
	mgr      *invites.Manager
	apiToken string
	log      *slog.Logger
}

func New(apiToken string, log *slog.Logger) *Core {
	return &Core{
		apiToken: apiToken,
		log:      log.With(sl.Module("core")),
	}
}

func (c *Core) SetInviteManager(mgr *invites.Manager) {
	c.mgr = mgr
}

// CheckToken authenticates API requests against the configured token.
func (c *Core) CheckToken(token string) error {
	if c.apiToken == "" {
		return fmt.Errorf("api token not configured")
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(c.apiToken)) != 1 {
		return fmt.Errorf("invalid token")
	}
	return nil
}

func (c *Core) InviteeData(ctx context.Context, guildID, memberID string) (*entity.JoinRecord, error) {
	if c.mgr == nil {
		return nil, invites.ErrNotEnabled
	}
	return c.mgr.GetInviteeData(ctx, guildID, memberID)
}

func (c *Core) InviteCreated(_ context.Context, snap entity.InviteSnapshot) error {
	if c.mgr == nil {
		return invites.ErrNotEnabled
	}
	c.mgr.HandleInviteCreate(snap.GuildID, snap)
	return nil
}

func (c *Core) InviteDeleted(_ context.Context, guildID, code string) error {
	if c.mgr == nil {
		return invites.ErrNotEnabled
	}
	c.mgr.HandleInviteDelete(guildID, code)
	return nil
}

func (c *Core) GuildCreated(ctx context.Context, guildID string) error {
	if c.mgr == nil {
		return invites.ErrNotEnabled
	}
	c.mgr.HandleGuildCreate(ctx, guildID)
	return nil
}

func (c *Core) GuildDeleted(_ context.Context, guildID string) error {
	if c.mgr == nil {
		return invites.ErrNotEnabled
	}
	c.mgr.HandleGuildDelete(guildID)
	return nil
}

func (c *Core) MemberJoined(ctx context.Context, guildID, memberID string, accountCreatedAt, joinedAt time.Time) error {
	if c.mgr == nil {
		return invites.ErrNotEnabled
	}
	return c.mgr.HandleMemberJoin(ctx, guildID, memberID, accountCreatedAt, joinedAt)
}

func (c *Core) MemberLeft(ctx context.Context, guildID, memberID string) error {
	if c.mgr == nil {
		return invites.ErrNotEnabled
	}
	return c.mgr.HandleMemberLeave(ctx, guildID, memberID)
}

func (c *Core) MemberBanned(ctx context.Context, guildID, userID string) error {
	if c.mgr == nil {
		return invites.ErrNotEnabled
	}
	return c.mgr.HandleMemberBan(ctx, guildID, userID)
}
