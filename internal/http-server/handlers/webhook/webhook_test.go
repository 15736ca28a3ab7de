package webhook

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invitetrack/entity"
	"invitetrack/internal/invites"
)

type call struct {
	name string
	args []interface{}
}

type mockCore struct {
	calls []call
	err   error
}

func (m *mockCore) record(name string, args ...interface{}) error {
	m.calls = append(m.calls, call{name: name, args: args})
	return m.err
}

func (m *mockCore) InviteCreated(_ context.Context, snap entity.InviteSnapshot) error {
	return m.record("InviteCreated", snap)
}
func (m *mockCore) InviteDeleted(_ context.Context, guildID, code string) error {
	return m.record("InviteDeleted", guildID, code)
}
func (m *mockCore) GuildCreated(_ context.Context, guildID string) error {
	return m.record("GuildCreated", guildID)
}
func (m *mockCore) GuildDeleted(_ context.Context, guildID string) error {
	return m.record("GuildDeleted", guildID)
}
func (m *mockCore) MemberJoined(_ context.Context, guildID, memberID string, accountCreatedAt, joinedAt time.Time) error {
	return m.record("MemberJoined", guildID, memberID, accountCreatedAt, joinedAt)
}
func (m *mockCore) MemberLeft(_ context.Context, guildID, memberID string) error {
	return m.record("MemberLeft", guildID, memberID)
}
func (m *mockCore) MemberBanned(_ context.Context, guildID, userID string) error {
	return m.record("MemberBanned", guildID, userID)
}

func post(t *testing.T, core Core, body string) *httptest.ResponseRecorder {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	req := httptest.NewRequest(http.MethodPost, "/webhook/platform", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	Event(log, core)(rr, req)
	return rr
}

func TestEvent_InviteCreate(t *testing.T) {
	core := &mockCore{}
	rr := post(t, core, `{
		"type": "invite_create",
		"guild_id": "g1",
		"invite": {"code": "ABC", "uses": 3, "inviter_id": "u1", "max_uses": 10}
	}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, core.calls, 1)
	assert.Equal(t, "InviteCreated", core.calls[0].name)

	snap := core.calls[0].args[0].(entity.InviteSnapshot)
	assert.Equal(t, "g1", snap.GuildID)
	assert.Equal(t, "ABC", snap.Code)
	assert.Equal(t, 3, snap.Uses)
	assert.Equal(t, "u1", snap.InviterID)
}

func TestEvent_MemberJoin(t *testing.T) {
	core := &mockCore{}
	rr := post(t, core, `{
		"type": "member_join",
		"guild_id": "g1",
		"member": {"id": "m1", "account_created_at": "2025-08-20T00:00:00Z", "joined_at": "2025-09-01T00:00:00Z"}
	}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, core.calls, 1)
	assert.Equal(t, "MemberJoined", core.calls[0].name)
	assert.Equal(t, "m1", core.calls[0].args[1])
}

func TestEvent_MemberLeaveAndBan(t *testing.T) {
	core := &mockCore{}
	rr := post(t, core, `{"type": "member_leave", "guild_id": "g1", "member": {"id": "m1"}}`)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = post(t, core, `{"type": "member_ban", "guild_id": "g1", "member": {"id": "m1"}}`)
	require.Equal(t, http.StatusOK, rr.Code)

	require.Len(t, core.calls, 2)
	assert.Equal(t, "MemberLeft", core.calls[0].name)
	assert.Equal(t, "MemberBanned", core.calls[1].name)
}

func TestEvent_GuildLifecycle(t *testing.T) {
	core := &mockCore{}
	post(t, core, `{"type": "guild_create", "guild_id": "g1"}`)
	post(t, core, `{"type": "guild_delete", "guild_id": "g1"}`)
	require.Len(t, core.calls, 2)
	assert.Equal(t, "GuildCreated", core.calls[0].name)
	assert.Equal(t, "GuildDeleted", core.calls[1].name)
}

func TestEvent_BadPayloads(t *testing.T) {
	core := &mockCore{}

	// not json at all
	rr := post(t, core, `{{{`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	// unknown type fails validation
	rr = post(t, core, `{"type": "member_promote", "guild_id": "g1"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	// missing guild id
	rr = post(t, core, `{"type": "guild_create"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	// member event without member block
	rr = post(t, core, `{"type": "member_join", "guild_id": "g1"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	assert.Empty(t, core.calls)
}

func TestEvent_NotEnabled(t *testing.T) {
	core := &mockCore{err: invites.ErrNotEnabled}
	rr := post(t, core, `{"type": "guild_create", "guild_id": "g1"}`)
	assert.Equal(t, http.StatusNotImplemented, rr.Code)
}
