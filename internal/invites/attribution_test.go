package invites

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invitetrack/entity"
)

type mockGateway struct {
	guilds  []string
	invites map[string][]entity.InviteSnapshot
	err     error
	fetches int
}

func (m *mockGateway) FetchGuilds(_ context.Context) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.guilds, nil
}

func (m *mockGateway) FetchGuildInvites(_ context.Context, guildID string) ([]entity.InviteSnapshot, error) {
	m.fetches++
	if m.err != nil {
		return nil, m.err
	}
	return m.invites[guildID], nil
}

func newTestEngine(gw *mockGateway) *AttributionEngine {
	return NewAttributionEngine(NewCodeCache(), gw, true, time.Second)
}

func TestAttribute_SingleIncrease(t *testing.T) {
	gw := &mockGateway{invites: map[string][]entity.InviteSnapshot{
		"g1": {snap("g1", "ABC", 5, "u1")},
	}}
	engine := newTestEngine(gw)
	engine.Seed("g1", []entity.InviteSnapshot{snap("g1", "ABC", 4, "u1")})

	result, err := engine.Attribute(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, "ABC", result.Code)
	assert.Equal(t, "u1", result.InviterID)

	// cache advanced to the fetched count
	uses, _ := engine.cache.Uses("g1", "ABC")
	assert.Equal(t, 5, uses)
}

func TestAttribute_NoIncrease(t *testing.T) {
	gw := &mockGateway{invites: map[string][]entity.InviteSnapshot{
		"g1": {snap("g1", "ABC", 5, "u1")},
	}}
	engine := newTestEngine(gw)
	engine.Seed("g1", []entity.InviteSnapshot{snap("g1", "ABC", 5, "u1")})

	result, err := engine.Attribute(context.Background(), "g1")
	require.NoError(t, err)
	assert.False(t, result.Attributed())
}

func TestAttribute_NoDoubleAttribution(t *testing.T) {
	gw := &mockGateway{invites: map[string][]entity.InviteSnapshot{
		"g1": {snap("g1", "ABC", 6, "u1")},
	}}
	engine := newTestEngine(gw)
	engine.Seed("g1", []entity.InviteSnapshot{snap("g1", "ABC", 5, "u1")})

	first, err := engine.Attribute(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, "ABC", first.Code)

	// same snapshot again: the increase was already consumed
	second, err := engine.Attribute(context.Background(), "g1")
	require.NoError(t, err)
	assert.False(t, second.Attributed())
}

func TestAttribute_MultipleIncreases(t *testing.T) {
	gw := &mockGateway{invites: map[string][]entity.InviteSnapshot{
		"g1": {
			snap("g1", "ABC", 8, "u1"), // +3
			snap("g1", "DEF", 6, "u2"), // +1
		},
	}}
	engine := newTestEngine(gw)
	engine.Seed("g1", []entity.InviteSnapshot{
		snap("g1", "ABC", 5, "u1"),
		snap("g1", "DEF", 5, "u2"),
	})

	// largest backlog first, one unit per join
	first, err := engine.Attribute(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, "ABC", first.Code)

	second, err := engine.Attribute(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, "ABC", second.Code)

	// ABC down to +1, tied with DEF: four increases total, four joins consume all
	third, err := engine.Attribute(context.Background(), "g1")
	require.NoError(t, err)
	assert.True(t, third.Attributed())
	fourth, err := engine.Attribute(context.Background(), "g1")
	require.NoError(t, err)
	assert.True(t, fourth.Attributed())

	fifth, err := engine.Attribute(context.Background(), "g1")
	require.NoError(t, err)
	assert.False(t, fifth.Attributed())
}

func TestAttribute_CodeDeletedAfterUse(t *testing.T) {
	gw := &mockGateway{invites: map[string][]entity.InviteSnapshot{"g1": {}}}
	engine := newTestEngine(gw)
	engine.Seed("g1", []entity.InviteSnapshot{snap("g1", "ABC", 5, "u1")})

	// upsert notification carries the use, then the code is deleted
	engine.NoteUpsert("g1", snap("g1", "ABC", 6, "u1"))
	engine.NoteDelete("g1", "ABC")

	result, err := engine.Attribute(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, "ABC", result.Code)
	assert.Equal(t, "u1", result.InviterID)
}

func TestAttribute_UnseededGuildSeedsWithoutAttributing(t *testing.T) {
	gw := &mockGateway{invites: map[string][]entity.InviteSnapshot{
		"g1": {snap("g1", "ABC", 42, "u1")},
	}}
	engine := newTestEngine(gw)

	// historical use counts of a never-seeded guild are not joins
	result, err := engine.Attribute(context.Background(), "g1")
	require.NoError(t, err)
	assert.False(t, result.Attributed())

	uses, ok := engine.cache.Uses("g1", "ABC")
	assert.True(t, ok)
	assert.Equal(t, 42, uses)
}

func TestAttribute_FetchError(t *testing.T) {
	gw := &mockGateway{err: errors.New("gateway down")}
	engine := newTestEngine(gw)
	engine.Seed("g1", []entity.InviteSnapshot{snap("g1", "ABC", 5, "u1")})

	_, err := engine.Attribute(context.Background(), "g1")
	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, "g1", fetchErr.GuildID)
}

func TestAttribute_DeltaOnlyMode(t *testing.T) {
	gw := &mockGateway{}
	engine := NewAttributionEngine(NewCodeCache(), gw, false, time.Second)
	engine.Seed("g1", []entity.InviteSnapshot{snap("g1", "ABC", 5, "u1")})

	// no upsert seen: unknown, and no fetch issued
	result, err := engine.Attribute(context.Background(), "g1")
	require.NoError(t, err)
	assert.False(t, result.Attributed())
	assert.Zero(t, gw.fetches)

	engine.NoteUpsert("g1", snap("g1", "ABC", 6, "u1"))
	result, err = engine.Attribute(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, "ABC", result.Code)
	assert.Zero(t, gw.fetches)
}

func TestDropGuild_ClearsPending(t *testing.T) {
	gw := &mockGateway{}
	engine := NewAttributionEngine(NewCodeCache(), gw, false, time.Second)
	engine.Seed("g1", []entity.InviteSnapshot{snap("g1", "ABC", 5, "u1")})
	engine.NoteUpsert("g1", snap("g1", "ABC", 6, "u1"))

	engine.DropGuild("g1")

	result, err := engine.Attribute(context.Background(), "g1")
	require.NoError(t, err)
	assert.False(t, result.Attributed())
}

func TestRestage_ReturnsConsumedUnit(t *testing.T) {
	gw := &mockGateway{invites: map[string][]entity.InviteSnapshot{
		"g1": {snap("g1", "ABC", 5, "u1")},
	}}
	engine := newTestEngine(gw)
	engine.Seed("g1", gw.invites["g1"])
	gw.invites["g1"] = []entity.InviteSnapshot{snap("g1", "ABC", 6, "u1")}

	result, err := engine.Attribute(context.Background(), "g1")
	require.NoError(t, err)
	require.True(t, result.Attributed())

	engine.Restage("g1", result)

	// the refetch shows no further increase; the restaged unit carries it
	retried, err := engine.Attribute(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, result, retried)

	// and the ledger is drained again
	drained, err := engine.Attribute(context.Background(), "g1")
	require.NoError(t, err)
	assert.False(t, drained.Attributed())
}

func TestRestage_UnattributedResultIsNoOp(t *testing.T) {
	gw := &mockGateway{invites: map[string][]entity.InviteSnapshot{
		"g1": {snap("g1", "ABC", 5, "u1")},
	}}
	engine := newTestEngine(gw)
	engine.Seed("g1", gw.invites["g1"])

	engine.Restage("g1", Result{})

	result, err := engine.Attribute(context.Background(), "g1")
	require.NoError(t, err)
	assert.False(t, result.Attributed())
}
