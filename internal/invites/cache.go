package invites

import (
	"sync"

	"invitetrack/entity"
)

// CodeCache keeps the last observed invite snapshot per guild and code.
// It always lags the platform's true state; the attribution engine diffs
// fresh snapshots against it. Guilds are independent, one map each.
type CodeCache struct {
	mu     sync.RWMutex
	guilds map[string]map[string]entity.InviteSnapshot
}

func NewCodeCache() *CodeCache {
	return &CodeCache{guilds: make(map[string]map[string]entity.InviteSnapshot)}
}

// RefreshGuild replaces the guild's cached codes wholesale.
func (c *CodeCache) RefreshGuild(guildID string, snapshots []entity.InviteSnapshot) {
	codes := make(map[string]entity.InviteSnapshot, len(snapshots))
	for _, snap := range snapshots {
		codes[snap.Code] = snap
	}
	c.mu.Lock()
	c.guilds[guildID] = codes
	c.mu.Unlock()
}

// UpsertCode applies a single-code delta without a full refetch.
func (c *CodeCache) UpsertCode(guildID string, snap entity.InviteSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	codes, ok := c.guilds[guildID]
	if !ok {
		codes = make(map[string]entity.InviteSnapshot)
		c.guilds[guildID] = codes
	}
	codes[snap.Code] = snap
}

func (c *CodeCache) RemoveCode(guildID, code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if codes, ok := c.guilds[guildID]; ok {
		delete(codes, code)
	}
}

func (c *CodeCache) RemoveGuild(guildID string) {
	c.mu.Lock()
	delete(c.guilds, guildID)
	c.mu.Unlock()
}

// HasGuild reports whether the guild was ever seeded, even with zero codes.
func (c *CodeCache) HasGuild(guildID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.guilds[guildID]
	return ok
}

// Get returns a value copy of the guild's cached codes; empty map for an
// unknown guild. Callers must not treat the result as live.
func (c *CodeCache) Get(guildID string) map[string]entity.InviteSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	codes := c.guilds[guildID]
	out := make(map[string]entity.InviteSnapshot, len(codes))
	for code, snap := range codes {
		out[code] = snap
	}
	return out
}

// Uses returns the cached use count for one code.
func (c *CodeCache) Uses(guildID, code string) (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap, ok := c.guilds[guildID][code]
	if !ok {
		return 0, false
	}
	return snap.Uses, true
}
