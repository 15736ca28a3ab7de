package entity

import "time"

// InviteSnapshot is a point-in-time view of one invite code as reported by
// the platform gateway. Snapshots are ephemeral: the cache layer keeps the
// last observed copy per guild and the attribution engine diffs fresh
// snapshots against it.
type InviteSnapshot struct {
	GuildID   string    `bson:"guild_id" json:"guild_id"`
	Code      string    `bson:"code" json:"code"`
	Uses      int       `bson:"uses" json:"uses"`
	InviterID string    `bson:"inviter_id" json:"inviter_id"`
	MaxUses   int       `bson:"max_uses" json:"max_uses"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
