package entity

import "time"

// JoinRecord is the durable record of a member's most recent attributed join.
// Keyed by (guild, member); a rejoin overwrites the previous record, so the
// counter store reverses the old contribution before applying the new one.
type JoinRecord struct {
	GuildID   string    `bson:"guild_id" json:"guild_id"`
	MemberID  string    `bson:"member_id" json:"member_id"`
	InviterID string    `bson:"inviter_id" json:"inviter_id"`
	Code      string    `bson:"code" json:"code"`
	IsFake    bool      `bson:"is_fake" json:"is_fake"`
	JoinedAt  time.Time `bson:"joined_at" json:"joined_at"`
}

// Key builds the storage key for a join record.
func (r *JoinRecord) Key() string {
	return r.GuildID + ":" + r.MemberID
}
