package entity

// InviteStats is one real/fake/leave/total tally. Total counts real plus
// fake joins; leave is an independent lifetime counter and never subtracts
// from total.
type InviteStats struct {
	Fake  int `bson:"fake" json:"fake"`
	Total int `bson:"total" json:"total"`
	Real  int `bson:"real" json:"real"`
	Leave int `bson:"leave" json:"leave"`
}

// InviterCounters holds the durable per-inviter tallies for one guild:
// a stats block per owned code plus the aggregate across all codes.
// Totals must always equal the sum of PerCode.
type InviterCounters struct {
	GuildID   string                  `bson:"guild_id" json:"guild_id"`
	InviterID string                  `bson:"inviter_id" json:"inviter_id"`
	Codes     []string                `bson:"codes" json:"codes"`
	PerCode   map[string]*InviteStats `bson:"per_code" json:"per_code"`
	Totals    InviteStats             `bson:"totals" json:"totals"`
}

// Key builds the storage key for an inviter's counters.
func (c *InviterCounters) Key() string {
	return c.GuildID + ":" + c.InviterID
}

// Stats returns the stats block for code, creating it (and registering the
// code) on first use.
func (c *InviterCounters) Stats(code string) *InviteStats {
	if c.PerCode == nil {
		c.PerCode = make(map[string]*InviteStats)
	}
	stats, ok := c.PerCode[code]
	if !ok {
		stats = &InviteStats{}
		c.PerCode[code] = stats
		c.Codes = append(c.Codes, code)
	}
	return stats
}
