package invites

import "time"

// DefaultFakeThreshold is the account age below which a join counts as fake.
const DefaultFakeThreshold = 14 * 24 * time.Hour

// IsFake reports whether a join is low-trust: the joining account was
// younger than threshold at join time. Zero or reversed timestamps fail
// open (non-fake) so clock skew never penalizes a legitimate member.
func IsFake(accountCreatedAt, joinedAt time.Time, threshold time.Duration) bool {
	if accountCreatedAt.IsZero() || joinedAt.IsZero() {
		return false
	}
	age := joinedAt.Sub(accountCreatedAt)
	if age < 0 {
		return false
	}
	return age < threshold
}
