package invites

import (
	"context"
	"sync"
	"time"

	"invitetrack/entity"
)

// Gateway is the platform side the engine needs: the list of guilds the
// deployment serves and a fresh invite list per guild.
type Gateway interface {
	FetchGuilds(ctx context.Context) ([]string, error)
	FetchGuildInvites(ctx context.Context, guildID string) ([]entity.InviteSnapshot, error)
}

// Result is the outcome of attributing one join. The zero value means no
// single code could be identified (vanity URL, oauth, code deleted after
// use). That is a legitimate terminal outcome, not an error.
type Result struct {
	Code      string
	InviterID string
}

func (r Result) Attributed() bool {
	return r.Code != ""
}

type pendingIncrease struct {
	inviterID string
	n         int
}

// AttributionEngine turns use-count increases into attributed joins.
//
// Every observed increase lands in a per-guild pending ledger; each join
// consumes one unit from it. With refetch enabled the engine pulls a fresh
// invite list from the gateway on every join and diffs it against the cache;
// with refetch disabled the ledger is fed only by upsert notifications, so
// only codes the system has seen can be attributed. When several codes show
// unconsumed increases (near-simultaneous joins) the engine hands out units
// largest-first, one per join. Best effort under concurrency, not a
// guarantee.
type AttributionEngine struct {
	cache        *CodeCache
	gateway      Gateway
	refetch      bool
	fetchTimeout time.Duration

	mu      sync.Mutex
	pending map[string]map[string]*pendingIncrease
}

func NewAttributionEngine(cache *CodeCache, gateway Gateway, refetch bool, fetchTimeout time.Duration) *AttributionEngine {
	if fetchTimeout <= 0 {
		fetchTimeout = 5 * time.Second
	}
	return &AttributionEngine{
		cache:        cache,
		gateway:      gateway,
		refetch:      refetch,
		fetchTimeout: fetchTimeout,
		pending:      make(map[string]map[string]*pendingIncrease),
	}
}

// Seed installs a snapshot without staging increases. Used at startup and on
// guild-create, where pre-existing use counts are history, not new joins.
func (e *AttributionEngine) Seed(guildID string, snapshots []entity.InviteSnapshot) {
	e.cache.RefreshGuild(guildID, snapshots)
}

// NoteUpsert applies an invite create/update notification: any use-count
// growth over the cached value is staged as an unattributed increase.
func (e *AttributionEngine) NoteUpsert(guildID string, snap entity.InviteSnapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stage(guildID, snap)
	e.cache.UpsertCode(guildID, snap)
}

// NoteDelete drops the code from the cache. Pending increases survive: a
// code deleted right after use is still attributable.
func (e *AttributionEngine) NoteDelete(guildID, code string) {
	e.cache.RemoveCode(guildID, code)
}

// DropGuild discards cached codes and pending increases for the guild.
func (e *AttributionEngine) DropGuild(guildID string) {
	e.mu.Lock()
	delete(e.pending, guildID)
	e.mu.Unlock()
	e.cache.RemoveGuild(guildID)
}

// Attribute resolves one member join. With refetch enabled it first pulls
// the guild's authoritative invite list and absorbs any increases; fetch
// failure aborts with a FetchError and leaves the cache usable for the next
// attempt. Then one pending unit is consumed, regardless of how it got
// staged. Cached counts never decrease here, so repeated calls cannot
// attribute the same increase twice.
func (e *AttributionEngine) Attribute(ctx context.Context, guildID string) (Result, error) {
	if e.refetch {
		fetchCtx, cancel := context.WithTimeout(ctx, e.fetchTimeout)
		snapshots, err := e.gateway.FetchGuildInvites(fetchCtx, guildID)
		cancel()
		if err != nil {
			return Result{}, &FetchError{GuildID: guildID, Err: err}
		}
		e.absorb(guildID, snapshots)
	}
	return e.consume(guildID), nil
}

// absorb diffs a fresh snapshot against the cache, stages increases, and
// refreshes the cache wholesale. A guild never seeded gets seeded instead:
// its historical use counts must not read as new joins.
func (e *AttributionEngine) absorb(guildID string, snapshots []entity.InviteSnapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cache.HasGuild(guildID) {
		for _, snap := range snapshots {
			e.stage(guildID, snap)
		}
	}
	e.cache.RefreshGuild(guildID, snapshots)
}

// stage records snap's use-count growth over the cached value. Codes absent
// from the cache count from zero. Caller holds e.mu.
func (e *AttributionEngine) stage(guildID string, snap entity.InviteSnapshot) {
	last, _ := e.cache.Uses(guildID, snap.Code)
	delta := snap.Uses - last
	if delta <= 0 {
		return
	}
	codes, ok := e.pending[guildID]
	if !ok {
		codes = make(map[string]*pendingIncrease)
		e.pending[guildID] = codes
	}
	inc, ok := codes[snap.Code]
	if !ok {
		inc = &pendingIncrease{inviterID: snap.InviterID}
		codes[snap.Code] = inc
	}
	inc.inviterID = snap.InviterID
	inc.n += delta
}

// Restage returns a consumed unit to the ledger. Called when the durable
// write for an attributed join fails: the platform retries the event, and
// the retried attribution must find the unit again instead of resolving
// to unknown.
func (e *AttributionEngine) Restage(guildID string, res Result) {
	if !res.Attributed() {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	codes, ok := e.pending[guildID]
	if !ok {
		codes = make(map[string]*pendingIncrease)
		e.pending[guildID] = codes
	}
	inc, ok := codes[res.Code]
	if !ok {
		inc = &pendingIncrease{inviterID: res.InviterID}
		codes[res.Code] = inc
	}
	inc.n++
}

// consume takes one unit from the guild's ledger, largest backlog first.
func (e *AttributionEngine) consume(guildID string) Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	codes := e.pending[guildID]
	var best string
	for code, inc := range codes {
		if best == "" || inc.n > codes[best].n || (inc.n == codes[best].n && code < best) {
			best = code
		}
	}
	if best == "" {
		return Result{}
	}
	inc := codes[best]
	inc.n--
	if inc.n <= 0 {
		delete(codes, best)
	}
	if len(codes) == 0 {
		delete(e.pending, guildID)
	}
	return Result{Code: best, InviterID: inc.inviterID}
}
