// Package invites implements the invite attribution core: the per-guild
// code cache, the diff engine that turns a join into an attributed invite,
// the fake-join classifier, and the manager that ties platform
// notifications to durable counter mutations and outcome events.
package invites

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"invitetrack/entity"
	"invitetrack/internal/events"
	"invitetrack/internal/metrics"
	"invitetrack/lib/sl"
)

// Counters is the durable side the manager depends on, implemented by the
// counters package.
type Counters interface {
	Connect(ctx context.Context) error
	RecordJoin(ctx context.Context, rec entity.JoinRecord) error
	RecordLeave(ctx context.Context, guildID, memberID string) (*entity.JoinRecord, error)
	GetInviteeData(ctx context.Context, guildID, memberID string) (*entity.JoinRecord, error)
	FindByMember(ctx context.Context, guildID, memberID string) (*entity.JoinRecord, error)
}

// Options tune one manager instance.
type Options struct {
	FakeThreshold time.Duration
	RefetchOnJoin bool
	FetchTimeout  time.Duration
}

// Manager is the hub: it owns the cache and engine, serializes work per
// guild, and guarantees counter mutations land before outcome notifications.
type Manager struct {
	log      *slog.Logger
	cache    *CodeCache
	engine   *AttributionEngine
	counters Counters
	router   *events.Router
	gateway  Gateway

	fakeThreshold time.Duration

	mu         sync.Mutex
	guildLocks map[string]*sync.Mutex
	readyAt    time.Time
}

func New(gateway Gateway, counters Counters, router *events.Router, log *slog.Logger, opts Options) *Manager {
	if opts.FakeThreshold <= 0 {
		opts.FakeThreshold = DefaultFakeThreshold
	}
	cache := NewCodeCache()
	return &Manager{
		log:           log.With(sl.Module("invites")),
		cache:         cache,
		engine:        NewAttributionEngine(cache, gateway, opts.RefetchOnJoin, opts.FetchTimeout),
		counters:      counters,
		router:        router,
		gateway:       gateway,
		fakeThreshold: opts.FakeThreshold,
		guildLocks:    make(map[string]*sync.Mutex),
	}
}

// Connect brings the manager up: durable store first, then an initial full
// invite fetch. Must complete before notifications are handled.
func (m *Manager) Connect(ctx context.Context) error {
	if err := m.counters.Connect(ctx); err != nil {
		return &StoreError{Op: "connect", Err: err}
	}
	m.FetchAllInvites(ctx)
	m.mu.Lock()
	m.readyAt = time.Now()
	m.mu.Unlock()
	m.log.Info("invite manager ready")
	return nil
}

// ReadyAt returns when Connect completed, zero if it has not.
func (m *Manager) ReadyAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readyAt
}

// FetchAllInvites seeds the cache for every guild the gateway reports.
// A failing guild is routed to the error outcome and skipped; the rest
// continue.
func (m *Manager) FetchAllInvites(ctx context.Context) {
	guilds, err := m.gateway.FetchGuilds(ctx)
	if err != nil {
		metrics.FetchErrors.Inc()
		m.router.EmitError(&FetchError{Err: err})
		return
	}
	for _, guildID := range guilds {
		snapshots, err := m.gateway.FetchGuildInvites(ctx, guildID)
		if err != nil {
			metrics.FetchErrors.Inc()
			m.router.EmitError(&FetchError{GuildID: guildID, Err: err})
			continue
		}
		m.engine.Seed(guildID, snapshots)
	}
	m.log.Info("fetched all invites", slog.Int("guilds", len(guilds)))
}

// HandleInviteCreate also covers invite-update notifications: the snapshot
// upsert stages any use-count growth for attribution.
func (m *Manager) HandleInviteCreate(guildID string, snap entity.InviteSnapshot) {
	m.engine.NoteUpsert(guildID, snap)
}

func (m *Manager) HandleInviteDelete(guildID, code string) {
	m.engine.NoteDelete(guildID, code)
}

// HandleGuildCreate fetches and seeds the new guild's invites. Historical
// use counts are not attributable.
func (m *Manager) HandleGuildCreate(ctx context.Context, guildID string) {
	snapshots, err := m.gateway.FetchGuildInvites(ctx, guildID)
	if err != nil {
		metrics.FetchErrors.Inc()
		m.router.EmitError(&FetchError{GuildID: guildID, Err: err})
		return
	}
	m.engine.Seed(guildID, snapshots)
}

func (m *Manager) HandleGuildDelete(guildID string) {
	m.engine.DropGuild(guildID)
}

// HandleMemberJoin runs the join pipeline: attribute, classify, persist,
// notify. An unknown inviter is terminal, not an error: no counters move,
// the join outcome still fires with empty inviter and code.
func (m *Manager) HandleMemberJoin(ctx context.Context, guildID, memberID string, accountCreatedAt, joinedAt time.Time) error {
	lock := m.guildLock(guildID)
	lock.Lock()
	defer lock.Unlock()

	result, err := m.engine.Attribute(ctx, guildID)
	if err != nil {
		metrics.FetchErrors.Inc()
		m.router.EmitError(err)
		return err
	}

	isFake := IsFake(accountCreatedAt, joinedAt, m.fakeThreshold)

	if result.Attributed() {
		rec := entity.JoinRecord{
			GuildID:   guildID,
			MemberID:  memberID,
			InviterID: result.InviterID,
			Code:      result.Code,
			IsFake:    isFake,
			JoinedAt:  joinedAt,
		}
		if err := m.counters.RecordJoin(ctx, rec); err != nil {
			// give the unit back so the retried event attributes again
			m.engine.Restage(guildID, result)
			storeErr := &StoreError{Op: "recordJoin", Err: err}
			metrics.StoreErrors.Inc()
			m.router.EmitError(storeErr)
			return storeErr
		}
		metrics.JoinsAttributed.Inc()
		if isFake {
			metrics.JoinsFake.Inc()
		}
	} else {
		metrics.JoinsUnknown.Inc()
	}

	m.router.EmitJoin(guildID, memberID, result.InviterID, result.Code, isFake)
	m.log.Debug("member join",
		sl.Guild(guildID),
		sl.Member(memberID),
		sl.Code(result.Code),
		slog.Bool("fake", isFake),
	)
	return nil
}

// HandleMemberLeave bumps the attributed inviter's leave counters. A member
// with no tracked join is a no-op.
func (m *Manager) HandleMemberLeave(ctx context.Context, guildID, memberID string) error {
	rec, err := m.counters.RecordLeave(ctx, guildID, memberID)
	if err != nil {
		storeErr := &StoreError{Op: "recordLeave", Err: err}
		metrics.StoreErrors.Inc()
		m.router.EmitError(storeErr)
		return storeErr
	}
	if rec == nil {
		m.log.Debug("leave for untracked member", sl.Guild(guildID), sl.Member(memberID))
		return nil
	}
	metrics.Leaves.Inc()
	m.router.EmitLeave(guildID, memberID, rec.InviterID, rec.Code)
	return nil
}

// HandleMemberBan recovers the banned account's join record by scanning the
// store (the ban hook supplies only guild and account id), then runs the
// leave path.
func (m *Manager) HandleMemberBan(ctx context.Context, guildID, userID string) error {
	rec, err := m.counters.FindByMember(ctx, guildID, userID)
	if err != nil {
		storeErr := &StoreError{Op: "findByMember", Err: err}
		metrics.StoreErrors.Inc()
		m.router.EmitError(storeErr)
		return storeErr
	}
	if rec == nil {
		return nil
	}
	return m.HandleMemberLeave(ctx, guildID, rec.MemberID)
}

// GetInviteeData answers "who invited this member". Nil without error means
// no record.
func (m *Manager) GetInviteeData(ctx context.Context, guildID, memberID string) (*entity.JoinRecord, error) {
	rec, err := m.counters.GetInviteeData(ctx, guildID, memberID)
	if err != nil {
		return nil, &StoreError{Op: "getInviteeData", Err: err}
	}
	return rec, nil
}

// Cache exposes the snapshot cache to the query surface.
func (m *Manager) Cache() *CodeCache {
	return m.cache
}

func (m *Manager) guildLock(guildID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.guildLocks[guildID]
	if !ok {
		lock = &sync.Mutex{}
		m.guildLocks[guildID] = lock
	}
	return lock
}
