// Package counters maintains the durable join records and per-inviter
// tallies on top of a keyed store. Mutations are serialized here, per
// member key and per counter doc, not delegated to the backend's own
// atomicity.
package counters

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/bson"

	"invitetrack/entity"
	"invitetrack/lib/sl"
)

const (
	tableJoinRecords     = "join_records"
	tableInviterCounters = "inviter_counters"
)

// KeyValue is the durable store contract: named tables, point get/set, and
// a first-match predicate scan. Connect must complete before anything else.
// Implemented by internal/database (mongo and memory backends).
type KeyValue interface {
	Connect(ctx context.Context) error
	Get(ctx context.Context, table, key string, out interface{}) (bool, error)
	Set(ctx context.Context, table, key string, value interface{}) error
	Find(ctx context.Context, table string, match func(key string, value bson.Raw) bool, out interface{}) (bool, error)
}

type Store struct {
	db  KeyValue
	log *slog.Logger

	mu       sync.Mutex
	keyLocks map[string]*sync.Mutex
}

func New(db KeyValue, log *slog.Logger) *Store {
	return &Store{
		db:       db,
		log:      log.With(sl.Module("counters")),
		keyLocks: make(map[string]*sync.Mutex),
	}
}

func (s *Store) Connect(ctx context.Context) error {
	return s.db.Connect(ctx)
}

// RecordJoin upserts the member's join record and moves the inviter
// counters. A prior record's contribution is reversed first, so a rejoin
// (or a replayed event) never double-counts: calling twice with identical
// arguments equals calling once.
//
// The join record is written before the counter documents. It is the
// anchor the reversal reads: a replay after a partial failure sees the
// record, reverses (clamped at zero when the counters never landed), and
// reapplies, converging on exactly one count.
func (s *Store) RecordJoin(ctx context.Context, rec entity.JoinRecord) error {
	lock := s.keyLock("record:" + rec.Key())
	lock.Lock()
	defer lock.Unlock()

	var prior entity.JoinRecord
	hadPrior, err := s.db.Get(ctx, tableJoinRecords, rec.Key(), &prior)
	if err != nil {
		return err
	}

	// counter docs are shared across members of one inviter; lock each
	// touched doc (sorted, so overlapping calls cannot deadlock) before
	// the read-modify-write
	counterKeys := []string{rec.GuildID + ":" + rec.InviterID}
	if hadPrior && prior.InviterID != "" && prior.GuildID+":"+prior.InviterID != counterKeys[0] {
		counterKeys = append(counterKeys, prior.GuildID+":"+prior.InviterID)
	}
	sort.Strings(counterKeys)
	for _, k := range counterKeys {
		cl := s.keyLock("counters:" + k)
		cl.Lock()
		defer cl.Unlock()
	}

	// one in-memory doc per touched inviter; a same-inviter rejoin must
	// reverse and reapply on a single doc before the single write
	docs := make(map[string]*entity.InviterCounters)
	load := func(guildID, inviterID string) (*entity.InviterCounters, error) {
		key := guildID + ":" + inviterID
		if c, ok := docs[key]; ok {
			return c, nil
		}
		c := &entity.InviterCounters{}
		if _, err := s.db.Get(ctx, tableInviterCounters, key, c); err != nil {
			return nil, err
		}
		c.GuildID = guildID
		c.InviterID = inviterID
		docs[key] = c
		return c, nil
	}

	if hadPrior && prior.InviterID != "" {
		c, err := load(prior.GuildID, prior.InviterID)
		if err != nil {
			return err
		}
		reverseJoin(c, prior.Code, prior.IsFake)
	}

	c, err := load(rec.GuildID, rec.InviterID)
	if err != nil {
		return err
	}
	applyJoin(c, rec.Code, rec.IsFake)

	if err := s.db.Set(ctx, tableJoinRecords, rec.Key(), &rec); err != nil {
		return err
	}
	keys := make([]string, 0, len(docs))
	for k := range docs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := s.db.Set(ctx, tableInviterCounters, docs[k].Key(), docs[k]); err != nil {
			return err
		}
	}
	s.log.Debug("join recorded",
		sl.Guild(rec.GuildID),
		sl.Member(rec.MemberID),
		sl.Code(rec.Code),
		slog.Bool("rejoin", hadPrior),
	)
	return nil
}

// RecordLeave bumps the leave counters for the member's attributed inviter
// and returns the join record it used. A member with no record is a no-op
// and returns nil.
func (s *Store) RecordLeave(ctx context.Context, guildID, memberID string) (*entity.JoinRecord, error) {
	key := guildID + ":" + memberID
	lock := s.keyLock("record:" + key)
	lock.Lock()
	defer lock.Unlock()

	var rec entity.JoinRecord
	found, err := s.db.Get(ctx, tableJoinRecords, key, &rec)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	cl := s.keyLock("counters:" + guildID + ":" + rec.InviterID)
	cl.Lock()
	defer cl.Unlock()

	counters := &entity.InviterCounters{}
	if _, err := s.db.Get(ctx, tableInviterCounters, guildID+":"+rec.InviterID, counters); err != nil {
		return nil, err
	}
	counters.GuildID = guildID
	counters.InviterID = rec.InviterID
	counters.Stats(rec.Code).Leave++
	counters.Totals.Leave++
	if err := s.db.Set(ctx, tableInviterCounters, counters.Key(), counters); err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetInviteeData is the point lookup for "who invited this member". Nil
// without error means no record.
func (s *Store) GetInviteeData(ctx context.Context, guildID, memberID string) (*entity.JoinRecord, error) {
	var rec entity.JoinRecord
	found, err := s.db.Get(ctx, tableJoinRecords, guildID+":"+memberID, &rec)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &rec, nil
}

// FindByMember scans join records by value. The ban hook only supplies an
// account id and guild id, so the record must be recovered without its key
// context.
func (s *Store) FindByMember(ctx context.Context, guildID, memberID string) (*entity.JoinRecord, error) {
	var rec entity.JoinRecord
	found, err := s.db.Find(ctx, tableJoinRecords, func(_ string, value bson.Raw) bool {
		var candidate entity.JoinRecord
		if err := bson.Unmarshal(value, &candidate); err != nil {
			return false
		}
		return candidate.GuildID == guildID && candidate.MemberID == memberID
	}, &rec)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &rec, nil
}

// GetCounters returns the inviter's tallies, nil when the inviter has none.
func (s *Store) GetCounters(ctx context.Context, guildID, inviterID string) (*entity.InviterCounters, error) {
	counters := &entity.InviterCounters{}
	found, err := s.db.Get(ctx, tableInviterCounters, guildID+":"+inviterID, counters)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return counters, nil
}

func applyJoin(c *entity.InviterCounters, code string, isFake bool) {
	stats := c.Stats(code)
	stats.Total++
	c.Totals.Total++
	if isFake {
		stats.Fake++
		c.Totals.Fake++
	} else {
		stats.Real++
		c.Totals.Real++
	}
}

func reverseJoin(c *entity.InviterCounters, code string, isFake bool) {
	stats := c.Stats(code)
	dec(&stats.Total)
	dec(&c.Totals.Total)
	if isFake {
		dec(&stats.Fake)
		dec(&c.Totals.Fake)
	} else {
		dec(&stats.Real)
		dec(&c.Totals.Real)
	}
}

// counters never go negative, even against out-of-order replays
func dec(n *int) {
	if *n > 0 {
		*n--
	}
}

func (s *Store) keyLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.keyLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.keyLocks[key] = lock
	}
	return lock
}
