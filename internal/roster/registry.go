package roster

import (
	"errors"
	"sync"
	"sync/atomic"

	logx "rollcall/pkg/logx"
)

// ErrNotAdministrator is returned by Resync when the bot's own identity is
// missing from the supplied administrator list. No mutation happens then.
var ErrNotAdministrator = errors.New("bot is not an administrator of this chat")

// Registry is the authoritative membership state: an in-memory snapshot
// plus the store that makes it durable.
//
// Every mutation persists the full snapshot before returning. Store write
// failures are deliberately not surfaced to callers: the registry stays
// correct in memory, the failure is logged and counted, and the next
// successful save restores durability. This matches the best-effort
// durability policy of the persisted roster format.
//
// A single registry-wide RWMutex guards both the map and the save: every
// save flushes all chats anyway, so finer per-chat locking would not let
// saves overlap and only complicate the ordering guarantees.
type Registry struct {
	log   logx.Logger
	store Store

	mu    sync.RWMutex
	chats Snapshot

	saveFailures atomic.Uint64
	onSaveError  func(error)
}

// Option configures a Registry.
type Option func(*Registry)

// WithSaveErrorHook installs a callback invoked (outside the registry lock
// is NOT guaranteed; keep it cheap) whenever a snapshot save fails.
func WithSaveErrorHook(fn func(error)) Option {
	return func(r *Registry) { r.onSaveError = fn }
}

// New builds a registry backed by store and loads the persisted snapshot.
//
// A nil store yields a memory-only registry (used by tests). A corrupt
// store is not fatal: the registry logs the error and starts from whatever
// rows the store managed to parse.
func New(store Store, log logx.Logger, opts ...Option) *Registry {
	if log.IsZero() {
		log = logx.Nop()
	}
	r := &Registry{log: log, store: store, chats: Snapshot{}}
	for _, opt := range opts {
		opt(r)
	}

	if store != nil {
		snap, err := store.Load()
		if snap != nil {
			r.chats = snap
		}
		if err != nil {
			r.log.Warn("roster load failed; starting from partial state",
				logx.Err(err), logx.Int("chats", len(r.chats)))
		} else {
			r.log.Info("roster loaded",
				logx.Int("chats", len(r.chats)), logx.Int("members", r.chats.Members()))
		}
	}
	return r
}

// Add inserts or fully overwrites the record for m.ID in chatID and
// persists the registry. Re-adding an existing user replaces the whole
// record (last write wins, no field merging).
func (r *Registry) Add(chatID int64, m Member) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.chats[chatID]
	if !ok {
		members = map[int64]Member{}
		r.chats[chatID] = members
	}
	members[m.ID] = m
	r.saveLocked()

	r.log.Debug("member tracked", logx.Int64("chat_id", chatID), logx.Int64("user_id", m.ID))
}

// Get returns a copy of the tracked members for chatID.
// Unknown chats yield an empty (non-nil) map.
func (r *Registry) Get(chatID int64) map[int64]Member {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.chats[chatID]
	cp := make(map[int64]Member, len(members))
	for id, m := range members {
		cp[id] = m
	}
	return cp
}

// Clear drops the chat's tracked set entirely and persists.
// Clearing an unknown chat is a no-op.
func (r *Registry) Clear(chatID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.chats[chatID]; !ok {
		return
	}
	delete(r.chats, chatID)
	r.saveLocked()

	r.log.Info("chat roster cleared", logx.Int64("chat_id", chatID))
}

// Resync atomically replaces chatID's tracked set with the supplied
// administrator snapshot. selfID (the bot's own user id) must appear in
// admins, otherwise ErrNotAdministrator is returned and nothing changes.
// It returns the number of members tracked after the reseed.
//
// This is the only operation that clears before adding; everything else is
// purely additive.
func (r *Registry) Resync(chatID, selfID int64, admins []Member) (int, error) {
	self := false
	for _, a := range admins {
		if a.ID == selfID {
			self = true
			break
		}
	}
	if !self {
		return 0, ErrNotAdministrator
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	members := make(map[int64]Member, len(admins))
	for _, a := range admins {
		members[a.ID] = a
	}
	r.chats[chatID] = members
	r.saveLocked()

	r.log.Info("chat roster reseeded from admins",
		logx.Int64("chat_id", chatID), logx.Int("members", len(members)))
	return len(members), nil
}

// Flush persists the current snapshot. Used on shutdown and by the
// periodic maintenance job; a no-op for memory-only registries.
func (r *Registry) Flush() error {
	if r.store == nil {
		return nil
	}
	// Hold the read lock through the save so a flush can never overwrite
	// the snapshot written by a newer mutation.
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.store.Save(r.chats.Clone())
}

// Stats reports the tracked chat and member counts.
func (r *Registry) Stats() (chats, members int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.chats), r.chats.Members()
}

// SaveFailures returns how many snapshot saves have failed so far.
func (r *Registry) SaveFailures() uint64 { return r.saveFailures.Load() }

// saveLocked persists the snapshot; callers hold the write lock.
func (r *Registry) saveLocked() {
	if r.store == nil {
		return
	}
	if err := r.store.Save(r.chats.Clone()); err != nil {
		r.saveFailures.Add(1)
		r.log.Error("roster save failed; continuing in memory", logx.Err(err))
		if r.onSaveError != nil {
			r.onSaveError(err)
		}
	}
}
