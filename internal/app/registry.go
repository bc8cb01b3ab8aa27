package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dechrm/callrelay/internal/domain"
)

// Registry is the bidirectional index between logical users and their live
// connections. users and owners are maintained as a consistent pair: every
// connection in a user's set has exactly that user as its owner, and a user
// key exists iff its set is non-empty.
type Registry struct {
	mu     sync.RWMutex
	users  map[domain.UserID]map[domain.ConnID]struct{}
	owners map[domain.ConnID]domain.UserID
}

func NewRegistry() *Registry {
	return &Registry{
		users:  make(map[domain.UserID]map[domain.ConnID]struct{}),
		owners: make(map[domain.ConnID]domain.UserID),
	}
}

// Register adds cid to uid's connection set. Registering the same pair twice
// is a no-op. An empty uid cannot be resolved later, so it is dropped here
// rather than propagated. A connection belongs to at most one user: a second
// register on the same connection moves it (last write wins).
func (r *Registry) Register(uid domain.UserID, cid domain.ConnID) {
	if uid == "" {
		log.Warn().Str("module", "app.registry").Str("conn", string(cid)).Msg("register with empty user id dropped")
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.owners[cid]; ok {
		if prev == uid {
			return
		}
		r.dropLocked(prev, cid)
	}

	set, ok := r.users[uid]
	if !ok {
		set = make(map[domain.ConnID]struct{})
		r.users[uid] = set
	}
	set[cid] = struct{}{}
	r.owners[cid] = uid
	log.Info().Str("module", "app.registry").Str("user", string(uid)).Str("conn", string(cid)).Msg("registered")
}

// Unregister removes the connection from whichever user owns it. Unknown
// connections are a no-op. The inverse mapping is authoritative: the forward
// side is cleaned from whatever it says, so a half-applied register cannot
// leave a dangling entry behind.
func (r *Registry) Unregister(cid domain.ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	uid, ok := r.owners[cid]
	if !ok {
		return
	}
	delete(r.owners, cid)
	r.pruneLocked(uid, cid)
	log.Info().Str("module", "app.registry").Str("user", string(uid)).Str("conn", string(cid)).Msg("unregistered")
}

// Resolve returns a snapshot of the user's live connections. Unknown or
// offline users resolve to an empty slice, never an error.
func (r *Registry) Resolve(uid domain.UserID) []domain.ConnID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.users[uid]
	out := make([]domain.ConnID, 0, len(set))
	for cid := range set {
		out = append(out, cid)
	}
	return out
}

// Owner reports which user the connection is registered to, if any.
func (r *Registry) Owner(cid domain.ConnID) (domain.UserID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	uid, ok := r.owners[cid]
	return uid, ok
}

// dropLocked detaches cid from uid's set and clears its owner entry.
func (r *Registry) dropLocked(uid domain.UserID, cid domain.ConnID) {
	delete(r.owners, cid)
	r.pruneLocked(uid, cid)
}

func (r *Registry) pruneLocked(uid domain.UserID, cid domain.ConnID) {
	if set, ok := r.users[uid]; ok {
		delete(set, cid)
		if len(set) == 0 {
			delete(r.users, uid)
		}
	}
}
