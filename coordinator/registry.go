package coordinator

import (
	"sync"

	"github.com/icp-relay/icp-relay/session"
)

// ErrDuplicateSession is returned by registry.add when a session for the
// same peer id is already registered, the direct analogue of p2p's
// ErrSwitchDuplicatePeer.
type ErrDuplicateSession struct {
	PeerID string
}

func (e ErrDuplicateSession) Error() string {
	return "coordinator: session for peer " + e.PeerID + " already registered"
}

// registry is a goroutine-safe table of live Sessions keyed by peer id,
// adapted from p2p.PeerSet's lookup+list pair: a map for O(1) dedup checks
// and a slice for iteration over every connected peer (forEach iterates a
// copy of it). The IP-range admission control p2p.PeerSet layers on top has no
// counterpart here — a relay dials or accepts a small, explicitly
// configured set of peer relays, not an open gossip network — so that part
// of the original is dropped rather than carried forward unused.
type registry struct {
	mtx    sync.Mutex
	lookup map[string]int // peerID -> index into list
	list   []*session.Session
}

func newRegistry() *registry {
	return &registry{
		lookup: make(map[string]int),
		list:   make([]*session.Session, 0, 4),
	}
}

// add registers s under s.PeerID. It fails if a session for that peer id
// is already present; OnHello then returns that error, and the session
// closes itself with session.CloseBadPayload.
func (r *registry) add(s *session.Session) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if _, ok := r.lookup[s.PeerID]; ok {
		return ErrDuplicateSession{PeerID: s.PeerID}
	}
	r.lookup[s.PeerID] = len(r.list)
	r.list = append(r.list, s)
	return nil
}

// remove drops s from the registry if it is still the session registered
// for its peer id. A session that lost a dedup race and was never added is
// a harmless no-op here.
func (r *registry) remove(s *session.Session) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	index, ok := r.lookup[s.PeerID]
	if !ok || r.list[index] != s {
		return
	}
	last := len(r.list) - 1
	r.list[index] = r.list[last]
	r.lookup[r.list[index].PeerID] = index
	r.list = r.list[:last]
	delete(r.lookup, s.PeerID)
}

func (r *registry) get(peerID string) *session.Session {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	index, ok := r.lookup[peerID]
	if !ok {
		return nil
	}
	return r.list[index]
}

func (r *registry) size() int {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return len(r.list)
}

// forEach calls fn with a stable snapshot of the currently registered
// sessions; fn runs without the registry lock held so it may itself call
// back into add/remove.
func (r *registry) forEach(fn func(*session.Session)) {
	r.mtx.Lock()
	snapshot := make([]*session.Session, len(r.list))
	copy(snapshot, r.list)
	r.mtx.Unlock()

	for _, s := range snapshot {
		fn(s)
	}
}
