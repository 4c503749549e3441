// Package peerstore tracks live relay peers, sender/recipient pairings, and
// staged file metadata.
package peerstore

import (
	"sort"
	"sync"

	"github.com/relayr/relayr/core"
	"github.com/relayr/relayr/relay/conn"
	"github.com/uber-go/tally"
)

// Store is an in-memory view of every connected peer. Each map is guarded
// independently, so cross-map operations are not atomic with respect to each
// other. Callers must tolerate a peer disappearing between a pairing lookup
// and a queue lookup.
type Store struct {
	stats tally.Scope

	connMu      sync.RWMutex
	connections map[string]*conn.Queue

	pairMu   sync.RWMutex
	pairings map[string]string

	metaMu   sync.RWMutex
	metadata map[string]*core.FileMetadata
}

// New creates an empty Store.
func New(stats tally.Scope) *Store {
	stats = stats.Tagged(map[string]string{
		"module": "peerstore",
	})
	return &Store{
		stats:       stats,
		connections: make(map[string]*conn.Queue),
		pairings:    make(map[string]string),
		metadata:    make(map[string]*core.FileMetadata),
	}
}

// AddPeer registers q as the outbound queue for peerID. Reconnecting under
// the same id overwrites the previous queue.
func (s *Store) AddPeer(peerID string, q *conn.Queue) {
	s.connMu.Lock()
	s.connections[peerID] = q
	n := len(s.connections)
	s.connMu.Unlock()

	s.stats.Gauge("connected_peers").Update(float64(n))
}

// RemovePeer drops the outbound queue for peerID along with any pairing
// peerID holds as a sender. Pairings merely valuing peerID as a recipient are
// left to the disconnect notifier. Returns false if peerID was not
// registered.
func (s *Store) RemovePeer(peerID string) bool {
	s.connMu.Lock()
	_, ok := s.connections[peerID]
	delete(s.connections, peerID)
	n := len(s.connections)
	s.connMu.Unlock()

	s.pairMu.Lock()
	delete(s.pairings, peerID)
	np := len(s.pairings)
	s.pairMu.Unlock()

	s.stats.Gauge("connected_peers").Update(float64(n))
	s.stats.Gauge("active_pairings").Update(float64(np))
	return ok
}

// GetQueue returns the outbound queue registered for peerID.
func (s *Store) GetQueue(peerID string) (*conn.Queue, bool) {
	s.connMu.RLock()
	defer s.connMu.RUnlock()

	q, ok := s.connections[peerID]
	return q, ok
}

// NumPeers returns the number of registered peers.
func (s *Store) NumPeers() int {
	s.connMu.RLock()
	defer s.connMu.RUnlock()

	return len(s.connections)
}

// Pair maps senderID to recipientID, overwriting any previous pairing for
// senderID. Nothing prevents two senders from pairing with the same
// recipient; resolving that ambiguity is left to SenderOf.
func (s *Store) Pair(senderID, recipientID string) {
	s.pairMu.Lock()
	s.pairings[senderID] = recipientID
	n := len(s.pairings)
	s.pairMu.Unlock()

	s.stats.Gauge("active_pairings").Update(float64(n))
}

// Unpair removes senderID's pairing. Returns false if senderID was not
// paired.
func (s *Store) Unpair(senderID string) bool {
	s.pairMu.Lock()
	_, ok := s.pairings[senderID]
	delete(s.pairings, senderID)
	n := len(s.pairings)
	s.pairMu.Unlock()

	s.stats.Gauge("active_pairings").Update(float64(n))
	return ok
}

// RecipientOf returns the recipient senderID is paired with.
func (s *Store) RecipientOf(senderID string) (string, bool) {
	s.pairMu.RLock()
	defer s.pairMu.RUnlock()

	r, ok := s.pairings[senderID]
	return r, ok
}

// SenderOf reverse-scans the pairings for a sender paired with recipientID.
// If multiple senders are paired with the same recipient, map iteration
// order decides which one wins.
func (s *Store) SenderOf(recipientID string) (string, bool) {
	s.pairMu.RLock()
	defer s.pairMu.RUnlock()

	for sender, recipient := range s.pairings {
		if recipient == recipientID {
			return sender, true
		}
	}
	return "", false
}

// PutMetadata stages file metadata announced by senderID.
func (s *Store) PutMetadata(senderID string, md *core.FileMetadata) {
	s.metaMu.Lock()
	defer s.metaMu.Unlock()

	s.metadata[senderID] = md
}

// GetMetadata returns the file metadata staged by senderID. The returned
// value is shared and must not be mutated.
func (s *Store) GetMetadata(senderID string) (*core.FileMetadata, bool) {
	s.metaMu.RLock()
	defer s.metaMu.RUnlock()

	md, ok := s.metadata[senderID]
	return md, ok
}

// ClearMetadata removes any file metadata staged by senderID.
func (s *Store) ClearMetadata(senderID string) {
	s.metaMu.Lock()
	defer s.metaMu.Unlock()

	delete(s.metadata, senderID)
}

// State is a point-in-time copy of the store contents, exposed on the debug
// endpoint.
type State struct {
	Peers    []string                      `json:"peers"`
	Pairings map[string]string             `json:"pairings"`
	Metadata map[string]*core.FileMetadata `json:"metadata"`
}

// Snapshot copies the current store contents. The maps are copied one at a
// time, so the result may straddle concurrent updates.
func (s *Store) Snapshot() State {
	var state State

	s.connMu.RLock()
	state.Peers = make([]string, 0, len(s.connections))
	for id := range s.connections {
		state.Peers = append(state.Peers, id)
	}
	s.connMu.RUnlock()
	sort.Strings(state.Peers)

	s.pairMu.RLock()
	state.Pairings = make(map[string]string, len(s.pairings))
	for sender, recipient := range s.pairings {
		state.Pairings[sender] = recipient
	}
	s.pairMu.RUnlock()

	s.metaMu.RLock()
	state.Metadata = make(map[string]*core.FileMetadata, len(s.metadata))
	for sender, md := range s.metadata {
		state.Metadata[sender] = md
	}
	s.metaMu.RUnlock()

	return state
}
