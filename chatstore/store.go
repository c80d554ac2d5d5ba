// Package chatstore implements the chat application's business logic
// behind the rdpserver.Handler contract: user presence (LOGIN/EXIT),
// message fan-out (MESSAGE/FETCH), and the periodic cleanup of
// messages every active user has already fetched.
//
// Grounded on _examples/original_source/server/handlers.py and
// server.py, with Redis swapped for an in-memory Store. Handler reaches
// the Store through the small unexported chatStore interface; the
// exported NewHandler accepts only a *Store.
package chatstore

import (
	"sync"
	"time"
)

// Message is a single stored chat message.
type Message struct {
	Username  string
	Text      string
	Timestamp time.Time
}

// userState tracks presence for one active username.
type userState struct {
	lastFetch time.Time
}

// Store is the in-memory backing state for the chat application: the
// set of active usernames and the message log. It is the Go analogue
// of the original's two Redis collections, USERS and MESSAGES.
type Store struct {
	mu       sync.Mutex
	users    map[string]*userState
	messages []Message
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		users: make(map[string]*userState),
	}
}

// Login registers username as active. Returns false if it is already
// active (the caller maps that to AUTHORIZATION-ERROR).
func (s *Store) Login(username string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, active := s.users[username]; active {
		return false
	}
	s.users[username] = &userState{lastFetch: now}
	return true
}

// IsActive reports whether username has an open session.
func (s *Store) IsActive(username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, active := s.users[username]
	return active
}

// Exit removes username from the active set. Returns false if it
// wasn't active.
func (s *Store) Exit(username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, active := s.users[username]; !active {
		return false
	}
	delete(s.users, username)
	return true
}

// StoreMessage appends a message to the log, timestamped now.
func (s *Store) StoreMessage(username, text string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, Message{Username: username, Text: text, Timestamp: now})
}

// Fetch returns every stored message with a timestamp strictly after
// since, sorted ascending by timestamp, and advances username's
// last-fetch timestamp to now.
func (s *Store) Fetch(username string, since, now time.Time) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Message
	for _, m := range s.messages {
		if m.Timestamp.After(since) {
			out = append(out, m)
		}
	}
	// The log is append-ordered by construction (messages are appended
	// as they arrive), so it's already sorted ascending by timestamp.

	if u, active := s.users[username]; active {
		u.lastFetch = now
	}
	return out
}

// CleanupMessages drops every message older than the oldest
// last-fetch timestamp across all active users — mirroring
// cleanupMessages in the original: a message only gets removed once
// every active client has fetched past it. A quiescent store (no
// active users) is left untouched.
func (s *Store) CleanupMessages(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.users) == 0 {
		return
	}

	lowest := now
	for _, u := range s.users {
		if u.lastFetch.Before(lowest) {
			lowest = u.lastFetch
		}
	}
	if lowest.Equal(now) {
		return
	}

	kept := s.messages[:0]
	for _, m := range s.messages {
		if !m.Timestamp.Before(lowest) {
			kept = append(kept, m)
		}
	}
	s.messages = kept
}
