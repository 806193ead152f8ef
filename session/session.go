// Package session binds a user identity to a client between requests.
//
// Services never see cookies: they receive a Slot for the current request and
// get, set or clear the Session through it. The HTTP layer backs the slot with
// a signed cookie (see Codec); tests and CLIs use Memory.
package session

import (
	"errors"
	"sync"
)

// ErrNoSession is returned by Slot.Get when no session is active.
var ErrNoSession = errors.New("no session")

// Session is the authenticated identity of a client.
type Session struct {
	UserID   int64
	Username string
}

// Slot holds at most one Session for the duration of a request.
type Slot interface {
	Get() (Session, error)
	Set(Session) error
	Clear()
}

// Memory is a Slot kept in memory.
type Memory struct {
	mu  sync.Mutex
	s   Session
	set bool
}

// Get returns the stored session or ErrNoSession.
func (m *Memory) Get() (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.set {
		return Session{}, ErrNoSession
	}
	return m.s, nil
}

// Set stores s, replacing any previous session.
func (m *Memory) Set(s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s, m.set = s, true
	return nil
}

// Clear drops the session.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s, m.set = Session{}, false
}
