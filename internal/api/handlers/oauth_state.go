package handlers

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultStateTTL is how long a connect attempt may take before its state expires.
const DefaultStateTTL = 10 * time.Minute

// OAuthStates tracks the state values handed out by ConnectCalendar. Each
// state is bound to the user that asked for it and can be redeemed once.
type OAuthStates struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	pending map[string]pendingState
}

type pendingState struct {
	userID    string
	expiresAt time.Time
}

// NewOAuthStates creates an empty state store.
func NewOAuthStates(ttl time.Duration) *OAuthStates {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return &OAuthStates{
		ttl:     ttl,
		now:     time.Now,
		pending: make(map[string]pendingState),
	}
}

// Issue returns a fresh opaque state for userID.
func (s *OAuthStates) Issue(userID string) string {
	state := uuid.NewString()
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, p := range s.pending {
		if now.After(p.expiresAt) {
			delete(s.pending, k)
		}
	}
	s.pending[state] = pendingState{userID: userID, expiresAt: now.Add(s.ttl)}
	return state
}

// Redeem returns the user a state was issued to and forgets it. Unknown,
// expired and already redeemed states report false.
func (s *OAuthStates) Redeem(state string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[state]
	if !ok {
		return "", false
	}
	delete(s.pending, state)

	if s.now().After(p.expiresAt) {
		return "", false
	}
	return p.userID, true
}
