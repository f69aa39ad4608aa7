package sessionstore

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/evalgo/gridstore/errs"
	"github.com/evalgo/gridstore/grid"
	"github.com/evalgo/gridstore/idgen"
	"github.com/evalgo/gridstore/types"
)

// DefaultSessionTTLSeconds is used when a caller allocates a session
// without specifying a TTL.
const DefaultSessionTTLSeconds = 900

func sessionKey(sessionID string) string {
	return "session:" + sessionID
}

type cachedSession struct {
	session  types.Session
	cachedAt time.Time
}

// Manager allocates, validates, and extends Session records on top of a
// Provider, and caches reads with a short local TTL so repeated validate
// calls inside one request don't each round-trip to Redis (mirrors the
// teacher's scoped-acquire-then-reuse pattern, applied here to reads
// instead of connections).
type Manager struct {
	sandboxID string
	provider  Provider
	cacheTTL  time.Duration

	mu    sync.Mutex
	cache map[string]cachedSession
}

// NewManager constructs a Manager. cacheTTL of zero disables the local
// cache entirely (every call round-trips to the provider).
func NewManager(sandboxID string, provider Provider, cacheTTL time.Duration) *Manager {
	return &Manager{
		sandboxID: sandboxID,
		provider:  provider,
		cacheTTL:  cacheTTL,
		cache:     make(map[string]cachedSession),
	}
}

// Allocate creates a fresh session record with the given TTL (seconds)
// and optional custom metadata, and returns its id.
func (m *Manager) Allocate(ctx context.Context, userID string, ttlSeconds int, customMetadata map[string]interface{}) (string, error) {
	if ttlSeconds <= 0 {
		ttlSeconds = DefaultSessionTTLSeconds
	}
	now := time.Now()
	sess := types.Session{
		SessionID:      idgen.New("sess"),
		UserID:         userID,
		CreatedAt:      now,
		ExpiresAt:      now.Add(time.Duration(ttlSeconds) * time.Second),
		Status:         types.SessionActive,
		CustomMetadata: customMetadata,
	}
	if err := m.write(ctx, sess, ttlSeconds); err != nil {
		return "", err
	}
	return sess.SessionID, nil
}

// Validate reports whether session_id exists, is active, and unexpired.
func (m *Manager) Validate(ctx context.Context, sessionID string) (bool, error) {
	sess, err := m.Get(ctx, sessionID)
	if err != nil {
		return false, err
	}
	return sess != nil && sess.Valid(time.Now()), nil
}

// Get returns the session record, or nil if it does not exist.
func (m *Manager) Get(ctx context.Context, sessionID string) (*types.Session, error) {
	if m.cacheTTL > 0 {
		m.mu.Lock()
		if c, ok := m.cache[sessionID]; ok && time.Since(c.cachedAt) < m.cacheTTL {
			sess := c.session
			m.mu.Unlock()
			return &sess, nil
		}
		m.mu.Unlock()
	}

	raw, ok, err := m.provider.Get(ctx, sessionKey(sessionID))
	if err != nil {
		return nil, errs.Wrap(errs.KindProviderError, "get session", err)
	}
	if !ok {
		return nil, nil
	}
	var sess types.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, errs.Wrap(errs.KindSessionError, "decode session record", err)
	}
	m.putCache(sess)
	return &sess, nil
}

// Extend re-writes the session record with an expiry extended by
// additionalSeconds. A missing session is a no-op, matching the spec's
// explicit "no-op if absent" rule.
func (m *Manager) Extend(ctx context.Context, sessionID string, additionalSeconds int) error {
	sess, err := m.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess == nil {
		return nil
	}
	sess.ExpiresAt = sess.ExpiresAt.Add(time.Duration(additionalSeconds) * time.Second)
	ttl := time.Until(sess.ExpiresAt)
	if ttl < 0 {
		ttl = 0
	}
	return m.write(ctx, *sess, int(ttl.Seconds()))
}

// UpdateMetadata merges patch into the session's custom_metadata.
// A missing session is a no-op.
func (m *Manager) UpdateMetadata(ctx context.Context, sessionID string, patch map[string]interface{}) error {
	sess, err := m.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess == nil {
		return nil
	}
	if sess.CustomMetadata == nil {
		sess.CustomMetadata = make(map[string]interface{})
	}
	for k, v := range patch {
		sess.CustomMetadata[k] = v
	}
	ttl := time.Until(sess.ExpiresAt)
	if ttl < 0 {
		ttl = 0
	}
	return m.write(ctx, *sess, int(ttl.Seconds()))
}

// CanonicalPrefix returns the grid prefix every session-scoped artifact
// belonging to session_id lives under.
func (m *Manager) CanonicalPrefix(sessionID string) string {
	return grid.CanonicalPrefix(m.sandboxID, grid.SessionScopeMarker(sessionID))
}

func (m *Manager) write(ctx context.Context, sess types.Session, ttlSeconds int) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return errs.Wrap(errs.KindSessionError, "encode session record", err)
	}
	if err := m.provider.SetEx(ctx, sessionKey(sess.SessionID), raw, time.Duration(ttlSeconds)*time.Second); err != nil {
		return errs.Wrap(errs.KindProviderError, "write session", err)
	}
	m.invalidate(sess.SessionID)
	m.putCache(sess)
	return nil
}

func (m *Manager) putCache(sess types.Session) {
	if m.cacheTTL <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[sess.SessionID] = cachedSession{session: sess, cachedAt: time.Now()}
}

func (m *Manager) invalidate(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, sessionID)
}
