package channels

import (
	"context"
	"fmt"
	"sync"

	"nhooyr.io/websocket"
)

// sessionBudget matches the generic webhook budget; session replies are
// delivered over an already-open connection so there is no hard vendor
// cap, but we still chunk to keep a single frame reasonable.
const sessionBudget = 20 * 1024

// SessionRegistry tracks the open websocket connection for each
// originating session/task, so a finished report streams back to the
// exact chat that submitted it rather than to a standing webhook.
type SessionRegistry struct {
	mu    sync.RWMutex
	conns map[string]*websocket.Conn
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{conns: make(map[string]*websocket.Conn)}
}

// Bind associates a session ID with its live connection. Call Unbind
// when the connection closes.
func (r *SessionRegistry) Bind(sessionID string, conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[sessionID] = conn
}

func (r *SessionRegistry) Unbind(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, sessionID)
}

func (r *SessionRegistry) get(sessionID string) (*websocket.Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[sessionID]
	return c, ok
}

// SessionReply is a notify.Channel bound to one originating session.
// It is constructed per-dispatch (not kept process-global like the
// other channels) because it targets exactly the chat that submitted
// the task.
type SessionReply struct {
	registry  *SessionRegistry
	sessionID string
}

func NewSessionReply(registry *SessionRegistry, sessionID string) *SessionReply {
	return &SessionReply{registry: registry, sessionID: sessionID}
}

func (s *SessionReply) Name() string { return "session:" + s.sessionID }
func (s *SessionReply) Budget() int  { return sessionBudget }

func (s *SessionReply) Send(ctx context.Context, chunk string, index, total int) error {
	conn, ok := s.registry.get(s.sessionID)
	if !ok {
		return fmt.Errorf("session %s has no open connection", s.sessionID)
	}
	return conn.Write(ctx, websocket.MessageText, []byte(chunk))
}
