package channels

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionReply_NoConnectionIsError(t *testing.T) {
	registry := NewSessionRegistry()
	ch := NewSessionReply(registry, "session-1")
	err := ch.Send(context.Background(), "hi", 1, 1)
	assert.Error(t, err)
}

func TestSessionRegistry_UnbindMissingIsNoop(t *testing.T) {
	registry := NewSessionRegistry()
	_, ok := registry.get("missing")
	assert.False(t, ok)
	registry.Unbind("missing") // no-op, must not panic
}
