package channels

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPushover_Budget(t *testing.T) {
	p := NewPushover("tok", "user")
	assert.Equal(t, 1024, p.Budget())
	assert.Equal(t, "pushover", p.Name())
}
