package channels

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmail_InfersHostFromKnownDomain(t *testing.T) {
	e := NewEmail("alerts@gmail.com", "pw", []string{"me@example.com"}, "", 0)
	assert.Equal(t, "smtp.gmail.com", e.Host)
	assert.Equal(t, 587, e.Port)
}

func TestEmail_ExplicitHostOverridesLookup(t *testing.T) {
	e := NewEmail("alerts@unknown-domain.example", "pw", nil, "smtp.custom.example", 465)
	assert.Equal(t, "smtp.custom.example", e.Host)
	assert.Equal(t, 465, e.Port)
}

func TestEmail_UnknownDomainNoHostIsError(t *testing.T) {
	e := NewEmail("alerts@unknown-domain.example", "pw", nil, "", 0)
	assert.Empty(t, e.Host)
	assert.Error(t, e.Send(context.Background(), "x", 1, 1))
}
