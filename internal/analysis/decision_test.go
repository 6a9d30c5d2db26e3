package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gcaaa31928/daily-stock-analysis/internal/domain"
)

func TestDeriveDecision(t *testing.T) {
	cases := []struct {
		advice string
		want   domain.DecisionType
	}{
		{"建议買入，逢低加仓", domain.DecisionBuy},
		{"建议减仓，规避风险", domain.DecisionSell},
		{"賣出信号明显", domain.DecisionSell},
		{"维持观望", domain.DecisionHold},
		{"", domain.DecisionHold},
		{"清仓离场", domain.DecisionSell},
	}
	for _, c := range cases {
		assert.Equalf(t, c.want, DeriveDecision(c.advice), "DeriveDecision(%q)", c.advice)
	}
}

func TestClampSentiment(t *testing.T) {
	assert.Equal(t, 0.0, ClampSentiment(-10))
	assert.Equal(t, 100.0, ClampSentiment(150))
	assert.Equal(t, 42.0, ClampSentiment(42))
}
