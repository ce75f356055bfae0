package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimulate(t *testing.T) {
	tests := []struct {
		card string
		want Outcome
	}{
		{"4242424242424241", OutcomeApproved},
		{"4242424242424242", OutcomeDeclined},
		{"4242424242424243", OutcomeError},
		{"4242424242424240", OutcomeApproved},
		{"4242424242424247", OutcomeApproved},
		{"", OutcomeError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Simulate(tt.card), "card %q", tt.card)
	}
}

func TestSimulate_Deterministic(t *testing.T) {
	for range 10 {
		assert.Equal(t, OutcomeDeclined, Simulate("5500000000000002"))
	}
}

func TestMaskCard(t *testing.T) {
	assert.Equal(t, "************4241", MaskCard("4242424242424241"))
	assert.Equal(t, "*1234", MaskCard("51234"))
	assert.Equal(t, "****", MaskCard("1234"))
	assert.Equal(t, "", MaskCard(""))
}
