package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidHexColor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		color string
		want  bool
	}{
		{"#f97316", true},
		{"#F97316", true},
		{"#000000", true},
		{"f97316", false},
		{"#f9731", false},
		{"#f973160", false},
		{"#gggggg", false},
		{"", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidHexColor(tt.color), "color %q", tt.color)
	}
}

func TestPartIdentity(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "bolt", PartIdentity("bolt"))
	assert.Equal(t, "bolt", PartIdentity("Bolt "))
	assert.Equal(t, "bolt", PartIdentity("  BOLT"))
	assert.Equal(t, "side panel", PartIdentity("Side Panel"))
	assert.Equal(t, "", PartIdentity("   "))
}
