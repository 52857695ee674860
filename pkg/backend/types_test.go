package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
	}{
		{"", ModePlanning},
		{"planning", ModePlanning},
		{"BUILDING", ModeBuilding},
		{" Building ", ModeBuilding},
	}
	for _, tc := range tests {
		got, err := ParseMode(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}

	_, err := ParseMode("REVIEW")
	assert.Error(t, err)
}

func TestModeOtherRoundTrip(t *testing.T) {
	assert.Equal(t, ModeBuilding, ModePlanning.Other())
	assert.Equal(t, ModePlanning, ModeBuilding.Other())
	assert.Equal(t, ModePlanning, ModePlanning.Other().Other())
	assert.NotEqual(t, ModePlanning.Hint(), ModeBuilding.Hint())
}

func TestEffectiveMode(t *testing.T) {
	assert.Equal(t, ModePlanning, (&Conversation{}).EffectiveMode())
	assert.Equal(t, ModeBuilding, (&Conversation{Mode: "building"}).EffectiveMode())
	assert.Equal(t, ModeBuilding, (&Conversation{CurrentMode: ModeBuilding}).EffectiveMode())
}
