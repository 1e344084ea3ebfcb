package train

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/awender/fableforge/features/registry"
)

func testRegistry() *registry.Registry {
	roster := registry.Roster{
		Character1: registry.Character{FantasyName: "Olive Elmmist"},
		Character2: registry.Character{FantasyName: "Tobias Dunsmir"},
	}
	return registry.New(roster, registry.SynthesizeDefaults(roster))
}

func TestSelectSlots(t *testing.T) {
	reg := testRegistry()
	tests := []struct {
		value string
		slots []int
	}{
		{"", []int{0, 1}},
		{"1", []int{0}},
		{"2", []int{1}},
		{"character_1", []int{0}},
		{"character_2", []int{1}},
		{"Olive Elmmist", []int{0}},
		{"tobias dunsmir", []int{1}},
	}
	for _, test := range tests {
		slots, err := SelectSlots(reg, test.value)
		require.NoError(t, err, test.value)
		assert.Equal(t, test.slots, slots, test.value)
	}

	_, err := SelectSlots(reg, "3")
	assert.Error(t, err)
	_, err = SelectSlots(reg, "Brann")
	assert.Error(t, err)
}

func TestSlotKey(t *testing.T) {
	assert.Equal(t, "character_1", SlotKey(0))
	assert.Equal(t, "character_2", SlotKey(1))
}
