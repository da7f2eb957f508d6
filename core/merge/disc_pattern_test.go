package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDiscTitle(t *testing.T) {
	tests := []struct {
		title    string
		position int
		name     string
		ok       bool
	}{
		{"Album (disc 2)", 2, "", true},
		{"Album (disc 2: Bonus)", 2, "Bonus", true},
		{"Album (Disc 10: The Rarities)", 10, "The Rarities", true},
		{"Album (disk 3)", 3, "", true},
		{"Album (DISC 1)", 1, "", true},
		{"  Album (disc 4)  ", 4, "", true},
		{"Album", 0, "", false},
		{"Album (disc)", 0, "", false},
		{"Album (disc two)", 0, "", false},
		{"Album (disc 0)", 0, "", false},
		{"(disc 2) Album", 0, "", false},
		{"", 0, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			pos, name, ok := ParseDiscTitle(tt.title)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.position, pos)
				assert.Equal(t, tt.name, name)
			}
		})
	}
}
