package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadHome_BundledFileMatchesDefault(t *testing.T) {
	home, err := LoadHome(filepath.Join("..", "..", "configs", "home.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultHome(), home)
}

func TestLoadHome_MissingFileUsesDefault(t *testing.T) {
	home, err := LoadHome(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Len(t, home.Rooms, 8)
	assert.True(t, home.SymmetricTopology)
}

func TestLoadHome_ReadError(t *testing.T) {
	// A directory cannot be read as a file
	_, err := LoadHome(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read home file")
}

func TestParseHome(t *testing.T) {
	home, err := ParseHome([]byte(`
outside: {temperature: 4, humidity: 90}
rooms:
  - id: bath
    category: bathroom
    has_window: true
    entities: {humidity: sensor.bath_hum}
  - id: hall
topology:
  bath: [hall]
limits:
  bathroom: {temp_min: 21, temp_max: 24, hum_min: 40, hum_max: 65}
`))
	require.NoError(t, err)

	require.Len(t, home.Rooms, 2)
	bath, ok := home.Room("bath")
	require.True(t, ok)
	assert.True(t, bath.HasWindow)
	assert.True(t, bath.Entities.Mapped())
	hall, _ := home.Room("hall")
	assert.False(t, hall.Entities.Mapped())
	assert.Equal(t, 65.0, home.Limits["bathroom"].HumMax)
	assert.False(t, home.SymmetricTopology)

	_, ok = home.Room("attic")
	assert.False(t, ok)
}

func TestHomeValidate(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"no rooms", "rooms: []", "at least one room"},
		{"missing id", "rooms:\n  - name: Hall", "room id is required"},
		{"duplicate id", "rooms:\n  - id: a\n  - id: a", "duplicate room id: a"},
		{"unknown topology source", "rooms:\n  - id: a\ntopology:\n  b: [a]", "unknown room: b"},
		{"unknown neighbour", "rooms:\n  - id: a\ntopology:\n  a: [c]", "topology of a references unknown room: c"},
		{"malformed", "rooms: {", "failed to parse home file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseHome([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadHome_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "home.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rooms:\n  - id: studio\n    category: living\n"), 0o644))

	home, err := LoadHome(path)
	require.NoError(t, err)
	require.Len(t, home.Rooms, 1)
	assert.Equal(t, "studio", home.Rooms[0].ID)
}
