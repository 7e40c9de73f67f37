package territory

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	terr := Default()
	require.NoError(t, terr.Validate())
	assert.Equal(t, "NL", terr.Name)
	assert.Len(t, terr.Queries(), len(terr.Cities)*len(terr.Keywords))
}

func TestContains(t *testing.T) {
	terr := Default()

	// St. John's is inside the province box; Halifax is not.
	assert.True(t, terr.Contains(47.56, -52.71))
	assert.False(t, terr.Contains(44.65, -63.57))
}

func TestQueries_Format(t *testing.T) {
	terr := &Territory{
		Name:     "test",
		Bounds:   Bounds{MinLat: 0, MinLng: 0, MaxLat: 1, MaxLng: 1},
		Cities:   []string{"Gander NL"},
		Keywords: []string{"plumber", "hvac"},
	}
	assert.Equal(t, []string{"plumber in Gander NL", "hvac in Gander NL"}, terr.Queries())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "territory.yaml")
	yaml := `name: avalon
bounds:
  min_lat: 46.5
  min_lng: -54.0
  max_lat: 48.2
  max_lng: -52.0
cities:
  - "St. John's NL"
keywords:
  - plumber
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	terr, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "avalon", terr.Name)
	assert.True(t, terr.Contains(47.5, -53.0))
}

func TestLoadFile_RejectsDegenerateBounds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "territory.yaml")
	yaml := `name: broken
bounds:
  min_lat: 50.0
  min_lng: -52.0
  max_lat: 46.0
  max_lng: -54.0
cities: ["x"]
keywords: ["y"]
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	_, err := LoadFile(path)
	assert.Error(t, err)
}

func TestLoad_EmptyPathUsesDefault(t *testing.T) {
	terr, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "NL", terr.Name)
}
