package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/windsite/internal/config"
)

// testConfig loads the default configuration from an empty directory.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(t.TempDir()))
	defer os.Chdir(origDir)

	c, err := config.Load()
	require.NoError(t, err)
	return c
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const constraints = `{"type":"FeatureCollection","features":[
  {"type":"Feature","geometry":{"type":"Point","coordinates":[0.018,0]},"properties":{"building":"house"}},
  {"type":"Feature","geometry":{"type":"Point","coordinates":[0.054,0]},"properties":{"building":"house"}},
  {"type":"Feature","geometry":{"type":"LineString","coordinates":[[0.01,-0.01],[0.01,0.01]]},"properties":{"highway":"primary"}},
  {"type":"Feature","geometry":null,"properties":{"building":"house"}}
]}`

const overpassDoc = `{"version":0.6,"elements":[
  {"type":"node","id":1,"lat":0,"lon":0.018,"tags":{"building":"house"}},
  {"type":"way","id":2,"geometry":[{"lat":-0.01,"lon":0.01},{"lat":0.01,"lon":0.01}],"tags":{"waterway":"river"}}
]}`
