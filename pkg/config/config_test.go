package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
libraries:
  - name: rockjock
    patterns: /srv/libs/rockjock.csv
    phases: /srv/libs/rockjock_phases.csv
    wavelength: 1.54056
fitting:
  std: COR.1
  std_conc: 20
  align: 0.3
  shift: 0.05
  harmonise: true
  solver: nnls
  lod: 1.25
  force: [QUA.1]
  amorphous: [FER.1, ORG.1]
  amorphous_lod: 2
  workers: 4
storage:
  sqlite:
    path: /var/lib/xrdquant/fits.db
  timescaledb:
    connection-string: postgres://xrd@localhost/xrd
controllers:
  - type: rest
    rest:
      port: 8080
      listen-addr: 127.0.0.1
      auth-token: s3cret
  - type: grpc
    grpc:
      port: 5050
  - type: watcher
    watcher:
      inbox: /srv/inbox
      library: rockjock
      pattern: "*.xy"
      debounce: 2s
      processed: /srv/done
`

func writeYAML(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))
	return path
}

func checkConfig(t *testing.T, cfg *ConfigData) {
	t.Helper()
	require.Len(t, cfg.Libraries, 1)
	assert.Equal(t, LibraryData{
		Name:       "rockjock",
		Patterns:   "/srv/libs/rockjock.csv",
		Phases:     "/srv/libs/rockjock_phases.csv",
		Wavelength: 1.54056,
	}, cfg.Libraries[0])

	f := cfg.Fitting
	assert.Equal(t, "COR.1", f.Standard)
	assert.Equal(t, 20.0, f.StandardConc)
	assert.Equal(t, 0.3, f.Align)
	assert.True(t, f.Harmonise)
	assert.False(t, f.Closed)
	assert.Equal(t, []string{"QUA.1"}, f.Force)
	assert.Equal(t, []string{"FER.1", "ORG.1"}, f.Amorphous)
	assert.Equal(t, 4, f.Workers)

	require.NotNil(t, cfg.Storage.SQLite)
	assert.Equal(t, "/var/lib/xrdquant/fits.db", cfg.Storage.SQLite.Path)
	require.NotNil(t, cfg.Storage.TimescaleDB)
	assert.Equal(t, "postgres://xrd@localhost/xrd", cfg.Storage.TimescaleDB.ConnectionString)

	require.Len(t, cfg.Controllers, 3)
	require.NotNil(t, cfg.Controllers[0].RESTServer)
	assert.Equal(t, 8080, cfg.Controllers[0].RESTServer.Port)
	assert.Equal(t, "127.0.0.1", cfg.Controllers[0].RESTServer.ListenAddr)
	assert.Equal(t, "s3cret", cfg.Controllers[0].RESTServer.AuthToken)
	require.NotNil(t, cfg.Controllers[1].GRPC)
	assert.Equal(t, 5050, cfg.Controllers[1].GRPC.Port)
	require.NotNil(t, cfg.Controllers[2].Watcher)
	assert.Equal(t, WatcherData{
		Inbox:     "/srv/inbox",
		Library:   "rockjock",
		Pattern:   "*.xy",
		Debounce:  "2s",
		Processed: "/srv/done",
	}, *cfg.Controllers[2].Watcher)
}

func TestYAMLProvider(t *testing.T) {
	p := NewYAMLProvider(writeYAML(t))
	assert.True(t, p.IsReadOnly())

	libs, err := p.GetLibraries()
	require.NoError(t, err)
	assert.Len(t, libs, 1)

	cfg, err := p.LoadConfig()
	require.NoError(t, err)
	checkConfig(t, cfg)
	assert.NoError(t, p.Close())
}

func TestYAMLProviderMissingFile(t *testing.T) {
	_, err := NewYAMLProvider(filepath.Join(t.TempDir(), "nope.yaml")).GetFitting()
	assert.Error(t, err)
}

func TestSQLiteProviderRoundTrip(t *testing.T) {
	src, err := NewYAMLProvider(writeYAML(t)).LoadConfig()
	require.NoError(t, err)

	dbPath := filepath.Join(t.TempDir(), "config.db")
	p, err := NewSQLiteProvider(dbPath)
	require.NoError(t, err)
	assert.False(t, p.IsReadOnly())

	empty, err := p.LoadConfig()
	require.NoError(t, err)
	assert.Empty(t, empty.Libraries)
	assert.Nil(t, empty.Storage.SQLite)

	require.NoError(t, p.SaveConfig(src))
	// Saving twice replaces rather than duplicates
	require.NoError(t, p.SaveConfig(src))
	require.NoError(t, p.Close())

	reopened, err := NewSQLiteProvider(dbPath)
	require.NoError(t, err)
	defer reopened.Close()

	cfg, err := reopened.LoadConfig()
	require.NoError(t, err)
	checkConfig(t, cfg)
}
