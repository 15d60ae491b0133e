package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrissnell/xrdquant/pkg/config"
)

const sampleYAML = `libraries:
  - name: clays
    patterns: /data/clays/patterns.csv
    phases: /data/clays/phases.csv
fitting:
  std: COR
  lod: 0.1
  solver: nnls
storage:
  sqlite:
    path: /var/lib/xrdquant/fits.db
controllers:
  - type: rest
    rest:
      port: 8080
`

func TestConvert(t *testing.T) {
	dir := t.TempDir()
	yamlFile := filepath.Join(dir, "xrdquant.yaml")
	require.NoError(t, os.WriteFile(yamlFile, []byte(sampleYAML), 0o644))
	dbFile := filepath.Join(dir, "out", "xrdquant.db")

	require.NoError(t, convert(yamlFile, dbFile, false, false))

	p, err := config.NewSQLiteProvider(dbFile)
	require.NoError(t, err)
	cfg, err := p.LoadConfig()
	require.NoError(t, err)
	require.NoError(t, p.Close())

	require.Len(t, cfg.Libraries, 1)
	assert.Equal(t, "clays", cfg.Libraries[0].Name)
	assert.Equal(t, "COR", cfg.Fitting.Standard)
	require.Len(t, cfg.Controllers, 1)
	assert.Equal(t, 8080, cfg.Controllers[0].RESTServer.Port)

	// Existing targets need -force
	assert.Error(t, convert(yamlFile, dbFile, false, false))
	assert.NoError(t, convert(yamlFile, dbFile, true, false))
}

func TestConvertDryRun(t *testing.T) {
	dir := t.TempDir()
	yamlFile := filepath.Join(dir, "xrdquant.yaml")
	require.NoError(t, os.WriteFile(yamlFile, []byte(sampleYAML), 0o644))
	dbFile := filepath.Join(dir, "xrdquant.db")

	require.NoError(t, convert(yamlFile, dbFile, false, true))
	_, err := os.Stat(dbFile)
	assert.True(t, os.IsNotExist(err))

	assert.Error(t, convert(filepath.Join(dir, "missing.yaml"), dbFile, false, false))
}
