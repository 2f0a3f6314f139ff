package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	BaseUrl  string   `json:"base_url"`
	Workers  int      `json:"workers"`
	Subjects []string `json:"subjects"`
}

func TestReadConfigMergesLocal(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "config.json5")

	err := os.WriteFile(base, []byte(`{
		// default scrape target
		base_url: "https://bulletins.psu.edu/university-course-descriptions/",
		workers: 3,
		subjects: ["CMPSC"],
	}`), 0o644)
	require.NoError(t, err)

	err = os.WriteFile(filepath.Join(dir, "config.local.json5"), []byte(`{
		workers: 1,
	}`), 0o644)
	require.NoError(t, err)

	cfg, err := ReadConfig[testConfig](base)
	require.NoError(t, err)
	require.Equal(t, "https://bulletins.psu.edu/university-course-descriptions/", cfg.BaseUrl)
	require.Equal(t, 1, cfg.Workers)
	require.Equal(t, []string{"CMPSC"}, cfg.Subjects)
}

func TestReadConfigMissing(t *testing.T) {
	_, err := ReadConfig[testConfig](filepath.Join(t.TempDir(), "nope.json5"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
