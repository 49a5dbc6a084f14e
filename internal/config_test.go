package internal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/kvault/internal/models"
	pkgconfig "github.com/starford/kvault/pkg/config"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled"}
	require.NoError(t, cfg.Validate())
	assert.False(t, cfg.AuthEnabled())
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, AuthModeDisabled, cfg.Mode)
}

func TestAuthConfig_TokenMode(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.AuthEnabled())

	cfg = AuthConfig{Mode: "token"}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token is empty")
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	assert.Error(t, cfg.Validate())
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, []string{"~/.kvault"}, cfg.Corpus.Paths)
	assert.Equal(t, models.BackendAuto, cfg.Search.DefaultBackend())
	assert.Equal(t, 1.2, cfg.Search.BM25.Params().K1)
}

func TestSearchConfig_Validation(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Search.Backend = "lucene"
	assert.Error(t, cfg.Validate())

	cfg = NewDefaultConfig()
	cfg.Search.BM25.B = 1.5
	assert.Error(t, cfg.Validate())

	cfg = NewDefaultConfig()
	cfg.Search.Backend = "ripgrep"
	require.NoError(t, cfg.Validate())
	assert.Equal(t, models.BackendPlain, cfg.Search.DefaultBackend())
}

func TestCorpusConfig_EmptyPathRejected(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Corpus.Paths = []string{"/a", ""}
	assert.Error(t, cfg.Validate())
}

func TestCorpusConfig_ExpandedPaths(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	cfg := CorpusConfig{Paths: []string{"~/.kvault", "/srv/kb"}}
	assert.Equal(t, []string{filepath.Join(home, ".kvault"), "/srv/kb"}, cfg.ExpandedPaths())
}

func TestLoad_TOMLOverlaysDefaults(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.toml")
	body := "[corpus]\npaths = [\"/srv/kb\", \"/srv/team\"]\n\n[search]\nbackend = \"ranked\"\n"
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))

	cfg := NewDefaultConfig()
	require.NoError(t, pkgconfig.Load(p, cfg))
	assert.Equal(t, []string{"/srv/kb", "/srv/team"}, cfg.Corpus.Paths)
	assert.Equal(t, models.BackendRanked, cfg.Search.DefaultBackend())
	assert.Equal(t, DefaultSearchLimit, cfg.Search.DefaultLimit)
	assert.Equal(t, 8080, cfg.App.HTTP.Port)
}
