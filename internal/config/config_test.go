package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeTempConfig(t, `{
		"manuscript": "novela.txt",
		"audit": "auditoria.json",
		"pause_ms": 250,
		"auto_approve": true,
		"port": 9090
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "novela.txt", cfg.Manuscript)
	assert.Equal(t, "auditoria.json", cfg.Audit)
	assert.Equal(t, 250, cfg.PauseMs)
	assert.True(t, cfg.AutoApprove)
	assert.Equal(t, 9090, cfg.Port)
}

func TestLoadConfigEmptyPath(t *testing.T) {
	_, err := LoadConfig("")
	assert.Error(t, err)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestLoadConfigInvalidJSON(t *testing.T) {
	path := writeTempConfig(t, `{"manuscript": `)

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	manuscript := filepath.Join(t.TempDir(), "novela.txt")
	require.NoError(t, os.WriteFile(manuscript, []byte("Capítulo 1\n"), 0o644))

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid config",
			cfg:  Config{Manuscript: manuscript, PauseMs: 100, Port: 8080},
		},
		{
			name:    "negative pause",
			cfg:     Config{PauseMs: -1},
			wantErr: true,
		},
		{
			name:    "port out of range",
			cfg:     Config{Port: 70000},
			wantErr: true,
		},
		{
			name:    "manuscript file missing",
			cfg:     Config{Manuscript: "/no/such/file.txt"},
			wantErr: true,
		},
		{
			name:    "audit file missing",
			cfg:     Config{Audit: "/no/such/audit.json"},
			wantErr: true,
		},
		{
			name: "empty config is valid",
			cfg:  Config{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMergeWithDefaults(t *testing.T) {
	cfg := Config{Manuscript: "mi-novela.txt", PauseMs: 100}
	defaults := Config{
		Manuscript: "default.txt",
		Audit:      "default-audit.json",
		PauseMs:    500,
		Port:       8080,
	}

	merged := cfg.MergeWithDefaults(defaults)
	// Explicit values win.
	assert.Equal(t, "mi-novela.txt", merged.Manuscript)
	assert.Equal(t, 100, merged.PauseMs)
	// Empty fields fall back to defaults.
	assert.Equal(t, "default-audit.json", merged.Audit)
	assert.Equal(t, 8080, merged.Port)
}
