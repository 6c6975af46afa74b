package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kdwils/feedreader/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "feeds.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
[[feeds]]
name = "Example Blog"
site_url = "https://example.com"
feed_url = "https://example.com/rss.xml"

[[feeds]]
name = "Another"
feed_url = "https://another.example.com/atom.xml"
`)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	require.Len(t, cfg.Feeds, 2)

	assert.Equal(t, "Example Blog", cfg.Feeds[0].Name)
	assert.Equal(t, "https://example.com", cfg.Feeds[0].SiteURL)
	assert.Equal(t, "https://example.com/rss.xml", cfg.Feeds[0].FeedURL)
	assert.Empty(t, cfg.Feeds[1].SiteURL)
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		missing bool
	}{
		{
			name:    "missing file",
			missing: true,
		},
		{
			name:    "malformed toml",
			content: "[[feeds]\nname = broken",
		},
		{
			name:    "missing feed url",
			content: "[[feeds]]\nname = \"No URL\"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "missing.toml")
			if !tt.missing {
				path = writeConfig(t, tt.content)
			}

			_, err := config.LoadConfig(path)
			assert.Error(t, err)
		})
	}
}
