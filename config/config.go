package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Subscription is one seed feed from the config file. Feeds added through
// the API or CLI live only in the database; the file just bootstraps a
// fresh install.
type Subscription struct {
	Name    string `toml:"name"`
	SiteURL string `toml:"site_url"`
	FeedURL string `toml:"feed_url"`
}

// Config represents the top-level configuration
type Config struct {
	Feeds []Subscription `toml:"feeds"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	for i, feed := range config.Feeds {
		if feed.FeedURL == "" {
			return nil, fmt.Errorf("feed %d (%s) is missing feed_url", i, feed.Name)
		}
	}

	return &config, nil
}
