package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/samber/lo"
)

// TomlCategory represents a category entry from TOML
type TomlCategory struct {
	Name string `toml:"name"`
	Pos  int64  `toml:"pos"`
}

// TomlFeed represents a feed catalog entry from TOML
type TomlFeed struct {
	Name     string `toml:"name"`
	Url      string `toml:"url"`
	Category string `toml:"category"` // References a category by name
	FavIcon  string `toml:"fav_icon,omitempty"`
}

// TomlConfig represents the top-level configuration
type TomlConfig struct {
	Categories []TomlCategory `toml:"categories"`
	Feeds      []TomlFeed     `toml:"feeds"`
}

func LoadConfig(path string) (*TomlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config TomlConfig
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks the catalog for entries the registry could not ensure:
// missing urls, duplicate urls and feeds referencing unknown categories.
func (c *TomlConfig) Validate() error {
	categoryNames := lo.Map(c.Categories, func(cat TomlCategory, _ int) string {
		return cat.Name
	})

	if dup := lo.FindDuplicates(categoryNames); len(dup) > 0 {
		return fmt.Errorf("duplicate category names in config: %v", dup)
	}

	urls := make([]string, 0, len(c.Feeds))
	for _, feed := range c.Feeds {
		if feed.Name == "" {
			return fmt.Errorf("feed with url %q has no name", feed.Url)
		}
		if feed.Url == "" {
			return fmt.Errorf("feed %q has no url", feed.Name)
		}
		if !lo.Contains(categoryNames, feed.Category) {
			return fmt.Errorf("feed %q references unknown category %q", feed.Name, feed.Category)
		}
		urls = append(urls, feed.Url)
	}

	if dup := lo.FindDuplicates(urls); len(dup) > 0 {
		return fmt.Errorf("duplicate feed urls in config: %v", dup)
	}

	return nil
}
