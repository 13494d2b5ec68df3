package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"streakAPI/internal/achievement"
)

type badgeFile struct {
	Badges []achievement.Definition `toml:"badge"`
}

// LoadBadgeTable reads badge thresholds from a TOML file of [[badge]]
// entries. An empty path yields the built-in table.
func LoadBadgeTable(path string) (*achievement.Table, error) {
	if path == "" {
		return achievement.NewTable(achievement.DefaultDefinitions())
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open badge table: %w", err)
	}
	defer file.Close()

	var bf badgeFile
	if err := toml.NewDecoder(file).Decode(&bf); err != nil {
		return nil, fmt.Errorf("failed to decode badge table %s: %w", path, err)
	}
	if len(bf.Badges) == 0 {
		return nil, fmt.Errorf("badge table %s defines no badges", path)
	}

	table, err := achievement.NewTable(bf.Badges)
	if err != nil {
		return nil, fmt.Errorf("invalid badge table %s: %w", path, err)
	}
	return table, nil
}
