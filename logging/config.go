package logging

import "time"

// Config shapes the router for a desktop client: a console stream the
// player watches and an optional session file. Muted categories are
// filtered before any sink sees them.
type Config struct {
	BufferSize       int
	MinimumSeverity  Severity
	MutedCategories  []string
	Fields           map[string]any
	JSON             JSONConfig
	Console          ConsoleConfig
	DropWarnInterval time.Duration
}

// JSONConfig controls the session log file sink.
type JSONConfig struct {
	FilePath      string
	FlushInterval time.Duration
}

type ConsoleConfig struct {
	UseColor bool
}

func DefaultConfig() Config {
	return Config{
		BufferSize:       512,
		MinimumSeverity:  SeverityInfo,
		DropWarnInterval: 5 * time.Second,
		JSON: JSONConfig{
			FlushInterval: 2 * time.Second,
		},
	}
}

func (c Config) mutedSet() map[string]bool {
	if len(c.MutedCategories) == 0 {
		return nil
	}
	muted := make(map[string]bool, len(c.MutedCategories))
	for _, cat := range c.MutedCategories {
		muted[cat] = true
	}
	return muted
}

func (c Config) CloneFields() map[string]any {
	if len(c.Fields) == 0 {
		return nil
	}
	cloned := make(map[string]any, len(c.Fields))
	for k, v := range c.Fields {
		cloned[k] = v
	}
	return cloned
}
