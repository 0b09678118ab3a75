package backend

import (
	"errors"
	"fmt"
	"os"

	"bilancio/internal/config"
)

// FromAppConfig picks the storage settings out of the process config.
func FromAppConfig(cfg *config.Config) (Config, error) {
	if cfg == nil {
		return Config{}, errors.New("app config is nil")
	}
	c := Config{
		Type:          BackendType(cfg.DataBackend),
		SQLiteDBPath:  cfg.SQLiteDBPath,
		SeedDirectory: cfg.SeedDir,
	}
	if !c.Type.IsValid() {
		return Config{}, fmt.Errorf("unknown data backend %q, expected one of %v", cfg.DataBackend, GetBackendTypeStrings())
	}
	return c, nil
}

// Validate reports the first setting the selected backend cannot work with.
func (c Config) Validate() error {
	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return errors.New("sqlite backend needs a database path")
		}
	case MemoryBackend:
		if c.SeedDirectory == "" {
			return nil
		}
		if info, err := os.Stat(c.SeedDirectory); err != nil || !info.IsDir() {
			return fmt.Errorf("seed directory %q is not a readable directory", c.SeedDirectory)
		}
	default:
		return fmt.Errorf("unknown data backend %q, expected one of %v", c.Type, GetBackendTypeStrings())
	}
	return nil
}

// GetBackendTypes lists the supported backends, preferred first.
func GetBackendTypes() []BackendType {
	return []BackendType{SQLiteBackend, MemoryBackend}
}

func GetBackendTypeStrings() []string {
	types := GetBackendTypes()
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = t.String()
	}
	return out
}
