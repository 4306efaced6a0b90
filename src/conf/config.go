package conf

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/ini.v1"

	"pagedb/src/disk"
)

// ConfigFileName is looked up inside the data directory.
const ConfigFileName = "pagedb.ini"

// Config holds the per-data-directory storage settings. The page size is
// fixed for the whole directory; changing it under existing files corrupts
// them, so it is only ever read from here.
type Config struct {
	DataDir string

	// [storage]
	PageSize     int
	PoolCapacity int
	Policy       disk.Policy
	EvictionLog  bool
}

// Default returns the settings used when no config file is present.
func Default(dataDir string) Config {
	return Config{
		DataDir:      dataDir,
		PageSize:     disk.DefaultPageSize,
		PoolCapacity: disk.DefaultPoolCapacity,
		Policy:       disk.PolicyLRU,
		EvictionLog:  false,
	}
}

// Load reads <dataDir>/pagedb.ini, falling back to defaults for a missing
// file or missing keys.
func Load(dataDir string) (Config, error) {
	cfg := Default(dataDir)

	path := filepath.Join(dataDir, ConfigFileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	file, err := ini.Load(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "load %s", path)
	}

	sec := file.Section("storage")
	cfg.PageSize = sec.Key("page_size").MustInt(cfg.PageSize)
	cfg.PoolCapacity = sec.Key("pool_capacity").MustInt(cfg.PoolCapacity)
	cfg.EvictionLog = sec.Key("eviction_log").MustBool(cfg.EvictionLog)
	switch policy := sec.Key("replacer").In(string(cfg.Policy), []string{string(disk.PolicyLRU), string(disk.PolicyClock)}); policy {
	case string(disk.PolicyClock):
		cfg.Policy = disk.PolicyClock
	default:
		cfg.Policy = disk.PolicyLRU
	}

	if cfg.PageSize <= 0 || cfg.PageSize%512 != 0 {
		log.Warnf("Ignoring page_size %d: must be a positive multiple of 512.", cfg.PageSize)
		cfg.PageSize = disk.DefaultPageSize
	}
	if cfg.PoolCapacity <= 0 {
		log.Warnf("Ignoring pool_capacity %d: must be positive.", cfg.PoolCapacity)
		cfg.PoolCapacity = disk.DefaultPoolCapacity
	}
	return cfg, nil
}

// HandleOptions converts the config into the options every Acquire uses.
func (c Config) HandleOptions() disk.HandleOptions {
	return disk.HandleOptions{
		PageSize:    c.PageSize,
		Capacity:    c.PoolCapacity,
		Policy:      c.Policy,
		EvictionLog: c.EvictionLog,
	}
}
