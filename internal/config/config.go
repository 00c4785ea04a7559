package config

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// settings mirrors the tracker's yaml config file. Zero values are replaced
// by defaults() before the file is overlaid, so a partial file is fine.
type settings struct {
	EnableCombatTracking *bool `yaml:"enableCombatTracking"`
	EnableFightMode      *bool `yaml:"enableFightMode"`

	Fight struct {
		DefaultDurationSeconds   int64  `yaml:"defaultDurationSeconds"`
		PenaltyMode              string `yaml:"penaltyMode"`
		Broadcast                *bool  `yaml:"broadcast"`
		KeepInventoryDuringFight *bool  `yaml:"keepInventoryDuringFight"`
		KeepInventoryFightEnd    *bool  `yaml:"keepInventoryFightEnd"`
	} `yaml:"fight"`

	Escrow struct {
		TimeoutSeconds int64 `yaml:"timeoutSeconds"`
	} `yaml:"escrow"`

	AutoFight struct {
		HitCount          int   `yaml:"hitCount"`
		TimeWindowSeconds int64 `yaml:"timeWindowSeconds"`
	} `yaml:"autoFight"`

	Scoring struct {
		HitDamageMultiplier    float64 `yaml:"hitDamageMultiplier"`
		BlockHitterPoints      int     `yaml:"blockHitterPoints"`
		BlockBlockerPoints     int     `yaml:"blockBlockerPoints"`
		KillBasePoints         int     `yaml:"killBasePoints"`
		ArmorBonusPerTier      int     `yaml:"armorBonusPerTier"`
		WeakWeaponBonusPerTier int     `yaml:"weakWeaponBonusPerTier"`
	} `yaml:"scoring"`

	Cache struct {
		MaxRecordsPerAttacker int `yaml:"maxRecordsPerAttacker"`
	} `yaml:"cache"`

	Persistence struct {
		FlushIntervalSeconds int64 `yaml:"flushIntervalSeconds"`
	} `yaml:"persistence"`

	HighValueItems []string `yaml:"highValueItems"`
}

func defaults() settings {
	var s settings
	s.Fight.DefaultDurationSeconds = 600
	s.Fight.PenaltyMode = "STEAL"
	s.Escrow.TimeoutSeconds = 300
	s.AutoFight.HitCount = 3
	s.AutoFight.TimeWindowSeconds = 10
	s.Scoring.HitDamageMultiplier = 2.0
	s.Scoring.BlockHitterPoints = 1
	s.Scoring.BlockBlockerPoints = 5
	s.Scoring.KillBasePoints = 50
	s.Scoring.ArmorBonusPerTier = 10
	s.Scoring.WeakWeaponBonusPerTier = 15
	s.Cache.MaxRecordsPerAttacker = 50
	s.Persistence.FlushIntervalSeconds = 300
	s.HighValueItems = []string{"diamond", "netherite_ingot", "elytra"}
	return s
}

// Config holds the tracker settings. File-backed values can be reloaded at
// runtime; getters are safe for concurrent use.
type Config struct {
	ConfigPath string
	DataDir    string
	DBPath     string
	LogLevel   string

	mu sync.RWMutex
	s  settings
}

// Default returns a Config carrying the built-in settings, with no file or
// environment involved. Point ConfigPath at a yaml file and call Reload to
// overlay it.
func Default() *Config {
	return &Config{
		ConfigPath: "config.yml",
		DataDir:    "data",
		DBPath:     "tracker.db",
		LogLevel:   "info",
		s:          defaults(),
	}
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg := &Config{
		ConfigPath: getEnv("CONFIG_PATH", "config.yml"),
		DataDir:    getEnv("DATA_DIR", "data"),
		DBPath:     getEnv("DB_PATH", "tracker.db"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.Reload(); err != nil {
		return nil, err
	}

	logger.Info().
		Str("config_path", cfg.ConfigPath).
		Str("data_dir", cfg.DataDir).
		Str("db_path", cfg.DBPath).
		Bool("combat_tracking", cfg.CombatTrackingEnabled()).
		Bool("fight_mode", cfg.FightModeEnabled()).
		Str("penalty_mode", cfg.PenaltyMode()).
		Dur("fight_duration", cfg.FightDuration()).
		Dur("escrow_timeout", cfg.EscrowTimeout()).
		Msg("configuration loaded")

	return cfg, nil
}

// Reload re-reads the yaml file. A missing file leaves the defaults in place;
// a malformed file is an error and the previous settings are kept.
func (c *Config) Reload() error {
	s := defaults()

	raw, err := os.ReadFile(c.ConfigPath)
	if err == nil {
		if err := yaml.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("failed to parse %s: %w", c.ConfigPath, err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to read %s: %w", c.ConfigPath, err)
	}

	c.mu.Lock()
	c.s = s
	c.mu.Unlock()
	return nil
}

func (c *Config) CombatTrackingEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return boolOr(c.s.EnableCombatTracking, true)
}

func (c *Config) FightModeEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return boolOr(c.s.EnableFightMode, true)
}

// SetCombatTracking toggles the tracking gate in memory (admin toggle).
func (c *Config) SetCombatTracking(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.s.EnableCombatTracking = &enabled
}

func (c *Config) SetFightMode(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.s.EnableFightMode = &enabled
}

func (c *Config) FightDuration() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.s.Fight.DefaultDurationSeconds) * time.Second
}

func (c *Config) PenaltyMode() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return strings.ToUpper(c.s.Fight.PenaltyMode)
}

func (c *Config) BroadcastEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return boolOr(c.s.Fight.Broadcast, true)
}

func (c *Config) KeepInventoryDuringFight() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return boolOr(c.s.Fight.KeepInventoryDuringFight, true)
}

func (c *Config) KeepInventoryFightEnd() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return boolOr(c.s.Fight.KeepInventoryFightEnd, false)
}

func (c *Config) EscrowTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.s.Escrow.TimeoutSeconds) * time.Second
}

func (c *Config) AutoFightHitCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.s.AutoFight.HitCount
}

func (c *Config) AutoFightWindow() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.s.AutoFight.TimeWindowSeconds) * time.Second
}

func (c *Config) HitDamageMultiplier() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.s.Scoring.HitDamageMultiplier
}

func (c *Config) BlockHitterPoints() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.s.Scoring.BlockHitterPoints
}

func (c *Config) BlockBlockerPoints() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.s.Scoring.BlockBlockerPoints
}

func (c *Config) KillBasePoints() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.s.Scoring.KillBasePoints
}

func (c *Config) ArmorBonusPerTier() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.s.Scoring.ArmorBonusPerTier
}

func (c *Config) WeakWeaponBonusPerTier() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.s.Scoring.WeakWeaponBonusPerTier
}

func (c *Config) CacheCap() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.s.Cache.MaxRecordsPerAttacker
}

func (c *Config) FlushInterval() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.s.Persistence.FlushIntervalSeconds) * time.Second
}

func (c *Config) IsHighValueItem(item string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, hv := range c.s.HighValueItems {
		if strings.EqualFold(hv, item) {
			return true
		}
	}
	return false
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func boolOr(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}
