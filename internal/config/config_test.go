package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) *Config {
	t.Helper()
	cfg := Default()
	cfg.ConfigPath = filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(cfg.ConfigPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := cfg.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	return cfg
}

func TestDefaults(t *testing.T) {
	cfg := Default()

	if !cfg.CombatTrackingEnabled() || !cfg.FightModeEnabled() {
		t.Error("tracking and fight mode default on")
	}
	if got := cfg.FightDuration(); got != 10*time.Minute {
		t.Errorf("fight duration: got %v", got)
	}
	if got := cfg.EscrowTimeout(); got != 5*time.Minute {
		t.Errorf("escrow timeout: got %v", got)
	}
	if got := cfg.PenaltyMode(); got != "STEAL" {
		t.Errorf("penalty mode: got %s", got)
	}
	if got := cfg.AutoFightHitCount(); got != 3 {
		t.Errorf("auto-fight hit count: got %d", got)
	}
	if got := cfg.HitDamageMultiplier(); got != 2.0 {
		t.Errorf("hit damage multiplier: got %v", got)
	}
	if got := cfg.KillBasePoints(); got != 50 {
		t.Errorf("kill base points: got %d", got)
	}
	if got := cfg.CacheCap(); got != 50 {
		t.Errorf("cache cap: got %d", got)
	}
}

func TestReloadOverlaysPartialFile(t *testing.T) {
	cfg := writeConfig(t, `
fight:
  defaultDurationSeconds: 120
  penaltyMode: death
escrow:
  timeoutSeconds: 60
`)

	if got := cfg.FightDuration(); got != 2*time.Minute {
		t.Errorf("fight duration: got %v", got)
	}
	if got := cfg.PenaltyMode(); got != "DEATH" {
		t.Errorf("penalty mode should be upper-cased, got %s", got)
	}
	if got := cfg.EscrowTimeout(); got != time.Minute {
		t.Errorf("escrow timeout: got %v", got)
	}
	// untouched sections keep their defaults
	if got := cfg.KillBasePoints(); got != 50 {
		t.Errorf("kill base points should keep default, got %d", got)
	}
}

func TestReloadMissingFileKeepsDefaults(t *testing.T) {
	cfg := Default()
	cfg.ConfigPath = filepath.Join(t.TempDir(), "nope.yml")

	if err := cfg.Reload(); err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if got := cfg.FightDuration(); got != 10*time.Minute {
		t.Errorf("expected defaults, got duration %v", got)
	}
}

func TestReloadMalformedFileKeepsPreviousSettings(t *testing.T) {
	cfg := writeConfig(t, "fight:\n  defaultDurationSeconds: 120\n")

	if err := os.WriteFile(cfg.ConfigPath, []byte("fight: [not a map"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := cfg.Reload(); err == nil {
		t.Fatal("malformed file should error")
	}
	if got := cfg.FightDuration(); got != 2*time.Minute {
		t.Errorf("previous settings should survive a failed reload, got %v", got)
	}
}

func TestToggles(t *testing.T) {
	cfg := Default()

	cfg.SetCombatTracking(false)
	if cfg.CombatTrackingEnabled() {
		t.Error("tracking should be off")
	}
	cfg.SetFightMode(false)
	if cfg.FightModeEnabled() {
		t.Error("fight mode should be off")
	}
}

func TestIsHighValueItem(t *testing.T) {
	cfg := writeConfig(t, "highValueItems:\n  - diamond\n  - Netherite_Ingot\n")

	if !cfg.IsHighValueItem("diamond") {
		t.Error("diamond should be high value")
	}
	if !cfg.IsHighValueItem("netherite_ingot") {
		t.Error("matching is case-insensitive")
	}
	if cfg.IsHighValueItem("elytra") {
		t.Error("overlay replaces the default list")
	}
}
