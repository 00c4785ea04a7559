package constants

import "time"

const (
	FightTickInterval   = 1 * time.Second
	EscrowSweepInterval = 10 * time.Second
	EscrowRespawnDelay  = 500 * time.Millisecond
	EscrowUnsafeRetry   = 2 * time.Second
)

const (
	DefaultCacheCap     = 50
	LookupOversample    = 2
	DiskScanConcurrency = 4
	MaxLookupLimit      = 20
	DefaultLookupLimit  = 10
	StatusNamesPerTeam  = 3
	MaxWeaponTier       = 6
)

const (
	DBMaxOpenConns    = 1
	DBMaxIdleConns    = 1
	DBConnMaxLifetime = 1 * time.Hour
	DatabaseTimeout   = 5 * time.Second
)

const (
	ShutdownTimeout = 5 * time.Second
)
