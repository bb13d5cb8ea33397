package features

import "time"

// Account tier labels, ordered by time.
const (
	TierPreUpgrade  = "pre_upgrade"
	TierUpgraded    = "upgraded"
	TierPostUpgrade = "post_upgrade"
)

// Config carries the knobs the feature engine needs. The zero value is not
// usable; start from DefaultConfig.
type Config struct {
	// SelfUserID is the archive owner's user id. When empty it is inferred
	// from the table (username hint, then author-id mode, then reply-target
	// mode); inference failure degrades reply_type rather than erroring.
	SelfUserID   string
	UsernameHint string

	// Tier cutover dates. TierUpgraded covers both boundaries inclusively.
	TierUpgradedStart    time.Time
	TierPostUpgradeStart time.Time

	// WinsorizeQuantile is the engagement cap quantile, recomputed per call.
	WinsorizeQuantile float64
}

func DefaultConfig() Config {
	return Config{
		TierUpgradedStart:    time.Date(2023, 9, 12, 0, 0, 0, 0, time.UTC),
		TierPostUpgradeStart: time.Date(2024, 9, 12, 0, 0, 0, 0, time.UTC),
		WinsorizeQuantile:    0.95,
	}
}

func tier(tm time.Time, cfg Config) string {
	if tm.Before(cfg.TierUpgradedStart) {
		return TierPreUpgrade
	}
	if !tm.After(cfg.TierPostUpgradeStart) {
		return TierUpgraded
	}
	return TierPostUpgrade
}
