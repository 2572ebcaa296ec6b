package util

import (
	"time"

	"github.com/spf13/viper"
)

// GetLooseScope returns whether mutations outside a transaction scope are
// logged and dropped instead of failing. Strict is the default; enable the
// loose behavior with --loose-scope or SPM_LOOSE_SCOPE.
func GetLooseScope() bool {
	return viper.GetBool("loose-scope")
}

// GetStaleAfter returns the configured re-fetch age for fetched entities.
// Zero means fetched entities are never re-fetched.
func GetStaleAfter() time.Duration {
	return viper.GetDuration("stale-after")
}
