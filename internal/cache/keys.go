package cache

import (
	"fmt"
	"regexp"
	"time"
)

const (
	KeyDashboard = "dashboard:snapshot"
	KeyClaims    = "claims:unified"

	DefaultDashboardTTL = 5 * time.Minute
	DefaultClaimsTTL    = 10 * time.Minute

	MaxKeyLength = 200
)

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9:_.\-]+$`)

// ValidateKey rejects keys that cannot be used as a store key on every backend.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("cache key is required")
	}
	if len(key) > MaxKeyLength {
		return fmt.Errorf("cache key longer than %d characters", MaxKeyLength)
	}
	if !keyPattern.MatchString(key) {
		return fmt.Errorf("cache key %q contains invalid characters", key)
	}
	return nil
}
