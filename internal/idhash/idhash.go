// Package idhash derives deterministic record IDs from their natural keys.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// ComputeContributionID computes a deterministic contribution id.
// Formula: SHA256("contribution"|pool_id|seq|contributor)
// Returns hex-encoded hash (64 characters).
func ComputeContributionID(poolID string, seq uint64, contributor string) string {
	return sum("contribution", poolID, seq, contributor)
}

// ComputeRedemptionID computes a deterministic redemption id.
// Formula: SHA256("redemption"|pool_id|seq|holder)
func ComputeRedemptionID(poolID string, seq uint64, holder string) string {
	return sum("redemption", poolID, seq, holder)
}

// ComputeEventID computes a deterministic event id.
// Formula: SHA256("event"|pool_id|seq|kind)
func ComputeEventID(poolID string, seq uint64, kind string) string {
	return sum("event", poolID, seq, kind)
}

func sum(prefix, poolID string, seq uint64, key string) string {
	data := fmt.Sprintf("%s|%s|%d|%s", prefix, poolID, seq, strings.ToLower(key))
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
