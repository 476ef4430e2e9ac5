package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// PositionID computes a deterministic position identifier using SHA256.
// Formula: SHA256(run_id|strategy_id|market_id|outcome|entry_unix_ms)
// Returns hex-encoded hash (64 characters).
//
// Determinism makes persistence re-runnable: replaying the same signal
// against the same portfolio produces the same identifier, so an upsert
// after a failed or unknown-outcome save cannot duplicate the position.
func PositionID(runID, strategyID, marketID, outcome string, entryUnixMs int64) string {
	data := fmt.Sprintf("%s|%s|%s|%s|%d",
		runID,
		strategyID,
		marketID,
		outcome,
		entryUnixMs,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
