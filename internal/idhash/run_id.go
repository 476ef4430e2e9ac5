package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// RunID computes a run identifier from mode and creation time.
// Format: sim_<yyyymmdd_hhmmss>_<8 hash chars>, sortable by creation time
// with a hash suffix to disambiguate runs created in the same second.
func RunID(mode string, createdAt time.Time) string {
	ts := createdAt.UTC().Format("20060102_150405")
	data := fmt.Sprintf("%s|%d", mode, createdAt.UnixNano())
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("sim_%s_%s", ts, hex.EncodeToString(hash[:4]))
}
