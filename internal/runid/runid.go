// Package runid generates identifiers for slideshow renders.
package runid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// Generate creates a new unique render ID.
// Format: render-<timestamp>-<random>
// Example: render-1701432000-a1b2c3d4
func Generate() string {
	return generate(time.Now())
}

func generate(now time.Time) string {
	timestamp := now.Unix()
	random := make([]byte, 4)
	if _, err := rand.Read(random); err != nil {
		// Fallback to timestamp only if crypto/rand fails
		return fmt.Sprintf("render-%d", timestamp)
	}
	return fmt.Sprintf("render-%d-%s", timestamp, hex.EncodeToString(random))
}
