package cache

import (
	"fmt"
	"strings"
	"time"

	"traderboard/internal/config"
)

// Namespace is the Redis key prefix for the traderboard application.
const Namespace = "traderboard"

// TTLClass represents a config-driven TTL bucket.
type TTLClass string

const (
	TTLShort  TTLClass = "short"
	TTLMedium TTLClass = "medium"
	TTLLong   TTLClass = "long"
)

// TTLSet normalises cache TTLs from config into time.Duration values.
type TTLSet struct {
	Short  time.Duration
	Medium time.Duration
	Long   time.Duration
}

// NewTTLSet converts config TTLs (in seconds) into durations.
func NewTTLSet(cfg config.CacheTTL) TTLSet {
	return TTLSet{
		Short:  durationOrDefault(cfg.Short, 10*time.Second),
		Medium: durationOrDefault(cfg.Medium, time.Minute),
		Long:   durationOrDefault(cfg.Long, 5*time.Minute),
	}
}

func durationOrDefault(seconds int, fallback time.Duration) time.Duration {
	if seconds < 0 {
		return 0
	}
	if seconds == 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

// Duration returns the configured duration for the given TTL class.
func (t TTLSet) Duration(class TTLClass) time.Duration {
	switch class {
	case TTLShort:
		return t.Short
	case TTLMedium:
		return t.Medium
	case TTLLong:
		return t.Long
	default:
		return 0
	}
}

func formatKey(parts ...string) string {
	values := make([]string, 0, len(parts)+1)
	values = append(values, Namespace)
	for _, part := range parts {
		clean := strings.TrimSpace(part)
		if clean == "" {
			continue
		}
		values = append(values, clean)
	}
	return strings.Join(values, ":")
}

// --- Snapshot Keys ----------------------------------------------------------

// SnapshotLatestKey holds the most recent snapshot for an account, holdings
// included.
func SnapshotLatestKey(accountID string) string {
	return formatKey("snapshot", "latest", accountID)
}

// --- Leaderboard Keys -------------------------------------------------------

// BoardKey holds the rendered leaderboard payload for one ranking window
// ("daily", "weekly", "monthly") at one view size.
func BoardKey(window string, limit int) string {
	return formatKey("board", window, fmt.Sprintf("top%d", limit))
}

// --- TTL Helpers ------------------------------------------------------------

// SnapshotTTL returns the TTL for cached latest snapshots.
func SnapshotTTL(ttl TTLSet) time.Duration {
	return ttl.Duration(TTLMedium)
}

// BoardTTL returns the TTL for rendered leaderboard payloads. Rendered views
// go stale as soon as a refresh cycle lands, so they cache short.
func BoardTTL(ttl TTLSet) time.Duration {
	return ttl.Duration(TTLShort)
}
