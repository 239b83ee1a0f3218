package poller

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/redis/go-redis/v9"

	"github.com/aiox-platform/redis-metrics/internal/metrics"
)

// SlowLogEntry is one SLOWLOG GET record in log-friendly form.
type SlowLogEntry struct {
	ID            int64   `json:"id"`
	Timestamp     string  `json:"timestamp"`
	DurationMs    float64 `json:"duration_ms"`
	Command       string  `json:"command"`
	ClientAddress string  `json:"client_address"`
	ClientName    string  `json:"client_name"`
}

// FetchSlowLog returns up to SlowlogMaxLen recent slow commands.
func (p *Poller) FetchSlowLog(ctx context.Context) ([]SlowLogEntry, error) {
	raw, err := p.client().SlowLogGet(ctx, p.slowlogMaxLen).Result()
	if err != nil {
		return nil, fmt.Errorf("slowlog get %d: %w", p.slowlogMaxLen, err)
	}
	return formatSlowLog(raw), nil
}

// LogSlowLog writes one warning with all slow-log entries, or nothing when
// the log is empty.
func (p *Poller) LogSlowLog(ctx context.Context) {
	entries, err := p.FetchSlowLog(ctx)
	if err != nil {
		p.logger.ErrorContext(ctx, "Error retrieving slow log", "event", "Redis Slow Log", "error", err)
		return
	}
	metrics.SlowLogEntries.Set(float64(len(entries)))
	if len(entries) == 0 {
		return
	}
	p.logger.WarnContext(ctx, "Redis Slow Log", "event", "Redis Slow Log", "logs", entries)
}

func formatSlowLog(raw []redis.SlowLog) []SlowLogEntry {
	entries := make([]SlowLogEntry, 0, len(raw))
	for _, e := range raw {
		entries = append(entries, SlowLogEntry{
			ID:            e.ID,
			Timestamp:     e.Time.UTC().Format(time.RFC3339),
			DurationMs:    float64(e.Duration.Microseconds()) / 1000,
			Command:       decodeMaybeBase64(strings.Join(e.Args, " ")),
			ClientAddress: decodeMaybeBase64(e.ClientAddr),
			ClientName:    e.ClientName,
		})
	}
	return entries
}

// decodeMaybeBase64 returns the decoded text when s is base64 for valid
// UTF-8, and s unchanged otherwise.
func decodeMaybeBase64(s string) string {
	decoded, err := base64.StdEncoding.DecodeString(s)
	if err != nil || !utf8.Valid(decoded) {
		return s
	}
	return string(decoded)
}
