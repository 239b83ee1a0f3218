package poller

import (
	"maps"
	"strconv"
)

// flattenInfo merges the per-section maps of an INFO reply. Field names are
// unique across sections.
func flattenInfo(sections map[string]map[string]string) map[string]string {
	out := make(map[string]string)
	for _, fields := range sections {
		maps.Copy(out, fields)
	}
	return out
}

func intField(info map[string]string, key string) int64 {
	v, ok := info[key]
	if !ok {
		return 0
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return int64(f)
	}
	return 0
}

func floatField(info map[string]string, key string) float64 {
	f, err := strconv.ParseFloat(info[key], 64)
	if err != nil {
		return 0
	}
	return f
}

// optionalInt returns nil when key is absent or not numeric.
func optionalInt(info map[string]string, key string) *int64 {
	v, ok := info[key]
	if !ok {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}
