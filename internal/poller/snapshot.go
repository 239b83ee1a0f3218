package poller

import (
	"encoding/json"
	"math"
	"strconv"
)

// Snapshot is the result of one poll cycle. A snapshot whose INFO call failed
// is empty and encodes as {}.
type Snapshot struct {
	Connections ConnectionMetrics  `json:"connections"`
	Memory      MemoryMetrics      `json:"memory_usage"`
	Performance PerformanceMetrics `json:"performance"`
	Persistence PersistenceMetrics `json:"persistence"`
	PubSub      PubSubMetrics      `json:"pubsub"`
	CPU         map[string]string  `json:"cpu"`

	valid bool
}

func (s Snapshot) Empty() bool { return !s.valid }

func (s Snapshot) MarshalJSON() ([]byte, error) {
	if !s.valid {
		return []byte("{}"), nil
	}
	type snapshot Snapshot
	return json.Marshal(snapshot(s))
}

type ConnectionMetrics struct {
	ConnectedClients    int64 `json:"connected_clients"`
	ConnectionErrors    int64 `json:"connection_errors"`
	ConnectionRate      int64 `json:"connection_rate"`
	RejectedConnections int64 `json:"rejected_connections"`
}

type MemoryMetrics struct {
	UsedMemory               int64   `json:"used_memory"`
	UsedMemoryPeak           int64   `json:"used_memory_peak"`
	MemoryFragmentationRatio float64 `json:"memory_fragmentation_ratio"`
	EvictedKeys              int64   `json:"evicted_keys"`
}

// PerformanceMetrics encodes as {} when the stats fetch failed.
type PerformanceMetrics struct {
	Latency                Millis  `json:"latency"`
	CommandsPerSecond      int64   `json:"commands_per_second"`
	CacheHitRatio          float64 `json:"cache_hit_ratio"`
	TotalCommandsProcessed int64   `json:"total_commands_processed"`
	InstantaneousOpsPerSec int64   `json:"instantaneous_ops_per_sec"`
	KeyspaceHits           int64   `json:"keyspace_hits"`
	KeyspaceMisses         int64   `json:"keyspace_misses"`
	CommandRate            float64 `json:"command_rate"`

	valid bool
}

func (p PerformanceMetrics) Available() bool { return p.valid }

func (p PerformanceMetrics) MarshalJSON() ([]byte, error) {
	if !p.valid {
		return []byte("{}"), nil
	}
	type performance PerformanceMetrics
	return json.Marshal(performance(p))
}

// PersistenceMetrics fields are null when the server does not report them.
type PersistenceMetrics struct {
	RDBLastSaveTime       *int64 `json:"rdb_last_save_time"`
	AOFEnabled            *int64 `json:"aof_enabled"`
	AOFLastRewriteTimeSec *int64 `json:"aof_last_rewrite_time_sec"`
	AOFDelayedFsyncs      *int64 `json:"aof_delayed_fsyncs"`
}

type PubSubMetrics struct {
	Channels int64 `json:"pubsub_channels"`
	Patterns int64 `json:"pubsub_patterns"`
}

// Millis is a latency in milliseconds. An unreachable server is +Inf, which
// encodes as the string "+Inf".
type Millis float64

func (m Millis) MarshalJSON() ([]byte, error) {
	f := float64(m)
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return []byte(strconv.Quote(strconv.FormatFloat(f, 'f', -1, 64))), nil
	}
	return strconv.AppendFloat(nil, f, 'f', -1, 64), nil
}

func connectionMetrics(info map[string]string) ConnectionMetrics {
	return ConnectionMetrics{
		ConnectedClients:    intField(info, "connected_clients"),
		ConnectionErrors:    intField(info, "rejected_connections"),
		ConnectionRate:      intField(info, "total_connections_received"),
		RejectedConnections: intField(info, "rejected_connections"),
	}
}

func memoryMetrics(info map[string]string) MemoryMetrics {
	return MemoryMetrics{
		UsedMemory:               intField(info, "used_memory"),
		UsedMemoryPeak:           intField(info, "used_memory_peak"),
		MemoryFragmentationRatio: floatField(info, "mem_fragmentation_ratio"),
		EvictedKeys:              intField(info, "evicted_keys"),
	}
}

func persistenceMetrics(info map[string]string) PersistenceMetrics {
	return PersistenceMetrics{
		RDBLastSaveTime:       optionalInt(info, "rdb_last_save_time"),
		AOFEnabled:            optionalInt(info, "aof_enabled"),
		AOFLastRewriteTimeSec: optionalInt(info, "aof_last_rewrite_time_sec"),
		AOFDelayedFsyncs:      optionalInt(info, "aof_delayed_fsync"),
	}
}

func pubsubMetrics(info map[string]string) PubSubMetrics {
	return PubSubMetrics{
		Channels: intField(info, "pubsub_channels"),
		Patterns: intField(info, "pubsub_patterns"),
	}
}

// CacheHitRatio is the percentage of lookups that hit, 0 when there were none.
func CacheHitRatio(hits, misses int64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total) * 100
}
