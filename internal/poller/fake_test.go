package poller

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

func sampleInfo() map[string]map[string]string {
	return map[string]map[string]string{
		"Server":  {"redis_version": "7.2.4"},
		"Clients": {"connected_clients": "10"},
		"Memory": {
			"used_memory":             "1000",
			"used_memory_peak":        "2000",
			"mem_fragmentation_ratio": "1.5",
		},
		"Persistence": {
			"rdb_last_save_time":        "1700000000",
			"aof_enabled":               "0",
			"aof_last_rewrite_time_sec": "-1",
			"aof_delayed_fsync":         "0",
		},
		"Stats": {
			"total_connections_received": "20",
			"total_commands_processed":   "500",
			"instantaneous_ops_per_sec":  "7",
			"rejected_connections":       "5",
			"evicted_keys":               "3",
			"keyspace_hits":              "80",
			"keyspace_misses":            "20",
			"pubsub_channels":            "2",
			"pubsub_patterns":            "1",
		},
	}
}

func sampleCPU() map[string]map[string]string {
	return map[string]map[string]string{
		"CPU": {"used_cpu_sys": "1.25", "used_cpu_user": "2.50"},
	}
}

func statsInfo(total int64) map[string]map[string]string {
	return map[string]map[string]string{
		"Stats": {
			"total_commands_processed":  strconv.FormatInt(total, 10),
			"instantaneous_ops_per_sec": "7",
			"keyspace_hits":             "80",
			"keyspace_misses":           "20",
		},
	}
}

// fakeRedis answers the poller's commands from canned replies.
type fakeRedis struct {
	mu       sync.Mutex
	info     map[string]map[string]map[string]string
	infoErr  map[string]error
	pingErr  error
	slowlog  []redis.SlowLog
	slowErr  error
	slowNum  int64
	panicOn  string
	commands []string
	ctxErrs  int
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{
		info: map[string]map[string]map[string]string{
			"":      sampleInfo(),
			"stats": statsInfo(500),
			"cpu":   sampleCPU(),
		},
		infoErr: map[string]error{},
	}
}

func (f *fakeRedis) record(cmd string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, cmd)
	if f.panicOn == cmd {
		panic("injected failure in " + cmd)
	}
}

func (f *fakeRedis) setInfo(section string, val map[string]map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.info[section] = val
}

func (f *fakeRedis) InfoMap(ctx context.Context, sections ...string) *redis.InfoCmd {
	key := strings.Join(sections, " ")
	f.record(strings.TrimSpace("info " + key))

	f.mu.Lock()
	defer f.mu.Unlock()
	if ctx.Err() != nil {
		f.ctxErrs++
	}
	cmd := redis.NewInfoCmd(ctx, "info")
	if err := f.infoErr[key]; err != nil {
		cmd.SetErr(err)
	} else {
		cmd.SetVal(f.info[key])
	}
	return cmd
}

func (f *fakeRedis) Ping(ctx context.Context) *redis.StatusCmd {
	f.record("ping")
	cmd := redis.NewStatusCmd(ctx, "ping")
	if f.pingErr != nil {
		cmd.SetErr(f.pingErr)
	} else {
		cmd.SetVal("PONG")
	}
	return cmd
}

func (f *fakeRedis) SlowLogGet(ctx context.Context, num int64) *redis.SlowLogCmd {
	f.record("slowlog get")
	f.mu.Lock()
	f.slowNum = num
	f.mu.Unlock()
	cmd := redis.NewSlowLogCmd(ctx, "slowlog", "get", num)
	if f.slowErr != nil {
		cmd.SetErr(f.slowErr)
	} else {
		cmd.SetVal(f.slowlog)
	}
	return cmd
}

// recorder is a slog.Handler that keeps records for assertions.
type recorder struct {
	mu      sync.Mutex
	records []slog.Record
}

func (r *recorder) Enabled(context.Context, slog.Level) bool { return true }
func (r *recorder) WithAttrs([]slog.Attr) slog.Handler      { return r }
func (r *recorder) WithGroup(string) slog.Handler           { return r }

func (r *recorder) Handle(_ context.Context, rec slog.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec.Clone())
	return nil
}

func (r *recorder) count(level slog.Level) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, rec := range r.records {
		if rec.Level == level {
			n++
		}
	}
	return n
}

func (r *recorder) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

func (r *recorder) messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec.Message)
	}
	return out
}

// attr returns the value of key on the first record with message msg.
func (r *recorder) attr(msg, key string) (slog.Value, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.Message != msg {
			continue
		}
		var val slog.Value
		found := false
		rec.Attrs(func(a slog.Attr) bool {
			if a.Key == key {
				val, found = a.Value, true
				return false
			}
			return true
		})
		return val, found
	}
	return slog.Value{}, false
}
