package logging

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/iancoleman/orderedmap"
)

// LevelFatal marks records written right before the process exits.
const LevelFatal = slog.Level(12)

const (
	timestampLayout = "2006-01-02T15:04:05.000Z"
	unknown         = "unknown"
)

var levelNames = map[slog.Level]string{
	slog.LevelDebug: "DEBUG",
	slog.LevelInfo:  "INFO",
	slog.LevelWarn:  "WARN",
	slog.LevelError: "ERROR",
	LevelFatal:      "FATAL",
}

// LevelName maps a level to its wire name. Levels without a name render INFO.
func LevelName(l slog.Level) string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "INFO"
}

type output struct {
	mu sync.Mutex
	w  io.Writer
}

type groupedAttr struct {
	groups []string
	attr   slog.Attr
}

// Handler is a slog.Handler that writes one JSON object per record with a
// fixed set of process, tracing and location fields.
type Handler struct {
	name    string
	service string
	host    string
	pid     int
	level   slog.Leveler
	out     *output

	resources ResourceSampler
	newID     func() string

	attrs  []groupedAttr
	groups []string
}

var _ slog.Handler = (*Handler)(nil)

func (h *Handler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level.Level()
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	h2 := h.clone()
	for _, a := range attrs {
		h2.attrs = append(h2.attrs, groupedAttr{groups: h.groups, attr: a})
	}
	return h2
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := h.clone()
	h2.groups = append(append([]string(nil), h.groups...), name)
	return h2
}

func (h *Handler) clone() *Handler {
	h2 := *h
	h2.attrs = append([]groupedAttr(nil), h.attrs...)
	return &h2
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	extras := orderedmap.New()
	for _, ga := range h.attrs {
		addAttr(extras, ga.groups, ga.attr)
	}
	r.Attrs(func(a slog.Attr) bool {
		addAttr(extras, h.groups, a)
		return true
	})

	pop := func(key string) (any, bool) {
		v, ok := extras.Get(key)
		if ok {
			extras.Delete(key)
		}
		return v, ok
	}

	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	rec := orderedmap.New()
	rec.Set("level", LevelName(r.Level))
	rec.Set("timestamp", ts.UTC().Format(timestampLayout))
	rec.Set("pid", h.pid)
	rec.Set("service", h.service)
	rec.Set("host", h.host)
	rec.Set("logger", h.name)
	rec.Set("tracing_info", h.tracing(ctx, pop))

	for _, key := range []string{"request_payload_size", "response_payload_size"} {
		v, _ := pop(key)
		rec.Set(key, PayloadSize(v))
	}

	if v, ok := pop("event"); ok {
		rec.Set("event", v)
	} else {
		rec.Set("event", unknown)
	}

	rec.Set("location_info", location(r.PC))

	for _, key := range []string{"data", "error"} {
		v, _ := pop(key)
		rec.Set(key, v)
	}

	for _, key := range extras.Keys() {
		v, _ := extras.Get(key)
		rec.Set(key, v)
	}

	rec.Set("message", r.Message)

	if h.resources != nil {
		rec.Set("resource_utilization", renderUsage(h.resources.Sample()))
	}

	line, err := json.Marshal(rec)
	if err != nil {
		line, _ = json.Marshal(map[string]string{
			"level":     LevelName(r.Level),
			"timestamp": ts.UTC().Format(timestampLayout),
			"message":   r.Message,
			"error":     "encoding log record: " + err.Error(),
		})
	}
	line = append(line, '\n')

	h.out.mu.Lock()
	defer h.out.mu.Unlock()
	_, err = h.out.w.Write(line)
	return err
}

func (h *Handler) tracing(ctx context.Context, pop func(string) (any, bool)) *orderedmap.OrderedMap {
	tc := TracingFromContext(ctx)
	m := orderedmap.New()

	pick := func(key, fromCtx string, fallback func() string) {
		if v, ok := pop(key); ok {
			m.Set(key, v)
		} else if fromCtx != "" {
			m.Set(key, fromCtx)
		} else {
			m.Set(key, fallback())
		}
	}
	literal := func() string { return unknown }

	pick("request_id", tc.RequestID, h.newID)
	pick("transaction_id", tc.TransactionID, h.newID)
	pick("span_id", tc.SpanID, h.newID)
	pick("session_id", tc.SessionID, literal)
	pick("user_id", tc.UserID, literal)
	pick("user_role", tc.UserRole, literal)
	return m
}

func location(pc uintptr) *orderedmap.OrderedMap {
	m := orderedmap.New()
	if pc == 0 {
		m.Set("filename", unknown)
		m.Set("pathname", unknown)
		m.Set("line", unknown)
		m.Set("funcName", unknown)
		return m
	}

	frames := runtime.CallersFrames([]uintptr{pc})
	f, _ := frames.Next()
	m.Set("filename", filepath.Base(f.File))
	m.Set("pathname", f.File)
	m.Set("line", f.Line)
	m.Set("funcName", funcName(f.Function))
	return m
}

// funcName trims the import path and package from a runtime function name:
// "example.com/x/poller.(*Poller).LogMetrics" => "(*Poller).LogMetrics".
func funcName(fn string) string {
	if fn == "" {
		return unknown
	}
	if i := strings.LastIndexByte(fn, '/'); i >= 0 {
		fn = fn[i+1:]
	}
	if i := strings.IndexByte(fn, '.'); i >= 0 {
		fn = fn[i+1:]
	}
	return fn
}

func addAttr(m *orderedmap.OrderedMap, groups []string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}

	target := m
	for _, g := range groups {
		target = subgroup(target, g)
	}

	if a.Value.Kind() == slog.KindGroup {
		if a.Key != "" {
			target = subgroup(target, a.Key)
		}
		for _, ga := range a.Value.Group() {
			addAttr(target, nil, ga)
		}
		return
	}
	target.Set(a.Key, valueOf(a.Value))
}

func subgroup(m *orderedmap.OrderedMap, name string) *orderedmap.OrderedMap {
	if v, ok := m.Get(name); ok {
		if sub, ok := v.(*orderedmap.OrderedMap); ok {
			return sub
		}
	}
	sub := orderedmap.New()
	m.Set(name, sub)
	return sub
}

func valueOf(v slog.Value) any {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindInt64:
		return v.Int64()
	case slog.KindUint64:
		return v.Uint64()
	case slog.KindFloat64:
		f := v.Float64()
		if math.IsInf(f, 0) || math.IsNaN(f) {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
		return f
	case slog.KindBool:
		return v.Bool()
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().UTC().Format(time.RFC3339Nano)
	default:
		x := v.Any()
		if _, ok := x.(json.Marshaler); ok {
			return x
		}
		if err, ok := x.(error); ok {
			return err.Error()
		}
		return x
	}
}

func newUUID() string {
	return uuid.New().String()
}
