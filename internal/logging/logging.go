package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config selects the log level and output format.
type Config struct {
	// Level is one of debug, info, warn or error. Empty means info.
	Level string

	// Format is "json" or "console". Empty means json.
	Format string

	// Output defaults to os.Stderr.
	Output io.Writer
}

// New returns a slog logger that writes through zerolog.
func New(cfg Config) *slog.Logger {
	return slog.New(NewHandler(cfg))
}

// NewHandler returns the zerolog-backed handler described by cfg.
func NewHandler(cfg Config) *Handler {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if strings.EqualFold(strings.TrimSpace(cfg.Format), "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	zl := zerolog.New(out).Level(ParseLevel(cfg.Level))
	return &Handler{zl: zl}
}

// ParseLevel maps a level name to zerolog; unknown names yield info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Handler is a [slog.Handler] that writes records as zerolog events.
type Handler struct {
	zl     zerolog.Logger
	attrs  []groupedAttr
	groups []string
}

type groupedAttr struct {
	prefix string
	attr   slog.Attr
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return toZerolog(level) >= h.zl.GetLevel()
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	e := h.zl.WithLevel(toZerolog(r.Level))
	if e == nil {
		return nil
	}
	if !r.Time.IsZero() {
		e.Time(zerolog.TimestampFieldName, r.Time)
	}

	for _, ga := range h.attrs {
		addAttr(e, ga.prefix, ga.attr)
	}
	prefix := h.prefix()
	r.Attrs(func(a slog.Attr) bool {
		addAttr(e, prefix, a)
		return true
	})

	e.Msg(r.Message)
	return nil
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	cp := *h
	cp.attrs = make([]groupedAttr, 0, len(h.attrs)+len(attrs))
	cp.attrs = append(cp.attrs, h.attrs...)
	prefix := h.prefix()
	for _, a := range attrs {
		cp.attrs = append(cp.attrs, groupedAttr{prefix: prefix, attr: a})
	}
	return &cp
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	cp := *h
	cp.groups = append(append([]string(nil), h.groups...), name)
	return &cp
}

func (h *Handler) prefix() string {
	if len(h.groups) == 0 {
		return ""
	}
	return strings.Join(h.groups, ".") + "."
}

func addAttr(e *zerolog.Event, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	key := prefix + a.Key

	v := a.Value
	switch v.Kind() {
	case slog.KindString:
		e.Str(key, v.String())
	case slog.KindInt64:
		e.Int64(key, v.Int64())
	case slog.KindUint64:
		e.Uint64(key, v.Uint64())
	case slog.KindFloat64:
		e.Float64(key, v.Float64())
	case slog.KindBool:
		e.Bool(key, v.Bool())
	case slog.KindDuration:
		e.Dur(key, v.Duration())
	case slog.KindTime:
		e.Time(key, v.Time())
	case slog.KindGroup:
		sub := key + "."
		if a.Key == "" {
			sub = prefix
		}
		for _, ga := range v.Group() {
			addAttr(e, sub, ga)
		}
	default:
		if err, ok := v.Any().(error); ok {
			e.AnErr(key, err)
			return
		}
		e.Interface(key, v.Any())
	}
}

func toZerolog(l slog.Level) zerolog.Level {
	switch {
	case l >= slog.LevelError:
		return zerolog.ErrorLevel
	case l >= slog.LevelWarn:
		return zerolog.WarnLevel
	case l >= slog.LevelInfo:
		return zerolog.InfoLevel
	case l >= slog.LevelDebug:
		return zerolog.DebugLevel
	default:
		return zerolog.TraceLevel
	}
}
