package nakama

import (
	"context"
	"log/slog"

	"github.com/heroiclabs/nakama-common/runtime"
)

// SlogHandler forwards slog records to a Nakama runtime.Logger so code that
// logs through *slog.Logger ends up in the server log with its attributes as fields.
type SlogHandler struct {
	logger runtime.Logger
	level  slog.Leveler
	fields map[string]interface{}
	group  string
}

// NewSlogHandler wraps logger. Records below level are dropped.
func NewSlogHandler(logger runtime.Logger, level slog.Leveler) *SlogHandler {
	if level == nil {
		level = slog.LevelInfo
	}
	return &SlogHandler{logger: logger, level: level}
}

// Enabled implements slog.Handler.
func (h *SlogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle implements slog.Handler.
func (h *SlogHandler) Handle(_ context.Context, r slog.Record) error {
	fields := make(map[string]interface{}, len(h.fields)+r.NumAttrs())
	for k, v := range h.fields {
		fields[k] = v
	}
	r.Attrs(func(a slog.Attr) bool {
		flatten(fields, h.group, a)
		return true
	})

	logger := h.logger
	if len(fields) > 0 {
		logger = logger.WithFields(fields)
	}
	switch {
	case r.Level >= slog.LevelError:
		logger.Error("%s", r.Message)
	case r.Level >= slog.LevelWarn:
		logger.Warn("%s", r.Message)
	case r.Level >= slog.LevelInfo:
		logger.Info("%s", r.Message)
	default:
		logger.Debug("%s", r.Message)
	}
	return nil
}

// WithAttrs implements slog.Handler.
func (h *SlogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	cp := *h
	cp.fields = make(map[string]interface{}, len(h.fields)+len(attrs))
	for k, v := range h.fields {
		cp.fields[k] = v
	}
	for _, a := range attrs {
		flatten(cp.fields, h.group, a)
	}
	return &cp
}

// WithGroup implements slog.Handler. Groups become dotted key prefixes.
func (h *SlogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	cp := *h
	cp.group = join(h.group, name)
	return &cp
}

// flatten stores a under prefix. Group values become dotted keys; empty
// attributes are dropped.
func flatten(fields map[string]interface{}, prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		if a.Key != "" {
			prefix = join(prefix, a.Key)
		}
		for _, sub := range v.Group() {
			flatten(fields, prefix, sub)
		}
		return
	}
	if a.Key == "" {
		return
	}
	fields[join(prefix, a.Key)] = v.Any()
}

func join(prefix, k string) string {
	if prefix == "" {
		return k
	}
	return prefix + "." + k
}
