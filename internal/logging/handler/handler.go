// Package handler adapts the delivery pipeline to log/slog. Records are
// rendered as "<time> : <LEVEL>, <message> key=value...", prefixed with the
// account token and submitted as one line.
package handler

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/Chichichkin/LogentriesAgent/internal/logging"
)

const TimeLayout = "Mon Jan 02 15:04:05 MST 2006"

type Options struct {
	// Level is the minimum level forwarded. Defaults to slog.LevelDebug.
	Level slog.Leveler
	// TimeLayout overrides the record timestamp layout.
	TimeLayout string
}

// Handler is a slog.Handler backed by a logging.Core.
type Handler struct {
	core   logging.Core
	opts   Options
	prefix string // pre-rendered WithAttrs output
	groups []string
}

func New(core logging.Core, opts *Options) *Handler {
	h := &Handler{core: core}
	if opts != nil {
		h.opts = *opts
	}
	if h.opts.Level == nil {
		h.opts.Level = slog.LevelDebug
	}
	if h.opts.TimeLayout == "" {
		h.opts.TimeLayout = TimeLayout
	}
	return h
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level.Level()
}

// Handle starts the pipeline on first use and submits the rendered record.
// It never reports delivery problems to the caller.
func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	h.core.Start()
	h.core.SubmitContext(ctx, h.core.Token()+h.Format(r))
	return nil
}

// Format renders r without the token. Trailing newlines are stripped.
func (h *Handler) Format(r slog.Record) string {
	var b strings.Builder

	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	b.WriteString(ts.Format(h.opts.TimeLayout))
	b.WriteString(" : ")
	b.WriteString(r.Level.String())
	b.WriteString(", ")
	b.WriteString(strings.TrimRight(r.Message, "\n"))
	b.WriteString(h.prefix)

	r.Attrs(func(a slog.Attr) bool {
		appendAttr(&b, h.groups, a)
		return true
	})

	return strings.TrimRight(b.String(), "\n")
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	var b strings.Builder
	b.WriteString(h.prefix)
	for _, a := range attrs {
		appendAttr(&b, h.groups, a)
	}

	clone := *h
	clone.prefix = b.String()
	return &clone
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(slices.Clip(h.groups), name)
	return &clone
}

func appendAttr(b *strings.Builder, groups []string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}

	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		if len(attrs) == 0 {
			return
		}
		if a.Key != "" {
			groups = append(slices.Clip(groups), a.Key)
		}
		for _, ga := range attrs {
			appendAttr(b, groups, ga)
		}
		return
	}

	b.WriteByte(' ')
	for _, g := range groups {
		b.WriteString(g)
		b.WriteByte('.')
	}
	b.WriteString(a.Key)
	b.WriteByte('=')
	b.WriteString(formatValue(a.Value))
}

func formatValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		s := v.String()
		if s == "" || strings.ContainsAny(s, " =\"") {
			return fmt.Sprintf("%q", s)
		}
		return s
	case slog.KindTime:
		return v.Time().Format(time.RFC3339Nano)
	default:
		return v.String()
	}
}
