// ABOUTME: Colourised slog handler for terminal output
// ABOUTME: Renders the module attribute as a coloured tag ahead of the message

package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/fatih/color"
)

var (
	timeColor  = color.New(color.FgHiBlack)
	keyColor   = color.New(color.FgHiBlack)
	debugColor = color.New(color.FgMagenta)
	infoColor  = color.New(color.FgCyan)
	warnColor  = color.New(color.FgYellow)
	errorColor = color.New(color.FgRed, color.Bold)
)

// ColorHandler provides colourised log output with serialized writes.
type ColorHandler struct {
	mu      *sync.Mutex
	w       io.Writer
	level   slog.Leveler
	noColor bool
	module  string
	attrs   []slog.Attr
	groups  []string
}

// NewColorHandler writes records at or above level to w.
func NewColorHandler(w io.Writer, level slog.Leveler, noColor bool) *ColorHandler {
	return &ColorHandler{
		mu:      &sync.Mutex{},
		w:       w,
		level:   level,
		noColor: noColor,
	}
}

func (h *ColorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *ColorHandler) paint(c *color.Color, s string) string {
	if h.noColor || c == nil {
		return s
	}
	return c.Sprint(s)
}

func (h *ColorHandler) Handle(_ context.Context, r slog.Record) error {
	var buf strings.Builder

	buf.WriteString(h.paint(timeColor, r.Time.Format("15:04:05")+" "))

	switch {
	case r.Level < slog.LevelInfo:
		buf.WriteString(h.paint(debugColor, "DBG "))
	case r.Level < slog.LevelWarn:
		buf.WriteString(h.paint(infoColor, "INF "))
	case r.Level < slog.LevelError:
		buf.WriteString(h.paint(warnColor, "WRN "))
	default:
		buf.WriteString(h.paint(errorColor, "ERR "))
	}

	module := h.module
	var rest []slog.Attr
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == ModuleKey && len(h.groups) == 0 {
			module = a.Value.String()
			return true
		}
		rest = append(rest, a)
		return true
	})

	if module != "" {
		label, c := styleFor(module)
		buf.WriteString(h.paint(c, "["+label+"]"))
		buf.WriteString(" ")
	}

	buf.WriteString(r.Message)

	for _, a := range h.attrs {
		h.writeAttr(&buf, "", a)
	}
	prefix := ""
	if len(h.groups) > 0 {
		prefix = strings.Join(h.groups, ".") + "."
	}
	for _, a := range rest {
		h.writeAttr(&buf, prefix, a)
	}
	buf.WriteString("\n")

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, buf.String())
	return err
}

func (h *ColorHandler) writeAttr(buf *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		inner := prefix
		if a.Key != "" {
			inner = prefix + a.Key + "."
		}
		for _, g := range a.Value.Group() {
			h.writeAttr(buf, inner, g)
		}
		return
	}
	buf.WriteString(h.paint(keyColor, " "+prefix+a.Key+"="))
	buf.WriteString(a.Value.String())
}

func (h *ColorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	prefix := ""
	if len(h.groups) > 0 {
		prefix = strings.Join(h.groups, ".") + "."
	}
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	for _, a := range attrs {
		if a.Key == ModuleKey && prefix == "" {
			clone.module = a.Value.String()
			continue
		}
		a.Key = prefix + a.Key
		newAttrs = append(newAttrs, a)
	}
	clone.attrs = newAttrs
	return &clone
}

func (h *ColorHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string(nil), h.groups...), name)
	return &clone
}
