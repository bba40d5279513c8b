// Package progress provides the live, append-only status report for one
// command invocation. The report is re-rendered after every state change so
// the user-visible log stays synchronized with the work being done.
package progress

import (
	"context"
	"fmt"
	"strings"
)

// Renderer receives the full rendered report text after every change.
// In production this edits the bot's progress message in the room; tests use
// a recording fake.
type Renderer interface {
	Render(ctx context.Context, text string) error
}

// RendererFunc adapts a function to the Renderer interface.
type RendererFunc func(ctx context.Context, text string) error

func (f RendererFunc) Render(ctx context.Context, text string) error { return f(ctx, text) }

// Report accumulates a header line and an ordered sequence of per-item result
// lines. It grows monotonically during a batch and is discarded afterwards.
// A Report is owned by a single command invocation and is not safe for
// concurrent use.
type Report struct {
	renderer Renderer
	header   string
	lines    []string
}

// NewReport creates an empty report bound to renderer.
func NewReport(renderer Renderer) *Report {
	return &Report{renderer: renderer}
}

// SetHeader replaces the header line and re-renders.
func (r *Report) SetHeader(ctx context.Context, header string) {
	r.header = header
	r.render(ctx)
}

// Append adds one result line and re-renders.
func (r *Report) Append(ctx context.Context, line string) {
	r.lines = append(r.lines, line)
	r.render(ctx)
}

// Appendf adds one formatted result line and re-renders.
func (r *Report) Appendf(ctx context.Context, format string, args ...any) {
	r.Append(ctx, fmt.Sprintf(format, args...))
}

// Lines returns a copy of the accumulated result lines.
func (r *Report) Lines() []string {
	out := make([]string, len(r.lines))
	copy(out, r.lines)
	return out
}

// Header returns the current header line.
func (r *Report) Header() string { return r.header }

// String renders the report: the header followed by one line per result.
func (r *Report) String() string {
	if len(r.lines) == 0 {
		return r.header
	}
	return r.header + "\n" + strings.Join(r.lines, "\n")
}

func (r *Report) render(ctx context.Context) {
	if r.renderer == nil {
		return
	}
	// Render failures are swallowed: the report is a best-effort UI surface
	// and must never abort the underlying batch.
	_ = r.renderer.Render(ctx, r.String())
}

// Steps renders the three-slot progress indicator used as the report header while
// a batch item is in flight: completed slots show a coin, pending slots a
// blank circle.
func Steps(step int, suffix string) string {
	slots := []string{"⚪️", "⚪️", "⚪️"}
	for i := 0; i < step && i < len(slots); i++ {
		slots[i] = "🪙"
	}
	s := fmt.Sprintf("⚙️ [%s]", strings.Join(slots, ""))
	if suffix != "" {
		s += " " + suffix
	}
	return s
}
