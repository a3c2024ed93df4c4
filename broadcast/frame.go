package broadcast

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Frame is one formatted, delimited unit of the wire protocol. Frames are
// opaque once formatted; the broadcaster never re-parses them.
type Frame string

// Heartbeat is a comment-only frame that keeps idle connections alive.
// Conforming consumers ignore it.
const Heartbeat Frame = ": ping\n\n"

// Mode controls how a patched element is merged into the client DOM.
type Mode string

const (
	ModeOuter   Mode = "outer"
	ModeInner   Mode = "inner"
	ModeReplace Mode = "replace"
	ModePrepend Mode = "prepend"
	ModeAppend  Mode = "append"
	ModeBefore  Mode = "before"
	ModeAfter   Mode = "after"
	ModeRemove  Mode = "remove"
)

// PatchOption customises an elements patch frame.
type PatchOption func(*patchConfig)

type patchConfig struct {
	selector string
	mode     Mode
}

// WithSelector targets the patch at the elements matching a CSS selector
// instead of matching by element id.
func WithSelector(selector string) PatchOption {
	return func(c *patchConfig) {
		c.selector = selector
	}
}

// WithMode sets the merge mode directive for the patch.
func WithMode(mode Mode) PatchOption {
	return func(c *patchConfig) {
		c.mode = mode
	}
}

// FormatPatchElements formats a patch-elements event frame. Runs of
// whitespace inside the markup are collapsed to single spaces so embedded
// newlines cannot break the line-oriented wire format.
func FormatPatchElements(html string, opts ...PatchOption) Frame {
	var cfg patchConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	var b strings.Builder
	b.WriteString("event: patch-elements\n")
	if cfg.mode != "" {
		fmt.Fprintf(&b, "data: mode %s\n", cfg.mode)
	}
	if cfg.selector != "" {
		fmt.Fprintf(&b, "data: selector %s\n", cfg.selector)
	}
	fmt.Fprintf(&b, "data: elements %s\n\n", strings.Join(strings.Fields(html), " "))
	return Frame(b.String())
}

// FormatPatchSignals formats a patch-signals event frame carrying the
// signals as compact JSON. A value that cannot be marshaled fails this
// frame only.
func FormatPatchSignals(signals map[string]any) (Frame, error) {
	data, err := json.Marshal(signals)
	if err != nil {
		return "", fmt.Errorf("marshal signals: %w", err)
	}
	return Frame(fmt.Sprintf("event: patch-signals\ndata: signals %s\n\n", data)), nil
}
