package broadcast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatPatchElements(t *testing.T) {
	frame := FormatPatchElements("<div>hello</div>")
	assert.Equal(t, Frame("event: patch-elements\ndata: elements <div>hello</div>\n\n"), frame)
}

func TestFormatPatchElements_CollapsesWhitespace(t *testing.T) {
	frame := FormatPatchElements("<div>  a\n b</div>")
	assert.Equal(t, Frame("event: patch-elements\ndata: elements <div> a b</div>\n\n"), frame)
}

func TestFormatPatchElements_SelectorAndMode(t *testing.T) {
	frame := FormatPatchElements("<li>x</li>", WithSelector("#chat-feed"), WithMode(ModeAppend))
	assert.Equal(t, Frame("event: patch-elements\ndata: mode append\ndata: selector #chat-feed\ndata: elements <li>x</li>\n\n"), frame)
}

func TestFormatPatchSignals(t *testing.T) {
	frame, err := FormatPatchSignals(map[string]any{"a": 1, "b": "x"})
	require.NoError(t, err)
	assert.Equal(t, Frame("event: patch-signals\ndata: signals {\"a\":1,\"b\":\"x\"}\n\n"), frame)
}

func TestFormatPatchSignals_Unserializable(t *testing.T) {
	_, err := FormatPatchSignals(map[string]any{"bad": make(chan int)})
	assert.Error(t, err)
}

func TestHeartbeatFrame(t *testing.T) {
	assert.Equal(t, Frame(": ping\n\n"), Heartbeat)
}
