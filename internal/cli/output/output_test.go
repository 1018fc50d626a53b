package output

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufRenderer(mode Mode) (*Renderer, *bytes.Buffer, *bytes.Buffer) {
	out := new(bytes.Buffer)
	errW := new(bytes.Buffer)
	return NewRenderer(out, errW, mode), out, errW
}

func TestEffectiveMode(t *testing.T) {
	tests := []struct {
		name string
		mode Mode
		want Mode
	}{
		{"explicit text", ModeText, ModeText},
		{"explicit markdown", ModeMarkdown, ModeMarkdown},
		{"explicit json", ModeJSON, ModeJSON},
		{"auto on non-tty", ModeAuto, ModeMarkdown},
		{"unknown falls back to auto", Mode("bogus"), ModeMarkdown},
		{"empty falls back to auto", Mode(""), ModeMarkdown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _, _ := newBufRenderer(tt.mode)
			assert.Equal(t, tt.want, r.EffectiveMode())
			assert.False(t, r.IsTTY())
		})
	}
}

func TestJSONOutput(t *testing.T) {
	r, out, _ := newBufRenderer(ModeJSON)
	require.NoError(t, r.JSON(map[string]int{"rows": 3}))

	var decoded map[string]int
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, 3, decoded["rows"])
}

func TestMarkdownHeaderAndStatusLine(t *testing.T) {
	r, out, _ := newBufRenderer(ModeMarkdown)
	r.Header(2, "Models")
	r.StatusLine("Status", "ready")

	assert.Contains(t, out.String(), "## Models")
	assert.Contains(t, out.String(), "- **Status:** ready")
}

func TestTextMessages(t *testing.T) {
	r, out, errW := newBufRenderer(ModeText)
	r.Success("done")
	r.Warning("slow")
	r.Muted("detail")
	r.Error("broken")

	assert.Contains(t, out.String(), "done")
	assert.Contains(t, out.String(), "slow")
	assert.Contains(t, out.String(), "detail")
	assert.Contains(t, errW.String(), "broken")
	assert.NotContains(t, out.String(), "broken")
}

func TestTableMarkdown(t *testing.T) {
	r, out, _ := newBufRenderer(ModeMarkdown)
	r.Table([]string{"Name", "Rows"}, [][]string{{"abalone", "4177"}})

	s := out.String()
	assert.Contains(t, s, "| Name")
	assert.Contains(t, s, "| abalone")
	assert.Contains(t, s, "---")
}

func TestTableText(t *testing.T) {
	r, out, _ := newBufRenderer(ModeText)
	r.Table([]string{"Name"}, [][]string{{"abalone"}})

	assert.Contains(t, out.String(), "abalone")
	assert.Contains(t, out.String(), "NAME")
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "# Title", FormatHeader(0, "Title"))
	assert.Equal(t, "### Deep", FormatHeader(3, "Deep"))
	assert.Equal(t, "- **Key:** value", FormatKeyValue("Key", "value"))
}
