package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResize(t *testing.T) {
	cases := []struct {
		name     string
		text     string
		cols     uint16
		rows     uint16
		isResize bool
		valid    bool
	}{
		{name: "valid", text: "resize:120:40", cols: 120, rows: 40, isResize: true, valid: true},
		{name: "zero", text: "resize:0:0", isResize: true, valid: true},
		{name: "max", text: "resize:65535:65535", cols: 65535, rows: 65535, isResize: true, valid: true},
		{name: "non numeric", text: "resize:abc:40", isResize: true},
		{name: "missing rows", text: "resize:120", isResize: true},
		{name: "extra field", text: "resize:120:40:extra", isResize: true},
		{name: "empty", text: "resize:", isResize: true},
		{name: "negative", text: "resize:-1:40", isResize: true},
		{name: "too wide", text: "resize:70000:40", isResize: true},
		{name: "space", text: "resize: 120:40", isResize: true},
		{name: "plain text", text: "ls -la\n"},
		{name: "case sensitive", text: "Resize:120:40"},
		{name: "prefix elsewhere", text: "echo resize:1:2"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cols, rows, isResize, err := ParseResize(c.text)
			assert.Equal(t, c.isResize, isResize)

			if !c.isResize {
				assert.NoError(t, err)
				return
			}

			if c.valid {
				require.NoError(t, err)
				assert.Equal(t, c.cols, cols)
				assert.Equal(t, c.rows, rows)
				return
			}

			assert.ErrorIs(t, err, ErrResizeIgnored)
		})
	}
}
