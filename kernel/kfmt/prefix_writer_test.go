package kfmt

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrefixWriter(t *testing.T) {
	specs := []struct {
		input string
		exp   string
	}{
		{"", ""},
		{"\n", "  | \n"},
		{"no line break anywhere", "  | no line break anywhere"},
		{"line feed at the end\n", "  | line feed at the end\n"},
		{
			"\nCR2 = 0x400000\nCR3 = 0x200000\nInfo = 2",
			"  | \n  | CR2 = 0x400000\n  | CR3 = 0x200000\n  | Info = 2",
		},
	}

	for specIndex, spec := range specs {
		var buf bytes.Buffer
		w := PrefixWriter{Sink: &buf, Prefix: []byte("  | ")}

		wrote, err := w.Write([]byte(spec.input))
		require.NoError(t, err, "spec %d", specIndex)
		assert.Equal(t, len(spec.input), wrote, "spec %d", specIndex)
		assert.Equal(t, spec.exp, buf.String(), "spec %d", specIndex)
	}
}

func TestPrefixWriterAcrossWrites(t *testing.T) {
	var buf bytes.Buffer
	w := PrefixWriter{Sink: &buf, Prefix: []byte("> ")}

	Fprintf(&w, "frames: %d", 10)
	Fprintf(&w, ", free: %d\nheads: %d\n", 4, 2)

	assert.Equal(t, "> frames: 10, free: 4\n> heads: 2\n", buf.String())
}

func TestPrefixWriterErrors(t *testing.T) {
	expErr := errors.New("write failed")

	for _, input := range []string{"no line break anywhere", "\nsecond\nthird"} {
		w := PrefixWriter{Sink: writerThatAlwaysErrors{expErr}, Prefix: []byte("> ")}
		_, err := w.Write([]byte(input))
		assert.Equal(t, expErr, err)
	}
}

type writerThatAlwaysErrors struct {
	err error
}

func (w writerThatAlwaysErrors) Write(_ []byte) (int, error) {
	return 0, w.err
}
