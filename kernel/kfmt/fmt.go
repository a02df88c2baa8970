// Package kfmt provides the kernel console output primitives: Printf-style
// formatting to a settable output sink, a structured logger sharing that sink
// and the Panic routine that reports fatal errors before halting the CPU.
package kfmt

import (
	"bytes"
	"fmt"
	"io"
)

// earlyBufferSize bounds the output retained before an output sink is
// attached. It matches the contents of a standard 80*25 text-mode console.
const earlyBufferSize = 2048

var (
	// earlyPrintBuffer stores Printf output before an output sink is
	// attached. Once full, the oldest bytes are discarded.
	earlyPrintBuffer earlyBuffer

	// outputSink is a io.Writer where Printf will send its output. If set
	// to nil, then the output will be redirected to the earlyPrintBuffer.
	outputSink io.Writer
)

type earlyBuffer struct {
	buf bytes.Buffer
}

func (b *earlyBuffer) Write(p []byte) (int, error) {
	b.buf.Write(p)
	if over := b.buf.Len() - earlyBufferSize; over > 0 {
		b.buf.Next(over)
	}
	return len(p), nil
}

// SetOutputSink sets the default target for calls to Printf to w and copies
// any data accumulated in the early print buffer to it.
func SetOutputSink(w io.Writer) {
	outputSink = w
	if w != nil {
		_, _ = io.Copy(w, &earlyPrintBuffer.buf)
	}
}

// GetOutputSink returns the default target for calls to Printf.
func GetOutputSink() io.Writer {
	if outputSink == nil {
		return &earlyPrintBuffer
	}
	return outputSink
}

// Printf formats according to a format specifier and writes to the active
// output sink. Output produced before a sink is attached is buffered.
func Printf(format string, args ...interface{}) {
	Fprintf(GetOutputSink(), format, args...)
}

// Fprintf behaves like Printf but writes its output to w.
func Fprintf(w io.Writer, format string, args ...interface{}) {
	_, _ = fmt.Fprintf(w, format, args...)
}
