package ioctx

import (
	"context"
	"io"
)

// Writer is io.Writer with context added.
type Writer interface {
	Write(_ context.Context, p []byte) (n int, err error)
}

// WriteCloser is io.WriteCloser with context added.
type WriteCloser interface {
	Writer
	Closer
}

type (
	fromStdWriter struct{ io.Writer }

	toStdWriter struct {
		ctx context.Context
		Writer
	}
)

// FromStdWriter wraps io.Writer as Writer.
func FromStdWriter(w io.Writer) Writer { return fromStdWriter{w} }

func (w fromStdWriter) Write(_ context.Context, p []byte) (n int, err error) {
	return w.Writer.Write(p)
}

// ToStdWriter wraps Writer as io.Writer.
func ToStdWriter(ctx context.Context, w Writer) io.Writer { return toStdWriter{ctx, w} }

func (w toStdWriter) Write(p []byte) (n int, err error) {
	return w.Writer.Write(w.ctx, p)
}
