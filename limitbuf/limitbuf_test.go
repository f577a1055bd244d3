package limitbuf_test

import (
	"testing"

	"github.com/jmscott/blobio/limitbuf"
)

func TestLogger(t *testing.T) {
	l := limitbuf.NewLogger(10)
	l.Write([]byte("blah"))
	if got := l.String(); got != "blah" {
		t.Errorf("String() = %q", got)
	}
	l.Write([]byte("abcdefgh"))
	want := "blahabcdef(truncated)"
	if got := l.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	// The trailer is appended once, not per String call.
	if got := l.String(); got != want {
		t.Errorf("second String() = %q, want %q", got, want)
	}
}

func TestLoggerExactFit(t *testing.T) {
	l := limitbuf.NewLogger(4)
	l.Write([]byte("0x2e"))
	if got := l.String(); got != "0x2e" {
		t.Errorf("String() = %q, want %q", got, "0x2e")
	}
}
