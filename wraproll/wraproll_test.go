package wraproll

import (
	"bytes"
	"context"
	"os"
	"testing"
	"time"

	"github.com/jmscott/blobio/brr"
	"github.com/jmscott/blobio/brrlog"
	"github.com/jmscott/blobio/digest"
	"github.com/jmscott/blobio/store"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T) (*Engine, *store.Store, *brrlog.Logger) {
	t.Helper()
	root := t.TempDir()
	s, err := store.Open(root)
	require.NoError(t, err)
	l, err := brrlog.Open(root, "blobio")
	require.NoError(t, err)
	alg, ok := digest.Lookup("sha")
	require.True(t, ok)
	return New(s, l, alg), s, l
}

func TestWrapWithNoLogReturnsNoLog(t *testing.T) {
	e, s, l := newEngine(t)
	defer s.Close()
	defer l.Close()

	_, err := e.Wrap(context.Background())
	require.ErrorIs(t, err, brrlog.ErrNoLog)
}

func TestWrapThenRollRoundTrip(t *testing.T) {
	e, s, l := newEngine(t)
	defer s.Close()
	defer l.Close()
	ctx := context.Background()

	require.NoError(t, l.Append(ctx, brr.Record{
		Timestamp:    time.Now().UTC(),
		Transport:    "tcp4~127.0.0.1:1",
		Verb:         "put",
		Udig:         "sha:da39a3ee5e6b4b0d3255bfef95601890afd80709",
		ChatHistory:  brr.ChatOKOK,
		Size:         0,
		WallDuration: time.Millisecond,
	}))

	res, err := e.Wrap(ctx)
	require.NoError(t, err)
	require.False(t, res.SetUdig.IsZero())

	entries, err := dirEntries(s.WrapDir())
	require.NoError(t, err)
	require.Len(t, entries, 1)

	alg, _ := digest.Lookup("sha")
	rollRes, err := e.Roll(ctx, alg, res.SetUdig)
	require.NoError(t, err)
	require.Equal(t, 1, rollRes.Removed)

	entries, err = dirEntries(s.WrapDir())
	require.NoError(t, err)
	require.Len(t, entries, 0)
}

func TestRollTakeProhibitionReleased(t *testing.T) {
	e, s, l := newEngine(t)
	defer s.Close()
	defer l.Close()
	ctx := context.Background()
	alg, _ := digest.Lookup("sha")

	body := []byte("protected\n")
	w := digest.NewWriter(alg)
	w.Write(body)
	u := w.Udig()
	_, err := s.Publish(ctx, "put", alg, u, readerOf(body))
	require.NoError(t, err)

	require.NoError(t, l.Append(ctx, brr.Record{
		Timestamp:    time.Now().UTC(),
		Transport:    "tcp4~127.0.0.1:1",
		Verb:         "put",
		Udig:         u.String(),
		ChatHistory:  brr.ChatOKOK,
		Size:         int64(len(body)),
		WallDuration: time.Millisecond,
	}))
	res, err := e.Wrap(ctx)
	require.NoError(t, err)

	protected, err := s.WrapProtected(res.SetUdig)
	// The wrap set itself is not the thing take-protection guards;
	// nothing in spool/wrap references the set blob's own udig.
	require.NoError(t, err)
	require.False(t, protected)

	_, err = e.Roll(ctx, alg, res.SetUdig)
	require.NoError(t, err)
}

func dirEntries(dir string) ([]string, error) {
	f, err := os.Open(dir)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	names, err := f.Readdirnames(-1)
	return names, err
}

func readerOf(p []byte) *bytes.Reader {
	return bytes.NewReader(p)
}
