package store

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/jmscott/blobio/digest"
	"github.com/stretchr/testify/require"
)

func mustSha(t *testing.T) digest.Algorithm {
	t.Helper()
	alg, ok := digest.Lookup("sha")
	require.True(t, ok)
	return alg
}

func TestPublishAndOpenRoundTrip(t *testing.T) {
	root := t.TempDir()
	s, err := Open(root)
	require.NoError(t, err)
	defer s.Close()

	alg := mustSha(t)
	body := []byte("hello\n")
	w := digest.NewWriter(alg)
	w.Write(body)
	u := w.Udig()

	res, err := s.Publish(context.Background(), "put", alg, u, bytes.NewReader(body))
	require.NoError(t, err)
	require.False(t, res.AlreadyExisted)
	require.EqualValues(t, len(body), res.Size)

	exists, err := s.Exists(u)
	require.NoError(t, err)
	require.True(t, exists)

	r, err := s.OpenVerified(u, alg, false)
	require.NoError(t, err)
	got, err := readAll(r)
	require.NoError(t, err)
	require.Equal(t, body, got)
	require.False(t, r.Corrupt())
	require.NoError(t, r.Close())
}

func TestPublishIdempotent(t *testing.T) {
	root := t.TempDir()
	s, err := Open(root)
	require.NoError(t, err)
	defer s.Close()

	alg := mustSha(t)
	body := []byte("idempotent\n")
	w := digest.NewWriter(alg)
	w.Write(body)
	u := w.Udig()

	_, err = s.Publish(context.Background(), "put", alg, u, bytes.NewReader(body))
	require.NoError(t, err)

	res, err := s.Publish(context.Background(), "put", alg, u, bytes.NewReader(body))
	require.NoError(t, err)
	require.True(t, res.AlreadyExisted)

	got, err := os.ReadFile(must(s.DataPath(u)))
	require.NoError(t, err)
	require.Equal(t, body, got)
}

func TestPublishRejectsMismatch(t *testing.T) {
	root := t.TempDir()
	s, err := Open(root)
	require.NoError(t, err)
	defer s.Close()

	alg := mustSha(t)
	target, err := digest.Parse("sha:da39a3ee5e6b4b0d3255bfef95601890afd80709")
	require.NoError(t, err)

	_, err = s.Publish(context.Background(), "put", alg, target, bytes.NewReader([]byte("not empty")))
	require.Error(t, err)

	exists, err := s.Exists(target)
	require.NoError(t, err)
	require.False(t, exists)
}

func TestRemoveTrimsEmptyAncestors(t *testing.T) {
	root := t.TempDir()
	s, err := Open(root)
	require.NoError(t, err)
	defer s.Close()

	alg := mustSha(t)
	body := []byte("trim me\n")
	w := digest.NewWriter(alg)
	w.Write(body)
	u := w.Udig()

	_, err = s.Publish(context.Background(), "put", alg, u, bytes.NewReader(body))
	require.NoError(t, err)

	require.NoError(t, s.Remove(u))
	exists, err := s.Exists(u)
	require.NoError(t, err)
	require.False(t, exists)

	// Innermost fanout directories should be gone too.
	dir, err := s.DataDir(u)
	require.NoError(t, err)
	_, statErr := os.Stat(dir)
	require.True(t, os.IsNotExist(statErr))
}

func TestRemoveToleratesConcurrentRemoval(t *testing.T) {
	root := t.TempDir()
	s, err := Open(root)
	require.NoError(t, err)
	defer s.Close()

	u, err := digest.Parse("sha:da39a3ee5e6b4b0d3255bfef95601890afd80709")
	require.NoError(t, err)
	require.NoError(t, s.Remove(u)) // never published; must not error
}

func must(s string, err error) string {
	if err != nil {
		panic(err)
	}
	return s
}

func readAll(r *VerifiedReader) ([]byte, error) {
	var buf bytes.Buffer
	_, err := buf.ReadFrom(r)
	return buf.Bytes(), err
}

func TestCheckSameDevice(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()
	// data/ and tmp/ were just created under one root; they must share
	// a filesystem.
	require.NoError(t, s.CheckSameDevice())
}
