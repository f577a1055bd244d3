package client_test

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jmscott/blobio/brrlog"
	"github.com/jmscott/blobio/client"
	"github.com/jmscott/blobio/digest"
	"github.com/jmscott/blobio/server"
	"github.com/jmscott/blobio/serviceuri"
	"github.com/jmscott/blobio/store"
	"github.com/jmscott/blobio/wraproll"
)

func shaOf(t *testing.T, body []byte) digest.Udig {
	t.Helper()
	alg, ok := digest.Lookup("sha")
	require.True(t, ok)
	w := digest.NewWriter(alg)
	w.Write(body)
	return w.Udig()
}

// startServer serves a fresh store on a loopback listener and returns its
// bio4 service URI.
func startServer(t *testing.T) (string, string) {
	t.Helper()
	root := t.TempDir()
	st, err := store.Open(root)
	require.NoError(t, err)
	logger, err := brrlog.Open(root, "bio4d")
	require.NoError(t, err)
	alg, ok := digest.Lookup("sha")
	require.True(t, ok)

	srv := server.New(server.Config{
		Store:    st,
		Logger:   logger,
		WrapRoll: wraproll.New(st, logger, alg),
		WrapAlgo: alg,
	})
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, lis) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("server did not shut down")
		}
		logger.Close()
		st.Close()
	})
	host, port, err := net.SplitHostPort(lis.Addr().String())
	require.NoError(t, err)
	return "bio4:" + host + ":" + port, root
}

func dialDriver(t *testing.T, uri string) client.Driver {
	t.Helper()
	svc, err := serviceuri.Parse(uri)
	require.NoError(t, err)
	drv, err := client.New(svc)
	require.NoError(t, err)
	t.Cleanup(func() { drv.Close() })
	return drv
}

func TestBio4RoundTrip(t *testing.T) {
	uri, _ := startServer(t)
	drv := dialDriver(t, uri)
	ctx := context.Background()

	body := []byte("hello\n")
	u := shaOf(t, body)

	ok, n, err := drv.Put(ctx, u, bytes.NewReader(body))
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, len(body), n)

	ok, err = drv.Eat(ctx, u)
	require.NoError(t, err)
	require.True(t, ok)

	var got bytes.Buffer
	ok, n, err = drv.Get(ctx, u, &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, len(body), n)
	require.Equal(t, body, got.Bytes())
}

func TestBio4GetAbsent(t *testing.T) {
	uri, _ := startServer(t)
	drv := dialDriver(t, uri)

	var got bytes.Buffer
	ok, _, err := drv.Get(context.Background(), shaOf(t, []byte("absent")), &got)
	require.NoError(t, err)
	require.False(t, ok)
	require.Empty(t, got.Bytes())
}

func TestBio4EmptyBlob(t *testing.T) {
	uri, _ := startServer(t)
	drv := dialDriver(t, uri)
	ctx := context.Background()

	u := shaOf(t, nil)
	ok, n, err := drv.Put(ctx, u, bytes.NewReader(nil))
	require.NoError(t, err)
	require.True(t, ok)
	require.Zero(t, n)

	var got bytes.Buffer
	ok, n, err = drv.Get(ctx, u, &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Zero(t, n)
}

func TestBio4Take(t *testing.T) {
	uri, _ := startServer(t)
	drv := dialDriver(t, uri)
	ctx := context.Background()

	body := []byte("taken\n")
	u := shaOf(t, body)
	ok, _, err := drv.Put(ctx, u, bytes.NewReader(body))
	require.NoError(t, err)
	require.True(t, ok)

	var got bytes.Buffer
	ok, n, err := drv.Take(ctx, u, &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, len(body), n)
	require.Equal(t, body, got.Bytes())

	ok, err = drv.Eat(ctx, u)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestBio4GiveWrapRoll(t *testing.T) {
	uri, _ := startServer(t)
	drv := dialDriver(t, uri)
	ctx := context.Background()

	body := []byte("given\n")
	u := shaOf(t, body)
	ok, _, err := drv.Give(ctx, u, bytes.NewReader(body))
	require.NoError(t, err)
	require.True(t, ok)

	// The give's BRR record lands just after its reply.
	require.Eventually(t, func() bool {
		set, ok, err := drv.Wrap(ctx, "")
		if err != nil || !ok {
			return false
		}
		rolled, err := drv.Roll(ctx, set)
		return err == nil && rolled
	}, 5*time.Second, 50*time.Millisecond)
}

func TestFSDriverRoundTrip(t *testing.T) {
	root := t.TempDir()
	drv := dialDriver(t, "fs:"+root)
	ctx := context.Background()

	body := []byte("local\n")
	u := shaOf(t, body)

	ok, n, err := drv.Put(ctx, u, bytes.NewReader(body))
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, len(body), n)

	ok, err = drv.Eat(ctx, u)
	require.NoError(t, err)
	require.True(t, ok)

	var got bytes.Buffer
	ok, _, err = drv.Get(ctx, u, &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, body, got.Bytes())

	got.Reset()
	ok, _, err = drv.Take(ctx, u, &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, body, got.Bytes())

	ok, err = drv.Eat(ctx, u)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFSDriverWrapNotSupported(t *testing.T) {
	drv := dialDriver(t, "fs:"+t.TempDir())
	_, ok, err := drv.Wrap(context.Background(), "")
	require.Error(t, err)
	require.False(t, ok)
}

func TestCache4GetPopulatesCache(t *testing.T) {
	uri, _ := startServer(t)
	srvDrv := dialDriver(t, uri)
	ctx := context.Background()

	body := []byte("cached\n")
	u := shaOf(t, body)
	ok, _, err := srvDrv.Put(ctx, u, bytes.NewReader(body))
	require.NoError(t, err)
	require.True(t, ok)

	cacheRoot := t.TempDir()
	cacheURI := "cache4:" + uri[len("bio4:"):] + ":" + cacheRoot
	drv := dialDriver(t, cacheURI)

	// First get misses the cache and fetches over the wire.
	var got bytes.Buffer
	ok, _, err = drv.Get(ctx, u, &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, body, got.Bytes())

	// The blob is now in the local cache store.
	cacheStore, err := store.Open(cacheRoot)
	require.NoError(t, err)
	defer cacheStore.Close()
	require.Eventually(t, func() bool {
		exists, err := cacheStore.Exists(u)
		return err == nil && exists
	}, 5*time.Second, 10*time.Millisecond)

	// Second get is served locally.
	got.Reset()
	ok, _, err = drv.Get(ctx, u, &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, body, got.Bytes())
}

func TestCache4GetAbsentEverywhere(t *testing.T) {
	uri, _ := startServer(t)
	cacheURI := "cache4:" + uri[len("bio4:"):] + ":" + t.TempDir()
	drv := dialDriver(t, cacheURI)

	var got bytes.Buffer
	ok, _, err := drv.Get(context.Background(), shaOf(t, []byte("nowhere")), &got)
	require.NoError(t, err)
	require.False(t, ok)
	require.Empty(t, got.Bytes())
}

func TestCache4RejectsMutation(t *testing.T) {
	uri, _ := startServer(t)
	cacheURI := "cache4:" + uri[len("bio4:"):] + ":" + t.TempDir()
	drv := dialDriver(t, cacheURI)

	u := shaOf(t, []byte("x"))
	ok, _, err := drv.Put(context.Background(), u, bytes.NewReader([]byte("x")))
	require.Error(t, err)
	require.False(t, ok)
}

func TestFSDriverTakeRespectsWrapProtection(t *testing.T) {
	root := t.TempDir()
	drv := dialDriver(t, "fs:"+root)
	ctx := context.Background()

	body := []byte("protected\n")
	u := shaOf(t, body)
	ok, _, err := drv.Put(ctx, u, bytes.NewReader(body))
	require.NoError(t, err)
	require.True(t, ok)

	// Simulate the blob belonging to the unrolled wrap set.
	wrapPath := filepath.Join(root, "spool", "wrap", u.String()+".brr")
	require.NoError(t, os.WriteFile(wrapPath, nil, 0640))

	var got bytes.Buffer
	ok, _, err = drv.Take(ctx, u, &got)
	require.NoError(t, err)
	require.False(t, ok)
	require.Empty(t, got.Bytes())
}
