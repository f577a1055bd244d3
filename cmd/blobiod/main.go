// Command blobiod is the blob store daemon: it opens a store root, starts
// the BRR logger, and serves the blob protocol on a TCP listener until
// terminated.
//
// All business logic lives in the library packages; this binary only
// resolves flags into configuration, takes the single-instance lock,
// wires the pieces together, and plumbs signals into the two-phase
// shutdown.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmscott/blobio/brr"
	"github.com/jmscott/blobio/brrlog"
	"github.com/jmscott/blobio/digest"
	"github.com/jmscott/blobio/flock"
	"github.com/jmscott/blobio/log"
	"github.com/jmscott/blobio/server"
	"github.com/jmscott/blobio/shutdown"
	"github.com/jmscott/blobio/store"
	"github.com/jmscott/blobio/wraproll"
)

const name = "blobiod"

func main() {
	var (
		root        = flag.String("root", "", "store root directory (required)")
		listen      = flag.String("listen", ":1797", "listen address")
		wrapAlgo    = flag.String("wrap-algorithm", "sha", "digest algorithm for wrap snapshots")
		timeout     = flag.Duration("timeout", server.DefaultTimeout, "per-read/write transport timeout (1s-255s)")
		trustFS     = flag.Bool("trust-fs", false, "skip read-back digest verification")
		maskFlag    = flag.String("brr-mask", "", "comma-separated verbs producing BRR records (default all)")
		heartbeat   = flag.Duration("heartbeat", 10*time.Second, "counter heartbeat period (0 disables)")
		maxRequests = flag.Int("max-requests", server.DefaultMaxRequests, "concurrently served requests")
		debug       = flag.Bool("debug", false, "log at debug level")
	)
	flag.Parse()

	if *debug {
		log.SetLevel(log.Debug)
	}
	if *root == "" {
		fmt.Fprintln(os.Stderr, "blobiod: -root is required")
		os.Exit(2)
	}
	if *timeout < time.Second || *timeout > 255*time.Second {
		fmt.Fprintln(os.Stderr, "blobiod: -timeout wants 1s-255s")
		os.Exit(2)
	}
	alg, ok := digest.Lookup(*wrapAlgo)
	if !ok {
		fmt.Fprintf(os.Stderr, "blobiod: unknown wrap algorithm %q\n", *wrapAlgo)
		os.Exit(2)
	}
	mask, err := brr.ParseMask(*maskFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "blobiod: %v\n", err)
		os.Exit(2)
	}

	if err := run(*root, *listen, alg, *timeout, *trustFS, mask, *heartbeat, *maxRequests); err != nil {
		log.Error.Printf("blobiod: %v", err)
		os.Exit(1)
	}
}

func run(root, listen string, alg digest.Algorithm, timeout time.Duration,
	trustFS bool, mask brr.Mask, heartbeat time.Duration, maxRequests int) error {

	st, err := store.Open(root)
	if err != nil {
		return err
	}
	shutdown.Register(func() { st.Close() })
	if err := st.CheckSameDevice(); err != nil {
		return err
	}

	// One daemon per root: the pidfile lock is held for the process's
	// lifetime, and a second instance fails here instead of corrupting
	// the BRR log's single-writer discipline.
	lockCtx, lockCancel := context.WithTimeout(context.Background(), time.Second)
	lock := flock.New(st.RunPath(name + ".pid"))
	err = lock.Lock(lockCtx)
	lockCancel()
	if err != nil {
		return fmt.Errorf("lock %s: another instance running? %w", st.RunPath(name+".pid"), err)
	}
	if err := writePidfile(st.RunPath(name + ".pid")); err != nil {
		return err
	}
	shutdown.Register(func() {
		removePidfile(st.RunPath(name + ".pid"))
		lock.Unlock() //nolint:errcheck // exiting
	})

	logger, err := brrlog.Open(root, name)
	if err != nil {
		return err
	}
	shutdown.Register(func() { logger.Close() })

	lis, err := net.Listen("tcp", listen)
	if err != nil {
		return err
	}
	log.Info.Printf("blobiod: root %s, listening on %s, wrap algorithm %s", root, lis.Addr(), alg.Name())

	srv := server.New(server.Config{
		Store:           st,
		Logger:          logger,
		WrapRoll:        wraproll.New(st, logger, alg),
		WrapAlgo:        alg,
		ReadTimeout:     timeout,
		WriteTimeout:    timeout,
		TrustFS:         trustFS,
		Mask:            mask,
		MaxRequests:     maxRequests,
		HeartbeatPeriod: heartbeat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = srv.Serve(ctx, lis)
	log.Info.Printf("blobiod: shutting down")
	shutdown.Run()
	return err
}

func writePidfile(path string) error {
	return os.WriteFile(path, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0644)
}

// removePidfile tolerates ENOENT: a concurrent second shutdown already
// removed it.
func removePidfile(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Error.Printf("blobiod: remove pidfile: %v", err)
	}
}
