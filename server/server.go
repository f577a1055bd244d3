// Package server implements the connection supervisor: the accept loop,
// per-request isolation, outcome classification, BRR emission, counters,
// and the heartbeat.
//
// Each request runs in its own goroutine under a recover barrier, so a
// panic in one request can touch neither the BRR logger's descriptor nor
// another request's state; its outcome is packed into a 7-bit
// classification indexing the supervisor's counters.
package server

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jmscott/blobio/brr"
	"github.com/jmscott/blobio/brrlog"
	"github.com/jmscott/blobio/digest"
	"github.com/jmscott/blobio/errors"
	"github.com/jmscott/blobio/ioctx"
	"github.com/jmscott/blobio/limiter"
	"github.com/jmscott/blobio/log"
	"github.com/jmscott/blobio/proto"
	"github.com/jmscott/blobio/status"
	"github.com/jmscott/blobio/store"
	"github.com/jmscott/blobio/verb"
	"github.com/jmscott/blobio/wraproll"
)

const (
	// DefaultTimeout bounds each read and write on the peer transport
	// when the config leaves the timeouts zero.
	DefaultTimeout = 20 * time.Second

	// DefaultMaxRequests caps concurrently in-flight request contexts.
	DefaultMaxRequests = 64
)

// Config carries the fully-resolved values the supervisor needs; parsing
// them out of flags, environment, or a service URI is the embedding
// daemon's job.
type Config struct {
	Store    *store.Store
	Logger   *brrlog.Logger
	WrapRoll *wraproll.Engine

	// WrapAlgo digests a bare "wrap" request's snapshot.
	WrapAlgo digest.Algorithm

	// ReadTimeout and WriteTimeout guard each transport read and write
	// independently; zero means DefaultTimeout.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// TrustFS is the trust=fs service option: skip read-back verification.
	TrustFS bool

	// Mask selects which verbs produce BRR records; zero means all.
	Mask brr.Mask

	// MaxRequests caps concurrently served requests; zero means
	// DefaultMaxRequests.
	MaxRequests int

	// HeartbeatPeriod is the cadence of the counter heartbeat line;
	// zero disables it.
	HeartbeatPeriod time.Duration
}

// Server is a connection supervisor bound to one listener.
type Server struct {
	cfg      Config
	status   status.Status
	counters *counters
	lim      *limiter.Limiter
	fatal    errors.Once
}

// New returns a Server ready to Serve.
func New(cfg Config) *Server {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultTimeout
	}
	if cfg.Mask == 0 {
		cfg.Mask = brr.MaskAll
	}
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = DefaultMaxRequests
	}
	s := &Server{cfg: cfg, lim: limiter.New()}
	s.counters = newCounters(&s.status)
	s.lim.Release(cfg.MaxRequests)
	return s
}

// Status exposes the supervisor's counter registry, for tests and for the
// embedding daemon's own reporting.
func (s *Server) Status() *status.Status {
	return &s.status
}

// Serve accepts connections on lis until ctx is canceled, then performs
// a two-phase shutdown: stop accepting, let in-flight
// requests drain (each still bounded by its own I/O timeouts), and return.
// A fatal fault (a failed BRR append, for instance) also ends Serve.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	// Closing the listener is what actually breaks the Accept call below.
	g.Go(func() error {
		<-gctx.Done()
		lis.Close()
		return nil
	})

	g.Go(func() error {
		status.Reporter{
			Period: s.cfg.HeartbeatPeriod,
			Printf: log.Info.Printf,
		}.Go(gctx, &s.status)
		return nil
	})

	g.Go(func() error {
		for {
			if err := s.lim.Acquire(gctx, 1); err != nil {
				return nil
			}
			conn, err := lis.Accept()
			if err != nil {
				s.lim.Release(1)
				if gctx.Err() != nil {
					return nil
				}
				return errors.E(errors.Fatal, "server: accept", err)
			}
			g.Go(func() error {
				defer s.lim.Release(1)
				s.serveConn(gctx, conn)
				return s.fatal.Err()
			})
		}
	})

	err := g.Wait()
	if ferr := s.fatal.Err(); ferr != nil {
		return ferr
	}
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// serveConn runs one isolated request context: parse, dispatch, classify,
// emit a BRR record, release everything. A panic anywhere inside is
// contained here and classified as a fault.
func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	defer func() {
		if p := recover(); p != nil {
			log.Error.Printf("server: request panic: %v", p)
			s.counters.count(NewClass(Faulted, "", ""), 0)
		}
	}()

	s.counters.connect.Add(1)
	start := time.Now()

	dc := &deadlineConn{
		conn:         conn,
		readTimeout:  s.cfg.ReadTimeout,
		writeTimeout: s.cfg.WriteTimeout,
	}
	r := bufio.NewReader(ioctx.ToStdReader(ctx, dc))
	w := ioctx.ToStdWriter(ctx, dc)

	req, perr := proto.Parse(r)
	if perr != nil {
		outcome := classifyErr(perr)
		if outcome == ClientError {
			// Still in a reply position: tell the peer no before closing.
			proto.WriteNo(w) //nolint:errcheck // already failing
		}
		log.Debug.Printf("server: %s: parse: %v", conn.RemoteAddr(), perr)
		s.counters.count(NewClass(outcome, "", ""), 0)
		return
	}

	sess := &verb.Session{
		Store:    s.cfg.Store,
		WrapRoll: s.cfg.WrapRoll,
		R:        r,
		W:        w,
		TrustFS:  s.cfg.TrustFS,
		WrapAlgo: s.cfg.WrapAlgo,
	}
	out, derr := verb.Dispatch(ctx, sess, req)
	outcome := classifyErr(derr)
	if derr != nil {
		log.Debug.Printf("server: %s: %s: %v", conn.RemoteAddr(), req.Verb, derr)
	}
	class := NewClass(outcome, out.Verb, out.ChatHistory)
	s.counters.count(class, out.Size)

	s.writeBRR(ctx, conn, out, start)

	if outcome == Faulted {
		s.fatal.Set(errors.E(errors.Fatal, "server: request fault", derr))
	}
}

// writeBRR emits the request's audit record when the verb is
// masked in and the exchange progressed far enough to have a legal chat
// history. A failed append is fatal to the whole server (the
// logger is above the request level).
func (s *Server) writeBRR(ctx context.Context, conn net.Conn, out verb.Outcome, start time.Time) {
	if out.ChatHistory == "" || !s.cfg.Mask.Has(out.Verb) {
		return
	}
	udig := ""
	if !out.Udig.IsZero() {
		udig = out.Udig.String()
	}
	rec := brr.Record{
		Timestamp:    start,
		Transport:    transportOf(conn),
		Verb:         out.Verb,
		Udig:         udig,
		ChatHistory:  out.ChatHistory,
		Size:         out.Size,
		WallDuration: time.Since(start),
	}
	if err := s.cfg.Logger.Append(ctx, rec); err != nil {
		log.Error.Printf("server: append BRR: %v", err)
		s.fatal.Set(errors.E(errors.Fatal, "server: append BRR", err))
	}
}

// transportOf renders the BRR transport descriptor
// "<proto8>~<up-to-128-graphic-ASCII>" for conn's peer.
func transportOf(conn net.Conn) string {
	addr := conn.RemoteAddr()
	desc := fmt.Sprintf("%s~%s", "bio4", addr.String())
	if len(desc) > 128+1+8 {
		desc = desc[:128+1+8]
	}
	return desc
}
