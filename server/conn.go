package server

import (
	"context"
	"io"
	"net"
	"time"

	"github.com/jmscott/blobio/errors"
	"github.com/jmscott/blobio/ioctx"
)

// deadlineConn guards every read and write on a net.Conn with its own
// independent timeout (reads from and writes to the peer
// transport are the only suspension points, each bounded separately). It
// implements ioctx.Reader and ioctx.Writer so a canceled request context
// also cuts the I/O short at the next transition.
type deadlineConn struct {
	conn         net.Conn
	readTimeout  time.Duration
	writeTimeout time.Duration
}

var (
	_ ioctx.Reader = (*deadlineConn)(nil)
	_ ioctx.Writer = (*deadlineConn)(nil)
)

func (d *deadlineConn) Read(ctx context.Context, p []byte) (int, error) {
	if err := d.arm(ctx, d.readTimeout, d.conn.SetReadDeadline); err != nil {
		return 0, err
	}
	n, err := d.conn.Read(p)
	return n, classifyIO("read", err)
}

func (d *deadlineConn) Write(ctx context.Context, p []byte) (int, error) {
	if err := d.arm(ctx, d.writeTimeout, d.conn.SetWriteDeadline); err != nil {
		return 0, err
	}
	n, err := d.conn.Write(p)
	return n, classifyIO("write", err)
}

// arm sets the deadline for the next I/O call: now plus the per-call
// timeout, pulled in further by the context's own deadline when that is
// sooner.
func (d *deadlineConn) arm(ctx context.Context, tmo time.Duration, set func(time.Time) error) error {
	if err := ctx.Err(); err != nil {
		return errors.E(errors.Canceled, "server: request context done", err)
	}
	deadline := time.Now().Add(tmo)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	return set(deadline)
}

// classifyIO wraps a transport error as Timeout or Net so the supervisor's
// outcome classification needs no string matching.
func classifyIO(op string, err error) error {
	if err == nil || err == io.EOF {
		// EOF is an in-band protocol condition (a put's source closing,
		// a client draining a get to connection close), not a transport
		// fault; let callers see it undisguised.
		return err
	}
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return errors.E(errors.Timeout, "server: "+op, err)
	}
	return errors.E(errors.Net, "server: "+op, err)
}
