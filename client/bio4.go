package client

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/jmscott/blobio/digest"
	"github.com/jmscott/blobio/errors"
	"github.com/jmscott/blobio/proto"
	"github.com/jmscott/blobio/serviceuri"
)

// bio4Driver speaks the wire protocol over TCP, one dial per exchange.
type bio4Driver struct {
	addr    string
	timeout time.Duration
	trustFS bool
}

func newBio4(svc serviceuri.Service) *bio4Driver {
	tmo := svc.Timeout
	if tmo <= 0 {
		tmo = 20 * time.Second
	}
	return &bio4Driver{
		addr:    fmt.Sprintf("%s:%d", svc.Host, svc.Port),
		timeout: tmo,
		trustFS: svc.TrustFS,
	}
}

func (d *bio4Driver) Close() error { return nil }

// chat is one dialed exchange: a connection whose every read and write is
// re-armed with the driver's timeout.
type chat struct {
	conn net.Conn
	r    *bufio.Reader
	tmo  time.Duration
}

func (d *bio4Driver) dial(ctx context.Context) (*chat, error) {
	var nd net.Dialer
	nd.Timeout = d.timeout
	conn, err := nd.DialContext(ctx, "tcp", d.addr)
	if err != nil {
		return nil, errors.E(errors.Unavailable, "client: dial "+d.addr, err)
	}
	c := &chat{conn: conn, tmo: d.timeout}
	c.r = bufio.NewReader(readerFunc(func(p []byte) (int, error) {
		conn.SetReadDeadline(time.Now().Add(c.tmo)) //nolint:errcheck // deadline on a live conn
		return conn.Read(p)
	}))
	return c, nil
}

type readerFunc func([]byte) (int, error)

func (f readerFunc) Read(p []byte) (int, error) { return f(p) }

func (c *chat) Write(p []byte) (int, error) {
	c.conn.SetWriteDeadline(time.Now().Add(c.tmo)) //nolint:errcheck
	return c.conn.Write(p)
}

func (c *chat) close() { c.conn.Close() }

func (c *chat) request(verb string, u digest.Udig) error {
	line := verb + "\n"
	if !u.IsZero() {
		line = verb + " " + u.String() + "\n"
	}
	if _, err := io.WriteString(c, line); err != nil {
		return errors.E(errors.Net, "client: write request", err)
	}
	return nil
}

func (d *bio4Driver) Get(ctx context.Context, u digest.Udig, dst io.Writer) (bool, int64, error) {
	alg, err := algorithmOf(u)
	if err != nil {
		return false, 0, err
	}
	c, err := d.dial(ctx)
	if err != nil {
		return false, 0, err
	}
	defer c.close()

	if err := c.request("get", u); err != nil {
		return false, 0, err
	}
	ok, err := proto.ReadReply(c.r)
	if err != nil || !ok {
		return false, 0, err
	}

	// The body runs to connection close; verify the stream
	// against u on the way through unless the caller trusts the service.
	var w io.Writer = dst
	var verify digest.Writer
	if !d.trustFS {
		verify = digest.NewWriter(alg)
		w = io.MultiWriter(dst, verify)
	}
	n, err := io.Copy(w, c.r)
	if err != nil {
		return false, n, errors.E(errors.Net, "client: read blob", err)
	}
	if !d.trustFS && verify.Udig() != u {
		return false, n, errors.E(errors.Integrity,
			fmt.Sprintf("client: blob %s arrived as %s", u, verify.Udig()))
	}
	return true, n, nil
}

func (d *bio4Driver) Put(ctx context.Context, u digest.Udig, src io.Reader) (bool, int64, error) {
	c, err := d.dial(ctx)
	if err != nil {
		return false, 0, err
	}
	defer c.close()
	return d.send(c, "put", u, src)
}

func (d *bio4Driver) Give(ctx context.Context, u digest.Udig, src io.Reader) (bool, int64, error) {
	c, err := d.dial(ctx)
	if err != nil {
		return false, 0, err
	}
	defer c.close()

	ok, n, err := d.send(c, "give", u, src)
	if err != nil || !ok {
		return ok, n, err
	}
	// Third round-trip: the service holds the blob, so this side may
	// forget its copy; whether the caller actually removes anything is the
	// caller's bookkeeping.
	if err := proto.WriteOK(c); err != nil {
		return true, n, errors.E(errors.Net, "client: give ack", err)
	}
	return true, n, nil
}

// send drives the shared request/ok/body/ok-or-no exchange of put and give.
func (d *bio4Driver) send(c *chat, verb string, u digest.Udig, src io.Reader) (bool, int64, error) {
	if err := c.request(verb, u); err != nil {
		return false, 0, err
	}
	ok, err := proto.ReadReply(c.r)
	if err != nil || !ok {
		return false, 0, err
	}
	n, err := io.Copy(c, src)
	if err != nil {
		return false, n, errors.E(errors.Net, "client: write blob", err)
	}
	ok, err = proto.ReadReply(c.r)
	return ok, n, err
}

func (d *bio4Driver) Take(ctx context.Context, u digest.Udig, dst io.Writer) (bool, int64, error) {
	alg, err := algorithmOf(u)
	if err != nil {
		return false, 0, err
	}
	c, err := d.dial(ctx)
	if err != nil {
		return false, 0, err
	}
	defer c.close()

	if err := c.request("take", u); err != nil {
		return false, 0, err
	}
	ok, err := proto.ReadReply(c.r)
	if err != nil || !ok {
		return false, 0, err
	}

	// Unlike get, the connection stays open after the body: its end is
	// marked by the running digest matching u, the same boundary the
	// server uses when accepting a put.
	n, err := copyUntilMatch(c.r, dst, alg, u)
	if err != nil {
		return false, n, err
	}

	// Acknowledge the bytes arrived intact; the service now removes the
	// blob and confirms.
	if err := proto.WriteOK(c); err != nil {
		return false, n, errors.E(errors.Net, "client: take ack", err)
	}
	ok, err = proto.ReadReply(c.r)
	return ok, n, err
}

// copyUntilMatch streams bytes from r to dst until the running digest
// equals u, cloning and finalizing the state after each byte exactly as
// the storage engine's accept loop does.
func copyUntilMatch(r *bufio.Reader, dst io.Writer, alg digest.Algorithm, u digest.Udig) (int64, error) {
	verify := digest.NewVerifyingWriter(alg, u)
	var n int64
	for verify.Status() != digest.Matched {
		b, err := r.ReadByte()
		if err != nil {
			return n, errors.E(errors.Net, "client: read blob body", err)
		}
		if _, err := dst.Write([]byte{b}); err != nil {
			return n, errors.E(errors.Unavailable, "client: write blob body", err)
		}
		verify.Write([]byte{b}) //nolint:errcheck // VerifyingWriter.Write never errors
		n++
	}
	return n, nil
}

func (d *bio4Driver) Eat(ctx context.Context, u digest.Udig) (bool, error) {
	c, err := d.dial(ctx)
	if err != nil {
		return false, err
	}
	defer c.close()

	if err := c.request("eat", u); err != nil {
		return false, err
	}
	return proto.ReadReply(c.r)
}

func (d *bio4Driver) Wrap(ctx context.Context, algName string) (digest.Udig, bool, error) {
	c, err := d.dial(ctx)
	if err != nil {
		return digest.Udig{}, false, err
	}
	defer c.close()

	line := "wrap\n"
	if algName != "" {
		line = "wrap " + algName + "\n"
	}
	if _, err := io.WriteString(c, line); err != nil {
		return digest.Udig{}, false, errors.E(errors.Net, "client: write request", err)
	}
	ok, err := proto.ReadReply(c.r)
	if err != nil || !ok {
		return digest.Udig{}, false, err
	}
	setLine, err := c.r.ReadString('\n')
	if err != nil {
		return digest.Udig{}, false, errors.E(errors.Net, "client: read wrap set udig", err)
	}
	set, err := digest.Parse(setLine[:len(setLine)-1])
	if err != nil {
		return digest.Udig{}, false, errors.E(errors.Invalid, "client: wrap set udig", err)
	}
	return set, true, nil
}

func (d *bio4Driver) Roll(ctx context.Context, setUdig digest.Udig) (bool, error) {
	c, err := d.dial(ctx)
	if err != nil {
		return false, err
	}
	defer c.close()

	if err := c.request("roll", setUdig); err != nil {
		return false, err
	}
	return proto.ReadReply(c.r)
}
