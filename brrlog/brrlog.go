// Package brrlog implements the single-writer append-only BRR logger and
// its wrap-freeze handshake.
//
// A single logger endpoint owns the writable descriptor for
// spool/<name>.brr: a goroutine holding the file, fed by a channel-based
// mailbox carrying tagged messages, either an append or a freeze request.
// A freeze closes the file, renames it to its FROZEN- name, reopens a
// fresh log, and replies with the frozen path: an exclusive window
// between close-and-rename and reopen during which no other append can
// succeed, because only this goroutine ever holds the descriptor.
package brrlog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmscott/blobio/brr"
	"github.com/jmscott/blobio/errors"
	"github.com/jmscott/blobio/sync/ctxsync"
	"github.com/jmscott/blobio/sync/once"
)

// ErrNoLog is returned by Freeze when the log has never received a record.
var ErrNoLog = errors.E(errors.NotExist, "brrlog: no log to freeze")

type appendMsg struct {
	line  string
	reply chan error
}

type freezeMsg struct {
	reply chan freezeResult
}

type freezeResult struct {
	path string
	err  error
}

// Logger owns the writable descriptor for one spool/<name>.brr file.
type Logger struct {
	root string
	name string

	mailbox   chan interface{}
	done      chan struct{}
	closing   once.Task
	freezeMu  ctxsync.Mutex // serializes concurrent Freeze callers
	nowFunc   func() time.Time
	hasRecord bool
}

// Open opens (creating if necessary) spool/<name>.brr under root and
// starts its owning goroutine.
func Open(root, name string) (*Logger, error) {
	l := &Logger{
		root:    root,
		name:    name,
		mailbox: make(chan interface{}),
		done:    make(chan struct{}),
		nowFunc: time.Now,
	}
	if fi, err := os.Stat(l.path()); err == nil && fi.Size() > 0 {
		l.hasRecord = true
	}
	f, err := l.openAppend()
	if err != nil {
		return nil, err
	}
	go l.run(f)
	return l, nil
}

func (l *Logger) path() string {
	return filepath.Join(l.root, "spool", l.name+".brr")
}

func (l *Logger) openAppend() (*os.File, error) {
	f, err := os.OpenFile(l.path(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return nil, errors.E(errors.Fatal, "brrlog.Open", err)
	}
	return f, nil
}

func (l *Logger) run(f *os.File) {
	defer f.Close()
	for {
		select {
		case msg := <-l.mailbox:
			switch m := msg.(type) {
			case appendMsg:
				_, err := f.WriteString(m.line)
				l.hasRecord = l.hasRecord || err == nil
				m.reply <- err
			case freezeMsg:
				frozen, newF, err := l.doFreeze(f)
				if err == nil {
					f.Close()
					f = newF
				}
				m.reply <- freezeResult{path: frozen, err: err}
			}
		case <-l.done:
			return
		}
	}
}

// doFreeze performs the close-rename-reopen sequence on the goroutine
// that owns f, so no other append can interleave.
func (l *Logger) doFreeze(f *os.File) (frozenPath string, newF *os.File, err error) {
	if !l.hasRecord {
		return "", nil, ErrNoLog
	}
	if err := f.Close(); err != nil {
		return "", nil, errors.E(errors.Fatal, "brrlog: close before freeze", err)
	}
	frozenName := fmt.Sprintf("FROZEN-%s-%d-%d.brr", l.name, l.nowFunc().Unix(), os.Getpid())
	frozenPath = filepath.Join(l.root, "spool", frozenName)
	if err := os.Rename(l.path(), frozenPath); err != nil {
		return "", nil, errors.E(errors.Fatal, "brrlog: freeze rename", err)
	}
	newF, err = l.openAppend()
	if err != nil {
		return "", nil, err
	}
	l.hasRecord = false
	return frozenPath, newF, nil
}

// Append writes rec to the log, serialized through the owning goroutine.
func (l *Logger) Append(ctx context.Context, rec brr.Record) error {
	if err := rec.Validate(); err != nil {
		return errors.E(errors.Invalid, "brrlog.Append", err)
	}
	reply := make(chan error, 1)
	select {
	case l.mailbox <- appendMsg{line: rec.String(), reply: reply}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Freeze performs the wrap-freeze handshake: it serializes
// against other concurrent Freeze callers via freezeMu (bounded by ctx, so
// a caller that gives up does not wedge the next one), then asks the
// owning goroutine to close, rename, and reopen the log, returning the
// frozen file's path.
func (l *Logger) Freeze(ctx context.Context) (string, error) {
	if err := l.freezeMu.Lock(ctx); err != nil {
		return "", err
	}
	defer l.freezeMu.Unlock()

	reply := make(chan freezeResult, 1)
	select {
	case l.mailbox <- freezeMsg{reply: reply}:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	select {
	case res := <-reply:
		return res.path, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Close stops the logger's owning goroutine, closing its file descriptor.
// Close is idempotent: the supervisor's shutdown path and the embedding
// daemon's may both reach it.
func (l *Logger) Close() error {
	return l.closing.Do(func() error {
		close(l.done)
		return nil
	})
}
