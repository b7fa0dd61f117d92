package imapkit

import (
	"context"
	"strings"
	"time"

	"github.com/oakmoss/imapkit/internal/wire"
)

// idleRenewInterval bounds how long a single IDLE command is held open
// before it is cycled (DONE, then re-issued): RFC 2177 recommends
// renewing well inside a 29-minute server-side timeout.
const idleRenewInterval = 25 * time.Minute

// IdleUpdateKind classifies an unsolicited IDLE notification.
type IdleUpdateKind string

const (
	IdleExists  IdleUpdateKind = "exists"
	IdleExpunge IdleUpdateKind = "expunge"
	IdleFetch   IdleUpdateKind = "fetch"
)

// IdleUpdate is one untagged notification received while idling.
type IdleUpdate struct {
	Kind IdleUpdateKind
	MSN  uint32
}

// IdleLoop runs IMAP IDLE on its own cloned Client so the long-poll never
// blocks the primary session's command path. Updates arrive on the
// Updates channel until Stop is called or the context is cancelled.
type IdleLoop struct {
	client  *Client
	folder  string
	Updates chan IdleUpdate
	Errors  chan error

	cancel context.CancelFunc
	done   chan struct{}
}

// newIdleLoop clones f's client, connects and authenticates the clone,
// selects f on it, and starts the background IDLE cycle.
func newIdleLoop(ctx context.Context, f *Folder) (*IdleLoop, error) {
	clone := f.client.Clone()
	if err := clone.Connect(ctx); err != nil {
		return nil, err
	}
	if clone.opts.Username != "" || clone.opts.Auth != "" {
		if err := clone.Authenticate(ctx); err != nil {
			clone.Disconnect()
			return nil, err
		}
	}
	cf := clone.GetFolder(f.name)
	if err := cf.selectOrExamine(true); err != nil {
		clone.Disconnect()
		return nil, err
	}
	if !clone.HasCapability("IDLE") {
		clone.Disconnect()
		return nil, ErrProtocolNotSupported
	}

	loopCtx, cancel := context.WithCancel(ctx)
	loop := &IdleLoop{
		client:  clone,
		folder:  f.name,
		Updates: make(chan IdleUpdate, 32),
		Errors:  make(chan error, 1),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go loop.run(loopCtx)
	return loop, nil
}

func (l *IdleLoop) run(ctx context.Context) {
	defer close(l.done)
	defer l.client.Disconnect()

	for {
		if ctx.Err() != nil {
			return
		}
		if err := l.client.engine.StartIdle(); err != nil {
			l.client.logf("WARN: idle: StartIdle failed: %v", err)
			if err := l.reconnect(ctx); err != nil {
				l.Errors <- err
				return
			}
			continue
		}

		cycleDeadline := time.Now().Add(idleRenewInterval)
		for {
			if ctx.Err() != nil {
				l.client.engine.StopIdle()
				return
			}
			remaining := time.Until(cycleDeadline)
			if remaining <= 0 {
				break
			}
			line, err := l.client.engine.ReadIdleLine(remaining)
			if err != nil {
				if isTimeoutErr(err) {
					break
				}
				l.client.logf("WARN: idle: read failed: %v", err)
				if _, stopErr := l.client.engine.StopIdle(); stopErr != nil {
					l.client.logf("WARN: idle: stop after read error: %v", stopErr)
				}
				if err := l.reconnect(ctx); err != nil {
					l.Errors <- err
					return
				}
				cycleDeadline = time.Now().Add(idleRenewInterval)
				continue
			}
			if update, ok := translateIdleLine(*line); ok {
				select {
				case l.Updates <- update:
				case <-ctx.Done():
					l.client.engine.StopIdle()
					return
				}
			}
		}

		if _, err := l.client.engine.StopIdle(); err != nil {
			l.client.logf("WARN: idle: DONE failed: %v", err)
		}
	}
}

func (l *IdleLoop) reconnect(ctx context.Context) error {
	if err := l.client.Reconnect(ctx); err != nil {
		return err
	}
	cf := l.client.GetFolder(l.folder)
	return cf.selectOrExamine(true)
}

// Stop cancels the idle loop and waits for its goroutine to exit.
func (l *IdleLoop) Stop() {
	l.cancel()
	<-l.done
}

func translateIdleLine(line wire.Line) (IdleUpdate, bool) {
	if line.Kind != wire.LineUntagged || len(line.Tokens) < 2 {
		return IdleUpdate{}, false
	}
	if line.Tokens[0].Kind != wire.KindNumber {
		return IdleUpdate{}, false
	}
	msn := uint32(line.Tokens[0].Num)
	if line.Tokens[1].Kind != wire.KindAtom {
		return IdleUpdate{}, false
	}
	switch strings.ToUpper(line.Tokens[1].Atom) {
	case "EXISTS":
		return IdleUpdate{Kind: IdleExists, MSN: msn}, true
	case "EXPUNGE":
		return IdleUpdate{Kind: IdleExpunge, MSN: msn}, true
	case "FETCH":
		return IdleUpdate{Kind: IdleFetch, MSN: msn}, true
	default:
		return IdleUpdate{}, false
	}
}

func isTimeoutErr(err error) bool {
	te, ok := err.(interface{ Timeout() bool })
	return ok && te.Timeout()
}
