package imapkit

import (
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
)

// Sentinel error kinds per the library's error taxonomy. Use errors.Is
// against these to classify a failure. A NO/BAD tagged completion's server
// text appears in the returned error's message.
var (
	ErrConnectionFailed     = eris.New("imapkit: connection failed")
	ErrConnectionClosed     = eris.New("imapkit: connection closed")
	ErrConnectionTimedOut   = eris.New("imapkit: connection timed out")
	ErrAuthFailed           = eris.New("imapkit: authentication failed")
	ErrProtocolNotSupported = eris.New("imapkit: protocol variant not supported")

	ErrFolderFetchingFailed          = eris.New("imapkit: folder fetching failed")
	ErrMessageSearchValidationFailed = eris.New("imapkit: message search validation failed")
	ErrGetMessagesFailed             = eris.New("imapkit: get messages failed")

	ErrMessageFlag            = eris.New("imapkit: message flag error")
	ErrMessageContentFetching = eris.New("imapkit: message content fetching failed")
	ErrInvalidMessageDate     = eris.New("imapkit: invalid message date")
	ErrMessageSizeFetching    = eris.New("imapkit: message size fetching failed")

	ErrMaskNotFound   = eris.New("imapkit: mask not found")
	ErrMethodNotFound = eris.New("imapkit: method not found")
)

// RuntimeError wraps an IMAP command's NO/BAD tagged completion, carrying
// the command that was sent and the server's status text. It satisfies
// errors.Is against the sentinel kinds above via Unwrap. The command
// methods of Client, Folder and Query do not return a *RuntimeError:
// their NO/BAD failures come back as the wire engine's own error type,
// either directly or wrapped with one of the sentinel kinds, so errors.As
// with *RuntimeError does not match them.
type RuntimeError struct {
	Command string
	Status  string
	Text    string
	kind    error
}

func newRuntimeError(kind error, command, status, text string) *RuntimeError {
	return &RuntimeError{Command: command, Status: status, Text: text, kind: kind}
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("imapkit: %s -> %s %s", e.Command, e.Status, e.Text)
}

func (e *RuntimeError) Unwrap() error {
	if e.kind != nil {
		return e.kind
	}
	return eris.New("imapkit: runtime error")
}

// wrapConn wraps a transport-layer failure as ErrConnectionFailed, with an
// eris stack trace attached at the point of failure.
func wrapConn(err error) error {
	if err == nil {
		return nil
	}
	return eris.Wrap(err, ErrConnectionFailed.Error())
}

// classifyIOError maps a raw I/O error into the closed/timed-out taxonomy
// expected mid-session.
func classifyIOError(err error) error {
	if err == nil {
		return nil
	}
	var ne interface{ Timeout() bool }
	if errors.As(err, &ne) && ne.Timeout() {
		return eris.Wrap(err, ErrConnectionTimedOut.Error())
	}
	return eris.Wrap(err, ErrConnectionClosed.Error())
}
