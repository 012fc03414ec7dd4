package transfer

import (
	"errors"
	"fmt"
)

var (
	ErrPeerDisconnected  = errors.New("peer disconnected")
	ErrChannelClosed     = errors.New("channel closed")
	ErrChannelNotOpen    = errors.New("channel not open")
	ErrTransferDeclined  = errors.New("receiver declined the transfer")
	ErrTransferCancelled = errors.New("transfer cancelled by user")
	ErrInvalidFile       = errors.New("invalid file")
	ErrUnknownTag        = errors.New("unknown frame tag")
	ErrNoActiveReceive   = errors.New("no active receive for file id")
	ErrChunkOutOfRange   = errors.New("chunk index out of range")

	// ErrKeyImport mirrors cryptochan.ErrKeyImport: a key-import failure
	// is fatal to the session, since decryption can never succeed.
	ErrKeyImport = errors.New("transfer: invalid encryption key")
)

// TransferError wraps an operation, optionally a file name, and the
// underlying cause.
type TransferError struct {
	Op      string
	File    string
	Err     error
	Details string
}

func (e *TransferError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.File, e.Err)
	}
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

func NewError(op string, err error) *TransferError {
	return &TransferError{Op: op, Err: err}
}

func NewFileError(op, file string, err error) *TransferError {
	return &TransferError{Op: op, File: file, Err: err}
}

func WrapError(op string, err error, details string) *TransferError {
	return &TransferError{Op: op, Err: err, Details: details}
}
