package sdk

import (
	"errors"
	"fmt"
	"net/rpc"
)

var (
	// a call or transfer part was attempted while the connection is not bound
	ErrNotConnected = errors.New("not connected")
	// the connection dropped during a call
	ErrTransport = errors.New("transport error")
	// the remote service reported failure or returned a negative outcome
	ErrRemoteRejected = errors.New("remote rejected")
	// a transfer part kept failing with the io sentinel
	ErrTransferIo = errors.New("transfer io error")
	// the caller violated the protocol, e.g. an oversize part or an unknown operation
	ErrProtocolViolation = errors.New("protocol violation")

	ErrTransferInProgress   = errors.New("transfer already in progress for destination")
	ErrTransferAborted      = errors.New("transfer aborted")
	ErrBindTargetNotFound   = errors.New("bind target not installed")
	ErrBindPermissionDenied = errors.New("bind permission denied")
)

// classifies an error returned by `Service.Call`.
// `rpc.ServerError` is an error string the remote returned; everything else is a failed transport
func classifyCallError(operation Operation, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotConnected) || errors.Is(err, ErrProtocolViolation) ||
		errors.Is(err, ErrRemoteRejected) || errors.Is(err, ErrTransport) {
		return err
	}
	var serverErr rpc.ServerError
	if errors.As(err, &serverErr) {
		return fmt.Errorf("%s: %w: %s", operation, ErrRemoteRejected, string(serverErr))
	}
	return fmt.Errorf("%s: %w: %s", operation, ErrTransport, err)
}

func isTransportError(err error) bool {
	return errors.Is(err, ErrTransport)
}
