// go-stpv3
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-stpv3.
//
// go-stpv3 is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-stpv3 is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-stpv3; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package stpv3

import (
	"errors"
	"fmt"
)

// ErrorType classifies transport failures for retry decisions
type ErrorType int

const (
	// ErrorTypePermanent errors will not go away by retrying
	ErrorTypePermanent ErrorType = iota
	// ErrorTypeTransient errors may succeed on a later attempt
	ErrorTypeTransient
	// ErrorTypeTimeout errors mean the device did not answer in time
	ErrorTypeTimeout
)

// String returns the error type name
func (t ErrorType) String() string {
	switch t {
	case ErrorTypeTransient:
		return "transient"
	case ErrorTypeTimeout:
		return "timeout"
	case ErrorTypePermanent:
		return "permanent"
	default:
		return fmt.Sprintf("ErrorType(%d)", int(t))
	}
}

// Transport errors
var (
	ErrTransportTimeout    = errors.New("transport timeout")
	ErrTransportRead       = errors.New("transport read failed")
	ErrTransportWrite      = errors.New("transport write failed")
	ErrTransportClosed     = errors.New("transport closed")
	ErrCommunicationFailed = errors.New("communication failed")
	ErrDeviceNotFound      = errors.New("device not found")
	ErrUnsupported         = errors.New("operation not supported by transport")
)

// Frame errors
var (
	ErrFrameCorrupted   = errors.New("frame corrupted")
	ErrChecksumMismatch = errors.New("checksum mismatch")
	ErrMalformedFrame   = errors.New("malformed frame")
	ErrNeedMoreBytes    = errors.New("need more bytes")
	ErrDataTooLarge     = errors.New("data too large")
)

// Session and device errors
var (
	ErrInvalidParameter    = errors.New("invalid parameter")
	ErrDeviceNotResponding = errors.New("device not responding")
	ErrSessionClosed       = errors.New("reader session closed")
	ErrTagNotFound         = errors.New("tag not found")
	ErrBootloadRejected    = errors.New("reader refused to enter bootloader")
)

// TransportError carries the operation and port a transport failure
// happened on, along with how it should be treated by retry logic.
type TransportError struct {
	Err       error
	Op        string
	Port      string
	Type      ErrorType
	Retryable bool
}

// Error implements the error interface
func (e *TransportError) Error() string {
	if e.Port != "" {
		return fmt.Sprintf("%s on %s: %v", e.Op, e.Port, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the error is a read timeout, matching net.Error
func (e *TransportError) Timeout() bool {
	return e.Type == ErrorTypeTimeout
}

// NewTransportError creates a transport error, deriving Retryable from the type
func NewTransportError(op, port string, err error, errType ErrorType) *TransportError {
	return &TransportError{
		Op:        op,
		Port:      port,
		Err:       err,
		Type:      errType,
		Retryable: errType != ErrorTypePermanent,
	}
}

// NewTimeoutError creates a retryable timeout error
func NewTimeoutError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTransportTimeout, ErrorTypeTimeout)
}

// NewFrameCorruptedError creates a retryable frame corruption error
func NewFrameCorruptedError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrFrameCorrupted, ErrorTypeTransient)
}

// NewDataTooLargeError creates a permanent error for frames that cannot be sent
func NewDataTooLargeError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrDataTooLarge, ErrorTypePermanent)
}

// NewTransportNotReadyError creates a retryable error for a busy transport
func NewTransportNotReadyError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrCommunicationFailed, ErrorTypeTransient)
}

// NewUnsupportedError reports an operation a transport does not implement
func NewUnsupportedError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrUnsupported, ErrorTypePermanent)
}

// IsRetryable reports whether err is worth another attempt
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable
	}

	switch {
	case errors.Is(err, ErrTransportTimeout),
		errors.Is(err, ErrTransportRead),
		errors.Is(err, ErrTransportWrite),
		errors.Is(err, ErrCommunicationFailed),
		errors.Is(err, ErrFrameCorrupted),
		errors.Is(err, ErrChecksumMismatch),
		errors.Is(err, ErrMalformedFrame):
		return true
	default:
		return false
	}
}

// GetErrorType returns the classification of err
func GetErrorType(err error) ErrorType {
	if err == nil {
		return ErrorTypePermanent
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Type
	}

	switch {
	case errors.Is(err, ErrTransportTimeout):
		return ErrorTypeTimeout
	case errors.Is(err, ErrTransportRead),
		errors.Is(err, ErrTransportWrite),
		errors.Is(err, ErrCommunicationFailed),
		errors.Is(err, ErrFrameCorrupted),
		errors.Is(err, ErrChecksumMismatch),
		errors.Is(err, ErrMalformedFrame):
		return ErrorTypeTransient
	default:
		return ErrorTypePermanent
	}
}

// IsTimeout reports whether err is a read timeout
func IsTimeout(err error) bool {
	return err != nil && GetErrorType(err) == ErrorTypeTimeout
}

// ReaderFault is returned when the reader decoded a request but answered
// with a failure response code.
type ReaderFault struct {
	Op   string
	Code ResponseCode
}

// Error implements the error interface
func (f *ReaderFault) Error() string {
	return fmt.Sprintf("%s: reader returned %s (0x%04X)", f.Op, f.Code, uint16(f.Code))
}

// NewReaderFault creates a fault for the given operation and response code
func NewReaderFault(op string, code ResponseCode) *ReaderFault {
	return &ReaderFault{Op: op, Code: code}
}

// IsDeviceFault reports whether err carries a device response code and returns it
func IsDeviceFault(err error) (ResponseCode, bool) {
	var f *ReaderFault
	if errors.As(err, &f) {
		return f.Code, true
	}
	return 0, false
}
