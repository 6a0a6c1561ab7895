package rabbit

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Broker failures translated from amqp091 codes, network errors and
// reason strings. TranslateError wraps the original error with one of these.
var (
	ErrConnectionFailed = errors.New("rabbit: connection failed")
	ErrConnectionLost   = errors.New("rabbit: connection lost")
	ErrConnectionClosed = errors.New("rabbit: connection closed")
	ErrChannelClosed    = errors.New("rabbit: channel closed")
	ErrChannelError     = errors.New("rabbit: channel error")

	ErrAuthenticationFailed = errors.New("rabbit: authentication failed")
	ErrAccessDenied         = errors.New("rabbit: access denied")
	ErrVirtualHostNotFound  = errors.New("rabbit: virtual host not found")
	ErrExchangeNotFound     = errors.New("rabbit: exchange not found")
	ErrPreconditionFailed   = errors.New("rabbit: precondition failed")
	ErrResourceLocked       = errors.New("rabbit: resource locked")

	ErrMessageTooLarge = errors.New("rabbit: message too large")
	ErrPublishFailed   = errors.New("rabbit: publish failed")
	ErrNotAllowed      = errors.New("rabbit: operation not allowed")
	ErrProtocolError   = errors.New("rabbit: protocol error")
	ErrNotImplemented  = errors.New("rabbit: not implemented")

	ErrInternalError = errors.New("rabbit: internal server error")
	ErrResourceError = errors.New("rabbit: resource error")
	ErrResourceAlarm = errors.New("rabbit: resource alarm")
	ErrNetworkError  = errors.New("rabbit: network error")
	ErrTLSError      = errors.New("rabbit: tls error")
	ErrTimeout       = errors.New("rabbit: operation timeout")
	ErrUnknownError  = errors.New("rabbit: unknown error")
)

// ErrorCategory groups translated errors for logging and retry decisions.
type ErrorCategory int

const (
	CategoryUnknown ErrorCategory = iota
	CategoryConnection
	CategoryChannel
	CategoryAuthentication
	CategoryResource
	CategoryMessage
	CategoryProtocol
	CategoryNetwork
	CategoryServer
	CategoryAlarm
	CategoryTimeout
	CategoryShutdown
)

var categoryNames = map[ErrorCategory]string{
	CategoryUnknown:        "unknown",
	CategoryConnection:     "connection",
	CategoryChannel:        "channel",
	CategoryAuthentication: "authentication",
	CategoryResource:       "resource",
	CategoryMessage:        "message",
	CategoryProtocol:       "protocol",
	CategoryNetwork:        "network",
	CategoryServer:         "server",
	CategoryAlarm:          "alarm",
	CategoryTimeout:        "timeout",
	CategoryShutdown:       "shutdown",
}

func (c ErrorCategory) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return categoryNames[CategoryUnknown]
}

// TranslateError maps an amqp091, network or syscall error onto the
// package sentinels. The result wraps both the sentinel and err, so
// errors.Is matches either. Errors that already carry a package sentinel
// are returned unchanged.
func TranslateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrTimeout) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	if GetErrorCategory(err) != CategoryUnknown || errors.Is(err, ErrUnknownError) {
		return err
	}

	var sentinel error
	var amqpErr *amqp.Error
	var netErr net.Error
	var errno syscall.Errno
	switch {
	case errors.As(err, &amqpErr):
		sentinel = translateAMQPError(amqpErr)
	case errors.As(err, &errno):
		sentinel = translateSyscallError(errno)
	case errors.As(err, &netErr):
		sentinel = ErrNetworkError
		if netErr.Timeout() {
			sentinel = ErrTimeout
		}
	default:
		sentinel = translateByReason(err.Error())
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}

func translateAMQPError(amqpErr *amqp.Error) error {
	switch amqpErr.Code {
	case amqp.ConnectionForced:
		return ErrConnectionClosed
	case amqp.InvalidPath:
		return ErrVirtualHostNotFound
	case amqp.AccessRefused:
		return ErrAccessDenied
	case amqp.NotFound:
		// 404 is raised for both missing exchanges and missing vhosts.
		reason := strings.ToLower(amqpErr.Reason)
		if !strings.Contains(reason, "exchange") && strings.Contains(reason, "vhost") {
			return ErrVirtualHostNotFound
		}
		return ErrExchangeNotFound
	case amqp.ResourceLocked:
		return ErrResourceLocked
	case amqp.PreconditionFailed:
		return ErrPreconditionFailed
	case amqp.ContentTooLarge:
		return ErrMessageTooLarge
	case amqp.NoRoute, amqp.NoConsumers:
		return ErrPublishFailed
	case amqp.ChannelError:
		return ErrChannelError
	case amqp.ResourceError:
		return ErrResourceError
	case amqp.NotAllowed:
		return ErrNotAllowed
	case amqp.NotImplemented:
		return ErrNotImplemented
	case amqp.InternalError:
		return ErrInternalError
	case amqp.SyntaxError, amqp.CommandInvalid, amqp.FrameError, amqp.UnexpectedFrame:
		return ErrProtocolError
	default:
		return translateByReason(amqpErr.Reason)
	}
}

func translateSyscallError(errno syscall.Errno) error {
	switch errno {
	case syscall.ECONNREFUSED:
		return ErrConnectionFailed
	case syscall.ECONNRESET, syscall.ECONNABORTED, syscall.EPIPE, syscall.ENOTCONN:
		return ErrConnectionLost
	case syscall.ETIMEDOUT:
		return ErrTimeout
	case syscall.EACCES, syscall.EPERM:
		return ErrAccessDenied
	case syscall.EMFILE, syscall.ENFILE, syscall.ENOBUFS, syscall.ENOMEM:
		return ErrResourceError
	default:
		return ErrNetworkError
	}
}

// translateByReason is the fallback for errors that only carry text, such
// as amqp.Error values with an unassigned code.
func translateByReason(reason string) error {
	reason = strings.ToLower(reason)
	switch {
	case strings.Contains(reason, "connection refused"):
		return ErrConnectionFailed
	case strings.Contains(reason, "connection reset"), strings.Contains(reason, "connection lost"):
		return ErrConnectionLost
	case strings.Contains(reason, "connection closed"), strings.Contains(reason, "connection forced"):
		return ErrConnectionClosed
	case strings.Contains(reason, "channel closed"), strings.Contains(reason, "channel/connection is not open"):
		return ErrChannelClosed
	case strings.Contains(reason, "channel error"):
		return ErrChannelError
	case strings.Contains(reason, "login refused"), strings.Contains(reason, "authentication failed"):
		return ErrAuthenticationFailed
	case strings.Contains(reason, "access refused"), strings.Contains(reason, "access denied"):
		return ErrAccessDenied
	case strings.Contains(reason, "exchange") && strings.Contains(reason, "not found"):
		return ErrExchangeNotFound
	case strings.Contains(reason, "precondition failed"):
		return ErrPreconditionFailed
	case strings.Contains(reason, "too large"):
		return ErrMessageTooLarge
	case strings.Contains(reason, "no route"):
		return ErrPublishFailed
	case strings.Contains(reason, "memory alarm"), strings.Contains(reason, "disk alarm"),
		strings.Contains(reason, "resource alarm"), strings.Contains(reason, "flow control"):
		return ErrResourceAlarm
	case strings.Contains(reason, "internal error"):
		return ErrInternalError
	case strings.Contains(reason, "tls"), strings.Contains(reason, "certificate"), strings.Contains(reason, "handshake"):
		return ErrTLSError
	case strings.Contains(reason, "timeout"), strings.Contains(reason, "timed out"):
		return ErrTimeout
	default:
		return ErrUnknownError
	}
}

// GetErrorCategory returns the category of a translated error.
func GetErrorCategory(err error) ErrorCategory {
	switch {
	case err == nil:
		return CategoryUnknown
	case errors.Is(err, ErrClosed), errors.Is(err, context.Canceled):
		return CategoryShutdown
	case errors.Is(err, ErrConnectionFailed), errors.Is(err, ErrConnectionLost),
		errors.Is(err, ErrConnectionClosed), errors.Is(err, ErrNotConnected):
		return CategoryConnection
	case errors.Is(err, ErrChannelClosed), errors.Is(err, ErrChannelError):
		return CategoryChannel
	case errors.Is(err, ErrAuthenticationFailed), errors.Is(err, ErrAccessDenied):
		return CategoryAuthentication
	case errors.Is(err, ErrVirtualHostNotFound), errors.Is(err, ErrExchangeNotFound),
		errors.Is(err, ErrPreconditionFailed), errors.Is(err, ErrResourceLocked):
		return CategoryResource
	case errors.Is(err, ErrMessageTooLarge), errors.Is(err, ErrPublishFailed), errors.Is(err, ErrNack):
		return CategoryMessage
	case errors.Is(err, ErrProtocolError), errors.Is(err, ErrNotAllowed), errors.Is(err, ErrNotImplemented):
		return CategoryProtocol
	case errors.Is(err, ErrNetworkError), errors.Is(err, ErrTLSError):
		return CategoryNetwork
	case errors.Is(err, ErrInternalError), errors.Is(err, ErrResourceError):
		return CategoryServer
	case errors.Is(err, ErrResourceAlarm):
		return CategoryAlarm
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return CategoryTimeout
	default:
		return CategoryUnknown
	}
}

// IsRetryableError reports whether publishing again may succeed: the
// connection or channel dropped and the reconnect loop may restore it, or
// the broker signalled a transient condition.
func IsRetryableError(err error) bool {
	switch {
	case errors.Is(err, ErrConnectionFailed),
		errors.Is(err, ErrConnectionLost),
		errors.Is(err, ErrConnectionClosed),
		errors.Is(err, ErrNotConnected),
		errors.Is(err, ErrChannelClosed),
		errors.Is(err, ErrChannelError),
		errors.Is(err, ErrNack),
		errors.Is(err, ErrNetworkError),
		errors.Is(err, ErrInternalError),
		errors.Is(err, ErrResourceError),
		errors.Is(err, ErrResourceAlarm),
		errors.Is(err, ErrTimeout):
		return true
	default:
		return false
	}
}

// IsPermanentError reports errors that will fail the same way on every
// attempt until the configuration changes.
func IsPermanentError(err error) bool {
	switch {
	case errors.Is(err, ErrClosed),
		errors.Is(err, ErrAuthenticationFailed),
		errors.Is(err, ErrAccessDenied),
		errors.Is(err, ErrVirtualHostNotFound),
		errors.Is(err, ErrExchangeNotFound),
		errors.Is(err, ErrPreconditionFailed),
		errors.Is(err, ErrMessageTooLarge),
		errors.Is(err, ErrNotAllowed),
		errors.Is(err, ErrNotImplemented),
		errors.Is(err, ErrProtocolError):
		return true
	default:
		return false
	}
}
