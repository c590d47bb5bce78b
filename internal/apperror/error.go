package apperror

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindInvalidInput      Kind = "INVALID_INPUT"
	KindUnauthorized      Kind = "UNAUTHORIZED"
	KindInvalidTransition Kind = "INVALID_TRANSITION"
	KindNotFound          Kind = "NOT_FOUND"
	KindConflict          Kind = "CONFLICT"
	KindUpstreamFailure   Kind = "UPSTREAM_FAILURE"
)

type Error struct {
	Kind    Kind   // 错误类别
	Reason  string // 细分原因码，例如 quota_exceeded
	Message string // 面向用户的提示
	Err     error  // 被包装的底层错误，可为空
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is 只比较 Kind 与 Reason，使得 errors.Is 可以匹配预定义的错误
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Reason == t.Reason
}

func New(kind Kind, reason, message string) *Error {
	return &Error{Kind: kind, Reason: reason, Message: message}
}

func Upstream(err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Kind:    KindUpstreamFailure,
		Reason:  "service_unavailable",
		Message: "service temporarily unavailable",
		Err:     err,
	}
}

func InvalidInput(message string) *Error {
	return New(KindInvalidInput, "invalid_input", message)
}

// KindOf 对非 *Error 的错误一律视为上游故障
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUpstreamFailure
}
