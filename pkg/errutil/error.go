package errutil

import (
	"errors"
	"fmt"
)

// Machine readable reasons carried on 400 responses.
const (
	ReasonAlreadyUnlocked     = "ALREADY_UNLOCKED"
	ReasonDailyAdLimitReached = "DAILY_AD_LIMIT_REACHED"
	ReasonInsufficientCoins   = "INSUFFICIENT_COINS"
	ReasonNovelNotPaid        = "NOVEL_NOT_PAID"
	ReasonChapterIsFree       = "CHAPTER_IS_FREE"
	ReasonLoginRequired       = "LOGIN_REQUIRED"
	ReasonNotAuthor           = "NOT_AUTHOR"
)

type Detail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type BaseError struct {
	Code    CoreStatus `json:"code"`
	Message string     `json:"message"`
	Reason  string     `json:"reason,omitempty"`
	Details []Detail   `json:"details,omitempty"`
	Err     error      `json:"-"`
}

func (e BaseError) Status() CoreStatus {
	return e.Code
}

// JSON is the envelope written to HTTP clients. Wrapped errors stay
// server-side.
func (e BaseError) JSON() any {
	return map[string]any{
		"error": map[string]any{
			"code":    e.Code,
			"message": e.Message,
			"reason":  e.Reason,
			"details": e.Details,
		},
	}
}

func (e BaseError) Unwrap() error {
	return e.Err
}

func (e BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s", e.Code, e.messageWithErr())
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e BaseError) messageWithErr() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

type Option func(*BaseError)

func WithDetails(details ...Detail) Option {
	return func(be *BaseError) { be.Details = details }
}

func WithErr(err error) Option {
	return func(be *BaseError) { be.Err = err }
}

func WithReason(reason string) Option {
	return func(be *BaseError) { be.Reason = reason }
}

func New(code CoreStatus, message string, opts ...Option) error {
	be := BaseError{Code: code, Message: message}
	for _, opt := range opts {
		opt(&be)
	}
	return be
}

func newWithErr(code CoreStatus, msg string, err error, options []Option) error {
	if err != nil {
		options = append([]Option{WithErr(err)}, options...)
	}
	return New(code, msg, options...)
}

// As extracts a BaseError from err, if any.
func As(err error) (BaseError, bool) {
	var be BaseError
	if errors.As(err, &be) {
		return be, true
	}
	return BaseError{}, false
}

// Is reports whether err carries the given status.
func Is(err error, code CoreStatus) bool {
	be, ok := As(err)
	return ok && be.Code == code
}

// HasReason reports whether err carries the given machine readable reason.
func HasReason(err error, reason string) bool {
	be, ok := As(err)
	return ok && be.Reason == reason
}

func NotFound(msg string, err error, options ...Option) error {
	return newWithErr(StatusNotFound, msg, err, options)
}

func UnprocessableEntity(msg string, err error, options ...Option) error {
	return newWithErr(StatusUnprocessableEntity, msg, err, options)
}

func Conflict(msg string, err error, options ...Option) error {
	return newWithErr(StatusConflict, msg, err, options)
}

func BadRequest(msg string, err error, options ...Option) error {
	return newWithErr(StatusBadRequest, msg, err, options)
}

func ValidationFailed(msg string, err error, options ...Option) error {
	return newWithErr(StatusValidationFailed, msg, err, options)
}

func Internal(msg string, err error, options ...Option) error {
	return newWithErr(StatusInternal, msg, err, options)
}

func Timeout(msg string, err error, options ...Option) error {
	return newWithErr(StatusTimeout, msg, err, options)
}

func Unauthorized(msg string, err error, options ...Option) error {
	return newWithErr(StatusUnauthorized, msg, err, options)
}

func Forbidden(msg string, err error, options ...Option) error {
	return newWithErr(StatusForbidden, msg, err, options)
}

func TooManyRequest(msg string, err error, options ...Option) error {
	return newWithErr(StatusTooManyRequests, msg, err, options)
}
