package server

import (
	"context"
	"time"
)

// OnDispatchFunc is called just before a resolved method is invoked.
type OnDispatchFunc func(ctx context.Context, method string)

// OnSuccessFunc is called after a method call completes successfully.
type OnSuccessFunc func(ctx context.Context, method string, duration time.Duration)

// OnFailureFunc is called after a method call fails, whether with a
// handler error or a not-found/invalid-params error.
type OnFailureFunc func(ctx context.Context, method string, err error, duration time.Duration)

// OnNoHandlerFunc is called when a request names a method no registered
// handler resolves to, in addition to (not instead of) the generic
// OnFailureFunc every other handler error also triggers.
type OnNoHandlerFunc func(ctx context.Context, method string)

// hooks holds all configured hook functions, mirroring the functional-
// options observability pattern used throughout this toolkit.
type hooks struct {
	onDispatch  []OnDispatchFunc
	onSuccess   []OnSuccessFunc
	onFailure   []OnFailureFunc
	onNoHandler []OnNoHandlerFunc
}

// Option configures a Server.
type Option func(*hooks)

// WithOnDispatch adds a hook called just before a resolved method runs.
func WithOnDispatch(fn OnDispatchFunc) Option {
	return func(h *hooks) { h.onDispatch = append(h.onDispatch, fn) }
}

// WithOnSuccess adds a hook called after a method call succeeds.
func WithOnSuccess(fn OnSuccessFunc) Option {
	return func(h *hooks) { h.onSuccess = append(h.onSuccess, fn) }
}

// WithOnFailure adds a hook called after a method call fails.
func WithOnFailure(fn OnFailureFunc) Option {
	return func(h *hooks) { h.onFailure = append(h.onFailure, fn) }
}

// WithOnNoHandler adds a hook called when a request names a method no
// registered handler resolves to.
func WithOnNoHandler(fn OnNoHandlerFunc) Option {
	return func(h *hooks) { h.onNoHandler = append(h.onNoHandler, fn) }
}

func (h hooks) dispatch(ctx context.Context, method string) {
	for _, fn := range h.onDispatch {
		fn(ctx, method)
	}
}

func (h hooks) success(ctx context.Context, method string, d time.Duration) {
	for _, fn := range h.onSuccess {
		fn(ctx, method, d)
	}
}

func (h hooks) failure(ctx context.Context, method string, err error, d time.Duration) {
	for _, fn := range h.onFailure {
		fn(ctx, method, err, d)
	}
}

func (h hooks) noHandler(ctx context.Context, method string) {
	for _, fn := range h.onNoHandler {
		fn(ctx, method)
	}
}
