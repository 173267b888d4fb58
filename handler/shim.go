package handler

import (
	"context"

	middleware "github.com/washanhanzi/apikey-middleware"
)

// Shim holds the hooks of middleware.AuthHandler that do not touch the api key itself.
type Shim interface {
	Skip(ctx context.Context, req *middleware.Request) bool
	Before(ctx context.Context, req *middleware.Request) error
	Success(ctx context.Context, req *middleware.Request) error
	HandleError(ctx context.Context, req *middleware.Request, err error) error
}

type shim struct {
	skipper      func(ctx context.Context, req *middleware.Request) bool
	beforeFunc   func(ctx context.Context, req *middleware.Request) error
	successFunc  func(ctx context.Context, req *middleware.Request) error
	errorHandler func(ctx context.Context, req *middleware.Request, err error) error
}

type ShimOpt func(*shim)

func NewShim(opts ...ShimOpt) Shim {
	s := shim{
		skipper:      DefaultSkipper,
		beforeFunc:   DefaultBeforeFunc,
		successFunc:  DefaultSuccessFunc,
		errorHandler: DefaultErrorHandler,
	}
	for _, o := range opts {
		o(&s)
	}
	return &s
}

func DefaultSkipper(ctx context.Context, req *middleware.Request) bool {
	return false
}

func DefaultBeforeFunc(ctx context.Context, req *middleware.Request) error {
	return nil
}

func DefaultSuccessFunc(ctx context.Context, req *middleware.Request) error {
	return nil
}

// DefaultErrorHandler returns err unchanged, the transport turns it into an unauthenticated
// or invalid argument response.
func DefaultErrorHandler(ctx context.Context, req *middleware.Request, err error) error {
	return err
}

// SkipProcedures returns a skipper matching req.Procedure exactly. For plain http
// requests the procedure is the url path.
func SkipProcedures(procedures ...string) func(ctx context.Context, req *middleware.Request) bool {
	skip := make(map[string]struct{}, len(procedures))
	for _, p := range procedures {
		skip[p] = struct{}{}
	}
	return func(ctx context.Context, req *middleware.Request) bool {
		_, ok := skip[req.Procedure]
		return ok
	}
}

func WithSkipper(skipper func(ctx context.Context, req *middleware.Request) bool) ShimOpt {
	return func(s *shim) {
		s.skipper = skipper
	}
}

func WithBeforeFunc(beforeFunc func(ctx context.Context, req *middleware.Request) error) ShimOpt {
	return func(s *shim) {
		s.beforeFunc = beforeFunc
	}
}

func WithSuccessFunc(successFunc func(ctx context.Context, req *middleware.Request) error) ShimOpt {
	return func(s *shim) {
		s.successFunc = successFunc
	}
}

func WithErrorHandler(errorHandler func(ctx context.Context, req *middleware.Request, err error) error) ShimOpt {
	return func(s *shim) {
		s.errorHandler = errorHandler
	}
}

// WithIgnoreError lets unauthenticated requests through without a payload in the context
func WithIgnoreError() ShimOpt {
	return func(s *shim) {
		s.errorHandler = func(context.Context, *middleware.Request, error) error {
			return nil
		}
	}
}

func (s *shim) Skip(ctx context.Context, req *middleware.Request) bool {
	return s.skipper(ctx, req)
}

func (s *shim) Before(ctx context.Context, req *middleware.Request) error {
	return s.beforeFunc(ctx, req)
}

func (s *shim) Success(ctx context.Context, req *middleware.Request) error {
	return s.successFunc(ctx, req)
}

func (s *shim) HandleError(ctx context.Context, req *middleware.Request, err error) error {
	return s.errorHandler(ctx, req, err)
}
