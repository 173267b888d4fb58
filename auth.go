package middleware

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
)

const (
	HeaderAuthorization = "Authorization"
	// SchemeAPIKey is the case-sensitive scheme token of `Authorization: ApiKey <key>`.
	SchemeAPIKey = "ApiKey"
)

type key int

// contextKey is a private key type used as a unique identifier for context value.
// value stored under this key is the payload returned by AuthHandler.Parse
var contextKey key

func NewContext(ctx context.Context, payload any) context.Context {
	if ctx == nil {
		return ctx
	}
	return context.WithValue(ctx, contextKey, payload)
}

// FromContext is used to get the payload from context, T is the type returned by the handler's Parse
func FromContext[T any](ctx context.Context) (T, bool) {
	payload, ok := ctx.Value(contextKey).(T)
	return payload, ok
}

// Request describes a single RPC invocation.
type Request struct {
	Procedure  string // for example, "/apikey.v1.IdentityService/WhoAmI"
	ClientAddr string // client address, in IP:port format
	Protocol   string // connect.ProtocolConnect, connect.ProtocolGRPC, or connect.ProtocolGRPCWeb
	Header     http.Header
}

// errParseToken is an error type to identify error from AuthHandler.Parse
var errParseToken = errors.New("failed parse api key")

// errExtractToken can be used to identify error from AuthHandler.Extract
var errExtractToken = errors.New("failed extract api key")

// IsParseTokenErr checks if err is from Parse
// It can be used in HandleError to determine where the err come from
func IsParseTokenErr(err error) bool {
	return errors.Is(err, errParseToken)
}

// IsExtractTokenErr checks if err is from Extract
func IsExtractTokenErr(err error) bool {
	return errors.Is(err, errExtractToken)
}

type (
	// ClientTokenGetter is used to get the header name and value for client request
	ClientTokenGetter interface {
		Get() (string, string)
	}
	// AuthHandler is used in unary and streaming service handler and in the http middleware.
	// The order of execution is:
	// Skip ->
	// Before (if this function return err, skip the rest process) ->
	// Extract ->
	// Parse (skipped when Extract return an error) ->
	// Success (if this function return err, skip HandleError) ->
	// HandleError (if Extract or Parse return an error, return nil to ignore it)
	AuthHandler interface {
		Skip(ctx context.Context, req *Request) bool
		Before(ctx context.Context, req *Request) error
		// Extract returns a context carrying whatever Parse needs
		Extract(ctx context.Context, req *Request) (context.Context, error)
		Parse(ctx context.Context) (any, error)
		Success(ctx context.Context, req *Request) error
		HandleError(ctx context.Context, req *Request, err error) error
	}
)

func extractAndParse(ctx context.Context, req *Request, h AuthHandler) (context.Context, error) {
	if err := h.Before(ctx, req); err != nil {
		return ctx, err
	}

	var authErr error
	extractedCtx, err := h.Extract(ctx, req)
	if err != nil {
		authErr = errors.Mark(err, errExtractToken)
	} else {
		payload, err := h.Parse(extractedCtx)
		if err == nil {
			ctx = NewContext(ctx, payload)
			if err := h.Success(ctx, req); err != nil {
				return ctx, err
			}
			return ctx, nil
		}
		authErr = errors.Mark(err, errParseToken)
	}

	if err := h.HandleError(ctx, req, authErr); err != nil {
		return ctx, toConnectError(err)
	}
	return ctx, nil
}

// toConnectError keeps the code of a connect error, e.g. an Authorization header sent
// more than once, and reports everything else as unauthenticated.
func toConnectError(err error) error {
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return connectErr
	}
	if IsParseTokenErr(err) {
		return connect.NewError(connect.CodeUnauthenticated, errors.New("invalid api key"))
	}
	return connect.NewError(connect.CodeUnauthenticated, errors.New("missing or malformed api key"))
}
