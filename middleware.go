package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
)

type Middleware interface {
	Wrap(http.Handler) http.Handler
}

type authMiddleware struct {
	handler AuthHandler
	errW    *connect.ErrorWriter
}

func NewAuthMiddleware(opts ...authMiddlewareOpt) (*authMiddleware, error) {
	m := authMiddleware{}
	for _, o := range opts {
		o(&m)
	}
	if m.handler == nil {
		return nil, errors.New("handler required")
	}
	if m.errW == nil {
		m.errW = connect.NewErrorWriter()
	}
	return &m, nil
}

type authMiddlewareOpt func(*authMiddleware)

func WithErrorWriterOpts(opts ...connect.HandlerOption) authMiddlewareOpt {
	return func(m *authMiddleware) {
		m.errW = connect.NewErrorWriter(opts...)
	}
}

func WithHandler(h AuthHandler) authMiddlewareOpt {
	return func(m *authMiddleware) {
		m.handler = h
	}
}

// Wrap authenticates every request. Connect, gRPC and gRPC-Web requests get a protocol
// error, anything else gets a JSON body `{"error": "..."}`.
func (m *authMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		rpc := m.errW.IsSupported(r)
		req := &Request{
			ClientAddr: r.RemoteAddr,
			Header:     r.Header,
		}
		if rpc {
			req.Procedure = procedureFromHTTP(r)
			req.Protocol = protocolFromHTTP(r)
		} else {
			req.Procedure = r.URL.Path
		}
		if m.handler.Skip(ctx, req) {
			next.ServeHTTP(w, r)
			return
		}
		newCtx, err := extractAndParse(ctx, req, m.handler)
		if err != nil {
			if rpc {
				m.errW.Write(w, r, err)
				return
			}
			writeJSONError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(newCtx))
	})
}

func writeJSONError(w http.ResponseWriter, err error) {
	status := httpStatusFromCode(connect.CodeOf(err))
	msg := err.Error()
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		msg = connectErr.Message()
	}
	body, _ := json.Marshal(map[string]string{"error": msg})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

func httpStatusFromCode(code connect.Code) int {
	switch code {
	case connect.CodeInvalidArgument:
		return http.StatusBadRequest
	case connect.CodeUnauthenticated:
		return http.StatusUnauthorized
	case connect.CodePermissionDenied:
		return http.StatusForbidden
	case connect.CodeAborted:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func procedureFromHTTP(r *http.Request) string {
	path := strings.TrimSuffix(r.URL.Path, "/")
	ultimate := strings.LastIndex(path, "/")
	if ultimate < 0 {
		return ""
	}
	penultimate := strings.LastIndex(path[:ultimate], "/")
	if penultimate < 0 {
		return ""
	}
	procedure := path[penultimate:]
	if len(procedure) < 4 { // two slashes + service + method
		return ""
	}
	return procedure
}

func protocolFromHTTP(r *http.Request) string {
	ct := r.Header.Get("Content-Type")
	switch {
	case strings.HasPrefix(ct, "application/grpc-web"):
		return connect.ProtocolGRPCWeb
	case strings.HasPrefix(ct, "application/grpc"):
		return connect.ProtocolGRPC
	default:
		return connect.ProtocolConnect
	}
}
