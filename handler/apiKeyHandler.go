package handler

import (
	"context"
	"log/slog"

	"github.com/cockroachdb/errors"
	middleware "github.com/washanhanzi/apikey-middleware"
	"github.com/washanhanzi/apikey-middleware/extractor"
	"github.com/washanhanzi/apikey-middleware/parser"
)

type key int

var handlerKey key

// APIKeyHandler implements middleware.AuthHandler for api keys
type APIKeyHandler struct {
	HeaderExtractors []extractor.HeaderExtractor
	Parser           parser.KeyParser
	Logger           *slog.Logger
	ExtractFunc      func(ctx context.Context, req *middleware.Request) (context.Context, error)
	ParseFunc        func(ctx context.Context) (any, error)
	Shim
}

type apiKeyHandlerOpt func(*APIKeyHandler)

// NewAPIKeyHandler reads `Authorization: ApiKey <key>` unless extractors are given.
// p may be nil only when WithParseFunc is set.
func NewAPIKeyHandler(shim Shim, p parser.KeyParser, opts ...apiKeyHandlerOpt) (*APIKeyHandler, error) {
	if shim == nil {
		shim = NewShim()
	}
	h := &APIKeyHandler{Shim: shim, Parser: p}
	for _, o := range opts {
		o(h)
	}
	if h.Parser == nil && h.ParseFunc == nil {
		return nil, errors.New("api key handler requires a parser")
	}
	if len(h.HeaderExtractors) == 0 {
		h.HeaderExtractors = append(h.HeaderExtractors, extractor.APIKeyExtractor())
	}
	if h.Logger == nil {
		h.Logger = slog.Default()
	}
	return h, nil
}

func WithExtractor(e extractor.HeaderExtractor) apiKeyHandlerOpt {
	return func(h *APIKeyHandler) {
		h.HeaderExtractors = append(h.HeaderExtractors, e)
	}
}

func WithLogger(logger *slog.Logger) apiKeyHandlerOpt {
	return func(h *APIKeyHandler) {
		h.Logger = logger
	}
}

// WithExtractFunc replaces the extractor loop.
func WithExtractFunc(f func(ctx context.Context, req *middleware.Request) (context.Context, error)) apiKeyHandlerOpt {
	return func(h *APIKeyHandler) {
		h.ExtractFunc = f
	}
}

// WithParseFunc replaces key resolution. The context is the one returned by Extract.
func WithParseFunc(f func(ctx context.Context) (any, error)) apiKeyHandlerOpt {
	return func(h *APIKeyHandler) {
		h.ParseFunc = f
	}
}

// Extract runs the extractors in order and keeps every key found. The error of the
// last failing extractor is returned when none found a key. A repeated header always
// fails the request.
func (h *APIKeyHandler) Extract(ctx context.Context, req *middleware.Request) (context.Context, error) {
	if h.ExtractFunc != nil {
		return h.ExtractFunc(ctx, req)
	}
	var extractErr error
	keys := make([]string, 0, len(h.HeaderExtractors))
	for _, e := range h.HeaderExtractors {
		res, err := e.Extract(ctx, req)
		if errors.Is(err, extractor.ErrUnsupportedHeader) {
			return ctx, err
		}
		if err != nil {
			extractErr = err
			continue
		}
		keys = append(keys, res...)
	}
	if len(keys) == 0 {
		if extractErr == nil {
			extractErr = extractor.ErrAPIKeyMissing
		}
		h.Logger.DebugContext(ctx, "api key not extracted",
			slog.String("procedure", req.Procedure),
			slog.String("client", req.ClientAddr),
			slog.Any("error", extractErr),
		)
		return ctx, extractErr
	}
	return context.WithValue(ctx, handlerKey, keys), nil
}

// Parse resolves the first extracted key
func (h *APIKeyHandler) Parse(ctx context.Context) (any, error) {
	if h.ParseFunc != nil {
		return h.ParseFunc(ctx)
	}
	keys, _ := ctx.Value(handlerKey).([]string)
	if len(keys) == 0 {
		return nil, extractor.ErrAPIKeyMissing
	}
	payload, err := h.Parser.Parse(ctx, keys[0])
	if err != nil {
		h.Logger.DebugContext(ctx, "api key rejected",
			slog.String("key_hash", parser.HashKey(keys[0])[:12]),
			slog.Any("error", err),
		)
		return nil, err
	}
	return payload, nil
}
