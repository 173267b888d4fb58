package extractor

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	middleware "github.com/washanhanzi/apikey-middleware"
)

// APIKeyFromHeader returns the key of an `Authorization: ApiKey <key>` header.
// ok is false when the header is absent, empty or uses another scheme.
// A header sent more than once is an error wrapping ErrUnsupportedHeader.
func APIKeyFromHeader(header http.Header) (key string, ok bool, err error) {
	v := HeaderValueOf(header, middleware.HeaderAuthorization)
	switch v.Kind() {
	case ValueAbsent:
		return "", false, nil
	case ValueMultiple:
		return "", false, errors.Wrapf(ErrUnsupportedHeader, "%d authorization values", len(v.Values()))
	}
	key, ok = ParseAPIKey(v.Value())
	return key, ok, nil
}

// ParseAPIKey splits value at its first space and, if the scheme is exactly "ApiKey",
// returns the text up to the next space. "ApiKey " and "ApiKey  k" both give "" with ok true.
func ParseAPIKey(value string) (string, bool) {
	scheme, rest, found := strings.Cut(value, " ")
	if !found || scheme != middleware.SchemeAPIKey {
		return "", false
	}
	key, _, _ := strings.Cut(rest, " ")
	return key, true
}

// ErrAPIKeyMissing is returned when no usable `ApiKey` credential is in the request.
var ErrAPIKeyMissing = errors.New("missing api key in request header")

// APIKeyLookup adapts APIKeyFromHeader to HeaderExtractor
type APIKeyLookup struct{}

// APIKeyExtractor returns the extractor for `Authorization: ApiKey <key>`.
func APIKeyExtractor() *APIKeyLookup {
	return &APIKeyLookup{}
}

func (l *APIKeyLookup) Key() string {
	return middleware.HeaderAuthorization
}

// Extract returns exactly one key, possibly "". Repeated Authorization headers are
// reported as connect.CodeInvalidArgument.
func (l *APIKeyLookup) Extract(ctx context.Context, req *middleware.Request) ([]string, error) {
	key, ok, err := APIKeyFromHeader(req.Header)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	if !ok {
		return nil, ErrAPIKeyMissing
	}
	return []string{key}, nil
}
