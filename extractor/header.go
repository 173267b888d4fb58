package extractor

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	middleware "github.com/washanhanzi/apikey-middleware"
)

type ValueKind int

const (
	ValueAbsent ValueKind = iota
	ValueSingle
	ValueMultiple
)

// HeaderValue is what a request carries under one header name: nothing, one value,
// or the same header repeated.
type HeaderValue struct {
	kind   ValueKind
	values []string
}

func Absent() HeaderValue {
	return HeaderValue{kind: ValueAbsent}
}

func Single(value string) HeaderValue {
	return HeaderValue{kind: ValueSingle, values: []string{value}}
}

// Multiple falls back to Absent or Single when given fewer than two values.
func Multiple(values ...string) HeaderValue {
	switch len(values) {
	case 0:
		return Absent()
	case 1:
		return Single(values[0])
	}
	return HeaderValue{kind: ValueMultiple, values: values}
}

func (v HeaderValue) Kind() ValueKind {
	return v.kind
}

// Value returns the single value, "" unless Kind is ValueSingle.
func (v HeaderValue) Value() string {
	if v.kind != ValueSingle {
		return ""
	}
	return v.values[0]
}

func (v HeaderValue) Values() []string {
	return v.values
}

// HeaderValueOf collects the values of every key equal to name ignoring case, so
// headers built by hand with lower-cased names are seen too. Values under the
// canonical key come first.
func HeaderValueOf(header http.Header, name string) HeaderValue {
	canonical := http.CanonicalHeaderKey(name)
	values := append([]string(nil), header[canonical]...)
	for k, v := range header {
		if k != canonical && strings.EqualFold(k, name) {
			values = append(values, v...)
		}
	}
	return Multiple(values...)
}

// ErrUnsupportedHeader is returned when a header that must hold a single value was sent more than once.
var ErrUnsupportedHeader = errors.New("unsupported authorization header representation")

var errHeaderExtractorValueMissing = errors.New("missing value in request header")

// HeaderLookup extracts the raw value of a single-valued header, e.g. `X-Api-Key`
type HeaderLookup struct {
	Name string
}

func NewHeaderExtractor(name string) *HeaderLookup {
	return &HeaderLookup{Name: name}
}

func (l *HeaderLookup) Key() string {
	return l.Name
}

func (l *HeaderLookup) Extract(ctx context.Context, req *middleware.Request) ([]string, error) {
	v := HeaderValueOf(req.Header, l.Name)
	switch v.Kind() {
	case ValueMultiple:
		return nil, unsupportedHeader(l.Name, len(v.Values()))
	case ValueSingle:
		if v.Value() != "" {
			return []string{v.Value()}, nil
		}
	}
	return nil, errHeaderExtractorValueMissing
}

func unsupportedHeader(name string, n int) error {
	return connect.NewError(
		connect.CodeInvalidArgument,
		errors.Wrapf(ErrUnsupportedHeader, "header %s sent %d times", name, n),
	)
}
