package parser

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// KeyParser resolves an extracted api key into the payload stored in the request context.
type KeyParser interface {
	Parse(ctx context.Context, key string) (any, error)
}

// Credential is the payload returned by every parser in this package
type Credential struct {
	ID        uuid.UUID
	Owner     string
	Name      string
	CreatedAt time.Time
}

var (
	ErrEmptyKey   = errors.New("empty api key")
	ErrUnknownKey = errors.New("unknown api key")
)

// HashKey returns the hex encoded SHA-256 of key. Stores index keys by this value.
func HashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

type first []KeyParser

// First returns a KeyParser trying parsers in order. The first success wins,
// otherwise all errors are joined.
func First(parsers ...KeyParser) KeyParser {
	return first(parsers)
}

func (f first) Parse(ctx context.Context, key string) (any, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	var errs []error
	for _, p := range f {
		payload, err := p.Parse(ctx, key)
		if err == nil {
			return payload, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, ErrUnknownKey
	}
	return nil, errors.Join(errs...)
}
