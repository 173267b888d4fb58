package parser

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// StaticKeys is an in-memory, read-only set of keys
type StaticKeys struct {
	byHash map[string]Credential
}

type staticKeysOpt func(*StaticKeys)

func NewStaticKeys(opts ...staticKeysOpt) *StaticKeys {
	s := &StaticKeys{byHash: make(map[string]Credential)}
	for _, o := range opts {
		o(s)
	}
	return s
}

// WithKey registers key. A zero cred.ID is replaced by a random uuid.
func WithKey(key string, cred Credential) staticKeysOpt {
	return func(s *StaticKeys) {
		if cred.ID == uuid.Nil {
			cred.ID = uuid.New()
		}
		if cred.CreatedAt.IsZero() {
			cred.CreatedAt = time.Now().UTC()
		}
		s.byHash[HashKey(key)] = cred
	}
}

// ParseStaticKeys reads "owner:key,owner:key". Blank entries are skipped.
func ParseStaticKeys(raw string) (*StaticKeys, error) {
	var opts []staticKeysOpt
	for i, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		owner, key, ok := strings.Cut(entry, ":")
		if !ok || owner == "" || key == "" {
			return nil, errors.Newf("malformed api key entry #%d, want owner:key", i+1)
		}
		opts = append(opts, WithKey(key, Credential{Owner: owner, Name: owner}))
	}
	if len(opts) == 0 {
		return nil, errors.New("no api keys configured")
	}
	return NewStaticKeys(opts...), nil
}

func (s *StaticKeys) Len() int {
	return len(s.byHash)
}

func (s *StaticKeys) Parse(_ context.Context, key string) (any, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	cred, ok := s.byHash[HashKey(key)]
	if !ok {
		return nil, ErrUnknownKey
	}
	return cred, nil
}
