package parser

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// AlgorithmHS256 is the signing algorithm of signed api keys
	AlgorithmHS256 = "HS256"
)

var ErrInvalidSignedKey = errors.New("invalid signed api key")

// SignedKeys accepts self-contained api keys: JWTs whose subject is the credential id.
// Nothing is looked up, so a signed key stays valid until it expires.
type SignedKeys struct {
	// Signing key to validate the api key.
	// Required unless KeyFunc is provided.
	SigningKey any
	// KeyFunc supplies the validation key, SigningKey and SigningMethod are ignored when set.
	KeyFunc jwt.Keyfunc
	// Signing method used to check the key's signing algorithm.
	// Optional. Default value HS256.
	SigningMethod string
	// Issuer, when set, must match the iss claim.
	Issuer string
}

type signedKeysOpt func(*SignedKeys)

func NewSignedKeys(opts ...signedKeysOpt) (*SignedKeys, error) {
	s := &SignedKeys{}
	for _, o := range opts {
		o(s)
	}
	if s.SigningMethod == "" {
		s.SigningMethod = AlgorithmHS256
	}
	if s.SigningKey == nil && s.KeyFunc == nil {
		return nil, errors.New("signed key parser requires signing key")
	}
	if s.KeyFunc == nil {
		s.KeyFunc = s.defaultKeyFunc
	}
	return s, nil
}

func WithSigningKey(signingKey any) signedKeysOpt {
	return func(s *SignedKeys) {
		s.SigningKey = signingKey
	}
}

func WithSigningMethod(signingMethod string) signedKeysOpt {
	return func(s *SignedKeys) {
		s.SigningMethod = signingMethod
	}
}

func WithKeyFunc(keyFunc jwt.Keyfunc) signedKeysOpt {
	return func(s *SignedKeys) {
		s.KeyFunc = keyFunc
	}
}

func WithIssuer(issuer string) signedKeysOpt {
	return func(s *SignedKeys) {
		s.Issuer = issuer
	}
}

func (s *SignedKeys) Parse(_ context.Context, key string) (any, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	var opts []jwt.ParserOption
	if s.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.Issuer))
	}
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(key, claims, s.KeyFunc, opts...)
	if err != nil {
		return nil, errors.Mark(err, ErrInvalidSignedKey)
	}
	if !token.Valid {
		return nil, ErrInvalidSignedKey
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "subject"), ErrInvalidSignedKey)
	}
	cred := Credential{ID: id, Owner: claims.Subject}
	if len(claims.Audience) > 0 {
		cred.Name = claims.Audience[0]
	}
	if claims.IssuedAt != nil {
		cred.CreatedAt = claims.IssuedAt.Time
	}
	return cred, nil
}

func (s *SignedKeys) defaultKeyFunc(token *jwt.Token) (any, error) {
	if token.Method.Alg() != s.SigningMethod {
		return nil, errors.Newf("unexpected signing method=%v", token.Header["alg"])
	}
	return s.SigningKey, nil
}
