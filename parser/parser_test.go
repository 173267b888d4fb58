package parser

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/test-go/testify/assert"
)

var (
	ownerID   = uuid.MustParse("6f1c2b9e-64d4-4d5e-9a57-3f0d7d1f2a10")
	validKey  = "abc123def456"
	signedKey = []byte("secret")
)

func TestStaticKeys(t *testing.T) {
	t.Parallel()
	keys := NewStaticKeys(WithKey(validKey, Credential{ID: ownerID, Owner: "polka"}))

	payload, err := keys.Parse(context.Background(), validKey)
	assert.Nil(t, err)
	cred := payload.(Credential)
	assert.Equal(t, ownerID, cred.ID)
	assert.Equal(t, "polka", cred.Owner)
	assert.False(t, cred.CreatedAt.IsZero())

	_, err = keys.Parse(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrUnknownKey))

	_, err = keys.Parse(context.Background(), "")
	assert.True(t, errors.Is(err, ErrEmptyKey))
}

var parseStaticKeysTests = []struct {
	Case string
	Raw  string
	Len  int
	Err  string
}{
	{Case: "single", Raw: "polka:abc", Len: 1},
	{Case: "several with blanks", Raw: " polka:abc, ,billing:def ", Len: 2},
	{Case: "key containing colon", Raw: "polka:a:b", Len: 1},
	{Case: "empty", Raw: "", Err: "no api keys configured"},
	{Case: "no owner", Raw: ":abc", Err: "malformed api key entry #1, want owner:key"},
	{Case: "no key", Raw: "polka:abc,billing", Err: "malformed api key entry #2, want owner:key"},
}

func TestParseStaticKeys(t *testing.T) {
	t.Parallel()
	for _, tt := range parseStaticKeysTests {
		t.Run(tt.Case, func(t *testing.T) {
			keys, err := ParseStaticKeys(tt.Raw)
			if tt.Err != "" {
				assert.EqualError(t, err, tt.Err)
				return
			}
			assert.Nil(t, err)
			assert.Equal(t, tt.Len, keys.Len())
		})
	}
	keys, _ := ParseStaticKeys("polka:a:b")
	payload, err := keys.Parse(context.Background(), "a:b")
	assert.Nil(t, err)
	assert.Equal(t, "polka", payload.(Credential).Owner)
}

func TestFirst(t *testing.T) {
	t.Parallel()
	a := NewStaticKeys(WithKey("a", Credential{Owner: "a"}))
	b := NewStaticKeys(WithKey("b", Credential{Owner: "b"}))
	p := First(a, b)

	payload, err := p.Parse(context.Background(), "b")
	assert.Nil(t, err)
	assert.Equal(t, "b", payload.(Credential).Owner)

	_, err = p.Parse(context.Background(), "c")
	assert.True(t, errors.Is(err, ErrUnknownKey))

	_, err = p.Parse(context.Background(), "")
	assert.True(t, errors.Is(err, ErrEmptyKey))

	_, err = First().Parse(context.Background(), "a")
	assert.True(t, errors.Is(err, ErrUnknownKey))
}

func signKey(t *testing.T, method jwt.SigningMethod, key any, claims jwt.RegisteredClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(method, claims).SignedString(key)
	assert.Nil(t, err)
	return signed
}

func TestSignedKeys(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC()
	valid := jwt.RegisteredClaims{
		Issuer:    "apikey",
		Subject:   ownerID.String(),
		Audience:  jwt.ClaimStrings{"webhooks"},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}

	_, err := NewSignedKeys()
	assert.EqualError(t, err, "signed key parser requires signing key")

	parser, err := NewSignedKeys(WithSigningKey(signedKey), WithIssuer("apikey"))
	assert.Nil(t, err)

	t.Run("valid", func(t *testing.T) {
		payload, err := parser.Parse(context.Background(), signKey(t, jwt.SigningMethodHS256, signedKey, valid))
		assert.Nil(t, err)
		cred := payload.(Credential)
		assert.Equal(t, ownerID, cred.ID)
		assert.Equal(t, "webhooks", cred.Name)
		assert.Equal(t, now.Unix(), cred.CreatedAt.Unix())
	})
	t.Run("wrong secret", func(t *testing.T) {
		_, err := parser.Parse(context.Background(), signKey(t, jwt.SigningMethodHS256, []byte("other"), valid))
		assert.True(t, errors.Is(err, ErrInvalidSignedKey))
	})
	t.Run("unexpected signing method", func(t *testing.T) {
		_, err := parser.Parse(context.Background(), signKey(t, jwt.SigningMethodHS384, signedKey, valid))
		assert.True(t, errors.Is(err, ErrInvalidSignedKey))
		assert.Contains(t, err.Error(), "unexpected signing method=HS384")
	})
	t.Run("expired", func(t *testing.T) {
		expired := valid
		expired.ExpiresAt = jwt.NewNumericDate(now.Add(-time.Minute))
		_, err := parser.Parse(context.Background(), signKey(t, jwt.SigningMethodHS256, signedKey, expired))
		assert.True(t, errors.Is(err, ErrInvalidSignedKey))
	})
	t.Run("wrong issuer", func(t *testing.T) {
		other := valid
		other.Issuer = "someone"
		_, err := parser.Parse(context.Background(), signKey(t, jwt.SigningMethodHS256, signedKey, other))
		assert.True(t, errors.Is(err, ErrInvalidSignedKey))
	})
	t.Run("subject not a uuid", func(t *testing.T) {
		other := valid
		other.Subject = "polka"
		_, err := parser.Parse(context.Background(), signKey(t, jwt.SigningMethodHS256, signedKey, other))
		assert.True(t, errors.Is(err, ErrInvalidSignedKey))
	})
	t.Run("not a jwt", func(t *testing.T) {
		_, err := parser.Parse(context.Background(), validKey)
		assert.True(t, errors.Is(err, ErrInvalidSignedKey))
	})
	t.Run("empty", func(t *testing.T) {
		_, err := parser.Parse(context.Background(), "")
		assert.True(t, errors.Is(err, ErrEmptyKey))
	})
}
