// Package token_test tests the download capability tokens.
package token_test

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/audiobook-service/internal/token"
)

const testSecret = "unit-test-secret"

func TestIssueVerify_RoundTrip(t *testing.T) {
	t.Parallel()

	issuer := token.NewIssuer(testSecret)
	resourceID := uuid.New()
	ownerID := uuid.New()

	tokenString := issuer.Issue(resourceID, ownerID, 60*time.Minute)

	gotResource, gotOwner, err := issuer.Verify(tokenString)
	require.NoError(t, err)
	assert.Equal(t, resourceID, gotResource)
	assert.Equal(t, ownerID, gotOwner)
}

func TestVerify_Expired(t *testing.T) {
	t.Parallel()

	clock := time.Now()
	issuer := token.NewIssuerWithClock(testSecret, func() time.Time { return clock })

	tokenString := issuer.Issue(uuid.New(), uuid.New(), time.Minute)

	// Advance the simulated clock two minutes past issuance.
	clock = clock.Add(2 * time.Minute)

	_, _, err := issuer.Verify(tokenString)
	require.ErrorIs(t, err, token.ErrTokenExpired)
}

func TestVerify_ExpiryCheckedBeforeSignature(t *testing.T) {
	t.Parallel()

	clock := time.Now()
	issuer := token.NewIssuerWithClock(testSecret, func() time.Time { return clock })

	tokenString := issuer.Issue(uuid.New(), uuid.New(), time.Minute)

	// Corrupt the signature AND expire the token: the expiry error must win.
	tampered := tokenString[:len(tokenString)-1] + string(flipChar(tokenString[len(tokenString)-1]))
	clock = clock.Add(2 * time.Minute)

	_, _, err := issuer.Verify(tampered)
	require.ErrorIs(t, err, token.ErrTokenExpired)
}

func TestVerify_TamperedSignature(t *testing.T) {
	t.Parallel()

	issuer := token.NewIssuer(testSecret)
	tokenString := issuer.Issue(uuid.New(), uuid.New(), time.Hour)

	parts := strings.Split(tokenString, ":")
	require.Len(t, parts, 4)

	signature := parts[3]

	// Flipping any character of the signature field must yield a
	// signature-mismatch error, never a crash.
	for i := range signature {
		tampered := signature[:i] + string(flipChar(signature[i])) + signature[i+1:]
		candidate := strings.Join(append(parts[:3:3], tampered), ":")

		_, _, err := issuer.Verify(candidate)
		assert.ErrorIs(t, err, token.ErrBadSignature, "flipped signature byte %d", i)
	}
}

func TestVerify_Malformed(t *testing.T) {
	t.Parallel()

	issuer := token.NewIssuer(testSecret)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "too few fields", token: "a:b:c"},
		{name: "too many fields", token: "a:b:c:d:e"},
		{name: "non-uuid resource", token: "nope:" + uuid.NewString() + ":123:deadbeef"},
		{name: "non-numeric expiry", token: uuid.NewString() + ":" + uuid.NewString() + ":soon:deadbeef"},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			_, _, err := issuer.Verify(testCase.token)
			require.ErrorIs(t, err, token.ErrMalformedToken)
		})
	}
}

func TestVerify_DifferentSecretRejected(t *testing.T) {
	t.Parallel()

	tokenString := token.NewIssuer("secret-one").Issue(uuid.New(), uuid.New(), time.Hour)

	_, _, err := token.NewIssuer("secret-two").Verify(tokenString)
	require.ErrorIs(t, err, token.ErrBadSignature)
}

// flipChar returns a hex character guaranteed to differ from the input.
func flipChar(c byte) byte {
	if c == '0' {
		return '1'
	}

	return '0'
}
