package auth

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	raw, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return raw
}

func TestParseDriverToken(t *testing.T) {
	svc := NewService(testSecret)

	raw := signToken(t, testSecret, &DriverClaims{DriverID: 42})
	claims, err := svc.ParseDriverToken(raw)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.DriverID)
}

func TestParseDriverTokenMissingDriverID(t *testing.T) {
	svc := NewService(testSecret)

	raw := signToken(t, testSecret, &DriverClaims{})
	_, err := svc.ParseDriverToken(raw)
	assert.ErrorIs(t, err, ErrNoDriver)
}

func TestParseDriverTokenWrongSecret(t *testing.T) {
	svc := NewService(testSecret)

	raw := signToken(t, "other-secret", &DriverClaims{DriverID: 42})
	_, err := svc.ParseDriverToken(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseOperatorToken(t *testing.T) {
	svc := NewService(testSecret)

	raw := signToken(t, testSecret, &OperatorClaims{
		Role:                MonitorOperationsRole,
		TransportCompanyIDs: []int64{11, 22},
	})
	claims, err := svc.ParseOperatorToken(raw)
	require.NoError(t, err)
	assert.Equal(t, []int64{11, 22}, claims.TransportCompanyIDs)
}

func TestParseOperatorTokenWrongRole(t *testing.T) {
	svc := NewService(testSecret)

	raw := signToken(t, testSecret, &OperatorClaims{Role: "driver"})
	_, err := svc.ParseOperatorToken(raw)
	assert.ErrorIs(t, err, ErrNotEntitled)
}

func TestBearerToken(t *testing.T) {
	token, err := BearerToken("Bearer abc.def.ghi")
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", token)

	token, err = BearerToken("bearer abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", token)

	for _, header := range []string{"", "Bearer", "Bearer ", "Basic abc"} {
		_, err := BearerToken(header)
		assert.ErrorIs(t, err, ErrMissingBearer, "header %q", header)
	}
}
