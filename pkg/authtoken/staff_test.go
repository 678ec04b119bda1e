package authtoken

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAudience = "caseflow"
	testSecret   = "test_secret"
)

func TestVerify_RoundTrip(t *testing.T) {
	now := time.Unix(1700000000, 0)
	tok, err := Issue(Staff{ID: "u-1", Name: "Dana", Role: RoleAdmin}, testAudience, testSecret, now, 10*time.Minute)
	require.NoError(t, err)

	got, err := Verify(tok, testAudience, testSecret, now)
	require.NoError(t, err)
	assert.Equal(t, "u-1", got.ID)
	assert.Equal(t, "Dana", got.Name)
	assert.True(t, got.IsAdmin())
	assert.Equal(t, now.Add(10*time.Minute).Unix(), got.ExpiresAt.Unix())
}

func TestVerify_Expired(t *testing.T) {
	now := time.Unix(1700000000, 0)
	tok, err := Issue(Staff{ID: "u-1", Role: RoleCaseManager}, testAudience, testSecret, now, time.Minute)
	require.NoError(t, err)

	_, err = Verify(tok, testAudience, testSecret, now.Add(2*time.Minute))
	require.Error(t, err)
}

func TestVerify_AudienceMismatch(t *testing.T) {
	now := time.Unix(1700000000, 0)
	tok, err := Issue(Staff{ID: "u-1", Role: RoleCaseManager}, "other-app", testSecret, now, time.Minute)
	require.NoError(t, err)

	_, err = Verify(tok, testAudience, testSecret, now)
	require.Error(t, err)
}

func TestVerify_UnknownRole(t *testing.T) {
	now := time.Unix(1700000000, 0)
	claims := StaffClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u-1",
			Audience:  jwt.ClaimStrings{testAudience},
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		},
		Role: "superuser",
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = Verify(tok, testAudience, testSecret, now)
	require.Error(t, err)
}

func TestVerify_MissingToken(t *testing.T) {
	_, err := Verify("", testAudience, testSecret, time.Now())
	require.ErrorIs(t, err, ErrMissingToken)
}
