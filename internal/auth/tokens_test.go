package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestManager(t *testing.T) (*TokenManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	m, err := NewTokenManager(testSecret, 30*time.Minute, rdb)
	if err != nil {
		t.Fatalf("NewTokenManager() error = %v", err)
	}
	return m, mr
}

func TestNewTokenManagerRejectsShortSecret(t *testing.T) {
	if _, err := NewTokenManager("short", time.Minute, nil); err == nil {
		t.Error("expected error for short secret")
	}
}

func TestIssueAndValidate(t *testing.T) {
	ctx := context.Background()
	m, mr := newTestManager(t)

	token, exp, err := m.IssueAccessToken(ctx, 7, "alice")
	if err != nil {
		t.Fatalf("IssueAccessToken() error = %v", err)
	}
	if time.Until(exp) < 29*time.Minute {
		t.Errorf("expiry %v is earlier than the configured TTL", exp)
	}

	claims, err := m.ValidateAccessToken(ctx, token)
	if err != nil {
		t.Fatalf("ValidateAccessToken() error = %v", err)
	}
	if claims.UserID != 7 || claims.Username != "alice" || claims.Subject != "7" {
		t.Errorf("claims = %+v", claims)
	}

	ttl := mr.TTL(accessKeyPrefix + claims.ID)
	if ttl != 30*time.Minute {
		t.Errorf("redis TTL = %v, want 30m", ttl)
	}
}

func TestRevokeToken(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)

	token, _, err := m.IssueAccessToken(ctx, 1, "bob")
	if err != nil {
		t.Fatal(err)
	}
	claims, err := m.ValidateAccessToken(ctx, token)
	if err != nil {
		t.Fatal(err)
	}

	if err := m.RevokeToken(ctx, claims.ID); err != nil {
		t.Fatalf("RevokeToken() error = %v", err)
	}
	if _, err := m.ValidateAccessToken(ctx, token); !errors.Is(err, ErrTokenRevoked) {
		t.Errorf("ValidateAccessToken() after revoke = %v, want ErrTokenRevoked", err)
	}
}

func TestValidateRejects(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)

	good, _, err := m.IssueAccessToken(ctx, 1, "bob")
	if err != nil {
		t.Fatal(err)
	}

	other, _ := newTestManager(t)
	other.secret = []byte(strings.Repeat("x", 32))
	forged, _, err := other.IssueAccessToken(ctx, 1, "bob")
	if err != nil {
		t.Fatal(err)
	}

	expiredMgr, _ := newTestManager(t)
	expiredMgr.rdb = m.rdb
	expiredMgr.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expired, _, err := expiredMgr.IssueAccessToken(ctx, 1, "bob")
	if err != nil {
		t.Fatal(err)
	}

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"user_id": 1, "iss": issuer}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"wrong secret", forged},
		{"expired", expired},
		{"alg none", unsigned},
		{"truncated", good[:len(good)-4]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := m.ValidateAccessToken(ctx, tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("ValidateAccessToken() = %v, want ErrInvalidToken", err)
			}
		})
	}
}
