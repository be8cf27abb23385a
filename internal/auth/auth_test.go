package auth

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// testAPIKey is the raw API key used in tests. Must start with "trk_" and be >= 8 chars.
const testAPIKey = "trk_test_valid_key_1234567890abcdef"

// testHash returns a bcrypt hash of testAPIKey using MinCost (fast for tests).
func testHash(t *testing.T) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testAPIKey), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to generate bcrypt hash: %v", err)
	}
	return string(hash)
}

// mockStore implements ClientStore for testing.
type mockStore struct {
	row       *clientRow
	err       error
	callCount atomic.Int32
	prefix    atomic.Value
}

func (m *mockStore) LookupByPrefix(_ context.Context, prefix string) (*clientRow, error) {
	m.callCount.Add(1)
	m.prefix.Store(prefix)
	if m.err != nil {
		return nil, m.err
	}
	return m.row, nil
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer " + testAPIKey, testAPIKey, true},
		{"bearer " + testAPIKey, testAPIKey, true},
		{testAPIKey, testAPIKey, true},
		{"", "", false},
		{"Bearer tsk_wrong_prefix_key", "", false},
		{"Bearer trk_", "", false},
	}
	for _, tt := range tests {
		got, err := ExtractBearerToken(tt.header)
		if tt.ok && (err != nil || got != tt.want) {
			t.Errorf("ExtractBearerToken(%q) = %q, %v; want %q", tt.header, got, err, tt.want)
		}
		if !tt.ok && !errors.Is(err, ErrUnauthenticated) {
			t.Errorf("ExtractBearerToken(%q) expected ErrUnauthenticated, got %v", tt.header, err)
		}
	}
}

func TestRoleAllows(t *testing.T) {
	if !RoleAdmin.Allows(RoleOperator) || !RoleOperator.Allows(RoleViewer) {
		t.Error("higher roles must include lower ones")
	}
	if RoleViewer.Allows(RoleOperator) {
		t.Error("viewer must not execute")
	}
	if ParseRole("superuser") != RoleViewer {
		t.Error("unknown roles must map to viewer")
	}
}

func TestStaticAuth(t *testing.T) {
	p, err := NewStaticAuthenticator().Authenticate(context.Background(), testAPIKey)
	if err != nil {
		t.Fatal(err)
	}
	if p.ClientID != "static-trk_test" || p.Role != RoleAdmin {
		t.Errorf("unexpected principal %+v", p)
	}
}

func TestPostgresAuth_CacheMiss_ValidKey(t *testing.T) {
	store := &mockStore{row: &clientRow{ClientID: "client_abc", APIKeyHash: testHash(t), Role: "operator"}}
	auth := NewPostgresAuthenticatorWithStore(store, time.Minute, false, zap.NewNop())

	p, err := auth.Authenticate(context.Background(), testAPIKey)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if p.ClientID != "client_abc" || p.Role != RoleOperator {
		t.Errorf("unexpected principal %+v", p)
	}
	if got := store.prefix.Load().(string); got != "trk_test" {
		t.Errorf("expected lookup by prefix trk_test, got %s", got)
	}
}

func TestPostgresAuth_CacheHit(t *testing.T) {
	store := &mockStore{row: &clientRow{ClientID: "client_abc", APIKeyHash: testHash(t), Role: "admin"}}
	auth := NewPostgresAuthenticatorWithStore(store, time.Minute, false, zap.NewNop())

	for i := 0; i < 3; i++ {
		if _, err := auth.Authenticate(context.Background(), testAPIKey); err != nil {
			t.Fatal(err)
		}
	}
	if n := store.callCount.Load(); n != 1 {
		t.Errorf("expected 1 store call, got %d", n)
	}
}

func TestPostgresAuth_WrongKey(t *testing.T) {
	store := &mockStore{row: &clientRow{ClientID: "client_abc", APIKeyHash: testHash(t), Role: "admin"}}
	auth := NewPostgresAuthenticatorWithStore(store, time.Minute, true, zap.NewNop())

	_, err := auth.Authenticate(context.Background(), "trk_test_some_other_key")
	if !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated even when failing open, got %v", err)
	}
}

func TestPostgresAuth_StoreError_FailClosed(t *testing.T) {
	store := &mockStore{err: errors.New("connection refused")}
	auth := NewPostgresAuthenticatorWithStore(store, time.Minute, false, zap.NewNop())

	if _, err := auth.Authenticate(context.Background(), testAPIKey); err == nil {
		t.Fatal("expected an error when failing closed")
	}
}

func TestPostgresAuth_StoreError_FailOpen(t *testing.T) {
	store := &mockStore{err: errors.New("connection refused")}
	auth := NewPostgresAuthenticatorWithStore(store, time.Minute, true, zap.NewNop())

	p, err := auth.Authenticate(context.Background(), testAPIKey)
	if err != nil {
		t.Fatalf("expected fail-open, got %v", err)
	}
	if p.Role != RoleViewer {
		t.Errorf("fail-open principals must be viewers, got %s", p.Role)
	}
}

func TestAuthCache_StaleHitRefreshesOnce(t *testing.T) {
	c := NewAuthCache(time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }
	c.Set("k", &Principal{ClientID: "a"})

	if r := c.Get("k"); !r.Hit || r.NeedsRefresh {
		t.Fatalf("expected fresh hit, got %+v", r)
	}

	now = now.Add(2 * time.Minute)
	first := c.Get("k")
	second := c.Get("k")
	if !first.Hit || !first.NeedsRefresh {
		t.Fatalf("expected stale hit needing refresh, got %+v", first)
	}
	if !second.Hit || second.NeedsRefresh {
		t.Fatalf("only one caller may refresh, got %+v", second)
	}

	c.Delete("k")
	if c.Get("k").Hit {
		t.Fatal("expected miss after delete")
	}
}

func TestAuthCache_DoesNotRetainKeys(t *testing.T) {
	c := NewAuthCache(time.Minute)
	c.Set("trk_secret_key", &Principal{ClientID: "a"})

	c.store.Range(func(k, _ any) bool {
		if _, ok := k.([32]byte); !ok {
			t.Fatalf("cache key has type %T, want a digest", k)
		}
		return true
	})
	if c.Get("trk_other_key").Hit {
		t.Fatal("expected miss for a different key")
	}
}
