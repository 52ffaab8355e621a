package store

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"donateabook/internal/domain"
)

var testSession = domain.Session{
	UserID:    "user-1",
	Email:     "ada@example.com",
	FirstName: "Ada",
}

func TestRedisSessionStoreRoundTrip(t *testing.T) {
	redis := miniredis.RunT(t)
	sessions := NewRedisSessionStore(redis.Addr(), "", time.Hour)

	token, err := sessions.Establish(testSession)
	if err != nil {
		t.Fatalf("establish: %v", err)
	}
	if token == "" {
		t.Fatal("empty token")
	}

	got, found, err := sessions.Get(token)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !found || got != testSession {
		t.Fatalf("got %+v found=%v", got, found)
	}

	// The token is opaque: no identity data is recoverable from it alone.
	if token == testSession.UserID || token == testSession.Email {
		t.Fatal("token leaks identity")
	}

	if err := sessions.Delete(token); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, found, err := sessions.Get(token); err != nil || found {
		t.Fatalf("deleted token still resolves, found=%v err=%v", found, err)
	}
}

func TestRedisSessionStoreExpiry(t *testing.T) {
	redis := miniredis.RunT(t)
	sessions := NewRedisSessionStore(redis.Addr(), "", time.Minute)

	token, err := sessions.Establish(testSession)
	if err != nil {
		t.Fatalf("establish: %v", err)
	}
	redis.FastForward(2 * time.Minute)
	if _, found, err := sessions.Get(token); err != nil || found {
		t.Fatalf("expired token still resolves, found=%v err=%v", found, err)
	}
}

func TestJWTSessionStoreRoundTrip(t *testing.T) {
	sessions := NewJWTSessionStore("test-secret", time.Hour)

	token, err := sessions.Establish(testSession)
	if err != nil {
		t.Fatalf("establish: %v", err)
	}
	got, found, err := sessions.Get(token)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !found || got != testSession {
		t.Fatalf("got %+v found=%v", got, found)
	}
}

func TestJWTSessionStoreRejectsTamperedAndForeignTokens(t *testing.T) {
	sessions := NewJWTSessionStore("test-secret", time.Hour)
	token, err := sessions.Establish(testSession)
	if err != nil {
		t.Fatalf("establish: %v", err)
	}

	// 1) Flip a character in the signature segment.
	tampered := token[:len(token)-2] + "xx"
	if _, found, err := sessions.Get(tampered); err != nil || found {
		t.Fatalf("tampered token accepted, found=%v err=%v", found, err)
	}

	// 2) A token signed under a different secret.
	other := NewJWTSessionStore("other-secret", time.Hour)
	foreign, err := other.Establish(testSession)
	if err != nil {
		t.Fatalf("establish foreign: %v", err)
	}
	if _, found, err := sessions.Get(foreign); err != nil || found {
		t.Fatalf("foreign token accepted, found=%v err=%v", found, err)
	}

	// 3) Garbage is not an error, just not a session.
	if _, found, err := sessions.Get("not-a-token"); err != nil || found {
		t.Fatalf("garbage token accepted, found=%v err=%v", found, err)
	}
}

func TestJWTSessionStoreExpiry(t *testing.T) {
	sessions := NewJWTSessionStore("test-secret", -time.Minute)
	token, err := sessions.Establish(testSession)
	if err != nil {
		t.Fatalf("establish: %v", err)
	}
	if _, found, err := sessions.Get(token); err != nil || found {
		t.Fatalf("expired token accepted, found=%v err=%v", found, err)
	}
}

func TestMemorySessionStoreExpiry(t *testing.T) {
	sessions := NewMemorySessionStore(time.Minute)
	now := time.Now()
	sessions.now = func() time.Time { return now }

	token, err := sessions.Establish(testSession)
	if err != nil {
		t.Fatalf("establish: %v", err)
	}
	if _, found, _ := sessions.Get(token); !found {
		t.Fatal("fresh token not found")
	}

	now = now.Add(2 * time.Minute)
	if _, found, _ := sessions.Get(token); found {
		t.Fatal("expired token still resolves")
	}
}
