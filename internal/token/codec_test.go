package token

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func fixedCodec(secret string, at time.Time) *Codec {
	c := NewCodec(secret, "authgate-test")
	c.now = func() time.Time { return at }
	return c
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := fixedCodec("secret-a", now)

	for _, kind := range []Kind{KindAccess, KindRefresh} {
		t.Run(string(kind), func(t *testing.T) {
			issued, err := c.Issue("42", kind, 15*time.Minute)
			if err != nil {
				t.Fatalf("Issue: %v", err)
			}
			if issued.Token == "" {
				t.Fatal("empty token")
			}
			if kind == KindRefresh && issued.ID == "" {
				t.Fatal("refresh token has no jti")
			}
			if kind == KindAccess && issued.ID != "" {
				t.Fatalf("access token has jti %q", issued.ID)
			}

			claims, err := c.Verify(issued.Token, kind)
			if err != nil {
				t.Fatalf("Verify: %v", err)
			}
			if claims.Subject != "42" {
				t.Errorf("subject = %q, want 42", claims.Subject)
			}
			if claims.Kind != kind {
				t.Errorf("kind = %q, want %q", claims.Kind, kind)
			}
			if claims.ID != issued.ID {
				t.Errorf("jti = %q, want %q", claims.ID, issued.ID)
			}
		})
	}
}

func TestVerifyKindMismatch(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := fixedCodec("secret-a", now)

	access, err := c.Issue("7", KindAccess, time.Hour)
	if err != nil {
		t.Fatalf("Issue access: %v", err)
	}
	refresh, err := c.Issue("7", KindRefresh, time.Hour)
	if err != nil {
		t.Fatalf("Issue refresh: %v", err)
	}

	if _, err := c.Verify(access.Token, KindRefresh); !errors.Is(err, ErrKindMismatch) {
		t.Errorf("access as refresh: err = %v, want ErrKindMismatch", err)
	}
	if _, err := c.Verify(refresh.Token, KindAccess); !errors.Is(err, ErrKindMismatch) {
		t.Errorf("refresh as access: err = %v, want ErrKindMismatch", err)
	}
}

func TestVerifyExpired(t *testing.T) {
	issuedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := fixedCodec("secret-a", issuedAt)

	issued, err := c.Issue("7", KindAccess, time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// Well past the minute TTL plus the 30s leeway.
	c.now = func() time.Time { return issuedAt.Add(5 * time.Minute) }
	if _, err := c.Verify(issued.Token, KindAccess); !errors.Is(err, ErrExpired) {
		t.Errorf("err = %v, want ErrExpired", err)
	}
}

func TestVerifyLeewayAbsorbsSkew(t *testing.T) {
	issuedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := fixedCodec("secret-a", issuedAt)

	issued, err := c.Issue("7", KindAccess, time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// 10s past expiry is inside the 30s leeway.
	c.now = func() time.Time { return issuedAt.Add(70 * time.Second) }
	if _, err := c.Verify(issued.Token, KindAccess); err != nil {
		t.Errorf("within leeway: err = %v, want nil", err)
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	a := fixedCodec("secret-a", now)
	b := fixedCodec("secret-b", now)

	issued, err := a.Issue("7", KindAccess, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := b.Verify(issued.Token, KindAccess); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("err = %v, want ErrInvalidSignature", err)
	}
}

func TestVerifyGarbage(t *testing.T) {
	c := fixedCodec("secret-a", time.Now())
	for _, raw := range []string{"", "not.a.jwt", "aaaa.bbbb.cccc"} {
		if _, err := c.Verify(raw, KindAccess); !errors.Is(err, ErrInvalidSignature) {
			t.Errorf("Verify(%q): err = %v, want ErrInvalidSignature", raw, err)
		}
	}
}

func TestConcurrentVerify(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := fixedCodec("secret-a", now)

	issued, err := c.Issue("7", KindAccess, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Verify(issued.Token, KindAccess); err != nil {
				t.Errorf("Verify: %v", err)
			}
		}()
	}
	wg.Wait()
}

func TestHashIDStable(t *testing.T) {
	if HashID("abc") != HashID("abc") {
		t.Error("HashID not deterministic")
	}
	if HashID("abc") == HashID("abd") {
		t.Error("distinct ids collide")
	}
	if got := len(HashID("abc")); got != 64 {
		t.Errorf("hash length = %d, want 64", got)
	}
}
