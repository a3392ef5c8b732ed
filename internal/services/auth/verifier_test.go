package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/otakon/companion/internal/models"
)

const testIssuer = "https://auth.example.test"

type staticKeySource struct {
	set jwk.Set
}

func (s *staticKeySource) Keys(_ context.Context) (jwk.Set, error) {
	return s.set, nil
}

type signingKeys struct {
	private jwk.Key
	source  *staticKeySource
}

func newSigningKeys(t *testing.T) *signingKeys {
	t.Helper()

	raw, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	private, err := jwk.FromRaw(raw)
	if err != nil {
		t.Fatalf("wrap key: %v", err)
	}
	if err := private.Set(jwk.KeyIDKey, "test-key"); err != nil {
		t.Fatalf("set kid: %v", err)
	}
	if err := private.Set(jwk.AlgorithmKey, jwa.RS256); err != nil {
		t.Fatalf("set alg: %v", err)
	}

	public, err := private.PublicKey()
	if err != nil {
		t.Fatalf("public key: %v", err)
	}
	set := jwk.NewSet()
	if err := set.AddKey(public); err != nil {
		t.Fatalf("add key: %v", err)
	}

	return &signingKeys{private: private, source: &staticKeySource{set: set}}
}

func (k *signingKeys) sign(t *testing.T, build func(*jwt.Builder) *jwt.Builder) string {
	t.Helper()

	builder := jwt.NewBuilder().
		Subject("user-1").
		Issuer(testIssuer).
		IssuedAt(time.Now()).
		Expiration(time.Now().Add(1 * time.Hour))
	builder = build(builder)

	token, err := builder.Build()
	if err != nil {
		t.Fatalf("build token: %v", err)
	}
	signed, err := jwt.Sign(token, jwt.WithKey(jwa.RS256, k.private))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return string(signed)
}

func TestVerify_ValidTokenWithTier(t *testing.T) {
	t.Parallel()

	keys := newSigningKeys(t)
	verifier := NewVerifier(keys.source, testIssuer)
	signed := keys.sign(t, func(b *jwt.Builder) *jwt.Builder {
		return b.Claim("tier", "pro")
	})

	user, err := verifier.Verify(context.Background(), signed)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if user.ID != "user-1" {
		t.Errorf("ID = %q, want user-1", user.ID)
	}
	if user.Tier != models.TierPro {
		t.Errorf("Tier = %q, want pro", user.Tier)
	}
}

func TestVerify_MissingTierDefaultsToFree(t *testing.T) {
	t.Parallel()

	keys := newSigningKeys(t)
	verifier := NewVerifier(keys.source, testIssuer)
	signed := keys.sign(t, func(b *jwt.Builder) *jwt.Builder { return b })

	user, err := verifier.Verify(context.Background(), signed)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if user.Tier != models.TierFree {
		t.Errorf("Tier = %q, want free", user.Tier)
	}
}

func TestVerify_UnknownTierFallsBackToFree(t *testing.T) {
	t.Parallel()

	keys := newSigningKeys(t)
	verifier := NewVerifier(keys.source, testIssuer)
	signed := keys.sign(t, func(b *jwt.Builder) *jwt.Builder {
		return b.Claim("tier", "platinum")
	})

	user, err := verifier.Verify(context.Background(), signed)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if user.Tier != models.TierFree {
		t.Errorf("Tier = %q, want free", user.Tier)
	}
}

func TestVerify_WrongIssuerRejected(t *testing.T) {
	t.Parallel()

	keys := newSigningKeys(t)
	verifier := NewVerifier(keys.source, testIssuer)
	signed := keys.sign(t, func(b *jwt.Builder) *jwt.Builder {
		return b.Issuer("https://somewhere-else.test")
	})

	if _, err := verifier.Verify(context.Background(), signed); err == nil {
		t.Fatal("Expected error for wrong issuer")
	}
}

func TestVerify_ExpiredTokenRejected(t *testing.T) {
	t.Parallel()

	keys := newSigningKeys(t)
	verifier := NewVerifier(keys.source, testIssuer)
	signed := keys.sign(t, func(b *jwt.Builder) *jwt.Builder {
		return b.Expiration(time.Now().Add(-1 * time.Minute))
	})

	if _, err := verifier.Verify(context.Background(), signed); err == nil {
		t.Fatal("Expected error for expired token")
	}
}

func TestVerify_GarbageTokenRejected(t *testing.T) {
	t.Parallel()

	keys := newSigningKeys(t)
	verifier := NewVerifier(keys.source, testIssuer)

	if _, err := verifier.Verify(context.Background(), "not-a-token"); err == nil {
		t.Fatal("Expected error for malformed token")
	}
}
