package auth

import (
	"context"
	"fmt"

	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/otakon/companion/internal/models"
)

// Verifier verifies bearer tokens and maps their claims onto a user. The
// subject claim becomes the user ID; the optional "tier" claim selects the
// subscription tier and defaults to free.
type Verifier struct {
	keys   KeySource
	issuer string
}

// NewVerifier creates a verifier backed by the given key source.
func NewVerifier(keys KeySource, issuer string) *Verifier {
	return &Verifier{keys: keys, issuer: issuer}
}

// Verify parses and validates a token, returning the authenticated user.
func (v *Verifier) Verify(ctx context.Context, tokenString string) (*models.User, error) {
	keys, err := v.keys.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get signing keys: %w", err)
	}

	token, err := jwt.Parse([]byte(tokenString),
		jwt.WithKeySet(keys),
		jwt.WithValidate(true),
		jwt.WithIssuer(v.issuer),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to parse/verify token: %w", err)
	}

	sub := token.Subject()
	if sub == "" {
		return nil, fmt.Errorf("token missing subject claim")
	}

	user := &models.User{ID: sub, Tier: models.TierFree}
	if raw, ok := token.Get("tier"); ok {
		if tierStr, ok := raw.(string); ok {
			switch models.Tier(tierStr) {
			case models.TierPro, models.TierVanguardPro:
				user.Tier = models.Tier(tierStr)
			}
		}
	}

	return user, nil
}
