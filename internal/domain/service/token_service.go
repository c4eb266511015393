package service

// TokenClaims is the caller identity extracted from a validated bearer
// token: who the caller is and which capabilities were granted.
type TokenClaims struct {
	Subject string
	Scopes  []string
}

// HasScope reports whether the caller was granted the given capability.
func (c *TokenClaims) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}

	return false
}

// TokenService validates bearer tokens issued by the identity provider and
// maps them to granted capabilities. Token issuance lives outside this
// service; GenerateToken exists for local development and tests.
type TokenService interface {
	ValidateToken(tokenString string) (*TokenClaims, error)
	GenerateToken(subject string, scopes []string) (string, error)
}
