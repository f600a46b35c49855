package auth

import (
	"context"
	"crypto/rsa"
	"os"
	"time"

	"github.com/golang-jwt/jwt"
)

// JWTVerifier checks RS256 access tokens issued by the account service. The
// subject claim is the user id.
type JWTVerifier struct {
	public    *rsa.PublicKey
	issuer    string
	audience  string
	clockSkew time.Duration
	now       func() time.Time
	parser    *jwt.Parser
}

func NewJWTVerifier(public *rsa.PublicKey, issuer, audience string, clockSkew time.Duration) *JWTVerifier {
	return &JWTVerifier{
		public:    public,
		issuer:    issuer,
		audience:  audience,
		clockSkew: clockSkew,
		now:       time.Now,
		// time claims are checked below, with skew
		parser: &jwt.Parser{
			ValidMethods:         []string{jwt.SigningMethodRS256.Alg()},
			SkipClaimsValidation: true,
		},
	}
}

func (v *JWTVerifier) Authenticate(_ context.Context, c Credentials) (string, error) {
	if c.Token == "" {
		return "", ErrMissingToken
	}
	claims, err := v.ParseAndValidate(c.Token)
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", ErrInvalidSubject
	}
	return claims.Subject, nil
}

func (v *JWTVerifier) ParseAndValidate(tokenStr string) (*jwt.StandardClaims, error) {
	claims := &jwt.StandardClaims{}
	token, err := v.parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, ErrInvalidToken
		}
		return v.public, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	if v.issuer != "" && !claims.VerifyIssuer(v.issuer, true) {
		return nil, ErrInvalidToken
	}
	if v.audience != "" && !claims.VerifyAudience(v.audience, true) {
		return nil, ErrInvalidToken
	}

	now := v.now()
	if claims.ExpiresAt == 0 {
		return nil, ErrTokenExpired
	}
	exp := time.Unix(claims.ExpiresAt, 0).Add(v.clockSkew)
	if now.After(exp) {
		return nil, ErrTokenExpired
	}
	if claims.NotBefore != 0 && now.Before(time.Unix(claims.NotBefore, 0).Add(-v.clockSkew)) {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func LoadRSAPublicKeyFromPEM(path string) (*rsa.PublicKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return jwt.ParseRSAPublicKeyFromPEM(b)
}
