package local

import (
	"encoding/json"

	featmy "github.com/AFJoao/FEATMY-V2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/golang-jwt/jwt/v5"
)

type idTokenClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

func (p *Provider) mintToken(record accountRecord) (string, error) {
	now := p.clock()
	claims := idTokenClaims{
		Email: record.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   record.UID,
			Issuer:    "featmy",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.tokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(p.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign ID token")
	}
	return signed, nil
}

// VerifyToken validates a previously minted ID token and returns the identity
// it carries. The returned identity echoes the raw token.
func (p *Provider) VerifyToken(raw string) (featmy.Identity, error) {
	claims := &idTokenClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, goerrors.New("unexpected signing method", goerrors.CategoryAuth).
				WithMetadata(map[string]any{"alg": t.Header["alg"]})
		}
		return p.signingKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryAuth, "invalid ID token").
			WithCode(goerrors.CodeUnauthorized)
	}
	if !token.Valid {
		return nil, goerrors.New("invalid ID token", goerrors.CategoryAuth).
			WithCode(goerrors.CodeUnauthorized)
	}

	return &localIdentity{uid: claims.Subject, email: claims.Email, token: raw}, nil
}

func encodeAccount(record accountRecord) (featmy.Document, error) {
	raw, err := json.Marshal(record)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode account")
	}
	doc := featmy.Document{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode account")
	}
	return doc, nil
}

func decodeAccount(doc featmy.Document) (*accountRecord, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to decode account")
	}
	record := &accountRecord{}
	if err := json.Unmarshal(raw, record); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to decode account")
	}
	return record, nil
}
