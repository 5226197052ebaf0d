// SPDX-License-Identifier: Apache-2.0
package webpush

import (
	"fmt"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// VAPID tokens are cheap to mint, so one gets signed per delivery
// attempt and none are cached across audiences. The VAPID RFC caps
// token lifetime at 24h; we use half that.
const TokenTTL = 12 * time.Hour

// Audience extracts the scheme://host origin a push service expects as
// the aud claim. Each service validates it strictly against its own
// origin, so it must come from the specific endpoint being targeted.
func Audience(endpoint string) (string, error) {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("could not parse endpoint: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("endpoint %q has no origin", endpoint)
	}
	return parsed.Scheme + "://" + parsed.Host, nil
}

// SignToken mints the ES256 compact JWT for one push-service origin.
// jwt/v5 emits the raw r‖s JOSE signature the vapid scheme requires.
func (k *VAPIDKeys) SignToken(audience, subject string, now time.Time) (string, error) {
	key, err := k.SigningKey()
	if err != nil {
		return "", err
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.MapClaims{
		"aud": audience,
		"sub": subject,
		"exp": jwt.NewNumericDate(now.Add(TokenTTL)),
	})

	return token.SignedString(key)
}

// AuthorizationHeader builds the value for the Authorization header of
// one delivery attempt: vapid t=<jwt>, k=<public key>.
func (k *VAPIDKeys) AuthorizationHeader(endpoint, subject string, now time.Time) (string, error) {
	audience, err := Audience(endpoint)
	if err != nil {
		return "", err
	}

	token, err := k.SignToken(audience, subject, now)
	if err != nil {
		return "", fmt.Errorf("could not sign VAPID token: %w", err)
	}

	return fmt.Sprintf("vapid t=%s, k=%s", token, k.Public), nil
}
