package tokenstore

import (
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// UsernameFromIDToken reads the username claim of an id token without
// verifying its signature. The token came straight from the token
// endpoint; it is never used for an authorization decision.
func UsernameFromIDToken(idToken string) string {
	if idToken == "" {
		return ""
	}
	tok, err := jwt.ParseInsecure([]byte(idToken))
	if err != nil {
		return ""
	}
	for _, claim := range []string{"cognito:username", "username"} {
		if v, ok := tok.Get(claim); ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return tok.Subject()
}
