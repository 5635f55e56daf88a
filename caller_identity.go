package sdk

import (
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/urnetwork/connect/v2025"
)

// identifies the calling application to the service at bind
type CallerIdentity struct {
	ClientId connect.Id
	Package  string
}

// NewCallerToken signs a caller token for `clientId` with an hmac `key`.
func NewCallerToken(clientId connect.Id, packageName string, key []byte) (string, error) {
	token := gojwt.NewWithClaims(gojwt.SigningMethodHS256, gojwt.MapClaims{
		"client_id": clientId.String(),
		"package":   packageName,
		"iat":       time.Now().Unix(),
	})
	return token.SignedString(key)
}

// reads the caller identity without verifying the signature.
// the client uses this to reject malformed tokens before dialing; the service verifies
func parseCallerIdentity(callerToken string) (*CallerIdentity, error) {
	claims := gojwt.MapClaims{}
	_, _, err := gojwt.NewParser().ParseUnverified(callerToken, claims)
	if err != nil {
		return nil, err
	}
	return callerIdentityFromClaims(claims)
}

// verifies the token signature with `key` and reads the caller identity
func verifyCallerIdentity(callerToken string, key []byte) (*CallerIdentity, error) {
	claims := gojwt.MapClaims{}
	_, err := gojwt.ParseWithClaims(
		callerToken,
		claims,
		func(token *gojwt.Token) (any, error) {
			return key, nil
		},
		gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return nil, err
	}
	return callerIdentityFromClaims(claims)
}

func callerIdentityFromClaims(claims gojwt.MapClaims) (*CallerIdentity, error) {
	jwtClientId, ok := claims["client_id"]
	if !ok {
		return nil, fmt.Errorf("caller token does not contain claim client_id")
	}
	var clientId connect.Id
	switch v := jwtClientId.(type) {
	case string:
		var err error
		clientId, err = connect.ParseId(v)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("caller token has invalid type for client_id: %T", v)
	}

	callerIdentity := &CallerIdentity{
		ClientId: clientId,
	}
	if packageName, ok := claims["package"].(string); ok {
		callerIdentity.Package = packageName
	}
	return callerIdentity, nil
}
