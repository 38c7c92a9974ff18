// Package auth issues and verifies the tokens used to talk to a running
// workspace service.
//
// # Tokens
//
// Tokens are HS256 JWTs signed with the configured jwt_secret. Claims carry
// the caller's email, the workspace and a map of extra string claims. The
// migration tool connects with UpgradeExtra, which marks the connection as a
// privileged upgrade session:
//
//	signer, err := NewJWTSigner(secret, time.Hour)
//	token, err := signer.Generate(SystemAccountEmail, "ws-1", UpgradeExtra())
//	claims, err := signer.Verify(token)
//
// # Middleware
//
// UnaryInterceptor authenticates gRPC calls from the "authorization"
// metadata. HTTPAuthMiddleware does the same for HTTP handlers and also
// accepts a token query parameter, which the force-close endpoint uses.
// Both store the claims in the request context; read them with FromContext.
package auth
