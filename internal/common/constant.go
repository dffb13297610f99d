package common

// Header names carried by signed requests.
const (
	SignatureHeaderName = "Signature"
	NonceHeaderName     = "Nonce"
	RequestIDHeaderName = "X-Request-Id"
	AssertionHeaderName = "X-Authgate-Assertion"
)

// UserRoutePrefix is the first path segment of user-scoped resources.
const UserRoutePrefix = "User"
