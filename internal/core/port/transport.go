package port

// SessionTokenWriter hands a freshly minted session token to the outbound transport.
type SessionTokenWriter interface {
	AttachSessionToken(token string, rememberMe bool)
}
