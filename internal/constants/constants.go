package constants

const (
	JWKSFixture = "jwks-fixture"

	// Presence-only flag, the value is ignored.
	QueryParamExpired = "expired"

	TokenSubject = "fake_user"

	KeyUse = "sig"
)
