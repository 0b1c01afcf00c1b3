package sri

import "context"

// Credential identifies the PKCS#12 certificate a Signer signs with.
type Credential struct {
	Path     string
	Password string
}

// Signer produces the signed form of a rendered document. Implementations
// live outside this repository.
type Signer interface {
	Sign(ctx context.Context, document []byte, cred Credential) ([]byte, error)
}
