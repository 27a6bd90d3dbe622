package ports

// Hasher is the one-way hashing primitive used for passwords and refresh tokens.
type Hasher interface {
	Hash(plaintext string) (string, error)
	// Verify compares in constant time. A mismatch is (false, nil); an error
	// means the digest itself could not be used.
	Verify(digest, plaintext string) (bool, error)
}
