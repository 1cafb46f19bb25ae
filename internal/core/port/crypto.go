package port

// Argon2Params captures tunable parameters for the Argon2id hashing algorithm.
type Argon2Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// PasswordCipher hashes secrets and checks plaintext against stored hashes.
type PasswordCipher interface {
	Hash(password string) (string, error)
	// Check reports whether password matches encoded. Malformed hashes yield false.
	Check(password string, encoded string) bool
}
