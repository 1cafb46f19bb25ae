package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/arklim/storefront-auth/internal/core/port"
	"github.com/arklim/storefront-auth/internal/infra/config"
	"github.com/arklim/storefront-auth/internal/infra/security"
)

// Reads a password from stdin and prints the Argon2id hash to store in
// native_authentication_methods.password_hash.
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	cipher, err := security.NewArgon2Cipher(port.Argon2Params{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	})
	if err != nil {
		log.Fatalf("invalid argon2 settings: %v", err)
	}

	fmt.Fprint(os.Stderr, "Password: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		log.Fatalf("read password: %v", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		log.Fatal("password must not be empty")
	}

	hash, err := cipher.Hash(password)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}
	fmt.Println(hash)
}
