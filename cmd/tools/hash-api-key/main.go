// Command hash-api-key generates and hashes API keys for the upload surface.
//
// Hashed entries go into the file referenced by --api-keys-file so the
// plaintext key never lands in unit files or shell history.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"veritas-media/internal/auth"
)

func main() {
	var (
		key      string
		generate bool
	)

	flag.StringVar(&key, "key", "", "API key to hash")
	flag.BoolVar(&generate, "generate", false, "generate a fresh random key and hash it")
	flag.Parse()

	if generate && strings.TrimSpace(key) != "" {
		fatalf("--generate and --key are mutually exclusive")
	}
	if !generate && strings.TrimSpace(key) == "" {
		fatalf("either --key or --generate must be provided")
	}

	if generate {
		generated, err := auth.GenerateAPIKey()
		if err != nil {
			fatalf("generate key: %v", err)
		}
		key = generated
		fmt.Printf("API key: %s\n", generated)
		fmt.Println("Distribute this key to the mobile build; it is not recoverable from the hash.")
	}

	entry, err := auth.HashAPIKey(key)
	if err != nil {
		fatalf("hash key: %v", err)
	}
	fmt.Printf("Hashed entry: %s\n", entry)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
