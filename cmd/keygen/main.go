package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/tjfontaine/deployhook/internal/auth"
)

func main() {
	if len(os.Args) > 2 || (len(os.Args) == 2 && (os.Args[1] == "-h" || os.Args[1] == "--help")) {
		fmt.Println("Usage: go run ./cmd/keygen [token]")
		fmt.Println("Prints the SHA-256 hash of a webhook token for auth.key_hashes.")
		fmt.Println("A random token is generated when none is given.")
		os.Exit(1)
	}

	var token string
	if len(os.Args) == 2 {
		token = os.Args[1]
	} else {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			fmt.Fprintf(os.Stderr, "generate token: %v\n", err)
			os.Exit(1)
		}
		token = hex.EncodeToString(buf)
	}

	keyHash := auth.HashToken(token)

	fmt.Printf("Token: %s\n", token)
	fmt.Printf("SHA-256 Hash: %s\n", keyHash)
	fmt.Println("\nAdd this to your config.yaml:")
	fmt.Printf("  auth:\n")
	fmt.Printf("    key_hashes:\n")
	fmt.Printf("      - \"%s\"\n", keyHash)
	fmt.Println("\nand send it from CI as:")
	fmt.Printf("  Authorization: Bearer %s\n", token)
}
