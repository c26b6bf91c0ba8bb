package main

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"github.com/mukti-ai/studycore/internal/auth"
)

func main() {
	description := flag.String("description", "Generated key", "description stored next to the hash")
	flag.Parse()

	apiKey := flag.Arg(0)
	if apiKey == "" {
		buf := make([]byte, 24)
		if _, err := rand.Read(buf); err != nil {
			fmt.Fprintf(os.Stderr, "failed to generate key: %v\n", err)
			os.Exit(1)
		}
		apiKey = "sk-study-" + hex.EncodeToString(buf)
	}

	fmt.Printf("API Key: %s\n", apiKey)
	fmt.Printf("SHA-256 Hash: %s\n", auth.HashAPIKey(apiKey))
	fmt.Println("\nAdd this to your studycore.yaml:")
	fmt.Printf("  server:\n")
	fmt.Printf("    api_keys:\n")
	fmt.Printf("      - key_hash: \"%s\"\n", auth.HashAPIKey(apiKey))
	fmt.Printf("        description: \"%s\"\n", *description)
}
