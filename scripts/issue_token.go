//go:build ignore

package main

import (
	"fmt"
	"os"
	"time"

	"newsdesk_backend/middleware"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: JWT_SECRET=... go run scripts/issue_token.go <email> [ttl]")
		fmt.Println("Example: go run scripts/issue_token.go scraper@newsdesk.local 8760h")
		os.Exit(1)
	}

	ttl := 24 * time.Hour
	if len(os.Args) > 2 {
		parsed, err := time.ParseDuration(os.Args[2])
		if err != nil {
			fmt.Printf("Invalid ttl: %v\n", err)
			os.Exit(1)
		}
		ttl = parsed
	}

	email := os.Args[1]
	token, err := middleware.IssueToken(os.Getenv("JWT_SECRET"), email, email, middleware.RoleAdmin, ttl)
	if err != nil {
		fmt.Printf("Error issuing token: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Subject: %s\n", email)
	fmt.Printf("Expires: %s\n", time.Now().Add(ttl).Format(time.RFC3339))
	fmt.Printf("Token: %s\n", token)
	fmt.Println("\nSend it as: Authorization: Bearer <token>")
}
