// Package main issues admin API tokens signed with the server's key.
//
// Usage:
//
//	go run ./cmd/admintoken -subject ops -scopes read,backup -- --data-dir ~/Shelfsy
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shelfsy/shelfsy-server/internal/auth"
	"github.com/shelfsy/shelfsy-server/internal/config"
)

func main() {
	fs := flag.NewFlagSet("admintoken", flag.ExitOnError)
	subject := fs.String("subject", "admin", "Token subject")
	scopes := fs.String("scopes", "", "Comma-separated scopes (default: all)")
	_ = fs.Parse(os.Args[1:])

	cfg, err := config.Load(fs.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	key := cfg.Auth.TokenKey
	if len(key) == 0 {
		if key, err = auth.LoadOrGenerateKey(cfg.Storage.DataDir); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load token key: %v\n", err)
			os.Exit(1)
		}
	}

	tokens, err := auth.NewTokenService(key, cfg.Auth.TokenDuration)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create token service: %v\n", err)
		os.Exit(1)
	}

	list, err := auth.ParseScopes(*scopes)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid -scopes: %v\n", err)
		os.Exit(2)
	}

	token, claims, err := tokens.Issue(*subject, list...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to issue token: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "Scopes:  %s\nExpires: %s (in %s)\n",
		strings.Join(claims.Scopes, ","), claims.Expiration.Format(time.RFC3339), claims.Remaining(time.Now()).Round(time.Minute))
	fmt.Println(token)
}
