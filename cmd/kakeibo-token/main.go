// Command kakeibo-token mints a bearer token for the JSON API using the
// server's AUTH_SECRET, for scripts and local testing.
//
//	kakeibo-token -user alice -ttl 720h
package main

import (
	"flag"
	"fmt"
	"os"

	"kakeibo/internal/auth"
	"kakeibo/internal/cli"
	"kakeibo/internal/config"
)

func main() {
	cli.LoadEnvFile()
	cfg := config.Load()

	user := flag.String("user", "", "user id to put in the token subject")
	ttl := flag.Duration("ttl", cfg.SessionTTL, "token lifetime")
	flag.Parse()

	if *user == "" {
		fmt.Fprintln(os.Stderr, "usage: kakeibo-token -user <id> [-ttl 24h]")
		os.Exit(2)
	}

	p, err := auth.NewJWTProvider(cfg.AuthSecret, cfg.AuthIssuer, cfg.AuthCookie)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kakeibo-token: %v (set AUTH_SECRET)\n", err)
		os.Exit(1)
	}
	token, err := p.Issue(*user, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kakeibo-token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
