// Binary admintoken mints an admin bearer token for the control plane.
// The signing secret and issuer come from the same SIVA_* environment
// variables the server reads, so a token minted here validates against a
// server started from the same environment.
package main

import (
	"flag"
	"fmt"
	"os"

	jwttoken "siva/internal/jwt_token"
	"siva/internal/platform/config"
)

func main() {
	subject := flag.String("subject", "", "actor identity embedded in the token, e.g. an ops email")
	ttl := flag.Duration("ttl", 0, "token lifetime (defaults to SIVA_ADMIN_TOKEN_TTL)")
	flag.Parse()

	if *subject == "" {
		fmt.Fprintln(os.Stderr, "usage: admintoken -subject <actor> [-ttl 1h]")
		os.Exit(2)
	}

	cfg := config.FromEnv()
	if cfg.Auth.AdminJWTSecret == "" {
		fmt.Fprintln(os.Stderr, "SIVA_ADMIN_JWT_SECRET must be set")
		os.Exit(1)
	}

	lifetime := cfg.Auth.AdminTokenTTL
	if *ttl > 0 {
		lifetime = *ttl
	}

	token, err := jwttoken.NewJWTService(cfg.Auth.AdminJWTSecret, cfg.Auth.AdminJWTIssuer).
		GenerateAdminToken(*subject, lifetime)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to mint token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
