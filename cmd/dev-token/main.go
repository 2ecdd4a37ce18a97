// Command dev-token prints a signed access token for local testing against a
// server that shares the same BEWERBUNG_AUTH_JWT_SECRET.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/easybewerbung/bewerbung-api/internal/config"
	"github.com/easybewerbung/bewerbung-api/internal/service/auth"
	"github.com/google/uuid"
)

func main() {
	userFlag := flag.String("user", "", "user ID to embed (random when empty)")
	role := flag.String("role", "user", "role claim")
	flag.Parse()

	if err := run(*userFlag, *role); err != nil {
		fmt.Fprintln(os.Stderr, "dev-token:", err)
		os.Exit(1)
	}
}

func run(rawUser, role string) error {
	secret := os.Getenv(config.EnvPrefix + "_AUTH_JWT_SECRET")
	if secret == "" {
		return fmt.Errorf("%s_AUTH_JWT_SECRET is not set", config.EnvPrefix)
	}

	userID := uuid.New()
	if rawUser != "" {
		var err error
		if userID, err = uuid.Parse(rawUser); err != nil {
			return fmt.Errorf("invalid user ID: %w", err)
		}
	}

	jwtService, err := auth.NewJWTService(config.AuthConfig{JWTSecret: secret, AdminRole: role})
	if err != nil {
		return err
	}
	token, err := jwtService.GenerateToken(context.Background(), userID, role)
	if err != nil {
		return err
	}

	fmt.Printf("user: %s\nrole: %s\ntoken: %s\n", userID, role, token)
	return nil
}
