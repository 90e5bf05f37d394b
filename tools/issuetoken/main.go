// Command issuetoken prints a bearer token for the analyser API, e.g. for
// the external scheduler posting to /simulator/tick:
//
//	issuetoken -subject tick-cron -role scheduler -ttl 720h
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"ztbus-analyser/internal/auth"
)

type config struct {
	secret  string
	subject string
	role    string
	ttl     time.Duration
}

func main() {
	cfg := parseConfig()
	if cfg.secret == "" {
		log.Fatal("AUTH_JWT_SECRET or -secret is required")
	}
	role, err := auth.ParseRole(cfg.role)
	if err != nil {
		log.Fatalf("%v (known roles: %s)", err, knownRoles())
	}
	token, err := auth.IssueJWT([]byte(cfg.secret), cfg.subject, role, cfg.ttl)
	if err != nil {
		log.Fatalf("issue token: %v", err)
	}
	expiry := "never"
	if cfg.ttl > 0 {
		expiry = time.Now().Add(cfg.ttl).UTC().Format(time.RFC3339)
	}
	log.Printf("token issued subject=%s role=%s expires=%s", cfg.subject, role, expiry)
	fmt.Println(token)
}

func parseConfig() config {
	cfg := config{}
	flag.StringVar(&cfg.secret, "secret", envOrDefault("AUTH_JWT_SECRET", envOrDefault("JWT_SECRET", "")), "HS256 signing secret")
	flag.StringVar(&cfg.subject, "subject", envOrDefault("TOKEN_SUBJECT", "scheduler"), "token subject")
	flag.StringVar(&cfg.role, "role", envOrDefault("TOKEN_ROLE", string(auth.RoleScheduler)), "role: "+knownRoles())
	flag.DurationVar(&cfg.ttl, "ttl", 24*time.Hour, "token lifetime, 0 for no expiry")
	flag.Parse()
	return cfg
}

func knownRoles() string {
	roles := auth.Roles()
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, string(role))
	}
	return strings.Join(names, ", ")
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
