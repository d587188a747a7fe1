package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/noah-isme/sma-standby-api/internal/models"
	"github.com/noah-isme/sma-standby-api/internal/service"
	"github.com/noah-isme/sma-standby-api/pkg/config"
)

// devtoken prints a bearer token signed with the configured JWT secret, for
// calling the API locally without the identity service.
func main() {
	var (
		userID string
		role   string
		ttl    time.Duration
	)

	flag.StringVar(&userID, "user", "admin", "Subject (teacher ID for TEACHER tokens)")
	flag.StringVar(&role, "role", string(models.RoleAdmin), "ADMIN, SUPERADMIN or TEACHER")
	flag.DurationVar(&ttl, "ttl", 8*time.Hour, "Token lifetime")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	token, err := issue(cfg, userID, models.UserRole(strings.ToUpper(role)), ttl)
	if err != nil {
		log.Fatalf("failed to issue token: %v", err)
	}
	fmt.Println(token)
}

func issue(cfg *config.Config, userID string, role models.UserRole, ttl time.Duration) (string, error) {
	if cfg.Env == config.EnvProduction {
		return "", errors.New("refusing to sign tokens in production")
	}
	if strings.TrimSpace(userID) == "" {
		return "", errors.New("user is required")
	}
	switch role {
	case models.RoleAdmin, models.RoleSuperAdmin, models.RoleTeacher:
	default:
		return "", fmt.Errorf("unknown role %q", role)
	}
	if ttl <= 0 {
		return "", errors.New("ttl must be positive")
	}
	return service.NewAuthService(service.AuthConfig{AccessTokenSecret: cfg.JWT.Secret}).IssueToken(userID, role, ttl)
}
