package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-standby-api/internal/models"
	"github.com/noah-isme/sma-standby-api/internal/service"
	"github.com/noah-isme/sma-standby-api/pkg/config"
)

func TestIssueSignsVerifiableToken(t *testing.T) {
	cfg := &config.Config{Env: "development", JWT: config.JWTConfig{Secret: "local"}}

	token, err := issue(cfg, "t1", models.RoleTeacher, time.Hour)
	require.NoError(t, err)

	claims, err := service.NewAuthService(service.AuthConfig{AccessTokenSecret: "local"}).ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "t1", claims.UserID)
	assert.Equal(t, models.RoleTeacher, claims.Role)
}

func TestIssueRejectsBadInput(t *testing.T) {
	cfg := &config.Config{Env: "development", JWT: config.JWTConfig{Secret: "local"}}

	_, err := issue(cfg, "", models.RoleAdmin, time.Hour)
	assert.Error(t, err)
	_, err = issue(cfg, "a1", models.UserRole("PRINCIPAL"), time.Hour)
	assert.Error(t, err)
	_, err = issue(cfg, "a1", models.RoleAdmin, 0)
	assert.Error(t, err)

	cfg.Env = config.EnvProduction
	_, err = issue(cfg, "a1", models.RoleAdmin, time.Hour)
	assert.Error(t, err)
}
