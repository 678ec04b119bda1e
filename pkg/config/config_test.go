package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEnvList_TrimsAndDropsEmpty(t *testing.T) {
	t.Setenv("FRONTEND_ORIGINS", " https://app.example.com ,, http://localhost:5173 ")
	assert.Equal(t, []string{"https://app.example.com", "http://localhost:5173"}, envList("FRONTEND_ORIGINS", ""))
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("PORT", "9090")
	t.Setenv("AGENCY_TIMEZONE", "Not/AZone")
	t.Setenv("STAGE_CACHE_TTL", "garbage")

	cfg := Load()
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, time.UTC, cfg.AgencyLocation)
	assert.Equal(t, 5*time.Minute, cfg.StageCacheTTL)
	assert.Equal(t, "caseflow", cfg.Auth.Audience)
}

func TestLoad_AgencyTimezone(t *testing.T) {
	t.Setenv("AGENCY_TIMEZONE", "America/Los_Angeles")
	t.Setenv("STAGE_CACHE_TTL", "30s")

	cfg := Load()
	assert.Equal(t, "America/Los_Angeles", cfg.AgencyLocation.String())
	assert.Equal(t, 30*time.Second, cfg.StageCacheTTL)
}
