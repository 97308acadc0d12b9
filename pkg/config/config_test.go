package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 2, cfg.Admissions.MaxActivePerInstitution)
	assert.Equal(t, 5*time.Second, cfg.Admissions.StoreTimeout)
	assert.True(t, cfg.Admissions.EnforceWindow)
	assert.False(t, cfg.CatalogCache.Enabled)
	assert.Equal(t, 10*time.Minute, cfg.CatalogCache.TTL)
	assert.Equal(t, 1, cfg.Audit.Workers)
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("ADMISSIONS_MAX_ACTIVE_PER_INSTITUTION", 0)
	v.Set("ADMISSIONS_STORE_TIMEOUT", "not-a-duration")
	v.Set("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")

	cfg := fromViper(v)

	assert.Equal(t, 2, cfg.Admissions.MaxActivePerInstitution)
	assert.Equal(t, 5*time.Second, cfg.Admissions.StoreTimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}
