package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadMapConfig_Defaults(t *testing.T) {
	mc := LoadMapConfig()
	assert.Equal(t, time.Minute, mc.RefreshInterval)
	assert.Equal(t, 1200, mc.ViewBoxWidth)
	assert.Equal(t, 800, mc.ViewBoxHeight)
	assert.Equal(t, "/map?selected=", mc.SelectURL)
}

func TestLoadMapConfig_Overrides(t *testing.T) {
	t.Setenv("MAP_REFRESH_INTERVAL", "15s")
	t.Setenv("MAP_VIEWBOX_WIDTH", "1600")
	mc := LoadMapConfig()
	assert.Equal(t, 15*time.Second, mc.RefreshInterval)
	assert.Equal(t, 1600, mc.ViewBoxWidth)

	t.Setenv("MAP_REFRESH_INTERVAL", "-5s")
	assert.Equal(t, time.Minute, LoadMapConfig().RefreshInterval)
}

func TestLoadQueueConfig_URLFallback(t *testing.T) {
	t.Setenv("RABBITMQ_URL", "")
	t.Setenv("AMQP_URL", "amqp://u:p@broker:5672/")
	qc := LoadQueueConfig()
	assert.Equal(t, "amqp://u:p@broker:5672/", qc.URL)
	assert.Equal(t, "visitor.counts", qc.VisitorQueue)
	assert.True(t, qc.Enabled)
}

func TestLoadRateLimitConfig_Clamps(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")
	rc := LoadRateLimitConfig()
	assert.Equal(t, 1, rc.Capacity)
	assert.Equal(t, 10*time.Second, rc.TTL)
}

func TestLoadCacheConfig(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get, head")
	cc := LoadCacheConfig()
	assert.True(t, cc.Methods["GET"])
	assert.True(t, cc.Methods["HEAD"])
	assert.False(t, cc.Methods["POST"])
	assert.Equal(t, 15*time.Second, cc.TTL)
}

func TestEnvBool(t *testing.T) {
	t.Setenv("X_FLAG", "off")
	assert.False(t, envBool("X_FLAG", true))
	t.Setenv("X_FLAG", "garbage")
	assert.True(t, envBool("X_FLAG", true))
}
