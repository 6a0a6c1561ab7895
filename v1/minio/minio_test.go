package minio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeyPrefix(t *testing.T) {
	m := &MinioClient{cfg: Config{}}
	assert.Equal(t, "a.json", m.key("a.json"))

	m.cfg.Prefix = "quarantine/"
	assert.Equal(t, "quarantine/a.json", m.key("a.json"))

	m.cfg.Prefix = "quarantine"
	assert.Equal(t, "quarantine/auth/a.json", m.key("auth/a.json"))
}

func TestConnectRequiresEndpoint(t *testing.T) {
	_, err := NewClient(Config{})
	assert.ErrorIs(t, err, ErrEmptyEndpoint)
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.applyDefaults()
	assert.Equal(t, defaultRequestTimeout, cfg.RequestTimeout)

	cfg = Config{RequestTimeout: time.Second}
	cfg.applyDefaults()
	assert.Equal(t, time.Second, cfg.RequestTimeout)
}
