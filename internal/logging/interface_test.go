package logging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

const validToken = "2bfbea1e-10c3-4419-bdad-7e6435882e1f"

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig(validToken)

	assert.NoError(t, config.Validate())
	assert.Equal(t, 32768, config.QueueSize)
	assert.Equal(t, PolicyBlock, config.QueuePolicy)
	assert.Equal(t, 100*time.Millisecond, config.MinDelay)
	assert.Equal(t, 10*time.Second, config.MaxDelay)
	assert.Equal(t, "api.logentries.com:80", config.Address())

	config.UseTLS = true
	assert.Equal(t, "api.logentries.com:443", config.Address())
}

func TestCheckToken(t *testing.T) {
	assert.NoError(t, CheckToken(validToken))
	assert.NoError(t, CheckToken("2BFBEA1E-10C3-4419-BDAD-7E6435882E1F"))

	for _, token := range []string{
		"",
		"ABCD1234",
		"{2bfbea1e-10c3-4419-bdad-7e6435882e1f}",
		"urn:uuid:2bfbea1e-10c3-4419-bdad-7e6435882e1f",
		"2bfbea1e-10c3-4419-bdad-7e6435882exx",
	} {
		assert.ErrorIs(t, CheckToken(token), ErrInvalidToken, "token %q", token)
	}
}

func TestConfig_Validate(t *testing.T) {
	cases := map[string]func(c *Config){
		"empty host":       func(c *Config) { c.Host = "" },
		"port zero":        func(c *Config) { c.Port = 0 },
		"tls port too big": func(c *Config) { c.TLSPort = 70000 },
		"queue size":       func(c *Config) { c.QueueSize = 0 },
		"policy":           func(c *Config) { c.QueuePolicy = "maybe" },
		"min delay":        func(c *Config) { c.MinDelay = 0 },
		"max below min":    func(c *Config) { c.MaxDelay = time.Millisecond },
		"negative flush":   func(c *Config) { c.FlushTimeout = -time.Second },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			config := DefaultConfig(validToken)
			mutate(&config)
			assert.ErrorIs(t, config.Validate(), ErrInvalidConfig)
		})
	}

	bad := DefaultConfig("nope")
	assert.ErrorIs(t, bad.Validate(), ErrInvalidToken)
}
