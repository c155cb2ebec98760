package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapidcluster/rapid/internal/core/membership"
)

const sample = `
self:
  host: localhost
  port: 1235
seed:
  host: localhost
  port: 1234
batchingWindow: 50ms
joinAttempts: 3
metadata:
  zone: us-east-1
`

func TestDecodeAndOverlay(t *testing.T) {
	c, err := Decode(strings.NewReader(sample))
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Equal(t, membership.Endpoint{Hostname: "localhost", Port: 1235}, c.SelfEndpoint())
	seed, ok := c.SeedEndpoint()
	require.True(t, ok)
	assert.Equal(t, membership.Endpoint{Hostname: "localhost", Port: 1234}, seed)

	svcCfg := c.ServiceConfig()
	assert.Equal(t, 50*time.Millisecond, svcCfg.Actor.BatchingWindow)
	assert.Equal(t, 3, svcCfg.JoinAttempts)
	// Untouched fields keep the default.
	assert.Equal(t, membership.DefaultK, svcCfg.Actor.K)

	assert.Equal(t, membership.Metadata{"zone": []byte("us-east-1")}, c.StartupMetadata())
}

func TestValidateRejectsMissingSelf(t *testing.T) {
	c, err := Decode(strings.NewReader("seed:\n  host: x\n  port: 1\n"))
	require.NoError(t, err)
	assert.Error(t, c.Validate())
}

func TestSeedEndpointAbsentWhenNoSeedConfigured(t *testing.T) {
	c, err := Decode(strings.NewReader("self:\n  host: localhost\n  port: 1234\n"))
	require.NoError(t, err)
	_, ok := c.SeedEndpoint()
	assert.False(t, ok)
}
