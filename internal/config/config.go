// Package config loads the node-level tuning parameters of spec.md §6 from
// YAML, the same way the teacher's internal/core/npc/loader.go loads its own
// behavior-tree configuration with gopkg.in/yaml.v3.
package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rapidcluster/rapid/internal/core/membership"
	"github.com/rapidcluster/rapid/internal/core/statemachine"
	"github.com/rapidcluster/rapid/internal/service"
)

// Config is the on-disk shape of a node's tuning parameters. Every tuning
// field is optional; an absent field keeps service.DefaultConfig()'s value.
// Self is required: Validate rejects a missing self.host or self.port.
type Config struct {
	Self Endpoint `yaml:"self"`
	Seed *Endpoint `yaml:"seed,omitempty"`

	K int `yaml:"k,omitempty"`
	H int `yaml:"h,omitempty"`
	L int `yaml:"l,omitempty"`

	FailureDetectorInterval   time.Duration `yaml:"failureDetectorInterval,omitempty"`
	ExpectFirstHeartbeatAfter time.Duration `yaml:"expectFirstHeartbeatAfter,omitempty"`
	FDTheta                   float64       `yaml:"fdTheta,omitempty"`
	FDAlpha                   float64       `yaml:"fdAlpha,omitempty"`
	FDMaxSampleSize           int           `yaml:"fdMaxSampleSize,omitempty"`
	FDBootstrapLimit          int           `yaml:"fdBootstrapLimit,omitempty"`

	BatchingWindow time.Duration `yaml:"batchingWindow,omitempty"`

	PaxosBaseFallback time.Duration `yaml:"paxosBaseFallback,omitempty"`

	BroadcastTimeout time.Duration `yaml:"broadcastTimeout,omitempty"`

	JoinAttempts       int           `yaml:"joinAttempts,omitempty"`
	JoinDelay          time.Duration `yaml:"joinDelay,omitempty"`
	JoinRequestTimeout time.Duration `yaml:"joinRequestTimeout,omitempty"`

	ListenAddr string `yaml:"listenAddr,omitempty"`

	Metadata map[string]string `yaml:"metadata,omitempty"`
}

// Endpoint is the YAML-friendly rendering of membership.Endpoint.
type Endpoint struct {
	Host string `yaml:"host"`
	Port int32  `yaml:"port"`
}

func (e Endpoint) toMembership() membership.Endpoint {
	return membership.Endpoint{Hostname: e.Host, Port: e.Port}
}

// Load reads and parses a Config from path.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode parses a Config from r.
func Decode(r io.Reader) (Config, error) {
	var c Config
	if err := yaml.NewDecoder(r).Decode(&c); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	return c, nil
}

// Validate rejects a Config that cannot produce a usable node.
func (c Config) Validate() error {
	if c.Self.Host == "" {
		return fmt.Errorf("config: self.host is required")
	}
	if c.Self.Port == 0 {
		return fmt.Errorf("config: self.port is required")
	}
	return nil
}

// SelfEndpoint returns the parsed self endpoint.
func (c Config) SelfEndpoint() membership.Endpoint {
	return c.Self.toMembership()
}

// ListenAddress returns the address the node's wsrpc.Server should bind:
// the explicit listenAddr if set, otherwise self's own host:port.
func (c Config) ListenAddress() string {
	if c.ListenAddr != "" {
		return c.ListenAddr
	}
	return fmt.Sprintf("%s:%d", c.Self.Host, c.Self.Port)
}

// SeedEndpoint returns the parsed seed endpoint and whether one was
// configured; its absence means this node is meant to start as a seed.
func (c Config) SeedEndpoint() (membership.Endpoint, bool) {
	if c.Seed == nil {
		return membership.Endpoint{}, false
	}
	return c.Seed.toMembership(), true
}

// StartupMetadata converts the YAML string map into membership.Metadata.
func (c Config) StartupMetadata() membership.Metadata {
	if len(c.Metadata) == 0 {
		return nil
	}
	out := make(membership.Metadata, len(c.Metadata))
	for k, v := range c.Metadata {
		out[k] = []byte(v)
	}
	return out
}

// ServiceConfig overlays the parsed parameters onto service.DefaultConfig(),
// leaving every zero-valued field at its default.
func (c Config) ServiceConfig() service.Config {
	cfg := service.DefaultConfig()
	overlayActor(&cfg.Actor, c)

	if c.JoinAttempts != 0 {
		cfg.JoinAttempts = c.JoinAttempts
	}
	if c.JoinDelay != 0 {
		cfg.JoinDelay = c.JoinDelay
	}
	if c.JoinRequestTimeout != 0 {
		cfg.JoinRequestTimeout = c.JoinRequestTimeout
	}
	return cfg
}

func overlayActor(actor *statemachine.Config, c Config) {
	if c.K != 0 {
		actor.K = c.K
	}
	if c.H != 0 {
		actor.H = c.H
	}
	if c.L != 0 {
		actor.L = c.L
	}
	if c.FailureDetectorInterval != 0 {
		actor.FailureDetectorInterval = c.FailureDetectorInterval
	}
	if c.ExpectFirstHeartbeatAfter != 0 {
		actor.ExpectFirstHeartbeatAfter = c.ExpectFirstHeartbeatAfter
	}
	if c.FDTheta != 0 {
		actor.FDTheta = c.FDTheta
	}
	if c.FDAlpha != 0 {
		actor.FDAlpha = c.FDAlpha
	}
	if c.FDMaxSampleSize != 0 {
		actor.FDMaxSampleSize = c.FDMaxSampleSize
	}
	if c.FDBootstrapLimit != 0 {
		actor.FDBootstrapLimit = c.FDBootstrapLimit
	}
	if c.BatchingWindow != 0 {
		actor.BatchingWindow = c.BatchingWindow
	}
	if c.PaxosBaseFallback != 0 {
		actor.PaxosBaseFallback = c.PaxosBaseFallback
	}
	if c.BroadcastTimeout != 0 {
		actor.BroadcastTimeout = c.BroadcastTimeout
	}
}
