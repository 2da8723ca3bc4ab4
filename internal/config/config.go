package config

import (
	"time"
)

// DefaultFile is the configuration file looked up when no path is given.
const DefaultFile = "acme-distributor.yaml"

// Defaults applied by ApplyDefaults.
const (
	DefaultCertDir       = "certs"
	DefaultRemoteDir     = "/etc/ssl/certs"
	DefaultUser          = "root"
	DefaultPort          = 22
	DefaultConcurrency   = 4
	DefaultHostKeyPolicy = "known-hosts"
	DefaultS3Region      = "us-east-1"
)

// Config is the full configuration of a distribution run.
type Config struct {
	// Store is a path to acme.json or an s3://bucket/key reference.
	Store    string `yaml:"store"`
	Domain   string `yaml:"domain"`
	Resolver string `yaml:"resolver"`

	// CertDir is the local directory the certificate is staged into and
	// whose files are distributed.
	CertDir   string `yaml:"certDir"`
	RemoteDir string `yaml:"remoteDir"`

	User           string        `yaml:"user"`
	IdentityFile   string        `yaml:"identityFile"`
	Port           int           `yaml:"port"`
	HostKeyPolicy  string        `yaml:"hostKeyPolicy"`
	KnownHostsFile string        `yaml:"knownHostsFile"`
	Concurrency    int           `yaml:"concurrency"`
	ConnectTimeout time.Duration `yaml:"connectTimeout"`
	ConnectRetries int           `yaml:"connectRetries"`

	PostCommand string `yaml:"postCommand"`
	Verify      bool   `yaml:"verify"`

	Hosts  []Host       `yaml:"hosts"`
	HCloud HCloudConfig `yaml:"hcloud"`
	S3     S3Config     `yaml:"s3"`
}

// HCloudConfig configures target discovery in Hetzner Cloud.
type HCloudConfig struct {
	LabelSelector string `yaml:"labelSelector"`

	// Network is "public" (default) or "private".
	Network string `yaml:"network"`
}

// S3Config configures downloading the store from object storage.
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	PathStyle bool   `yaml:"pathStyle"`
}

// ApplyDefaults fills unset fields and expands a leading "~" in local paths.
// Connection timeout and retries come from the environment (see
// LoadTimeouts) when unset.
func (c *Config) ApplyDefaults() {
	timeouts := LoadTimeouts()

	if c.CertDir == "" {
		c.CertDir = DefaultCertDir
	}
	if c.RemoteDir == "" {
		c.RemoteDir = DefaultRemoteDir
	}
	if c.User == "" {
		c.User = DefaultUser
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.HostKeyPolicy == "" {
		c.HostKeyPolicy = DefaultHostKeyPolicy
	}
	if c.Concurrency == 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = timeouts.Connect
	}
	if c.ConnectRetries == 0 {
		c.ConnectRetries = timeouts.ConnectRetries
	}
	if c.HCloud.Network == "" {
		c.HCloud.Network = "public"
	}
	if c.S3.Region == "" {
		c.S3.Region = DefaultS3Region
	}

	c.Store = ExpandHome(c.Store)
	c.CertDir = ExpandHome(c.CertDir)
	c.IdentityFile = ExpandHome(c.IdentityFile)
	c.KnownHostsFile = ExpandHome(c.KnownHostsFile)
}
