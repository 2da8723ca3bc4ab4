package config

import (
	"errors"
	"fmt"

	"github.com/chronicc/acme-distributor/internal/platform/ssh"
)

// Validate checks the configuration after defaults have been applied and
// returns every problem found.
func (c *Config) Validate() error {
	var errs []error

	if c.Store == "" {
		errs = append(errs, fmt.Errorf("store is required"))
	}
	if c.Domain == "" {
		errs = append(errs, fmt.Errorf("domain is required"))
	}
	if c.CertDir == "" {
		errs = append(errs, fmt.Errorf("certDir is required"))
	}
	if c.RemoteDir == "" {
		errs = append(errs, fmt.Errorf("remoteDir is required"))
	}
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency))
	}
	if c.ConnectTimeout < 0 {
		errs = append(errs, fmt.Errorf("connectTimeout cannot be negative"))
	}
	if c.ConnectRetries < 0 {
		errs = append(errs, fmt.Errorf("connectRetries cannot be negative"))
	}
	if _, err := ssh.ParseHostKeyPolicy(c.HostKeyPolicy); err != nil {
		errs = append(errs, err)
	}
	if c.HCloud.Network != "" && c.HCloud.Network != "public" && c.HCloud.Network != "private" {
		errs = append(errs, fmt.Errorf("hcloud.network must be public or private, got %q", c.HCloud.Network))
	}
	for i, h := range c.Hosts {
		if h.Host == "" {
			errs = append(errs, fmt.Errorf("hosts[%d]: host is required", i))
		}
		if h.Port < 0 || h.Port > 65535 {
			errs = append(errs, fmt.Errorf("hosts[%d]: port %d out of range", i, h.Port))
		}
	}

	return errors.Join(errs...)
}
