package config

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/chronicc/acme-distributor/internal/fleet"
)

// Host is one configured target. Zero fields inherit the run defaults.
type Host struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port,omitempty"`
	User         string `yaml:"user,omitempty"`
	IdentityFile string `yaml:"identityFile,omitempty"`
}

// UnmarshalYAML accepts either a "[user@]host[:port]" string or a mapping.
func (h *Host) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		parsed, err := ParseHost(node.Value)
		if err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		*h = parsed
		return nil
	}

	type plain Host
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	if p.Host == "" {
		return fmt.Errorf("line %d: host entry without host", node.Line)
	}
	*h = Host(p)
	return nil
}

// ParseHost parses "[user@]host[:port]". IPv6 addresses with a port must be
// bracketed ("[2001:db8::1]:2222"); a bare IPv6 address is accepted as is.
func ParseHost(s string) (Host, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Host{}, fmt.Errorf("empty host")
	}

	var h Host
	if i := strings.LastIndex(s, "@"); i >= 0 {
		h.User = s[:i]
		s = s[i+1:]
		if h.User == "" {
			return Host{}, fmt.Errorf("empty user in host %q", s)
		}
	}

	switch {
	case strings.HasPrefix(s, "["):
		host, port, err := net.SplitHostPort(s)
		if err != nil {
			if strings.HasSuffix(s, "]") {
				h.Host = strings.Trim(s, "[]")
				break
			}
			return Host{}, fmt.Errorf("invalid host %q: %w", s, err)
		}
		h.Host = host
		if h.Port, err = parsePort(port); err != nil {
			return Host{}, err
		}

	case strings.Count(s, ":") == 1:
		host, port, err := net.SplitHostPort(s)
		if err != nil {
			return Host{}, fmt.Errorf("invalid host %q: %w", s, err)
		}
		h.Host = host
		if h.Port, err = parsePort(port); err != nil {
			return Host{}, err
		}

	default:
		h.Host = s
	}

	if h.Host == "" {
		return Host{}, fmt.Errorf("empty host name")
	}
	return h, nil
}

func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil || port < 1 || port > 65535 {
		return 0, fmt.Errorf("invalid port %q", s)
	}
	return port, nil
}

// ReadHostsFile reads one host per line. Blank lines and lines starting
// with # are skipped.
func ReadHostsFile(path string) ([]Host, error) {
	// #nosec G304
	f, err := os.Open(ExpandHome(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open hosts file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var hosts []Host
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		h, err := ParseHost(line)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
		hosts = append(hosts, h)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read hosts file: %w", err)
	}
	return hosts, nil
}

// Target resolves h against the run defaults.
func (c *Config) Target(h Host) fleet.Target {
	t := fleet.Target{
		Host:         h.Host,
		Port:         h.Port,
		User:         h.User,
		IdentityFile: ExpandHome(h.IdentityFile),
	}
	if t.Port == 0 {
		t.Port = c.Port
	}
	if t.User == "" {
		t.User = c.User
	}
	if t.IdentityFile == "" {
		t.IdentityFile = ExpandHome(c.IdentityFile)
	}
	return t
}

// Targets resolves every host, dropping exact duplicates while keeping the
// first occurrence's position.
func (c *Config) Targets(hosts []Host) []fleet.Target {
	seen := make(map[fleet.Target]bool, len(hosts))
	targets := make([]fleet.Target, 0, len(hosts))
	for _, h := range hosts {
		t := c.Target(h)
		if seen[t] {
			continue
		}
		seen[t] = true
		targets = append(targets, t)
	}
	return targets
}
