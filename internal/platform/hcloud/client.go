package hcloud

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/chronicc/acme-distributor/internal/util/retry"
)

// Network selects which address of a server is used as the target.
type Network string

const (
	// NetworkPublic uses the public IPv4 address, falling back to IPv6.
	NetworkPublic Network = "public"

	// NetworkPrivate uses the first private network address.
	NetworkPrivate Network = "private"
)

// Server is a discovered server.
type Server struct {
	ID         int64
	Name       string
	Status     string
	Labels     map[string]string
	PublicIPv4 string
	PublicIPv6 string
	PrivateIPs []string
}

// Address returns the address to connect to on the given network, or an
// empty string if the server has none.
func (s Server) Address(network Network) string {
	if network == NetworkPrivate {
		if len(s.PrivateIPs) > 0 {
			return s.PrivateIPs[0]
		}
		return ""
	}
	if s.PublicIPv4 != "" {
		return s.PublicIPv4
	}
	return s.PublicIPv6
}

// Discoverer lists servers by label selector.
type Discoverer interface {
	DiscoverServers(ctx context.Context, labelSelector string) ([]Server, error)
}

// RealClient implements Discoverer using the Hetzner Cloud API.
type RealClient struct {
	client            *hcloud.Client
	retryMaxAttempts  int
	retryInitialDelay time.Duration
}

// ClientOption configures a RealClient.
type ClientOption func(*RealClient)

// WithHCloudClient sets a custom hcloud client (useful for testing).
func WithHCloudClient(hc *hcloud.Client) ClientOption {
	return func(c *RealClient) {
		c.client = hc
	}
}

// WithRetry sets the retry budget for list calls.
func WithRetry(maxAttempts int, initialDelay time.Duration) ClientOption {
	return func(c *RealClient) {
		c.retryMaxAttempts = maxAttempts
		c.retryInitialDelay = initialDelay
	}
}

// NewRealClient creates a new RealClient with optional configuration.
func NewRealClient(token string, opts ...ClientOption) *RealClient {
	c := &RealClient{
		client:            hcloud.NewClient(hcloud.WithToken(token), hcloud.WithApplication("acme-distributor", "")),
		retryMaxAttempts:  5,
		retryInitialDelay: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DiscoverServers returns all servers matching the label selector, in the
// order the API returns them.
func (c *RealClient) DiscoverServers(ctx context.Context, labelSelector string) ([]Server, error) {
	if labelSelector == "" {
		return nil, fmt.Errorf("label selector cannot be empty")
	}

	var servers []*hcloud.Server
	err := retry.WithExponentialBackoff(ctx, func() error {
		var listErr error
		servers, listErr = c.client.Server.AllWithOpts(ctx, hcloud.ServerListOpts{
			ListOpts: hcloud.ListOpts{LabelSelector: labelSelector},
		})
		if listErr != nil && !isRetryable(listErr) {
			return retry.Fatal(listErr)
		}
		return listErr
	},
		retry.WithMaxRetries(c.retryMaxAttempts),
		retry.WithInitialDelay(c.retryInitialDelay),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list servers matching %q: %w", labelSelector, err)
	}

	result := make([]Server, 0, len(servers))
	for _, s := range servers {
		result = append(result, fromAPI(s))
	}
	return result, nil
}

func fromAPI(s *hcloud.Server) Server {
	server := Server{
		ID:     s.ID,
		Name:   s.Name,
		Status: string(s.Status),
		Labels: s.Labels,
	}
	if ip := s.PublicNet.IPv4.IP; ip != nil && !ip.IsUnspecified() {
		server.PublicIPv4 = ip.String()
	}
	if ip := s.PublicNet.IPv6.IP; ip != nil && !ip.IsUnspecified() {
		server.PublicIPv6 = hostAddress(ip)
	}
	for _, pn := range s.PrivateNet {
		if pn.IP != nil {
			server.PrivateIPs = append(server.PrivateIPs, pn.IP.String())
		}
	}
	return server
}

// hostAddress turns the routed IPv6 network address Hetzner reports
// (2001:db8:1:2::) into the host address the server answers on (::1).
func hostAddress(network net.IP) string {
	ip := make(net.IP, len(network))
	copy(ip, network)
	if ip.To4() == nil && len(ip) == net.IPv6len && ip[net.IPv6len-1] == 0 {
		ip[net.IPv6len-1] = 1
	}
	return ip.String()
}
