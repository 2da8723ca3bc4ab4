// Package hcloud discovers distribution targets in Hetzner Cloud.
//
// Servers are listed with a label selector (for example "role=edge,env=prod")
// and turned into addresses the fleet distributor can connect to. The public
// IPv4 address is preferred, falling back to IPv6 and, when requested, to the
// first private network address.
//
// Listing is retried with exponential backoff on rate limiting and locked
// resources. Authentication and invalid selector errors fail immediately.
//
//	client := hcloud.NewRealClient(os.Getenv("HCLOUD_TOKEN"))
//	servers, err := client.DiscoverServers(ctx, "role=edge")
package hcloud
