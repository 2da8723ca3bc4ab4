// Package config defines the run configuration of acme-distributor.
//
// A [Config] is read from an optional YAML file (acme-distributor.yaml in the
// working directory by default), overridden by command-line flags, completed
// with defaults and checked by [Config.Validate]. Connection timeouts and
// retries can also be tuned through ACMEDIST_* environment variables, see
// [LoadTimeouts].
//
// Hosts are written as "[user@]host[:port]" strings or as objects:
//
//	hosts:
//	  - web1.example.test
//	  - deploy@web2.example.test:2222
//	  - host: 2001:db8::10
//	    user: root
//	    identityFile: ~/.ssh/edge_ed25519
package config
