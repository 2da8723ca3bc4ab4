// Package ssh opens authenticated SSH sessions with SFTP file transfer.
//
// A Client dials one host with public-key authentication (an identity file
// or the ssh-agent behind SSH_AUTH_SOCK) and verifies the host key through an
// explicit policy: known_hosts verification, trust on first use, or an
// insecure mode that must be chosen deliberately. A Session uploads files,
// lists remote directories and runs commands over the same connection.
package ssh
