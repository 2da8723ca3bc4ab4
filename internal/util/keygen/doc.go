// Package keygen generates key pairs for SSH authentication.
//
// Private keys are produced in OpenSSH PEM format and public keys in
// authorized_keys format, ready to be written to an identity file or a
// known_hosts line.
package keygen
