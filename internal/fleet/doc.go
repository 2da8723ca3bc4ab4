// Package fleet pushes a directory of certificate files to many hosts.
//
// Every target gets its own session: connect, upload each regular file of
// the certificate directory to the remote directory, optionally verify the
// remote listing and run a post-upload command, then close. Hosts run on a
// bounded worker pool and a failure on one host never stops the others.
// Distribute returns exactly one Result per target, in input order.
//
// Per-host failures are reported as *HostError values wrapping one of
// ErrConnect, ErrAuth, ErrTransfer or ErrCommand:
//
//	results, err := d.Distribute(ctx, targets, "/var/lib/acme-distributor/certs")
//	if err != nil {
//	    return err // nothing was sent
//	}
//	for _, r := range results {
//	    var hostErr *fleet.HostError
//	    if errors.As(r.Err, &hostErr) && errors.Is(hostErr, fleet.ErrAuth) {
//	        // fix credentials for hostErr.Host
//	    }
//	}
package fleet
