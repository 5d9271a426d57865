package transport

import (
	"context"
	"net"

	"github.com/pkg/errors"
)

// Listen opens a TCP listener on addr. Socket options are applied before
// bind, so a restarted server can reclaim its port straight away.
func Listen(ctx context.Context, addr string) (net.Listener, error) {
	lc := net.ListenConfig{Control: control}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to listen on %s", addr)
	}
	return ln, nil
}
