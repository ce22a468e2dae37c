package transport

import (
	"net"
	"os"

	"github.com/ahriroot/watchmen/internal/apperr"
	"github.com/ahriroot/watchmen/internal/dispatch"
	"github.com/ahriroot/watchmen/internal/logging"
)

// NewUnix binds a Unix-domain socket at path, removing a stale socket
// file left behind by an unclean shutdown first.
func NewUnix(path string, disp *dispatch.Dispatcher, log *logging.Logger) (Adapter, error) {
	if err := removeStaleSocket(path); err != nil {
		return nil, apperr.NewIOFailure(err, "failed to remove stale socket "+path)
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, apperr.NewIOFailure(err, "failed to bind unix socket "+path)
	}
	return &streamAdapter{ln: ln, disp: disp, log: log, name: "unix"}, nil
}

func removeStaleSocket(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.Mode()&os.ModeSocket == 0 {
		return nil
	}
	// A stale socket file from a prior, uncleanly-terminated daemon: no
	// listener owns it, so it is always safe to unlink before rebinding.
	return os.Remove(path)
}
