package transport

import (
	"fmt"
	"net"

	"github.com/ahriroot/watchmen/internal/apperr"
	"github.com/ahriroot/watchmen/internal/dispatch"
	"github.com/ahriroot/watchmen/internal/logging"
)

// NewTCP binds a TCP listener on host:port.
func NewTCP(host string, port int, disp *dispatch.Dispatcher, log *logging.Logger) (Adapter, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, apperr.NewIOFailure(err, "failed to bind tcp "+addr)
	}
	return &streamAdapter{ln: ln, disp: disp, log: log, name: "tcp"}, nil
}
