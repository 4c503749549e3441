package listener

import (
	"net"
	"net/http"

	"golang.org/x/net/netutil"
)

// Serve serves h on a listener configured by config. Useful for easily
// swapping tcp / unix servers.
func Serve(config Config, h http.Handler) error {
	config = config.applyDefaults()
	l, err := net.Listen(config.Net, config.Addr)
	if err != nil {
		return err
	}
	if config.MaxConnections > 0 {
		l = netutil.LimitListener(l, config.MaxConnections)
	}
	return http.Serve(l, h)
}
