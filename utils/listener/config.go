package listener

import "fmt"

// Config defines listener configuration.
type Config struct {
	// Net is the network to listen on, e.g. unix, tcp, etc.
	Net string `yaml:"net"`

	// Addr is the address to listen on.
	Addr string `yaml:"addr"`

	// MaxConnections caps the number of simultaneously accepted
	// connections. Zero means no cap.
	MaxConnections int `yaml:"max_connections"`
}

func (c Config) applyDefaults() Config {
	if c.Net == "" {
		c.Net = "tcp"
	}
	return c
}

func (c Config) String() string {
	return fmt.Sprintf("%s:%s", c.Net, c.Addr)
}
