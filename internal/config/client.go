package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
)

const DefaultServer = "http://localhost:5000"

// DefaultSTUNServers match the browser client's ICE configuration.
var DefaultSTUNServers = []string{"stun:stun.l.google.com:19302", "stun:stun1.l.google.com:19302"}

type ClientConfig struct {
	// Server is the relay base URL, e.g. http://localhost:5000.
	Server      *url.URL
	STUNServers []string
}

// ClientOptions carries command-line overrides; zero values fall through.
type ClientOptions struct {
	Server string
	STUN   []string
}

func LoadClient(opts ClientOptions) (*ClientConfig, error) {
	server := opts.Server
	if server == "" {
		server = os.Getenv("HUDDLE_SERVER")
	}
	if server == "" {
		server = DefaultServer
	}

	u, err := url.Parse(strings.TrimRight(server, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid server URL %q: scheme must be http or https", server)
	}

	stun := opts.STUN
	if len(stun) == 0 {
		stun = splitList(os.Getenv("HUDDLE_STUN"))
	}
	if len(stun) == 0 {
		stun = append([]string(nil), DefaultSTUNServers...)
	}

	return &ClientConfig{Server: u, STUNServers: stun}, nil
}

// WebSocketURL is the relay endpoint derived from the server URL.
func (c *ClientConfig) WebSocketURL() string {
	u := *c.Server
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String()
}

// APIURL joins path onto the server URL.
func (c *ClientConfig) APIURL(path string) string {
	return c.Server.JoinPath(path).String()
}
