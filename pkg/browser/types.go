package browser

import (
	"time"

	"github.com/ivikasavnish/go-flowrec/pkg/config"
)

// Config represents browser launch options
type Config struct {
	Headless bool `json:"headless"`
	// Stealth opens pages through go-rod/stealth.
	Stealth bool `json:"stealth"`
	// RemoteURL is a DevTools websocket of a running browser. When set no
	// browser is launched.
	RemoteURL string        `json:"remote_url,omitempty"`
	Bin       string        `json:"bin,omitempty"`
	Timeout   time.Duration `json:"timeout,omitempty"`
}

// FromConfig maps the application browser settings.
func FromConfig(c config.BrowserConfig) Config {
	return Config{
		Headless:  c.Headless,
		Stealth:   c.Stealth,
		RemoteURL: c.RemoteURL,
		Bin:       c.Bin,
		Timeout:   c.Timeout,
	}
}
