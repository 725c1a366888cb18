// Package config holds settings for the authctl command-line client.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config holds runtime settings for authctl.
type Config struct {
	ServerEndpointAddr string
	Timeout            time.Duration
	// TokenFile is where login stores the access token.
	TokenFile string
}

// LoadDefaults populates c with defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.Timeout = 10 * time.Second
	c.TokenFile = defaultTokenFile()
}

func defaultTokenFile() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(".gophauth", "token")
	}
	return filepath.Join(home, ".gophauth", "token")
}
