package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/gophauth/internal/timex"
)

// JSON keys, shared with the long flag names of the CLI.
const (
	KeyServer    = "server"
	KeyTimeout   = "timeout"
	KeyTokenFile = "token-file"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
type JsonConfig struct {
	ServerEndpointAddr *string         `json:"server"`
	Timeout            *timex.Duration `json:"timeout"`
	TokenFile          *string         `json:"token-file"`
}

// ApplyJSON overlays c with the values in the JSON file at path. Keys for
// which keep returns true are left alone, so explicit flags win.
func (c *Config) ApplyJSON(path string, keep func(key string) bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}

	if keep == nil {
		keep = func(string) bool { return false }
	}
	if jc.ServerEndpointAddr != nil && !keep(KeyServer) {
		c.ServerEndpointAddr = *jc.ServerEndpointAddr
	}
	if jc.Timeout != nil && !keep(KeyTimeout) {
		c.Timeout = jc.Timeout.Duration
	}
	if jc.TokenFile != nil && !keep(KeyTokenFile) {
		c.TokenFile = *jc.TokenFile
	}
	return nil
}
