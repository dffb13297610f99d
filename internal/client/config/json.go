package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/authgate/internal/flagx"
	"github.com/dmitrijs2005/authgate/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Absent fields
// keep their current values.
type JsonConfig struct {
	ServerURL string          `json:"server_url"`
	Login     string          `json:"login"`
	Timeout   *timex.Duration `json:"timeout"`
}

// parseJson overlays cfg with the file named by -c/-config. Without the flag
// nothing happens. Read and unmarshal errors panic.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.ServerURL != "" {
		cfg.ServerURL = jc.ServerURL
	}
	if jc.Login != "" {
		cfg.Login = jc.Login
	}
	if jc.Timeout != nil {
		cfg.Timeout = time.Duration(jc.Timeout.Duration)
	}
}
