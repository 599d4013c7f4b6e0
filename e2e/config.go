package e2e

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// E2E_DEBUG_JSON allows dumping every received frame body as JSON
	DebugJSON bool `envconfig:"E2E_DEBUG_JSON" default:"false"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
	// E2E_FRAME_TIMEOUT bounds how long a scenario waits for one pushed frame
	FrameTimeout time.Duration `envconfig:"E2E_FRAME_TIMEOUT" default:"5s"`
	TokenSecret  string        `envconfig:"E2E_TOKEN_SECRET" default:"e2e_only_secret"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
