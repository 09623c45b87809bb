/*
Copyright © 2024 paul <paul@denknerd.org>
*/
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// shownConfig is what `config show` prints.  It never holds the token itself.
type shownConfig struct {
	ConfigFile   string   `yaml:"config-file"`
	ConfigLoaded bool     `yaml:"config-loaded"`
	BaseURL      string   `yaml:"base-url"`
	Email        string   `yaml:"email"`
	Token        string   `yaml:"token"`
	AuthTokenCmd []string `yaml:"auth-token-cmd,flow"`
	MaxRetries   int      `yaml:"max-retries"`
	Timeout      string   `yaml:"timeout"`
	LogFormat    string   `yaml:"log-format"`
	Debug        bool     `yaml:"debug"`
	WithVCR      bool     `yaml:"with-vcr"`

	// Space and ParentID are push settings, shown as the config file or environment set them.
	Space    string `yaml:"space,omitempty"`
	ParentID string `yaml:"parent-id,omitempty"`
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Output current config",
		Long: `
Is something not working for you?  Have a look whether your config is as you expect.  Flags,
environment and config file are merged the way every other command merges them; the API token
is never printed.
`,
		Args: configArgs(cobra.ExactArgs(0)),
		RunE: func(cmd *cobra.Command, args []string) error {
			shown := shownConfig{
				ConfigFile:   ConfigActual,
				ConfigLoaded: ConfigLoaded,
				BaseURL:      BaseURL,
				Email:        Email,
				Token:        tokenSource(),
				AuthTokenCmd: AuthTokenCmd,
				MaxRetries:   MaxRetries,
				Timeout:      Timeout.String(),
				LogFormat:    LogFormat,
				Debug:        Debug,
				WithVCR:      WithVCR,
				Space:        firstNonEmpty(os.Getenv(spaceEnv), ParsedConfig.Space),
				ParentID:     firstNonEmpty(os.Getenv(parentEnv), ParsedConfig.ParentID),
			}

			raw, err := yaml.Marshal(shown)
			if err != nil {
				return fmt.Errorf("config: couldn't encode config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(raw)
			return err
		},
	}
}

// tokenSource says where the token would come from, without resolving it.
func tokenSource() string {
	switch {
	case strings.TrimSpace(os.Getenv(tokenEnv)) != "":
		return "(set via " + tokenEnv + ")"
	case len(AuthTokenCmd) > 0:
		return "(from auth-token-cmd)"
	default:
		return "(not set)"
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
