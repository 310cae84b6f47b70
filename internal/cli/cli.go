// Package cli holds the sopchunk command-line commands.
package cli

import (
	"github.com/FadeevMax/test-web-sop/internal/config"
	"github.com/urfave/cli/v2"
)

// NewApp returns the sopchunk CLI application.
func NewApp(version string) *cli.App {
	return &cli.App{
		Name:    "sopchunk",
		Usage:   "Build retrieval chunks from SOP documents",
		Version: version,
		Commands: []*cli.Command{
			ChunkCommand(),
			SyncCommand(),
		},
	}
}

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "YAML config file (environment variables override it)",
		EnvVars: []string{"CONFIG_FILE"},
	}
}

// loadConfig reads --config when given, otherwise the environment.
func loadConfig(c *cli.Context) (config.Config, error) {
	if path := c.String("config"); path != "" {
		return config.LoadFile(path)
	}
	return config.Load(), nil
}
