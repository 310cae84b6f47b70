package cli

import (
	"encoding/json"
	"fmt"

	"github.com/FadeevMax/test-web-sop/internal/app"
	"github.com/FadeevMax/test-web-sop/internal/logging"
	"github.com/FadeevMax/test-web-sop/internal/pipeline"
	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
)

// SyncCommand runs one Google Doc export through the configured pipeline.
func SyncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Export a Google Doc, chunk it and publish to the configured sinks",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "doc-id", Usage: "Google Drive file id (default: GOOGLE_DOC_ID)"},
			&cli.StringFlag{Name: "key", Usage: "document key for published artifacts (default: derived from the title)"},
			configFlag(),
		},
		Action: syncAction,
	}
}

func syncAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.IsSet("doc-id") {
		cfg.GoogleDocID = c.String("doc-id")
	}
	if cfg.GoogleDocID == "" {
		return cli.Exit("a Drive file id is required (--doc-id or GOOGLE_DOC_ID)", 2)
	}
	if cfg.GoogleAccessToken == "" {
		return cli.Exit("GOOGLE_ACCESS_TOKEN is required", 2)
	}
	if err := cfg.Validate(); err != nil {
		return cli.Exit(fmt.Sprintf("invalid configuration: %v", err), 2)
	}
	log := logging.NewWithWriter(c.App.ErrWriter, cfg.LogLevel, cfg.LogFormat)

	rt, err := app.New(c.Context, cfg, log)
	if err != nil {
		return err
	}
	defer rt.Close()

	orch := pipeline.NewOrchestrator(cfg, rt.Deps(), log)
	snap := orch.Run(c.Context, pipeline.NewSyncJob(c.String("key"), cfg.GoogleDocID))

	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return err
	}

	switch snap.Status {
	case pipeline.StatusCompleted:
		fmt.Fprintln(c.App.Writer, color.GreenString("sync completed"))
		return nil
	case pipeline.StatusPartial:
		fmt.Fprintln(c.App.Writer, color.YellowString("sync partially published"))
		return cli.Exit("", 3)
	default:
		return cli.Exit(color.RedString("sync failed in %s", snap.Phase), 1)
	}
}
