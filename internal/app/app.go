// Package app turns a Config into the collaborators the pipeline runs
// against: the chunk builder, sinks, notifiers and the document source.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/FadeevMax/test-web-sop/internal/api"
	"github.com/FadeevMax/test-web-sop/internal/chunker"
	"github.com/FadeevMax/test-web-sop/internal/config"
	"github.com/FadeevMax/test-web-sop/internal/contentstore"
	"github.com/FadeevMax/test-web-sop/internal/docsource"
	"github.com/FadeevMax/test-web-sop/internal/notify"
	"github.com/FadeevMax/test-web-sop/internal/pipeline"
	"github.com/FadeevMax/test-web-sop/internal/sink"
	"github.com/FadeevMax/test-web-sop/internal/tagger"
)

// Runtime holds the wired collaborators. Optional parts are nil when not
// configured.
type Runtime struct {
	Tagger   *tagger.Tagger
	Builder  *chunker.Builder
	Sinks    []sink.Sink
	Notifier notify.Notifier
	Store    *contentstore.Client
	Drive    *docsource.Client

	closers []func()
}

// New wires everything the config enables. Connections that fail (Postgres
// ping, bad Redis URL) are returned as errors.
func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*Runtime, error) {
	rt := &Runtime{}

	tg, err := tagger.New(cfg.Topics)
	if err != nil {
		return nil, fmt.Errorf("topics: %w", err)
	}
	rt.Tagger = tg
	rt.Builder = chunker.New(cfg.Chunker(), tg, log)

	if cfg.OutputDir != "" {
		rt.Sinks = append(rt.Sinks, sink.NewFileSink(cfg.OutputDir, cfg.OutputFormat))
	}
	if cfg.GitHubEnabled() {
		rt.Store = contentstore.NewClient(cfg.GitHubAPIURL, cfg.GitHubRepo, cfg.GitHubBranch, cfg.GitHubToken)
		rt.closers = append(rt.closers, rt.Store.Close)
		rt.Sinks = append(rt.Sinks, sink.NewGitHubSink(rt.Store, cfg.GitHubPathPrefix, cfg.OutputFormat))
	}
	if cfg.S3Bucket != "" {
		s3Sink, err := sink.NewS3Sink(ctx, sink.S3Config{
			Bucket:       cfg.S3Bucket,
			Prefix:       cfg.S3Prefix,
			Region:       cfg.S3Region,
			Endpoint:     cfg.S3Endpoint,
			UsePathStyle: cfg.S3PathStyle,
		}, cfg.OutputFormat)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("s3 sink: %w", err)
		}
		rt.Sinks = append(rt.Sinks, s3Sink)
	}
	if cfg.DatabaseURL != "" {
		pg, err := sink.NewPostgresSink(ctx, cfg.DatabaseURL)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("postgres sink: %w", err)
		}
		rt.closers = append(rt.closers, pg.Close)
		rt.Sinks = append(rt.Sinks, pg)
	}

	var notifiers []notify.Notifier
	if cfg.WebhookURL != "" {
		wh, err := notify.NewWebhook(notify.WebhookConfig{URL: cfg.WebhookURL, Retries: notify.DefaultRetries})
		if err != nil {
			rt.Close()
			return nil, err
		}
		notifiers = append(notifiers, wh)
	}
	if cfg.RedisURL != "" {
		rn, err := notify.NewRedis(notify.RedisConfig{URL: cfg.RedisURL, Channel: cfg.RedisChannel})
		if err != nil {
			rt.Close()
			return nil, err
		}
		notifiers = append(notifiers, rn)
	}
	if len(notifiers) > 0 {
		multi := notify.NewMulti(log, notifiers...)
		rt.Notifier = multi
		rt.closers = append(rt.closers, func() {
			if err := multi.Close(); err != nil {
				log.Warn("closing notifiers", "error", err)
			}
		})
	}

	if cfg.GoogleAccessToken != "" {
		rt.Drive = docsource.NewClient(cfg.DriveAPIURL, cfg.GoogleAccessToken)
		rt.closers = append(rt.closers, rt.Drive.Close)
	}

	names := make([]string, 0, len(rt.Sinks))
	for _, s := range rt.Sinks {
		names = append(names, s.Name())
	}
	log.Info("runtime wired", "sinks", names, "notifiers", len(notifiers), "drive", rt.Drive != nil)
	return rt, nil
}

// Deps returns the pipeline collaborators.
func (rt *Runtime) Deps() pipeline.Deps {
	d := pipeline.Deps{
		Builder:  rt.Builder,
		Sinks:    rt.Sinks,
		Notifier: rt.Notifier,
	}
	if rt.Drive != nil {
		d.Fetcher = rt.Drive
	}
	return d
}

// Lister returns the content store as a document lister, or nil when no
// repository is configured.
func (rt *Runtime) Lister() api.DocumentLister {
	if rt.Store == nil {
		return nil
	}
	return rt.Store
}

// Close releases clients in reverse order of creation.
func (rt *Runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}
