package sink

import (
	"context"
	"fmt"
	"path"
)

// FilePutter commits a single file. *contentstore.Client implements it.
type FilePutter interface {
	PutFile(ctx context.Context, path string, content []byte, message string) error
}

// GitHubSink commits artifacts to a repository under Prefix/<docID>/.
type GitHubSink struct {
	store  FilePutter
	prefix string
	format string
}

func NewGitHubSink(store FilePutter, prefix, format string) *GitHubSink {
	return &GitHubSink{store: store, prefix: prefix, format: format}
}

func (s *GitHubSink) Name() string { return "github" }

func (s *GitHubSink) Write(ctx context.Context, a *Artifacts) error {
	data, err := EncodeChunks(a.Chunks, s.format)
	if err != nil {
		return err
	}
	root := path.Join(s.prefix, a.DocID)

	// Images first, so the chunks file never references a missing binary.
	for _, img := range a.Images {
		msg := fmt.Sprintf("Update %s for %s", img.Path, a.Title)
		if err := s.store.PutFile(ctx, path.Join(root, img.Path), img.Data, msg); err != nil {
			return err
		}
	}
	msg := fmt.Sprintf("Update semantic chunks for %s (%d chunks)", a.Title, len(a.Chunks))
	return s.store.PutFile(ctx, path.Join(root, a.ChunksFile), data, msg)
}
