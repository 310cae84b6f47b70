package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/FadeevMax/test-web-sop/internal/chunker"
	"github.com/FadeevMax/test-web-sop/internal/logging"
	"github.com/FadeevMax/test-web-sop/internal/metadata"
	"github.com/FadeevMax/test-web-sop/internal/parser"
	"github.com/FadeevMax/test-web-sop/internal/sink"
	"github.com/FadeevMax/test-web-sop/internal/tagger"
	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
)

// ChunkCommand chunks a local file and writes the artifacts to a directory.
func ChunkCommand() *cli.Command {
	return &cli.Command{
		Name:  "chunk",
		Usage: "Extract a local document, build chunks and write them to disk",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Usage: "document to chunk", Required: true},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output directory", Value: "out"},
			&cli.StringFlag{Name: "format", Usage: "chunks file format: json or msgpack"},
			&cli.StringFlag{Name: "doc-id", Usage: "document key (default: derived from the title)"},
			&cli.IntFlag{Name: "target", Usage: "target chunk size in characters"},
			&cli.IntFlag{Name: "max", Usage: "maximum chunk size in characters"},
			&cli.IntFlag{Name: "min", Usage: "minimum chunk size in characters"},
			&cli.IntFlag{Name: "overlap", Usage: "overlap carried between chunks"},
			configFlag(),
		},
		Action: chunkAction,
	}
}

func chunkAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.IsSet("format") {
		cfg.OutputFormat = c.String("format")
	}
	if c.IsSet("target") {
		cfg.TargetChunkSize = c.Int("target")
	}
	if c.IsSet("max") {
		cfg.MaxChunkSize = c.Int("max")
	}
	if c.IsSet("min") {
		cfg.MinChunkSize = c.Int("min")
	}
	if c.IsSet("overlap") {
		cfg.OverlapSize = c.Int("overlap")
	}
	if err := cfg.Validate(); err != nil {
		return cli.Exit(fmt.Sprintf("invalid configuration: %v", err), 2)
	}
	log := logging.NewWithWriter(c.App.ErrWriter, cfg.LogLevel, cfg.LogFormat)

	input := c.String("input")
	p, err := parser.ForFile(input)
	if err != nil {
		return err
	}
	if pp, ok := p.(*parser.PDFParser); ok {
		pp.FallbackPdftotext = cfg.PDFFallbackPdftotext
	}
	f, err := os.Open(input)
	if err != nil {
		return err
	}
	defer f.Close()
	doc, err := p.Parse(f, filepath.Base(input))
	if err != nil {
		return fmt.Errorf("extract %s: %w", input, err)
	}

	tg, err := tagger.New(cfg.Topics)
	if err != nil {
		return err
	}
	chunks, err := chunker.New(cfg.Chunker(), tg, log).Build(doc.Elements)
	if err != nil {
		return fmt.Errorf("build chunks: %w", err)
	}
	if err := metadata.CheckAll(chunks); err != nil {
		return fmt.Errorf("placeholder check: %w", err)
	}

	docID := c.String("doc-id")
	if docID == "" {
		docID = sink.DocKey(doc.Title)
	}
	chunksFile := sink.ChunksFileName(cfg.ChunksFile, cfg.OutputFormat)
	art, missing := sink.Resolve(docID, doc, chunks, chunksFile)
	for _, ref := range missing {
		log.Warn("image binary missing", "image_ref", ref)
	}

	out := c.String("out")
	if err := sink.NewFileSink(out, cfg.OutputFormat).Write(c.Context, art); err != nil {
		return err
	}

	printSummary(c, doc.Title, filepath.Join(out, docID, chunksFile), len(doc.Elements), art, len(missing))
	return nil
}

func printSummary(c *cli.Context, title, path string, elements int, art *sink.Artifacts, missing int) {
	bold := color.New(color.Bold).SprintFunc()
	green := color.New(color.FgGreen, color.Bold).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	w := c.App.Writer
	attached, oversized, tokens := 0, 0, 0
	for _, ch := range art.Chunks {
		attached += len(ch.Images)
		if ch.Oversized {
			oversized++
		}
		tokens += metadata.EstimateTokens(ch.Text)
	}

	fmt.Fprintf(w, "%s %s\n", green("✓"), bold(title))
	fmt.Fprintf(w, "  elements:  %d\n", elements)
	fmt.Fprintf(w, "  chunks:    %d (~%d tokens)\n", len(art.Chunks), tokens)
	fmt.Fprintf(w, "  images:    %d attached, %d written\n", attached, len(art.Images))
	if missing > 0 {
		fmt.Fprintf(w, "  %s\n", yellow(fmt.Sprintf("%d image(s) without binary", missing)))
	}
	if oversized > 0 {
		fmt.Fprintf(w, "  %s\n", yellow(fmt.Sprintf("%d oversized chunk(s)", oversized)))
	}
	fmt.Fprintf(w, "  output:    %s\n", path)
}
