package chunker

import (
	"fmt"
	"log/slog"
	"path"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/FadeevMax/test-web-sop/internal/document"
	"github.com/FadeevMax/test-web-sop/internal/metadata"
	"github.com/FadeevMax/test-web-sop/internal/tagger"
)

// Config controls chunk sizing. All sizes are in characters.
type Config struct {
	TargetChunkSize int    // Advisory; sizes buffers only. Boundaries follow Max and Min.
	MaxChunkSize    int    // Ceiling; exceeded only by atomic elements and trailing image markers.
	OverlapSize     int    // Trailing text carried into the next chunk of the same tab.
	MinChunkSize    int    // Flushes are deferred below this size.
	ImageDir        string // Directory prefix for image attachment paths.
}

// DefaultConfig returns the standard sizes.
func DefaultConfig() Config {
	return Config{
		TargetChunkSize: 800,
		MaxChunkSize:    1200,
		OverlapSize:     150,
		MinChunkSize:    300,
		ImageDir:        "images",
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.TargetChunkSize <= 0 {
		c.TargetChunkSize = d.TargetChunkSize
	}
	if c.MaxChunkSize <= 0 {
		c.MaxChunkSize = d.MaxChunkSize
	}
	if c.OverlapSize < 0 {
		c.OverlapSize = 0
	} else if c.OverlapSize == 0 {
		c.OverlapSize = d.OverlapSize
	}
	if c.MinChunkSize <= 0 {
		c.MinChunkSize = d.MinChunkSize
	}
	if c.ImageDir == "" {
		c.ImageDir = d.ImageDir
	}
	return c
}

// Validate checks the relations between the sizes after defaults are applied.
func (c Config) Validate() error {
	c = c.withDefaults()
	if c.MinChunkSize > c.TargetChunkSize {
		return fmt.Errorf("min chunk size %d exceeds target %d", c.MinChunkSize, c.TargetChunkSize)
	}
	if c.TargetChunkSize > c.MaxChunkSize {
		return fmt.Errorf("target chunk size %d exceeds max %d", c.TargetChunkSize, c.MaxChunkSize)
	}
	if c.OverlapSize >= c.MinChunkSize {
		return fmt.Errorf("overlap %d must be smaller than min chunk size %d", c.OverlapSize, c.MinChunkSize)
	}
	return nil
}

// ValidationError reports a caller contract violation in the element stream.
type ValidationError struct {
	Index  int
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("element %d: %s", e.Index, e.Reason)
}

// Validate checks the element stream before any chunk is built.
func Validate(elems []document.Element) error {
	for i, el := range elems {
		switch el.Kind {
		case document.KindText:
		case document.KindImage:
			if el.ImageRef == "" {
				return &ValidationError{Index: i, Reason: "image element without image_ref"}
			}
		default:
			return &ValidationError{Index: i, Reason: "unknown element kind"}
		}
		if i > 0 && el.SequenceIndex <= elems[i-1].SequenceIndex {
			return &ValidationError{Index: i, Reason: fmt.Sprintf("sequence_index %d not greater than %d", el.SequenceIndex, elems[i-1].SequenceIndex)}
		}
	}
	return nil
}

// Builder turns a tagged element stream into chunks. A Builder holds no
// per-document state, so one instance can serve concurrent Build calls.
type Builder struct {
	cfg    Config
	tagger *tagger.Tagger
	log    *slog.Logger
}

// New creates a Builder. A nil tagger uses the built-in keyword tables and a
// nil logger discards.
func New(cfg Config, tg *tagger.Tagger, log *slog.Logger) *Builder {
	if tg == nil {
		tg = tagger.Default()
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Builder{cfg: cfg.withDefaults(), tagger: tg, log: log}
}

// Config returns the effective configuration.
func (b *Builder) Config() Config {
	return b.cfg
}

// Build is a convenience wrapper around New(cfg, nil, nil).Build(elems).
func Build(elems []document.Element, cfg Config) ([]document.Chunk, error) {
	return New(cfg, nil, nil).Build(elems)
}

// Build validates the stream and produces the ordered chunk list. It is all
// or nothing: either every chunk is returned or an error.
func (b *Builder) Build(elems []document.Element) ([]document.Chunk, error) {
	if err := Validate(elems); err != nil {
		return nil, err
	}
	if len(elems) == 0 {
		return []document.Chunk{}, nil
	}

	totalChars := 0
	for _, el := range elems {
		totalChars += len(el.Text)
	}
	r := &run{
		cfg:    b.cfg,
		log:    b.log,
		chunks: make([]document.Chunk, 0, totalChars/b.cfg.TargetChunkSize+1),
	}

	for _, el := range elems {
		st, _ := b.tagger.Tag(el, r.ctx)
		r.ctx = st

		if r.cur.open && el.TabID != r.cur.tab {
			r.flushTab()
		}
		if !r.cur.open {
			r.cur = current{open: true, tab: el.TabID}
		}

		switch el.Kind {
		case document.KindText:
			r.addText(el, st.Context)
		case document.KindImage:
			r.addImage(el, st.Context)
		}
	}
	r.finish()

	return r.chunks, nil
}

// run is the accumulator for one Build call.
type run struct {
	cfg    Config
	log    *slog.Logger
	chunks []document.Chunk
	cur    current
	ctx    tagger.State
	images int // last assigned image number
}

type pendingImage struct {
	idx           int
	afterSentence bool
}

// current is the chunk being accumulated.
type current struct {
	open      bool
	tab       string
	text      strings.Builder
	length    int
	hasText   bool
	lastText  string
	lastCtx   document.ContextState
	refs      []document.ElementRef
	images    []document.ImageAttachment
	pending   []pendingImage
	inRun     bool // previous element was an attached unlabeled image
	oversized bool
}

func (c *current) write(s string) {
	if c.length > 0 {
		c.text.WriteByte('\n')
		c.length++
	}
	c.text.WriteString(s)
	c.length += utf8.RuneCountInString(s)
}

// resolvePending fixes the position of images that started a run. When text
// follows them inside the chunk they sit mid-chunk; otherwise they trail it.
func (c *current) resolvePending(trailing bool) {
	for _, p := range c.pending {
		pos := document.PositionAfterSentence
		if !trailing && !p.afterSentence {
			pos = document.PositionMiddleParagraph
		}
		c.images[p.idx].Position = pos
	}
	c.pending = c.pending[:0]
}

func (r *run) addText(el document.Element, ctx document.ContextState) {
	t := metadata.EscapeMarkers(strings.TrimSpace(el.Text))
	if t == "" {
		return
	}
	n := utf8.RuneCountInString(t)

	sep := 0
	if r.cur.length > 0 {
		sep = 1
	}
	if r.cur.length+sep+n > r.cfg.MaxChunkSize && r.cur.length >= r.cfg.MinChunkSize {
		r.flushWithOverlap()
	}

	r.cur.resolvePending(false)
	r.cur.write(t)
	r.cur.hasText = true
	r.cur.lastText = t
	r.cur.lastCtx = ctx
	r.cur.inRun = false
	r.cur.refs = append(r.cur.refs, document.ElementRef{
		SequenceIndex: el.SequenceIndex,
		Kind:          document.KindText,
		Context:       ctx,
	})

	if n > r.cfg.MaxChunkSize {
		r.log.Warn("oversized element", "sequence_index", el.SequenceIndex, "length", n, "max", r.cfg.MaxChunkSize)
	}
	if r.cur.length > r.cfg.MaxChunkSize {
		r.cur.oversized = true
	}
}

func (r *run) addImage(el document.Element, ctx document.ContextState) {
	if !r.cur.hasText {
		r.log.Debug("image excluded", "sequence_index", el.SequenceIndex, "position", document.PositionBeforeChunk)
		return
	}

	r.images++
	num := r.images
	filename := fmt.Sprintf("image_%d%s", num, strings.ToLower(path.Ext(el.ImageRef)))
	att := document.ImageAttachment{
		Ref:         el.ImageRef,
		Filename:    filename,
		Path:        path.Join(r.cfg.ImageDir, filename),
		Number:      num,
		ContextText: r.cur.lastText,
		State:       ctx.State,
		Section:     ctx.Section,
		Topic:       ctx.Topic,
	}
	if el.Label != "" {
		label := el.Label
		att.Label = &label
	}

	idx := len(r.cur.images)
	if el.Label == "" && r.cur.inRun {
		att.Position = document.PositionConsecutiveAfter
	} else {
		r.cur.pending = append(r.cur.pending, pendingImage{idx: idx, afterSentence: endsSentence(r.cur.lastText)})
	}
	r.cur.inRun = el.Label == ""

	r.cur.images = append(r.cur.images, att)
	r.cur.write(metadata.Marker(num))
	r.cur.refs = append(r.cur.refs, document.ElementRef{
		SequenceIndex: el.SequenceIndex,
		Kind:          document.KindImage,
		Context:       ctx,
	})

	if r.cur.length > r.cfg.MaxChunkSize && !r.cur.oversized {
		r.cur.oversized = true
		r.log.Warn("image markers exceed max chunk size", "sequence_index", el.SequenceIndex, "length", r.cur.length, "max", r.cfg.MaxChunkSize)
	}
}

// emit finalizes the current chunk and returns its text.
func (r *run) emit() string {
	r.cur.resolvePending(true)

	images := r.cur.images
	if images == nil {
		images = []document.ImageAttachment{}
	}
	c := document.Chunk{
		ID:        len(r.chunks),
		Text:      r.cur.text.String(),
		Images:    images,
		TabID:     r.cur.tab,
		Elements:  r.cur.refs,
		Oversized: r.cur.oversized,
	}
	c.Metadata = metadata.Aggregate(&c)
	r.chunks = append(r.chunks, c)
	return c.Text
}

// flushWithOverlap emits the current chunk and seeds the next one in the same
// tab with the overlap suffix.
func (r *run) flushWithOverlap() {
	prev := r.emit()
	tab := r.cur.tab
	r.cur = current{open: true, tab: tab}
	if seed := overlapSuffix(prev, r.cfg.OverlapSize); seed != "" {
		r.cur.text.WriteString(seed)
		r.cur.length = utf8.RuneCountInString(seed)
	}
}

// flushTab closes the chunk at a tab boundary. No overlap crosses tabs, and a
// chunk that never received text is dropped.
func (r *run) flushTab() {
	if r.cur.hasText {
		r.emit()
	}
	r.cur = current{}
}

// finish flushes the last chunk. A chunk without text is only emitted when
// the stream produced nothing else.
func (r *run) finish() {
	if r.cur.hasText || (r.cur.open && len(r.chunks) == 0) {
		r.emit()
	}
	r.cur = current{}
}

// overlapSuffix returns the longest suffix of text that is at most size
// characters, starts on a word boundary and contains no image marker.
func overlapSuffix(text string, size int) string {
	if size <= 0 || text == "" {
		return ""
	}
	if end := metadata.LastMarkerEnd(text); end >= 0 {
		text = text[end:]
	}

	total := utf8.RuneCountInString(text)
	off := 0
	if total > size {
		skip := total - size
		for i := range text {
			if skip == 0 {
				off = i
				break
			}
			skip--
		}
		prev, _ := utf8.DecodeLastRuneInString(text[:off])
		if !unicode.IsSpace(prev) {
			j := strings.IndexFunc(text[off:], unicode.IsSpace)
			if j < 0 {
				return ""
			}
			off += j
		}
	}
	return strings.TrimLeftFunc(text[off:], unicode.IsSpace)
}

// endsSentence reports whether text ends with sentence punctuation, ignoring
// trailing closing quotes and brackets.
func endsSentence(text string) bool {
	t := strings.TrimRightFunc(text, func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune(`"')]”’»`, r)
	})
	if t == "" {
		return false
	}
	last, _ := utf8.DecodeLastRuneInString(t)
	return last == '.' || last == '!' || last == '?' || last == '…'
}
