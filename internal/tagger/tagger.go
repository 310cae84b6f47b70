// Package tagger tracks the sticky jurisdiction/order-type/topic context of an
// element stream.
//
// Tag is a pure function of (element, prior state): a detected value persists
// until a later element overrides it, and a tab change resets everything before
// the element's own matches are applied. When several codes of one category
// match the same element, the last match in left-to-right order wins.
package tagger

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/FadeevMax/test-web-sop/internal/document"
)

type rule[T ~string] struct {
	code T
	re   *regexp.Regexp
}

// Tagger holds the keyword tables. It is immutable after New and safe for
// concurrent use.
type Tagger struct {
	states   []rule[document.Jurisdiction]
	sections []rule[document.OrderType]
	topics   []rule[document.Topic]
}

// State is the running fold value: the context plus the tab of the last
// element seen.
type State struct {
	Context document.ContextState
	Tab     string
	started bool
}

// Labels are the codes matched in a single element, in scan order.
type Labels struct {
	States   []document.Jurisdiction
	Sections []document.OrderType
	Topics   []document.Topic
}

// Empty reports whether nothing matched.
func (l Labels) Empty() bool {
	return len(l.States) == 0 && len(l.Sections) == 0 && len(l.Topics) == 0
}

// Codes are case-sensitive so that "oh" or "ma" in prose never match; full
// state names are case-insensitive.
var stateTable = []struct {
	code document.Jurisdiction
	expr string
}{
	{document.StateOH, `\bOH\b|(?i:\bohio\b)`},
	{document.StateMD, `\bMD\b|(?i:\bmaryland\b)`},
	{document.StateNJ, `\bNJ\b|(?i:\bnew\s+jersey\b)`},
	{document.StateIL, `\bIL\b|(?i:\billinois\b)`},
	{document.StateNY, `\bNY\b|(?i:\bnew\s+york\b)`},
	{document.StateNV, `\bNV\b|(?i:\bnevada\b)`},
	{document.StateMA, `\bMA\b|(?i:\bmassachusetts\b)`},
}

var sectionTable = []struct {
	code document.OrderType
	expr string
}{
	{document.OrderRise, `\b(?:RISE|Rise)\b`},
	{document.OrderRegular, `\bREGULAR\b|(?i:\bregular\s+orders?\b)`},
	{document.OrderGeneral, `\bGENERAL\b|(?i:\bgeneral\s+(?:rules|guidelines|info(?:rmation)?)\b)`},
}

var topicTable = []struct {
	code document.Topic
	expr string
}{
	{document.TopicPricing, `(?i)\b(?:pric(?:e|es|ing)|discounts?)\b`},
	{document.TopicBatteries, `(?i)\bbatter(?:y|ies)\b`},
	{document.TopicBatchSub, `(?i)\bbatch[\s_-]+sub(?:stitution)?s?\b`},
	{document.TopicDeliveryDate, `(?i)\bdelivery\s+dates?\b`},
	{document.TopicOrderLimit, `(?i)\border\s+limits?\b|(?i:\b(?:max(?:imum)?|minimum)\s+order\b)`},
}

// New builds a Tagger from the built-in tables plus extra topic keywords
// (topic code -> keywords). Extra codes are upper-cased.
func New(extraTopics map[string][]string) (*Tagger, error) {
	t := &Tagger{}
	for _, e := range stateTable {
		t.states = append(t.states, rule[document.Jurisdiction]{code: e.code, re: regexp.MustCompile(e.expr)})
	}
	for _, e := range sectionTable {
		t.sections = append(t.sections, rule[document.OrderType]{code: e.code, re: regexp.MustCompile(e.expr)})
	}
	for _, e := range topicTable {
		t.topics = append(t.topics, rule[document.Topic]{code: e.code, re: regexp.MustCompile(e.expr)})
	}

	codes := make([]string, 0, len(extraTopics))
	for code := range extraTopics {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		re, err := keywordPattern(extraTopics[code])
		if err != nil {
			return nil, fmt.Errorf("topic %q: %w", code, err)
		}
		name := strings.ToUpper(strings.TrimSpace(code))
		if name == "" {
			return nil, fmt.Errorf("topic code is empty")
		}
		t.topics = append(t.topics, rule[document.Topic]{code: document.Topic(name), re: re})
	}
	return t, nil
}

// Default returns a Tagger with only the built-in tables.
func Default() *Tagger {
	t, err := New(nil)
	if err != nil {
		panic(err)
	}
	return t
}

func keywordPattern(keywords []string) (*regexp.Regexp, error) {
	var alts []string
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		alts = append(alts, strings.Join(strings.Fields(regexp.QuoteMeta(kw)), `\s+`))
	}
	if len(alts) == 0 {
		return nil, fmt.Errorf("no keywords")
	}
	return regexp.Compile(`(?i)\b(?:` + strings.Join(alts, "|") + `)\b`)
}

// Tag applies one element to the prior state.
func (t *Tagger) Tag(el document.Element, prior State) (State, Labels) {
	next := prior
	if prior.started && el.TabID != prior.Tab {
		next.Context = document.ContextState{}
	}
	next.Tab = el.TabID
	next.started = true

	var labels Labels
	if el.Kind != document.KindText || strings.TrimSpace(el.Text) == "" {
		return next, labels
	}

	text := norm.NFKC.String(el.Text)
	labels.States = scan(t.states, text)
	labels.Sections = scan(t.sections, text)
	labels.Topics = scan(t.topics, text)

	if n := len(labels.States); n > 0 {
		next.Context.State = labels.States[n-1]
	}
	if n := len(labels.Sections); n > 0 {
		next.Context.Section = labels.Sections[n-1]
	}
	if n := len(labels.Topics); n > 0 {
		next.Context.Topic = labels.Topics[n-1]
	}
	return next, labels
}

// Fold runs Tag over the whole stream and returns the state after each element.
func (t *Tagger) Fold(elems []document.Element) []State {
	out := make([]State, len(elems))
	var st State
	for i, el := range elems {
		st, _ = t.Tag(el, st)
		out[i] = st
	}
	return out
}

type hit[T ~string] struct {
	start, end int
	code       T
}

// scan returns every match of every rule ordered by position. On equal start
// the longer match sorts later, so it wins.
func scan[T ~string](rules []rule[T], text string) []T {
	var hits []hit[T]
	for _, r := range rules {
		for _, loc := range r.re.FindAllStringIndex(text, -1) {
			hits = append(hits, hit[T]{start: loc[0], end: loc[1], code: r.code})
		}
	}
	if len(hits) == 0 {
		return nil
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].start != hits[j].start {
			return hits[i].start < hits[j].start
		}
		return hits[i].end < hits[j].end
	})
	codes := make([]T, len(hits))
	for i, h := range hits {
		codes[i] = h.code
	}
	return codes
}
