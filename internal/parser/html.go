package parser

import (
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/FadeevMax/test-web-sop/internal/document"
	"golang.org/x/net/html"
)

// HTMLParser handles HTML files. h1 opens a tab; img elements become image
// elements labeled by alt text or an enclosing figure's figcaption.
// Base64 data: URIs are decoded into the document's media.
type HTMLParser struct{}

func (p *HTMLParser) Parse(r io.Reader, filename string) (*document.Document, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	e := newEmitter(titleFromFilename(filename))
	if title := findTitle(doc); title != "" {
		e.doc.Title = title
	}

	inline := 0
	emitImage := func(n *html.Node, label string) {
		src := attr(n, "src")
		if label == "" {
			label = attr(n, "alt")
		}
		ref, data := src, []byte(nil)
		if strings.HasPrefix(src, "data:") {
			inline++
			ref, data = decodeDataURI(src, inline)
		}
		e.image(ref, label, data)
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if level := headingLevel(n.Data); level > 0 {
				heading := textContent(n)
				if level == 1 {
					e.setTab(heading)
				}
				e.text(heading, headingStyle(level))
				return
			}

			switch n.Data {
			case "script", "style", "nav", "footer", "header":
				return
			case "img":
				emitImage(n, "")
				return
			case "figure":
				caption := ""
				if fc := findElement(n, "figcaption"); fc != nil {
					caption = textContent(fc)
				}
				for _, img := range findAll(n, "img") {
					emitImage(img, caption)
				}
				return
			case "p", "li", "td", "blockquote":
				e.text(textContent(n), n.Data)
				for _, img := range findAll(n, "img") {
					emitImage(img, "")
				}
				return
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	if body := findElement(doc, "body"); body != nil {
		walk(body)
	} else {
		walk(doc)
	}

	return e.document(), nil
}

// decodeDataURI turns a base64 data URI into a synthetic media reference.
// Undecodable URIs keep a reference with no binary.
func decodeDataURI(uri string, n int) (string, []byte) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	ext := ".bin"
	if mime, _, _ := strings.Cut(meta, ";"); strings.HasPrefix(mime, "image/") {
		ext = "." + strings.TrimPrefix(mime, "image/")
		if ext == ".jpeg" {
			ext = ".jpg"
		}
	}
	ref := fmt.Sprintf("inline/image%d%s", n, ext)
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return ref, nil
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return ref, nil
	}
	return ref, data
}

func headingLevel(tag string) int {
	if len(tag) == 2 && tag[0] == 'h' && tag[1] >= '1' && tag[1] <= '6' {
		return int(tag[1] - '0')
	}
	return 0
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.Join(strings.Fields(buf.String()), " ")
}

func findTitle(n *html.Node) string {
	if t := findElement(n, "title"); t != nil {
		return textContent(t)
	}
	return ""
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func findAll(n *html.Node, tag string) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == tag {
			out = append(out, c)
			continue
		}
		out = append(out, findAll(c, tag)...)
	}
	return out
}
