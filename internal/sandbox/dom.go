package sandbox

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// seedElement is an element with an id handed to the JS document
type seedElement struct {
	Tag   string            `json:"tag"`
	Attrs map[string]string `json:"attrs"`
	Text  string            `json:"text"`
	Head  bool              `json:"head"`
}

// scriptTag is one <script> in document order
type scriptTag struct {
	Src     string
	Type    string
	Attrs   map[string]string
	Content string
}

// Inline reports whether the tag carries executable inline code
func (s scriptTag) Inline() bool {
	if s.Src != "" {
		return false
	}
	switch strings.ToLower(s.Type) {
	case "", "text/javascript", "application/javascript", "module":
		return true
	default:
		return false
	}
}

// parsedDocument is the static view of a document before execution
type parsedDocument struct {
	Title    string
	Elements []seedElement
	Scripts  []scriptTag
}

func parseDocument(document string) (*parsedDocument, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(document))
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}

	parsed := &parsedDocument{Title: strings.TrimSpace(doc.Find("title").First().Text())}

	doc.Find("[id]").Each(func(_ int, sel *goquery.Selection) {
		parsed.Elements = append(parsed.Elements, seedElement{
			Tag:   goquery.NodeName(sel),
			Attrs: attributes(sel),
			Text:  sel.Text(),
			Head:  sel.ParentsFiltered("head").Length() > 0,
		})
	})

	doc.Find("script").Each(func(_ int, sel *goquery.Selection) {
		src, _ := sel.Attr("src")
		typ, _ := sel.Attr("type")
		parsed.Scripts = append(parsed.Scripts, scriptTag{
			Src:     src,
			Type:    typ,
			Attrs:   attributes(sel),
			Content: sel.Text(),
		})
	})

	return parsed, nil
}

func attributes(sel *goquery.Selection) map[string]string {
	attrs := make(map[string]string)
	if len(sel.Nodes) == 0 {
		return attrs
	}
	for _, a := range sel.Nodes[0].Attr {
		attrs[a.Key] = a.Val
	}
	return attrs
}
