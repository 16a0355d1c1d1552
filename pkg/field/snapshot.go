package field

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// ParseCandidates extracts the password inputs from an HTML document in
// document order. Selectors prefer the id, then the name, and fall back to
// the Playwright nth engine over all password inputs.
func ParseCandidates(r io.Reader) ([]Candidate, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var (
		candidates []Candidate
		index      int
	)
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && strings.EqualFold(n.Data, "input") {
			if strings.EqualFold(attr(n, "type"), "password") {
				if c, ok := candidateFrom(n, index); ok {
					candidates = append(candidates, c)
				}
				index++
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return candidates, nil
}

func candidateFrom(n *html.Node, index int) (Candidate, bool) {
	c := Candidate{
		Type:         strings.ToLower(attr(n, "type")),
		Name:         attr(n, "name"),
		ID:           attr(n, "id"),
		Autocomplete: attr(n, "autocomplete"),
	}
	if c.Type != "password" || hasAttr(n, "disabled") || hasAttr(n, "readonly") {
		return Candidate{}, false
	}

	switch {
	case c.ID != "" && isPlainIdent(c.ID):
		c.Selector = "#" + c.ID
	case c.Name != "":
		c.Selector = fmt.Sprintf(`input[type="password"][name=%q]`, c.Name)
	default:
		c.Selector = fmt.Sprintf(`input[type="password"] >> nth=%d`, index)
	}
	return c, true
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return true
		}
	}
	return false
}

// isPlainIdent reports whether id can be used in a CSS #id selector without
// escaping.
func isPlainIdent(id string) bool {
	for i, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_', r == '-':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
