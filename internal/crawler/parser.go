package crawler

import (
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// sourceAttributes are the attributes whose values may point at a media
// resource. Players use several conventions, so all of them are collected.
var sourceAttributes = []string{"src", "href", "data-src", "data-file", "file", "data-url"}

// Parser extracts media candidates from HTML content.
//
// Parsing goes through golang.org/x/net/html so that the malformed markup
// common on embed hosts still yields a usable tree.
type Parser struct {
	// baseURL is the URL of the page being parsed, used for resolving relative URLs.
	baseURL *url.URL
}

// ParseResult contains the information extracted from one embed page.
type ParseResult struct {
	// Title is the page title from <title> tag.
	Title string

	// Sources contains resolved attribute values from every element that
	// may reference media (src, href, data-src, ...).
	Sources []string

	// Frames contains resolved <iframe> and <frame> targets.
	Frames []string

	// Scripts contains the text of inline <script> elements. Players often
	// configure their manifest URL there.
	Scripts []string
}

// NewParser creates a new HTML parser with the given base URL.
// The base URL is used to resolve relative links.
func NewParser(baseURL string) (*Parser, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	return &Parser{baseURL: u}, nil
}

// Parse parses HTML content and extracts all media candidates.
func (p *Parser) Parse(content io.Reader) (*ParseResult, error) {
	doc, err := html.Parse(content)
	if err != nil {
		return nil, err
	}

	result := &ParseResult{
		Sources: make([]string, 0),
		Frames:  make([]string, 0),
		Scripts: make([]string, 0),
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			p.processElement(n, result)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(doc)

	return result, nil
}

// processElement handles HTML element nodes.
func (p *Parser) processElement(n *html.Node, result *ParseResult) {
	switch n.Data {
	case "title":
		if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
			result.Title = strings.TrimSpace(n.FirstChild.Data)
		}

	case "iframe", "frame":
		if src := p.resolveURL(getAttr(n, "src")); src != "" {
			result.Frames = append(result.Frames, src)
		}
		return

	case "script":
		// Inline script bodies are raw text children.
		if getAttr(n, "src") == "" {
			var b strings.Builder
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.TextNode {
					b.WriteString(c.Data)
				}
			}
			if text := strings.TrimSpace(b.String()); text != "" {
				result.Scripts = append(result.Scripts, text)
			}
		}
	}

	for _, key := range sourceAttributes {
		if resolved := p.resolveURL(getAttr(n, key)); resolved != "" {
			result.Sources = append(result.Sources, resolved)
		}
	}
}

// resolveURL resolves a relative URL against the base URL.
// Non-navigable references (javascript:, data:, fragments) resolve to "".
func (p *Parser) resolveURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}

	lower := strings.ToLower(href)
	if strings.HasPrefix(lower, "javascript:") ||
		strings.HasPrefix(lower, "mailto:") ||
		strings.HasPrefix(lower, "data:") ||
		strings.HasPrefix(lower, "blob:") ||
		strings.HasPrefix(href, "#") {
		return ""
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}

	return p.baseURL.ResolveReference(u).String()
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
