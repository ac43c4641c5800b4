package crawl

import (
	"bytes"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// parsePage extracts the title, the visible text, and the outgoing links of
// an HTML page. Links are resolved against the page URL and stripped of
// fragments; a malformed page yields whatever parsed before the error.
func parsePage(pageURL string, body []byte) (title, text string, links []string) {
	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return "", "", nil
	}
	base, _ := url.Parse(pageURL)

	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "noscript":
				return
			case "title":
				if title == "" && n.FirstChild != nil {
					title = strings.TrimSpace(n.FirstChild.Data)
				}
				return
			case "a":
				if link := resolveLink(base, n); link != "" {
					links = append(links, link)
				}
			case "p", "div", "br", "li", "h1", "h2", "h3", "h4", "h5", "h6", "tr":
				sb.WriteByte('\n')
			}
		case html.TextNode:
			sb.WriteString(n.Data)
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(root)

	return title, normalizeText(sb.String()), links
}

func resolveLink(base *url.URL, n *html.Node) string {
	for _, attr := range n.Attr {
		if attr.Key != "href" {
			continue
		}
		ref, err := url.Parse(strings.TrimSpace(attr.Val))
		if err != nil {
			return ""
		}
		if base != nil {
			ref = base.ResolveReference(ref)
		}
		if ref.Scheme != "http" && ref.Scheme != "https" {
			return ""
		}
		ref.Fragment = ""
		return ref.String()
	}
	return ""
}

// normalizeText collapses the whitespace runs HTML layout produces while
// keeping line breaks, so paragraph boundaries survive for segmentation.
func normalizeText(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := true
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}
