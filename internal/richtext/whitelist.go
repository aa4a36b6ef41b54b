package richtext

import (
	"regexp"
	"slices"
	"strings"

	"golang.org/x/net/html"
)

// AllowedURLSchemes are the protocols CheckURL lets through.
var AllowedURLSchemes = []string{"http", "https", "ftp", "mailto", "tel"}

var (
	protocolPattern = regexp.MustCompile(`^[a-z0-9][-.a-z0-9]*:`)
	// browsers ignore these inside a scheme, e.g. "jav\tascript:"
	urlNoisePattern = regexp.MustCompile("[`\\x00-\\x20\\x7f-\\x{a0}\\s]+")
)

// CheckURL returns the url unchanged and true unless it names a protocol
// outside AllowedURLSchemes.
func CheckURL(url string) (string, bool) {
	unescaped := strings.ToLower(url)
	unescaped = strings.NewReplacer("&lt;", "<", "&gt;", ">", "&amp;", "&").Replace(unescaped)
	unescaped = urlNoisePattern.ReplaceAllString(unescaped, "")
	unescaped = strings.ReplaceAll(unescaped, "\ufffd", "")
	if protocolPattern.MatchString(unescaped) {
		protocol, _, _ := strings.Cut(unescaped, ":")
		if !slices.Contains(AllowedURLSchemes, protocol) {
			return "", false
		}
	}
	return url, true
}

// AttributeCheck decides whether an attribute value is kept and may rewrite it.
type AttributeCheck func(value string) (string, bool)

// KeepAttribute keeps any value.
func KeepAttribute(value string) (string, bool) {
	return value, true
}

// ElementRule rewrites the attributes of an allowed element in place.
type ElementRule func(n *html.Node)

// AttributeRule keeps the attributes listed in allowed, passing each value
// through its check, and drops every other attribute.
func AttributeRule(allowed map[string]AttributeCheck) ElementRule {
	return func(n *html.Node) {
		kept := n.Attr[:0]
		for _, attr := range n.Attr {
			check, ok := allowed[attr.Key]
			if !ok || attr.Namespace != "" {
				continue
			}
			value, ok := check(attr.Val)
			if !ok {
				continue
			}
			attr.Val = value
			kept = append(kept, attr)
		}
		n.Attr = kept
	}
}

// AllowWithoutAttributes strips all attributes.
func AllowWithoutAttributes(n *html.Node) {
	n.Attr = nil
}

// DefaultElementRules returns a fresh copy of the baseline tag allow-list.
func DefaultElementRules() map[string]ElementRule {
	rules := map[string]ElementRule{
		"a":   AttributeRule(map[string]AttributeCheck{"href": CheckURL}),
		"img": AttributeRule(map[string]AttributeCheck{"src": CheckURL, "width": KeepAttribute, "height": KeepAttribute, "alt": KeepAttribute}),
	}
	for _, tag := range []string{
		"[document]", "b", "br", "div", "em", "h1", "h2", "h3", "h4", "h5", "h6",
		"hr", "i", "li", "ol", "p", "strong", "sub", "sup", "ul",
	} {
		rules[tag] = AllowWithoutAttributes
	}
	return rules
}

// Whitelister reduces an HTML tree to the elements and attributes its rules
// allow. Elements without a rule are unwrapped, keeping their children.
type Whitelister struct {
	ElementRules map[string]ElementRule

	// tagHook runs before the generic element handling. It reports whether
	// it fully handled the node.
	tagHook func(n *html.Node) bool
}

func NewWhitelister() *Whitelister {
	return &Whitelister{ElementRules: DefaultElementRules()}
}

// Clean sanitizes an HTML fragment.
func (w *Whitelister) Clean(fragment string) (string, error) {
	root, err := parseFragment(fragment)
	if err != nil {
		return "", err
	}
	w.cleanChildren(root)
	return renderChildren(root)
}

// CleanNode sanitizes n and its subtree. n may be removed from its parent.
func (w *Whitelister) CleanNode(n *html.Node) {
	switch n.Type {
	case html.CommentNode, html.DoctypeNode:
		removeNode(n)
	case html.ElementNode:
		w.CleanTagNode(n)
	case html.DocumentNode:
		w.cleanChildren(n)
	}
}

// CleanTagNode sanitizes the children of an element and then applies the
// element's rule, unwrapping it when no rule exists.
func (w *Whitelister) CleanTagNode(n *html.Node) {
	if w.tagHook != nil && w.tagHook(n) {
		return
	}
	w.cleanTagNode(n)
}

func (w *Whitelister) cleanTagNode(n *html.Node) {
	w.cleanChildren(n)
	rule, ok := w.ElementRules[n.Data]
	if !ok {
		unwrapNode(n)
		return
	}
	rule(n)
}

func (w *Whitelister) cleanChildren(n *html.Node) {
	var children []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		children = append(children, c)
	}
	for _, c := range children {
		w.CleanNode(c)
	}
}
