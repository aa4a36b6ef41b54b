package richtext

import (
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// AttributeExtractor reads the storage attributes of an editor element.
type AttributeExtractor func(n *html.Node) map[string]string

func dataAttributes(names ...string) AttributeExtractor {
	return func(n *html.Node) map[string]string {
		attrs := make(map[string]string, len(names))
		for _, name := range names {
			if v, ok := getAttr(n, "data-"+name); ok {
				attrs[name] = v
			}
		}
		return attrs
	}
}

// DefaultEmbedHandlers maps embed types to their storage attributes.
func DefaultEmbedHandlers() map[string]AttributeExtractor {
	return map[string]AttributeExtractor{
		"image": dataAttributes("id", "format", "alt"),
		"media": dataAttributes("url"),
	}
}

// DefaultLinkHandlers maps link types to their storage attributes.
func DefaultLinkHandlers() map[string]AttributeExtractor {
	return map[string]AttributeExtractor{
		"page":     dataAttributes("id"),
		"document": dataAttributes("id"),
	}
}

// Converter turns HTML produced by the rich text editor into storage HTML.
// Editor embeds become <embed embedtype=".." .../> and editor links become
// <a linktype=".." ...>.
type Converter struct {
	whitelister   *Whitelister
	embedHandlers map[string]AttributeExtractor
	linkHandlers  map[string]AttributeExtractor
}

func NewEditorHTMLConverter() *Converter {
	c := &Converter{
		embedHandlers: DefaultEmbedHandlers(),
		linkHandlers:  DefaultLinkHandlers(),
	}
	c.whitelister = NewWhitelister()
	c.whitelister.tagHook = c.cleanEditorTag
	return c
}

// RegisterEmbedHandler adds or replaces the handler for an embed type.
func (c *Converter) RegisterEmbedHandler(embedType string, handler AttributeExtractor) {
	c.embedHandlers[embedType] = handler
}

// RegisterLinkHandler adds or replaces the handler for a link type.
func (c *Converter) RegisterLinkHandler(linkType string, handler AttributeExtractor) {
	c.linkHandlers[linkType] = handler
}

func (c *Converter) Whitelister() *Whitelister {
	return c.whitelister
}

// Clean converts an editor HTML fragment to storage HTML.
func (c *Converter) Clean(fragment string) (string, error) {
	return c.whitelister.Clean(fragment)
}

// CleanTagNode converts a single element and its subtree in place.
func (c *Converter) CleanTagNode(n *html.Node) {
	c.whitelister.CleanTagNode(n)
}

func (c *Converter) cleanEditorTag(n *html.Node) bool {
	if embedType, ok := getAttr(n, "data-embedtype"); ok {
		handler, ok := c.embedHandlers[embedType]
		if !ok {
			removeNode(n)
			return true
		}
		attrs := handler(n)
		attrs["embedtype"] = embedType
		replaceNode(n, &html.Node{
			Type:     html.ElementNode,
			Data:     "embed",
			DataAtom: atom.Embed,
			Attr:     sortedAttrs(attrs),
		})
		return true
	}

	if n.DataAtom == atom.A {
		if linkType, ok := getAttr(n, "data-linktype"); ok {
			c.whitelister.cleanChildren(n)
			handler, ok := c.linkHandlers[linkType]
			if !ok {
				unwrapNode(n)
				return true
			}
			attrs := handler(n)
			attrs["linktype"] = linkType
			n.Attr = sortedAttrs(attrs)
			return true
		}
	}

	if n.DataAtom == atom.Div {
		n.Data = "p"
		n.DataAtom = atom.P
	}
	return false
}
