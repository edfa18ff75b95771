package types

import (
	"encoding/json"
	"fmt"
	"strings"

	"gorm.io/datatypes"
)

// Pure JSON contract for manuscript content. Not a DB model.
//
// A document is a recursive tagged-node tree. Every read boundary parses
// strictly: unknown node types are rejected so downstream formatting and
// suggestion excerpting never see shapes they can't handle.

const (
	NodeDoc        = "doc"
	NodeHeading    = "heading"
	NodeParagraph  = "paragraph"
	NodeList       = "list"
	NodeListItem   = "list_item"
	NodeBlockquote = "blockquote"
	NodeText       = "text"
	NodeCitation   = "citation" // Text holds the bracketed citation key
)

var documentNodeTypes = map[string]bool{
	NodeDoc:        true,
	NodeHeading:    true,
	NodeParagraph:  true,
	NodeList:       true,
	NodeListItem:   true,
	NodeBlockquote: true,
	NodeText:       true,
	NodeCitation:   true,
}

type DocumentNode struct {
	Type     string         `json:"type"`
	Children []DocumentNode `json:"children,omitempty"`
	Text     string         `json:"text,omitempty"`
}

// ParseDocument strictly decodes a stored content tree. The root must be a
// non-empty doc node.
func ParseDocument(raw datatypes.JSON) (*DocumentNode, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty document content")
	}
	var root DocumentNode
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if root.Type != NodeDoc {
		return nil, fmt.Errorf("document root must be %q, got %q", NodeDoc, root.Type)
	}
	if len(root.Children) == 0 {
		return nil, fmt.Errorf("document has no content")
	}
	if err := validateNode(root, 0); err != nil {
		return nil, err
	}
	return &root, nil
}

func validateNode(n DocumentNode, depth int) error {
	if depth > 32 {
		return fmt.Errorf("document nesting too deep")
	}
	if !documentNodeTypes[n.Type] {
		return fmt.Errorf("unknown document node type %q", n.Type)
	}
	switch n.Type {
	case NodeText, NodeCitation:
		if strings.TrimSpace(n.Text) == "" {
			return fmt.Errorf("%s node requires text", n.Type)
		}
		if len(n.Children) > 0 {
			return fmt.Errorf("%s node cannot have children", n.Type)
		}
	default:
		for _, c := range n.Children {
			if err := validateNode(c, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

// Encode serializes the tree for jsonb storage.
func (n DocumentNode) Encode() (datatypes.JSON, error) {
	b, err := json.Marshal(n)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

// PlainText flattens the node's text and citation leaves in document order.
func (n DocumentNode) PlainText() string {
	var sb strings.Builder
	n.appendText(&sb)
	return strings.TrimSpace(sb.String())
}

func (n DocumentNode) appendText(sb *strings.Builder) {
	switch n.Type {
	case NodeText:
		sb.WriteString(n.Text)
	case NodeCitation:
		sb.WriteString("[" + strings.Trim(n.Text, "[]") + "]")
	default:
		for i, c := range n.Children {
			if i > 0 && sb.Len() > 0 {
				sb.WriteString(" ")
			}
			c.appendText(sb)
		}
	}
}

// FirstParagraph returns the first paragraph with non-empty text, if any.
func (n DocumentNode) FirstParagraph() (DocumentNode, bool) {
	return n.firstOfType(NodeParagraph)
}

// FirstHeading returns the first heading with non-empty text, if any.
func (n DocumentNode) FirstHeading() (DocumentNode, bool) {
	return n.firstOfType(NodeHeading)
}

func (n DocumentNode) firstOfType(nodeType string) (DocumentNode, bool) {
	if n.Type == nodeType && n.PlainText() != "" {
		return n, true
	}
	for _, c := range n.Children {
		if found, ok := c.firstOfType(nodeType); ok {
			return found, true
		}
	}
	return DocumentNode{}, false
}

// CitationKeys returns the distinct citation keys used by the tree, in
// document order.
func (n DocumentNode) CitationKeys() []string {
	seen := map[string]bool{}
	var out []string
	n.walkCitations(seen, &out)
	return out
}

func (n DocumentNode) walkCitations(seen map[string]bool, out *[]string) {
	if n.Type == NodeCitation {
		key := strings.Trim(strings.TrimSpace(n.Text), "[]")
		if key != "" && !seen[key] {
			seen[key] = true
			*out = append(*out, key)
		}
		return
	}
	for _, c := range n.Children {
		c.walkCitations(seen, out)
	}
}

// TextNode builds a leaf text node.
func TextNode(text string) DocumentNode {
	return DocumentNode{Type: NodeText, Text: text}
}

// ParagraphNode builds a paragraph wrapping the given leaves.
func ParagraphNode(children ...DocumentNode) DocumentNode {
	return DocumentNode{Type: NodeParagraph, Children: children}
}

// AppendParagraph returns a copy of the tree with an extra paragraph at the
// end of the root's children. Used by the suggestion accept path.
func (n DocumentNode) AppendParagraph(p DocumentNode) DocumentNode {
	out := n
	out.Children = make([]DocumentNode, 0, len(n.Children)+1)
	out.Children = append(out.Children, n.Children...)
	out.Children = append(out.Children, p)
	return out
}
