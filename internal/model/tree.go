package model

import (
	"net/url"
	"strings"
)

// PageInfo holds the metadata attached to a tree node once the page
// behind it has been reached.
type PageInfo struct {
	// URL is the canonical URL that reached this node.
	URL string `json:"url"`

	// Title is the page title, when one could be extracted.
	Title string `json:"title,omitempty"`
}

// PageTreeNode is one node of the discovered page hierarchy.
//
// The tree is keyed by URL path segments: the root is named after the
// seed's hostname and each child corresponds to one path segment. A node
// without attached Page metadata is an intermediate segment that was
// implied by a deeper URL but never fetched itself.
//
// Invariant: Children never contains two entries with the same Name, and
// the tree has exactly one root.
type PageTreeNode struct {
	// Name is the path segment, or the hostname for the root.
	Name string `json:"name"`

	// Path is the fully qualified path prefix for this node, starting
	// with "/".
	Path string `json:"path"`

	// Children are the child nodes in insertion order.
	Children []*PageTreeNode `json:"children,omitempty"`

	// Page is the metadata of the page reached at this node, or nil if
	// the node is only an intermediate segment.
	Page *PageInfo `json:"page,omitempty"`
}

// NewPageTree creates the root node for the given hostname.
func NewPageTree(host string) *PageTreeNode {
	return &PageTreeNode{
		Name:     host,
		Path:     "/",
		Children: make([]*PageTreeNode, 0),
	}
}

// Insert adds a URL to the tree rooted at n. It is idempotent: inserting
// the same URL twice yields the same tree as inserting it once.
//
// Missing intermediate segment nodes are created along the way; the page
// metadata is attached to the terminal node. If the terminal node already
// exists without metadata, the metadata is filled in; existing metadata is
// never overwritten.
//
// Design decision: Insert never fails on odd paths. A URL that cannot be
// parsed contributes nothing, because by the time a URL reaches the tree
// it has already survived link resolution, and dropping it silently
// matches how the extractor treats malformed hrefs.
func (n *PageTreeNode) Insert(rawURL, title string) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return
	}

	segments := splitSegments(u.Path)

	// Homepage: attach to the root rather than creating a child.
	if len(segments) == 0 {
		if n.Page == nil {
			n.Page = &PageInfo{URL: rawURL, Title: title}
		}
		return
	}

	cur := n
	prefix := ""
	for i, seg := range segments {
		prefix += "/" + seg

		child := cur.Child(seg)
		if child == nil {
			child = &PageTreeNode{
				Name:     seg,
				Path:     prefix,
				Children: make([]*PageTreeNode, 0),
			}
			cur.Children = append(cur.Children, child)
		}

		if i == len(segments)-1 && child.Page == nil {
			child.Page = &PageInfo{URL: rawURL, Title: title}
		}
		cur = child
	}
}

// Child returns the direct child with the given name, or nil.
func (n *PageTreeNode) Child(name string) *PageTreeNode {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Walk visits n and every descendant in depth-first order.
func (n *PageTreeNode) Walk(fn func(node *PageTreeNode, depth int)) {
	n.walk(fn, 0)
}

func (n *PageTreeNode) walk(fn func(node *PageTreeNode, depth int), depth int) {
	fn(n, depth)
	for _, c := range n.Children {
		c.walk(fn, depth+1)
	}
}

// CountNodes returns the number of nodes in the tree including the root.
func (n *PageTreeNode) CountNodes() int {
	count := 0
	n.Walk(func(*PageTreeNode, int) { count++ })
	return count
}

// CountPages returns the number of nodes with attached page metadata.
func (n *PageTreeNode) CountPages() int {
	count := 0
	n.Walk(func(node *PageTreeNode, _ int) {
		if node.Page != nil {
			count++
		}
	})
	return count
}

// splitSegments splits a URL path into its non-empty segments.
func splitSegments(path string) []string {
	parts := strings.Split(path, "/")
	segments := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			segments = append(segments, p)
		}
	}
	return segments
}
