package model

// Priority values assigned at enqueue time.
//
// Shallower pages are consistently preferred when the queue is resorted
// before each batch: pages adjacent to primary navigation are more useful
// to surface early in a progressively rendered result.
const (
	// PrioritySeed is assigned to the seed URL so it is always dequeued first.
	PrioritySeed = 0

	// PriorityNav is assigned to depth-1 URLs, which are likely primary
	// navigation targets.
	PriorityNav = 100

	// PriorityDepthScale scales the priority of deeper URLs by their depth.
	PriorityDepthScale = 1000
)

// CrawlTask represents one planned page fetch.
//
// A task is created when a link is discovered (or at seed time), consumed
// when dequeued for fetching, and discarded after the fetch attempt
// regardless of outcome. Tasks are never mutated after creation.
type CrawlTask struct {
	// URL is the absolute, normalized URL to fetch.
	URL string `json:"url"`

	// Depth is the distance from the seed. 0 means the seed itself.
	Depth int `json:"depth"`

	// ParentSegments holds the path segment names from the tree root to
	// this task's parent node. Used to position the page in the tree.
	ParentSegments []string `json:"parent_segments,omitempty"`

	// Priority orders the queue; lower values are dequeued first.
	Priority int `json:"priority"`
}

// TaskPriority returns the queue priority for a URL discovered at the
// given depth.
func TaskPriority(depth int) int {
	switch {
	case depth <= 0:
		return PrioritySeed
	case depth == 1:
		return PriorityNav
	default:
		return depth * PriorityDepthScale
	}
}
