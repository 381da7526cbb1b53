package budget

import "sync"

// Artifact kinds. One slot per kind; a new retrieval overwrites the
// previous value, it is never merged.
const (
	KindPageHTML = "page_html"
)

// ArtifactCache stores the latest large artifacts out-of-band so the
// conversation only carries bounded summaries. Scoped to one run.
type ArtifactCache struct {
	mu        sync.Mutex
	artifacts map[string]string
}

func NewArtifactCache() *ArtifactCache {
	return &ArtifactCache{
		artifacts: make(map[string]string),
	}
}

func (c *ArtifactCache) Store(kind, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.artifacts[kind] = value
}

func (c *ArtifactCache) Get(kind string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.artifacts[kind]
	return value, ok
}
