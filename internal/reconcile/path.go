package reconcile

import (
	"context"
	"fmt"
	"strings"
)

// maxPathDepth bounds the parent-chain walk as a cycle safety net: the
// live Item tree is acyclic by construction, but a corrupted payload or a
// store bug could still produce a cycle, and a fatal data error beats an
// infinite loop.
const maxPathDepth = 256

// materializePath builds the full slash-delimited path for an item with
// the given (already-resolved) parent and name, by walking the live
// parent chain from the store: path equals `/<root name>/…/<self name>`
// computed from the live parent chain, never stored as the sole source
// of truth.
func (e *Engine) materializePath(ctx context.Context, parentInternalID *int64, name string) (string, error) {
	if parentInternalID == nil {
		return "/" + name, nil
	}

	segments := []string{name}
	visited := make(map[int64]bool, maxPathDepth)

	cur := *parentInternalID

	for depth := 0; depth < maxPathDepth; depth++ {
		if visited[cur] {
			return "", fmt.Errorf("reconcile: cycle detected walking parent chain at internal id %d", cur)
		}

		visited[cur] = true

		parent, err := e.repo.LookupByInternalID(ctx, cur)
		if err != nil {
			return "", fmt.Errorf("reconcile: lookup parent %d: %w", cur, err)
		}

		if parent == nil {
			return "", fmt.Errorf("reconcile: dangling parent reference %d", cur)
		}

		segments = append(segments, parent.Name)

		if parent.ParentInternalID == nil {
			return "/" + strings.Join(reversed(segments), "/"), nil
		}

		cur = *parent.ParentInternalID
	}

	return "", fmt.Errorf("reconcile: parent chain exceeds max depth %d", maxPathDepth)
}

func reversed(segments []string) []string {
	out := make([]string, len(segments))

	for i, s := range segments {
		out[len(segments)-1-i] = s
	}

	return out
}
