package features

import (
	"sort"

	"plumage/internal/table"
)

// Reconstruct assigns thread_id, thread_step_index, and is_thread_starter.
// The thread id is the earliest ancestor reachable by following reply
// pointers; when that ancestor is missing from the table the thread id is
// the last referenced parent id. Duplicate record ids overwrite earlier
// entries in the parent map (last write wins). Step indices follow the
// table's current row order, which after Engineer is chronological with
// null timestamps last; they reflect recording order, not conversational
// reply depth.
func Reconstruct(t *table.Table, idCol, replyCol string) {
	parent := make(map[string]string)
	if replyCol != "" {
		for _, r := range t.Rows {
			if r.IsNull(replyCol) {
				continue
			}
			id, ok := r.String(idCol)
			if !ok || id == "" {
				continue
			}
			if p, ok := r.String(replyCol); ok && p != "" {
				parent[id] = p
			}
		}
	}

	// Roots are resolved in sorted id order so cyclic chains collapse to the
	// same root no matter how the rows were ordered.
	ids := make([]string, 0, len(t.Rows))
	seen := make(map[string]struct{}, len(t.Rows))
	for _, r := range t.Rows {
		id, ok := r.String(idCol)
		if !ok || id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Strings(ids)

	cache := make(map[string]string, len(ids))
	for _, id := range ids {
		resolveRoot(id, parent, cache)
	}

	for _, r := range t.Rows {
		id, _ := r.String(idCol)
		root, ok := cache[id]
		if !ok {
			root = id
		}
		r["thread_id"] = root
	}

	step := make(map[string]int)
	for _, r := range t.Rows {
		root, _ := r["thread_id"].(string)
		idx := step[root]
		r["thread_step_index"] = idx
		r["is_thread_starter"] = idx == 0
		step[root] = idx + 1
	}
}

// resolveRoot walks the parent chain from id, stopping at a record with no
// known parent or at a cycle, and caches the root for every node on the
// path so repeated lookups are O(1) amortized.
func resolveRoot(id string, parent, cache map[string]string) string {
	if root, ok := cache[id]; ok {
		return root
	}
	path := []string{id}
	visited := map[string]struct{}{id: {}}
	cur := id
	for {
		p, ok := parent[cur]
		if !ok {
			break
		}
		if root, ok := cache[p]; ok {
			path = append(path, root)
			break
		}
		if _, cyc := visited[p]; cyc {
			break
		}
		cur = p
		path = append(path, cur)
		visited[cur] = struct{}{}
	}
	root := path[len(path)-1]
	for _, node := range path {
		cache[node] = root
	}
	return root
}
