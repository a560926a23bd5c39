package resolver

// Bounded-depth search over the page's internal data representation. The
// host page attaches deeply nested framework state to its DOM nodes; the
// probe serializes a slice of it and this search walks the decoded value for
// video variants. The shape is undocumented and changes without notice, so
// traversal is restricted to an allow-list of nesting keys and a hard depth
// limit.

const maxSearchDepth = 20

// Nesting keys worth descending into. Anything else is ignored.
var searchKeys = []string{
	"tweet", "result", "media", "props", "children",
	"memoizedProps", "stateNode", "legacy", "extended_entities",
}

// Arrays in the page state can be enormous; only the head is examined.
const maxArrayScan = 10

// SearchVideoURL walks a decoded page-state value looking for a
// video_info.variants array and returns the best MP4 URL found.
func SearchVideoURL(value any) (string, bool) {
	return searchValue(value, 0)
}

func searchValue(value any, depth int) (string, bool) {
	if depth > maxSearchDepth || value == nil {
		return "", false
	}

	switch v := value.(type) {
	case map[string]any:
		if url, ok := variantsURL(v); ok {
			return url, true
		}
		for _, key := range searchKeys {
			if child, ok := v[key]; ok {
				if url, ok := searchValue(child, depth+1); ok {
					return url, true
				}
			}
		}
	case []any:
		n := len(v)
		if n > maxArrayScan {
			n = maxArrayScan
		}
		for i := 0; i < n; i++ {
			if url, ok := searchValue(v[i], depth+1); ok {
				return url, true
			}
		}
	}
	return "", false
}

// variantsURL resolves a node that directly carries video_info.variants.
func variantsURL(node map[string]any) (string, bool) {
	v := variantsAt(node, "video_info")
	if v == nil {
		return "", false
	}
	best, ok := BestVariant(v)
	if !ok {
		return "", false
	}
	return best.Src, true
}
