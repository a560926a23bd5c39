package resolver

import (
	"regexp"
	"sort"
	"strconv"

	"github.com/xnotehq/xnote/internal/types"
)

// MP4ContentType is the only variant type eligible for download.
const MP4ContentType = "video/mp4"

var resolutionRe = regexp.MustCompile(`/(\d+)x(\d+)/`)

// findVariants searches a decoded syndication response for a variants array.
// The response shape moves around between payload revisions, so the known
// locations are probed in priority order.
func findVariants(data map[string]any) []types.VideoVariant {
	if v := variantsAt(data, "video"); v != nil {
		return v
	}
	if media, ok := data["mediaDetails"].([]any); ok {
		for _, m := range media {
			if mm, ok := m.(map[string]any); ok {
				if v := variantsAt(mm, "video_info"); v != nil {
					return v
				}
			}
		}
	}
	if quoted, ok := data["quoted_tweet"].(map[string]any); ok {
		if v := variantsAt(quoted, "video"); v != nil {
			return v
		}
	}
	if entity, ok := data["mediaEntity"].(map[string]any); ok {
		if v := variantsAt(entity, "video_info"); v != nil {
			return v
		}
	}
	for _, key := range []string{"extended_entities", "entities"} {
		if ent, ok := data[key].(map[string]any); ok {
			if media, ok := ent["media"].([]any); ok {
				for _, m := range media {
					if mm, ok := m.(map[string]any); ok {
						if v := variantsAt(mm, "video_info"); v != nil {
							return v
						}
					}
				}
			}
		}
	}
	return nil
}

// variantsAt reads container[key].variants into normalized variant records.
func variantsAt(container map[string]any, key string) []types.VideoVariant {
	inner, ok := container[key].(map[string]any)
	if !ok {
		return nil
	}
	raw, ok := inner["variants"].([]any)
	if !ok || len(raw) == 0 {
		return nil
	}
	var out []types.VideoVariant
	for _, r := range raw {
		m, ok := r.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, variantFromMap(m))
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// variantFromMap normalizes the two wire spellings of a variant: the
// syndication form {type, bitrate, src} and the internal video_info form
// {content_type, bitrate, url}.
func variantFromMap(m map[string]any) types.VideoVariant {
	v := types.VideoVariant{}
	if t, ok := m["type"].(string); ok {
		v.Type = t
	} else if t, ok := m["content_type"].(string); ok {
		v.Type = t
	}
	if b, ok := m["bitrate"].(float64); ok {
		v.Bitrate = int(b)
	}
	if s, ok := m["src"].(string); ok {
		v.Src = s
	} else if s, ok := m["url"].(string); ok {
		v.Src = s
	}
	return v
}

// BestVariant picks the highest-quality MP4 variant. Ranking is by explicit
// bitrate when every MP4 carries one, otherwise by pixel count inferred from
// a /WxH/ path segment, with unmatched URLs ranked 0. Ties keep input order.
func BestVariant(variants []types.VideoVariant) (types.VideoVariant, bool) {
	var mp4s []types.VideoVariant
	allBitrate := true
	for _, v := range variants {
		if v.Type != MP4ContentType {
			continue
		}
		mp4s = append(mp4s, v)
		if v.Bitrate == 0 {
			allBitrate = false
		}
	}
	if len(mp4s) == 0 {
		return types.VideoVariant{}, false
	}

	if allBitrate {
		sort.SliceStable(mp4s, func(i, j int) bool {
			return mp4s[i].Bitrate > mp4s[j].Bitrate
		})
	} else {
		sort.SliceStable(mp4s, func(i, j int) bool {
			return resolutionRank(mp4s[i].Src) > resolutionRank(mp4s[j].Src)
		})
	}
	return mp4s[0], true
}

// resolutionRank infers total pixel count from a /WxH/ URL segment.
func resolutionRank(src string) int {
	m := resolutionRe.FindStringSubmatch(src)
	if m == nil {
		return 0
	}
	w, _ := strconv.Atoi(m[1])
	h, _ := strconv.Atoi(m[2])
	return w * h
}
