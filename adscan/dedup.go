// CLAUDE:SUMMARY Deduplication by primary destination URL with a tiered collapse policy.
package adscan

import "strings"

func trimmed(s string) string { return strings.TrimSpace(s) }

// urlGroup is one set of ads sharing a primary URL, in arrival order.
type urlGroup struct {
	url string
	ads []*Ad
}

// GroupByPrimaryURL buckets ads by their primary destination URL, preserving
// the order in which URLs were first seen. Ads without a primary URL are
// dropped.
func GroupByPrimaryURL(ads []*Ad) []urlGroup {
	index := map[string]int{}
	var groups []urlGroup
	for _, ad := range ads {
		url := ad.PrimaryURL()
		if url == "" {
			continue
		}
		i, ok := index[url]
		if !ok {
			i = len(groups)
			index[url] = i
			groups = append(groups, urlGroup{url: url})
		}
		groups[i].ads = append(groups[i].ads, ad)
	}
	return groups
}

// Deduplicate collapses URL groups with a tiered policy: a single ad is kept
// as-is, a pair is kept whole (two creatives for one URL are treated as
// meaningfully distinct variants), and three or more collapse to the first
// ad annotated with the group size in URLOccurrences.
func Deduplicate(groups []urlGroup) []*Ad {
	var out []*Ad
	for _, g := range groups {
		switch len(g.ads) {
		case 0:
		case 1:
			out = append(out, g.ads[0])
		case 2:
			out = append(out, g.ads...)
		default:
			first := *g.ads[0]
			first.URLOccurrences = len(g.ads)
			out = append(out, &first)
		}
	}
	return out
}
