package redisstore

import "strings"

// StatKeywordFromKey extracts the keyword from an expired stat-cache key of
// the form keyword_stats:{scope}:{keyword}. Keywords may themselves contain
// colons, so only the first two segments are structural.
func StatKeywordFromKey(key string) (string, bool) {
	rest, ok := strings.CutPrefix(key, statCachePrefix)
	if !ok {
		return "", false
	}
	_, keyword, ok := strings.Cut(rest, ":")
	if !ok || keyword == "" {
		return "", false
	}
	return keyword, true
}
