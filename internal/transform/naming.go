package transform

import "strings"

const (
	rawMarker       = "raw"
	processedMarker = "processed"
	csvSuffix       = ".csv"
)

// DestinationBucket returns override when set, otherwise src with its first
// "raw" replaced by "processed". A name without "raw" is returned unchanged.
func DestinationBucket(src, override string) string {
	if override != "" {
		return override
	}
	return strings.Replace(src, rawMarker, processedMarker, 1)
}

// DestinationKey swaps a trailing ".csv" for ext. Keys are compared
// case-sensitively; other occurrences of ".csv" are kept.
func DestinationKey(key, ext string) string {
	if !strings.HasSuffix(key, csvSuffix) {
		return key
	}
	return strings.TrimSuffix(key, csvSuffix) + ext
}

// Eligible reports whether an entry key names a CSV object.
func Eligible(key string) bool { return strings.HasSuffix(key, csvSuffix) }
