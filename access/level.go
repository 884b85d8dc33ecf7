// Package access computes authoritative content-access decisions for a
// school's courses, lessons and quizzes. Everything in this package is
// pure: callers fetch the records, the package decides.
package access

// Level is the single authoritative access decision for a content item.
type Level string

const (
	Full       Level = "FULL"
	Preview    Level = "PREVIEW"
	Locked     Level = "LOCKED"
	DripLocked Level = "DRIP_LOCKED"
	NotFound   Level = "NOT_FOUND"
)

// ShouldFetchMaterials reports whether content may be fetched at all for
// the given level. LOCKED and DRIP_LOCKED must never reach the query
// layer; sanitization downstream is defense in depth, not the gate.
func ShouldFetchMaterials(level Level) bool {
	return level == Full || level == Preview
}
