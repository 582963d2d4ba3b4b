package turns

// DelayPolicy assigns the pacing value for one response slot. index is the
// slot's fan-out position and content is the response text. The value is a
// deliberate stagger that fixes delivery order; it is unrelated to how long
// generation actually took.
type DelayPolicy func(index int, content string) int

const (
	baseDelayMs    = 500
	staggerDelayMs = 800
	perRuneDelayMs = 15
	maxDelayMs     = 8000
)

// DefaultDelayPolicy staggers responses by fan-out position plus a
// reading-time component derived from content length. Deterministic: the
// same slot and content always get the same value.
func DefaultDelayPolicy(index int, content string) int {
	d := baseDelayMs + index*staggerDelayMs + len([]rune(content))*perRuneDelayMs
	if d > maxDelayMs {
		d = maxDelayMs
	}
	return d
}
