package types

// Mood constants reported by the generation collaborator alongside each
// character response.
const (
	MoodNeutral      = "neutral"
	MoodHappy        = "happy"
	MoodExcited      = "excited"
	MoodAmused       = "amused"
	MoodCurious      = "curious"
	MoodThoughtful   = "thoughtful"
	MoodSad          = "sad"
	MoodAnnoyed      = "annoyed"
	MoodAngry        = "angry"
	MoodAnxious      = "anxious"
	MoodAffectionate = "affectionate"
)

// ValidMoods lists all recognized moods for validation.
var ValidMoods = []string{
	MoodNeutral,
	MoodHappy,
	MoodExcited,
	MoodAmused,
	MoodCurious,
	MoodThoughtful,
	MoodSad,
	MoodAnnoyed,
	MoodAngry,
	MoodAnxious,
	MoodAffectionate,
}

// IsValidMood reports whether the given mood is recognized.
func IsValidMood(mood string) bool {
	for _, m := range ValidMoods {
		if m == mood {
			return true
		}
	}
	return false
}

// DefaultMoodIntensity is used when the generation result carries a mood
// without an intensity, or no mood block at all.
const DefaultMoodIntensity = 0.5
