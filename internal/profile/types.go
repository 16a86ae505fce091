package profile

// Profile describes how the tutor should speak to one user. Every field is
// always populated: missing stored values fall back to the defaults.
type Profile struct {
	Role                string   `json:"role"`
	Tone                string   `json:"tone"`
	ThinkingStyle       string   `json:"thinking_style"`
	PreferredFrameworks []string `json:"preferred_frameworks"`
}

// Update carries a partial profile change. Nil fields are left untouched.
type Update struct {
	Role                *string  `json:"role"`
	Tone                *string  `json:"tone"`
	ThinkingStyle       *string  `json:"thinking_style"`
	PreferredFrameworks []string `json:"preferred_frameworks"`
}

// Defaults returns the built-in tutor persona used when a user has no stored
// overrides.
func Defaults() Profile {
	return Profile{
		Role:          "helpful tutor",
		Tone:          "encouraging and clear",
		ThinkingStyle: "step-by-step reasoning",
		PreferredFrameworks: []string{
			"decision tree",
			"swot analysis",
			"cost-benefit analysis",
		},
	}
}
