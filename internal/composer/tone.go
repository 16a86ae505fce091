package composer

import "strings"

// Tone keyword groups, checked in order. First group with a hit wins.
var toneRules = []struct {
	keywords []string
	tone     string
}{
	{[]string{"urgent", "crisis", "emergency"}, "calm and reassuring"},
	{[]string{"complex", "difficult", "challenging"}, "patient and thorough"},
	{[]string{"simple", "basic", "quick"}, "concise and direct"},
}

// AdaptTone picks the tone for a query: keyword cues in the query override
// the user's base tone, otherwise the base tone stands.
func AdaptTone(query, baseTone string) string {
	lower := strings.ToLower(query)
	for _, rule := range toneRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.tone
			}
		}
	}
	return baseTone
}
