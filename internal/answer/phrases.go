package answer

// SectionLabels are the four canonical section headers the model is
// instructed to emit, in presentation order.
var SectionLabels = [4]string{
	"Strategy or Explanation",
	"Story or Analogy",
	"Reflection Prompts",
	"Concept/Tool References",
}

// Canonical section keys used in API payloads.
const (
	KeyStrategy          = "strategy"
	KeyStory             = "story"
	KeyReflectionPrompts = "reflection_prompts"
	KeyToolReferences    = "tool_references"
)

// Quality issue tags reported by the Processor.
const (
	IssueMissingSection     = "missing_section"
	IssueRepetitivePhrasing = "repetitive_phrasing"
	IssueNoNamedFramework   = "no_named_framework"
)

// bannedOpenings are opening fragments the model falls into when it pads
// answers. Matched case-insensitively and rewritten with a rotating
// alternative. Kept as data so the detector can be tuned without code
// changes.
var bannedOpenings = []string{
	"when considering",
	"it's essential to",
	"it is essential to",
	"imagine you're at a crossroads",
	"imagine you are at a crossroads",
	"picture yourself",
	"consider this scenario",
	"think about",
	"let's imagine",
	"let us imagine",
	"in today's world",
	"when it comes to",
	"at the end of the day",
	"first and foremost",
	"one of the most important",
	"it's important to",
	"it is important to",
	"in order to make",
}

// openingAlternatives is the rotating replacement pool for banned openings.
// Entries must read naturally in the position the banned fragment occupied.
var openingAlternatives = []string{
	"a useful way to approach this is",
	"a good starting point is",
	"it often helps to",
	"here's a practical angle:",
	"start by asking",
	"notice first",
	"ground this in your situation:",
	"one concrete move is to",
}

// frameworkTerms are the named decision frameworks an answer should mention
// at least one of. Matched case-insensitively as substrings.
var frameworkTerms = []string{
	"decision tree",
	"swot analysis",
	"cost-benefit analysis",
	"expected utility",
	"premortem analysis",
	"ooda loop",
	"grow model",
	"weighted scoring matrix",
	"risk assessment matrix",
	"bounded rationality",
	"prospect theory",
	"utility theory",
	"satisficing",
	"sunk cost fallacy",
}

// BannedOpenings returns the configured banned opening fragments.
// The composer embeds them in the prompt as explicit "do not start with"
// instructions.
func BannedOpenings() []string {
	out := make([]string, len(bannedOpenings))
	copy(out, bannedOpenings)
	return out
}

// FrameworkTerms returns the configured named-framework vocabulary.
func FrameworkTerms() []string {
	out := make([]string, len(frameworkTerms))
	copy(out, frameworkTerms)
	return out
}
