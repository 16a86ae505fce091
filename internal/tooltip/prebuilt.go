package tooltip

// prebuilt maps lowercase concept names to curated definitions. These cost no
// provider tokens, so the extractor always prefers them over definitions
// parsed out of model output.
var prebuilt = map[string]string{
	"decision tree":            "A visual tool that maps out different options and their potential outcomes to help make confident choices when faced with uncertainty.",
	"swot analysis":            "A framework that helps identify strengths, weaknesses, opportunities, and threats to assess your situation comprehensively.",
	"cost-benefit analysis":    "A systematic approach to compare the pros and cons of different options by weighing their advantages and disadvantages.",
	"expected utility":         "A method for calculating the value of different scenarios when dealing with uncertainty and multiple possible outcomes.",
	"ooda loop":                "A decision cycle (Observe, Orient, Decide, Act) that helps you stay agile and responsive in fast-changing situations.",
	"bounded rationality":      "The recognition that good decisions don't require perfect information when time or information is limited.",
	"prospect theory":          "Shows how people often value avoiding losses more than achieving gains when evaluating options.",
	"anchoring bias":           "The tendency to rely too heavily on the first piece of information when making decisions.",
	"confirmation bias":        "The tendency to seek out information that confirms existing beliefs while ignoring contradictory evidence.",
	"status quo bias":          "The preference to keep things as they are rather than making changes, even when change might be beneficial.",
	"sunk cost fallacy":        "The tendency to continue investing in a decision based on past investments rather than future benefits.",
	"framing effect":           "How the way information is presented influences decision-making, even when the underlying facts are the same.",
	"endowment effect":         "The tendency to value something more highly simply because you own it.",
	"escalation of commitment": "The tendency to continue investing in a failing course of action to justify previous investments.",
	"satisficing":              "Choosing an option that is good enough rather than searching for the optimal solution.",
	"utility theory":           "A framework for measuring the satisfaction or value derived from different outcomes and choices.",
}
