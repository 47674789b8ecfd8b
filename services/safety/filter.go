package safety

import "regexp"

// Rule pairs a detection pattern with a stable identifier and a
// human-readable rejection reason.
type Rule struct {
	Pattern *regexp.Regexp
	ID      string
	Reason  string
}

// Result is the outcome of screening a single piece of text. The zero value
// is not meaningful; use the Check functions.
type Result struct {
	Safe   bool
	RuleID string
	Reason string
}

// promptRules are evaluated in order against user prompts; the first match
// short-circuits. Ordering puts the highest-leverage attacks first.
var promptRules = []Rule{
	{
		Pattern: regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|prior|above|earlier)\s+(instructions?|prompts?|commands?|rules?)`),
		ID:      "instruction_override",
		Reason:  "prompt attempts to override prior instructions",
	},
	{
		Pattern: regexp.MustCompile(`(?i)disregard\s+(all|any|previous|your)\s+(instructions?|rules?|guidelines?|training)`),
		ID:      "instruction_override",
		Reason:  "prompt attempts to override prior instructions",
	},
	{
		Pattern: regexp.MustCompile(`(?i)forget\s+(everything|all\s+previous|your\s+(instructions?|training|rules?))`),
		ID:      "instruction_override",
		Reason:  "prompt attempts to override prior instructions",
	},
	{
		Pattern: regexp.MustCompile(`(?i)(you\s+are\s+now|from\s+now\s+on\s+you\s+(are|will\s+be)|pretend\s+(to\s+be|you\s+are)|act\s+as\s+if\s+you\s+(are|have\s+no))`),
		ID:      "persona_reassignment",
		Reason:  "prompt attempts to reassign the assistant persona",
	},
	{
		Pattern: regexp.MustCompile(`(?i)(jailbreak|DAN\s+mode|developer\s+mode|god\s+mode|unrestricted\s+mode|evil\s+(mode|assistant))`),
		ID:      "jailbreak_framing",
		Reason:  "prompt uses a known jailbreak framing",
	},
	{
		Pattern: regexp.MustCompile(`(?i)(without|bypass|disable|remove)\s+(any\s+|all\s+|your\s+)?(safety|content|ethical|moral)\s+(filters?|restrictions?|guidelines?|guardrails?|checks?)`),
		ID:      "safety_bypass",
		Reason:  "prompt requests bypassing safety controls",
	},
	{
		Pattern: regexp.MustCompile(`(?i)(reveal|show|print|repeat|leak|expose)\s+(me\s+)?(your|the)\s+(system\s+prompt|initial\s+instructions?|hidden\s+instructions?|api\s+keys?|credentials?|secrets?)`),
		ID:      "exfiltration",
		Reason:  "prompt attempts to exfiltrate system prompt or credentials",
	},
	{
		Pattern: regexp.MustCompile(`(?i)(how\s+to\s+|instructions?\s+for\s+)?(build|make|manufacture|synthesi[sz]e|assemble)\s+(a\s+|an\s+)?(bomb|explosive|weapon|firearm|nerve\s+agent|bioweapon)`),
		ID:      "harmful_weapons",
		Reason:  "prompt requests weapons construction content",
	},
	{
		Pattern: regexp.MustCompile(`(?i)(synthesi[sz]e|produce|cook|manufacture)\s+(meth(amphetamine)?|fentanyl|heroin|cocaine|lsd)`),
		ID:      "harmful_substances",
		Reason:  "prompt requests controlled-substance synthesis content",
	},
}

// systemRules are the stricter set applied to system instructions. A system
// instruction has more leverage over model behavior than a user prompt, so
// language tolerated in a prompt is rejected here.
var systemRules = append([]Rule{
	{
		Pattern: regexp.MustCompile(`(?i)ignore\s+(previous|all|any|other)\s+`),
		ID:      "system_instruction_override",
		Reason:  "system instruction attempts to override other instructions",
	},
	{
		Pattern: regexp.MustCompile(`(?i)(override|supersede|replace)\s+(all\s+|any\s+)?(system|safety|previous)\s+`),
		ID:      "system_instruction_override",
		Reason:  "system instruction attempts to override other instructions",
	},
	{
		Pattern: regexp.MustCompile(`(?i)you\s+(have|are\s+under)\s+no\s+(restrictions?|limitations?|rules?)`),
		ID:      "system_unrestricted_claim",
		Reason:  "system instruction claims the model is unrestricted",
	},
	{
		Pattern: regexp.MustCompile(`(?i)do\s+not\s+(refuse|decline|reject)\s+(any|all)\s+requests?`),
		ID:      "system_refusal_suppression",
		Reason:  "system instruction suppresses refusals",
	},
}, promptRules...)

// Filter screens prompts and system instructions before any rate-limit slot
// or provider call is consumed. Rejections are free: they never reach the
// network.
type Filter struct {
	promptRules []Rule
	systemRules []Rule
}

// NewFilter returns a filter with the built-in rule sets.
func NewFilter() *Filter {
	return &Filter{
		promptRules: promptRules,
		systemRules: systemRules,
	}
}

// CheckPrompt screens user prompt text. The first matching rule wins.
func (f *Filter) CheckPrompt(prompt string) Result {
	return evaluate(f.promptRules, prompt)
}

// CheckSystemInstruction screens a system instruction with the stricter
// rule set.
func (f *Filter) CheckSystemInstruction(instruction string) Result {
	return evaluate(f.systemRules, instruction)
}

// Check screens the prompt first and, only if it passes, the system
// instruction. An empty system instruction is skipped.
func (f *Filter) Check(prompt, systemInstruction string) Result {
	if res := f.CheckPrompt(prompt); !res.Safe {
		return res
	}
	if systemInstruction != "" {
		return f.CheckSystemInstruction(systemInstruction)
	}
	return Result{Safe: true}
}

func evaluate(rules []Rule, text string) Result {
	for _, rule := range rules {
		if rule.Pattern.MatchString(text) {
			return Result{
				Safe:   false,
				RuleID: rule.ID,
				Reason: rule.Reason,
			}
		}
	}
	return Result{Safe: true}
}
