package payload

import (
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"
)

// Built-in action names.
const (
	ActionCodeReview      = "code-review"
	ActionCodeImprovement = "code-improvement"
	ActionCodeCompletion  = "code-completion"
	ActionCodeCorrection  = "code-correction"
)

// minCustomActionLen is the shortest accepted custom action.
const minCustomActionLen = 6

var actions = map[string]string{
	ActionCodeReview:      "Please review the following code and provide suggestions or identify any errors.",
	ActionCodeImprovement: "Please suggest improvements to the following code.",
	ActionCodeCompletion:  "Please add to the following code by adding limited new files or missing functionality.",
	ActionCodeCorrection:  "Correct the following code by fixing any errors or issues.",
}

// SystemPrompt is sent as the provider's system instruction.
const SystemPrompt = "You are a world-class software developer. Provide complete, error-free code only when changes are made. " +
	"Include ALL comments in updated code. Never use placeholders or ellipsis. " +
	"State 'No changes required' without including code if no changes are needed. " +
	"Format in Markdown with appropriate headers, lists, and code blocks. " +
	"Use triple backticks for code blocks without language specification. " +
	"Analyze thoroughly before responding. Provide clear, concise change lists. " +
	"Follow the exact format in the instructions."

const promptTemplate = `Action: %s
Instructions: You will be given a directory structure followed by a set of files in the format: File Path: <file path> Code: <code>. Please apply the Action to each file. Please provide your response in the following format:

File Path: <file path>

Changes:
- <bulleted list of changes/suggestions>

Updated Code:

` + "```" + `
<full, complete file code>
` + "```" + `

Important:
1. Always provide the FULL, UPDATED code for each file that has changes.
2. DO NOT use placeholders or omit any parts of the code.
3. If no changes are required for a file, explicitly state "No changes required." under the Changes section and DO NOT include the "Updated Code" section.
4. Include ALL comments in the updated code.
5. Do not use ellipsis (...) or any other shorthand to indicate unchanged code.

Content:
%s
`

// Action is a built-in action and its instruction.
type Action struct {
	Name        string
	Instruction string
}

// Actions lists the built-in actions sorted by name.
func Actions() []Action {
	names := lo.Keys(actions)
	slices.Sort(names)
	return lo.Map(names, func(name string, _ int) Action {
		return Action{Name: name, Instruction: actions[name]}
	})
}

// ValidateAction checks that action is a built-in name or a plausible custom instruction.
func ValidateAction(action string) error {
	trimmed := strings.TrimSpace(action)
	if _, ok := actions[trimmed]; ok {
		return nil
	}
	if len(trimmed) < minCustomActionLen {
		return fmt.Errorf("invalid action %q: use a built-in action or a custom instruction of at least %d characters", action, minCustomActionLen)
	}
	return nil
}

// Instruction maps a built-in action to its instruction; custom actions pass through verbatim.
func Instruction(action string) string {
	if instruction, ok := actions[strings.TrimSpace(action)]; ok {
		return instruction
	}
	return action
}

// Prompt builds the user prompt for action over content.
func Prompt(action, content string) string {
	return fmt.Sprintf(promptTemplate, Instruction(action), content)
}
