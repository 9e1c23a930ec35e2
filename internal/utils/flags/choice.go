// Package flags provides pflag values shared by the CLI commands.
package flags

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

const (
	choicePlaceholderTemplate   = "<%s>"
	choiceSeparatorLiteral      = "|"
	choiceUsageTemplate         = "`%s` %s"
	choiceTypeNameConstant      = "choice"
	invalidChoiceErrorTemplate  = "invalid value %q: expected one of %s"
	choiceListSeparatorConstant = ", "
)

// ChoiceValue is a pflag.Value restricted to a fixed, case-insensitive set of choices.
type ChoiceValue struct {
	value   string
	choices []string
}

var _ pflag.Value = (*ChoiceValue)(nil)

// NewChoiceValue constructs a ChoiceValue holding defaultChoice.
func NewChoiceValue(defaultChoice string, choices []string) *ChoiceValue {
	return &ChoiceValue{value: normalizeChoice(defaultChoice), choices: uniqueChoices(choices)}
}

// String returns the selected choice.
func (choiceValue *ChoiceValue) String() string {
	if choiceValue == nil {
		return ""
	}
	return choiceValue.value
}

// Set validates and stores a choice.
func (choiceValue *ChoiceValue) Set(candidate string) error {
	normalizedCandidate := normalizeChoice(candidate)
	for _, choice := range choiceValue.choices {
		if choice == normalizedCandidate {
			choiceValue.value = normalizedCandidate
			return nil
		}
	}
	return fmt.Errorf(invalidChoiceErrorTemplate, candidate, strings.Join(choiceValue.choices, choiceListSeparatorConstant))
}

// Type names the value kind in pflag diagnostics.
func (choiceValue *ChoiceValue) Type() string {
	return choiceTypeNameConstant
}

// Usage renders the flag description with the choices as its placeholder, capitalizing the default.
func (choiceValue *ChoiceValue) Usage(description string) string {
	return FormatChoiceUsage(choiceValue.value, choiceValue.choices, description)
}

// FormatChoiceUsage builds a usage string where the default option is capitalized inside a placeholder.
func FormatChoiceUsage(defaultChoice string, choices []string, description string) string {
	normalizedDefault := normalizeChoice(defaultChoice)
	displayed := uniqueChoices(choices)
	for choiceIndex, choice := range displayed {
		if choice == normalizedDefault {
			displayed[choiceIndex] = strings.ToUpper(choice)
		}
	}
	placeholder := fmt.Sprintf(choicePlaceholderTemplate, strings.Join(displayed, choiceSeparatorLiteral))
	return strings.TrimSpace(fmt.Sprintf(choiceUsageTemplate, placeholder, strings.TrimSpace(description)))
}

func uniqueChoices(choices []string) []string {
	unique := make([]string, 0, len(choices))
	seen := make(map[string]struct{}, len(choices))
	for _, choice := range choices {
		normalizedChoice := normalizeChoice(choice)
		if len(normalizedChoice) == 0 {
			continue
		}
		if _, exists := seen[normalizedChoice]; exists {
			continue
		}
		seen[normalizedChoice] = struct{}{}
		unique = append(unique, normalizedChoice)
	}
	return unique
}

func normalizeChoice(choice string) string {
	return strings.ToLower(strings.TrimSpace(choice))
}
