package errors

import (
	"fmt"
	"sort"
	"strings"
)

// ErrorContext carries what the CLI prints under an error and what the
// server logs next to it.
type ErrorContext struct {
	Operation   string
	Component   string
	Details     map[string]interface{}
	Suggestions []string
	// Recoverable marks failures the caller may retry as-is
	Recoverable bool
	// Attempts is how many tries the resilience wrapper made (0 if none)
	Attempts int
}

// Format renders the context as indented sections. Detail keys are sorted
// so output is stable across runs.
func (ec *ErrorContext) Format() string {
	var sb strings.Builder

	switch {
	case ec.Operation != "" && ec.Component != "":
		fmt.Fprintf(&sb, "\nWhat happened:\n  %s failed in %s.\n", ec.Operation, ec.Component)
	case ec.Operation != "":
		fmt.Fprintf(&sb, "\nWhat happened:\n  %s failed.\n", ec.Operation)
	case ec.Component != "":
		fmt.Fprintf(&sb, "\nWhat happened:\n  Failure in %s.\n", ec.Component)
	}

	if len(ec.Details) > 0 {
		keys := make([]string, 0, len(ec.Details))
		for k := range ec.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		sb.WriteString("\nDetails:\n")
		for _, k := range keys {
			fmt.Fprintf(&sb, "  - %s: %v\n", k, ec.Details[k])
		}
	}

	if len(ec.Suggestions) > 0 {
		sb.WriteString("\nWhat you can do:\n")
		for i, s := range ec.Suggestions {
			fmt.Fprintf(&sb, "  %d. %s\n", i+1, s)
		}
	}

	if ec.Recoverable {
		if ec.Attempts > 0 {
			fmt.Fprintf(&sb, "\nRetryable: yes (gave up after %d attempts)\n", ec.Attempts)
		} else {
			sb.WriteString("\nRetryable: yes\n")
		}
	}

	return sb.String()
}
