package client

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// IsStdinTTY reports whether stdin is attached to a terminal.
func IsStdinTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// ConfirmPrompt asks the user to confirm an action. Anything other than an
// explicit yes declines; a closed stdin reads as empty and declines too.
func ConfirmPrompt(prompt string) bool {
	fmt.Printf("%s [y/N] ", prompt)
	var answer string
	_, _ = fmt.Scanln(&answer)
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
