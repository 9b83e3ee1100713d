package core

import (
	"os"
	"strings"
)

// PromptSuffix ends every prompt.
const PromptSuffix = "$ "

// Prompt is the working directory with the home directory abbreviated to ~.
func (s *Shell) Prompt() string {
	wd, err := os.Getwd()
	if err != nil {
		wd = "?"
	}
	home, _ := os.UserHomeDir()

	return s.Colors.Prompt(abbreviateHome(wd, home)) + PromptSuffix
}

func abbreviateHome(path, home string) string {
	home = strings.TrimSuffix(home, "/")
	switch {
	case home == "":
		return path
	case path == home:
		return "~"
	case strings.HasPrefix(path, home+"/"):
		return "~" + strings.TrimPrefix(path, home)
	default:
		return path
	}
}
