// Package colors holds the styles used for terminal output.
//
// Colors are disabled automatically when stdout is not a terminal; Init
// applies the --no-color flag on top of that.
package colors

import "github.com/fatih/color"

var (
	// Name styles device and app names.
	Name = color.New(color.Bold).SprintFunc()
	// Detail styles identifiers printed next to a name.
	Detail = color.New(color.Faint, color.FgHiBlue).SprintFunc()
	// Step styles operation step labels.
	Step = color.New(color.Bold, color.FgHiCyan).SprintFunc()
	// Failure styles failed steps.
	Failure = color.New(color.Bold, color.FgHiRed).SprintFunc()
	// Success styles completed operations.
	Success = color.New(color.Bold, color.FgHiGreen).SprintFunc()
)

// Init turns colors off when noColor is set and keeps the detected default otherwise.
func Init(noColor bool) {
	if noColor {
		color.NoColor = true
	}
}

// Enabled returns true if colors are currently enabled.
func Enabled() bool {
	return !color.NoColor
}
