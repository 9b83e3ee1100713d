package core

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/josephlewis42/jobsh/core/jobs"
	getopt "github.com/pborman/getopt/v2"
)

// SimpleCommand parses the options of a built-in.
type SimpleCommand struct {
	// Use holds a one line usage string
	Use string
	// Short holds a one line description of the command.
	Short string
	// ShowHelp sets whether help is displayed or not.
	// If this is non-nil when Run() is called, then the default help flag isn't
	// added.
	ShowHelp *bool

	flags *getopt.Set
}

// Flags gets the command's flag set.
func (c *SimpleCommand) Flags() *getopt.Set {
	if c.flags == nil {
		c.flags = getopt.New()
	}

	return c.flags
}

// PrintHelp writes help for the command to the given writer.
func (c *SimpleCommand) PrintHelp(w io.Writer) {
	fmt.Fprint(w, "usage: ")
	fmt.Fprintln(w, c.Use)
	fmt.Fprintln(w, c.Short)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	c.Flags().PrintOptions(w)
}

// Run the command, if flag parsing was successful call the callback.
func (c *SimpleCommand) Run(s *Shell, args []string, callback func() int) int {
	opts := c.Flags()

	// Add help flag if not overridden.
	if c.ShowHelp == nil {
		c.ShowHelp = opts.BoolLong("help", 'h', "show this help and exit")
	}

	if err := opts.Getopt(args, nil); err != nil {
		s.builtinError(args, fmt.Sprintf("%s: %s", args[0], err))
		c.PrintHelp(s.Err)
		return StatusSyntaxError
	}

	if *c.ShowHelp {
		c.PrintHelp(s.Out)
		return 0
	}

	return callback()
}

// ColorPrinter colors shell output when enabled.
type ColorPrinter struct {
	enabled bool

	prompt *color.Color
	done   *color.Color
	warn   *color.Color
	fail   *color.Color
}

// NewColorPrinter creates a printer; colors are forced on or off regardless
// of what the output is.
func NewColorPrinter(enabled bool) *ColorPrinter {
	c := &ColorPrinter{
		enabled: enabled,
		prompt:  color.New(color.FgBlue, color.Bold),
		done:    color.New(color.FgGreen, color.Bold),
		warn:    color.New(color.FgYellow, color.Bold),
		fail:    color.New(color.FgRed, color.Bold),
	}
	for _, col := range []*color.Color{c.prompt, c.done, c.warn, c.fail} {
		if enabled {
			col.EnableColor()
		} else {
			col.DisableColor()
		}
	}
	return c
}

// Prompt colors the directory part of a prompt.
func (c *ColorPrinter) Prompt(dir string) string {
	return c.prompt.Sprint(dir)
}

// Notice writes a job status-change line.
func (c *ColorPrinter) Notice(w io.Writer, job jobs.Job, word string) {
	col := c.warn
	switch word {
	case "Done":
		col = c.done
	case "Killed":
		col = c.fail
	}

	fmt.Fprintln(w, job.Notice(col.Sprint(word)))
}
