package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

// printer writes the user-facing result lines. Color is only used when
// writing to the real terminal.
type printer struct {
	out     io.Writer
	err     io.Writer
	success *color.Color
	failure *color.Color
	label   *color.Color
}

func newPrinter(out, errOut io.Writer) *printer {
	p := &printer{
		out:     out,
		err:     errOut,
		success: color.New(color.FgGreen),
		failure: color.New(color.FgRed),
		label:   color.New(color.Bold),
	}
	if !isTerminal(out) {
		p.success.DisableColor()
		p.label.DisableColor()
	}
	if !isTerminal(errOut) {
		p.failure.DisableColor()
	}
	return p
}

func (p *printer) Successf(format string, args ...any) {
	_, _ = p.success.Fprintf(p.out, format+"\n", args...)
}

func (p *printer) Errorf(format string, args ...any) {
	_, _ = p.failure.Fprintf(p.err, format+"\n", args...)
}

func (p *printer) Field(name string, value any) {
	_, _ = p.label.Fprintf(p.out, "%s:", name)
	_, _ = fmt.Fprintf(p.out, " %v\n", value)
}

func isTerminal(w io.Writer) bool {
	if color.NoColor {
		return false
	}
	return w == os.Stdout || w == os.Stderr
}
