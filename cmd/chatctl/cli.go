package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

var (
	userColor     = color.New(color.FgWhite)
	replyColor    = color.New(color.FgCyan)
	noticeColor   = color.New(color.FgHiBlack)
	errorColor    = color.New(color.FgRed)
	titleColor    = color.New(color.FgMagenta, color.Bold)
	promptColor   = color.New(color.FgHiBlue)
	activityColor = color.New(color.FgYellow)
)

// printer writes through readline's stdout so output does not garble the prompt.
type printer struct {
	out io.Writer
}

func (p printer) title(format string, args ...any) {
	titleColor.Fprintf(p.out, "== "+format+" ==\n", args...)
}

func (p printer) user(text string) {
	userColor.Fprintf(p.out, "> %s\n", text)
}

func (p printer) reply(text string) {
	replyColor.Fprintf(p.out, "%s\n", text)
}

func (p printer) notice(format string, args ...any) {
	noticeColor.Fprintf(p.out, format+"\n", args...)
}

func (p printer) activity(format string, args ...any) {
	activityColor.Fprintf(p.out, format+"\n", args...)
}

func (p printer) err(err error) {
	errorColor.Fprintf(p.out, "error: %s\n", err.Error())
}

func shortId(id fmt.Stringer) string {
	return id.String()[:8]
}
