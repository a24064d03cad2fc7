// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux provides terminal output styling for the scholar CLI.
package ux

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Color palette
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7") // highlights, success
	ColorTealPrimary = lipgloss.Color("#20B9B4")
	ColorTealDeep    = lipgloss.Color("#16858E") // borders
	ColorSlate       = lipgloss.Color("#2C4A54") // muted text

	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
)

// Styles holds the pre-built lipgloss styles.
var Styles = struct {
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Muted    lipgloss.Style
	Success  lipgloss.Style
	Warning  lipgloss.Style
	Error    lipgloss.Style

	Box      lipgloss.Style
	ErrorBox lipgloss.Style
}{
	Title:    lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Subtitle: lipgloss.NewStyle().Foreground(ColorTealPrimary),
	Muted:    lipgloss.NewStyle().Foreground(ColorSlate),
	Success:  lipgloss.NewStyle().Foreground(ColorTealBright),
	Warning:  lipgloss.NewStyle().Foreground(ColorWarning),
	Error:    lipgloss.NewStyle().Foreground(ColorError),

	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorTealDeep).
		Padding(0, 1),
	ErrorBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorError).
		Padding(0, 1),
}

// Icon is a status glyph.
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconArrow   Icon = "→"
)

// boxWidth is the content width of boxed output.
const boxWidth = 72

// =============================================================================
// Printer
// =============================================================================

// Printer writes styled output to one writer.
//
// # Description
//
// Plain mode prints unstyled "OK:", "WARN:" and "ERROR:" prefixed lines
// suitable for scripts. NewPrinter picks plain mode when the writer is not a
// terminal or NO_COLOR is set.
//
// # Thread Safety
//
// Not safe for concurrent use.
type Printer struct {
	out   io.Writer
	plain bool
}

// NewPrinter returns a Printer for out.
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out, plain: !isTerminal(out) || os.Getenv("NO_COLOR") != ""}
}

// NewPlainPrinter returns a Printer that never styles its output.
func NewPlainPrinter(out io.Writer) *Printer {
	return &Printer{out: out, plain: true}
}

// Plain reports whether styling is disabled.
func (p *Printer) Plain() bool { return p.plain }

// Title prints a heading. Plain mode omits it.
func (p *Printer) Title(text string) {
	if p.plain {
		return
	}
	fmt.Fprintln(p.out, Styles.Title.Render(text))
}

// Success prints a success line.
func (p *Printer) Success(text string) {
	if p.plain {
		fmt.Fprintf(p.out, "OK: %s\n", text)
		return
	}
	fmt.Fprintf(p.out, "%s %s\n", Styles.Success.Render(string(IconSuccess)), Styles.Success.Render(text))
}

// Warning prints a warning line.
func (p *Printer) Warning(text string) {
	if p.plain {
		fmt.Fprintf(p.out, "WARN: %s\n", text)
		return
	}
	fmt.Fprintf(p.out, "%s %s\n", Styles.Warning.Render(string(IconWarning)), Styles.Warning.Render(text))
}

// Error prints an error line.
func (p *Printer) Error(text string) {
	if p.plain {
		fmt.Fprintf(p.out, "ERROR: %s\n", text)
		return
	}
	fmt.Fprintf(p.out, "%s %s\n", Styles.Error.Render(string(IconError)), Styles.Error.Render(text))
}

// Info prints an unstyled line.
func (p *Printer) Info(text string) {
	fmt.Fprintln(p.out, text)
}

// Box prints content under title in a rounded box.
func (p *Printer) Box(title, content string) {
	if p.plain {
		fmt.Fprintf(p.out, "%s:\n%s\n", title, content)
		return
	}
	fmt.Fprintln(p.out, Styles.Box.Width(boxWidth).Render(Styles.Title.Render(title)+"\n"+content))
}

// ErrorBox prints content under title in an error-styled box.
func (p *Printer) ErrorBox(title, content string) {
	if p.plain {
		fmt.Fprintf(p.out, "ERROR %s: %s\n", title, content)
		return
	}
	fmt.Fprintln(p.out, Styles.ErrorBox.Width(boxWidth).Render(Styles.Error.Bold(true).Render(title)+"\n"+content))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
