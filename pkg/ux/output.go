// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux provides styled terminal output for the cssmod CLI.
package ux

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Color palette - deep ocean teals
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7") // Bright teal - highlights, success
	ColorTealPrimary = lipgloss.Color("#20B9B4") // Primary teal - main brand color
	ColorTealDeep    = lipgloss.Color("#16858E") // Deep teal - borders, accents
	ColorSlate       = lipgloss.Color("#2C4A54") // Slate - muted text, borders

	// Semantic colors
	ColorSuccess = lipgloss.Color("#2CD7C7")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
)

// Styles provides pre-configured lipgloss styles
var Styles = struct {
	Title     lipgloss.Style
	Subtitle  lipgloss.Style
	Bold      lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Highlight lipgloss.Style

	Box        lipgloss.Style
	WarningBox lipgloss.Style
}{
	Title:     lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Subtitle:  lipgloss.NewStyle().Foreground(ColorTealPrimary),
	Bold:      lipgloss.NewStyle().Bold(true),
	Muted:     lipgloss.NewStyle().Foreground(ColorSlate),
	Success:   lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning:   lipgloss.NewStyle().Foreground(ColorWarning),
	Error:     lipgloss.NewStyle().Foreground(ColorError),
	Highlight: lipgloss.NewStyle().Foreground(ColorTealBright).Bold(true),

	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorTealDeep).
		Padding(0, 1),
	WarningBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorWarning).
		Padding(0, 1),
}

// Icon provides themed status icons
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconPending Icon = "○"
	IconArrow   Icon = "→"
	IconBullet  Icon = "•"
)

// Render returns the icon with appropriate styling
func (i Icon) Render() string {
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	case IconPending:
		return Styles.Muted.Render(string(i))
	default:
		return string(i)
	}
}

// Printer writes messages at a personality level.
//
// Machine output is line oriented: one record per line with tab
// separated fields, and warnings and errors go to Err.
type Printer struct {
	Out   io.Writer
	Err   io.Writer
	Level PersonalityLevel
}

// NewPrinter returns a printer for out and errOut with the level detected
// from out.
func NewPrinter(out, errOut io.Writer) *Printer {
	return &Printer{Out: out, Err: errOut, Level: DetectPersonality(out)}
}

func (p *Printer) machine() bool { return p.Level == PersonalityMachine }

func (p *Printer) styled(s lipgloss.Style, text string) string {
	if p.Level == PersonalityMinimal {
		return text
	}
	return s.Render(text)
}

func (p *Printer) icon(i Icon) string {
	if p.Level == PersonalityMinimal {
		return string(i)
	}
	return i.Render()
}

// Title prints a styled title
func (p *Printer) Title(text string) {
	if p.machine() {
		return
	}
	fmt.Fprintln(p.Out, p.styled(Styles.Title, text))
}

// Success prints a success message with checkmark
func (p *Printer) Success(text string) {
	if p.machine() {
		fmt.Fprintf(p.Out, "OK: %s\n", text)
		return
	}
	fmt.Fprintf(p.Out, "%s %s\n", p.icon(IconSuccess), p.styled(Styles.Success, text))
}

// Warning prints a warning message
func (p *Printer) Warning(text string) {
	if p.machine() {
		fmt.Fprintf(p.Err, "WARN: %s\n", text)
		return
	}
	fmt.Fprintf(p.Out, "%s %s\n", p.icon(IconWarning), p.styled(Styles.Warning, text))
}

// Error prints an error message
func (p *Printer) Error(text string) {
	if p.machine() {
		fmt.Fprintf(p.Err, "ERROR: %s\n", text)
		return
	}
	fmt.Fprintf(p.Out, "%s %s\n", p.icon(IconError), p.styled(Styles.Error, text))
}

// Info prints an informational message
func (p *Printer) Info(text string) {
	if p.machine() {
		fmt.Fprintln(p.Out, text)
		return
	}
	fmt.Fprintf(p.Out, "%s %s\n", p.styled(Styles.Muted, "│"), text)
}

// Box prints content in a rounded box. Below PersonalityFull it prints
// the title and content as plain lines.
func (p *Printer) Box(title, content string) {
	if p.Level != PersonalityFull {
		if p.machine() {
			fmt.Fprintf(p.Out, "%s:\n%s\n", title, content)
			return
		}
		fmt.Fprintf(p.Out, "%s\n%s\n", title, content)
		return
	}
	titleLine := Styles.Title.Render(title)
	fmt.Fprintln(p.Out, Styles.Box.Render(titleLine+"\n"+strings.TrimRight(content, "\n")))
}

// FileStatus prints a file with its status and an optional detail.
func (p *Printer) FileStatus(path string, status Icon, detail string) {
	switch p.Level {
	case PersonalityMachine:
		fmt.Fprintf(p.Out, "%s\t%s\t%s\n", status, path, detail)
	case PersonalityMinimal:
		fmt.Fprintf(p.Out, "%s %s\n", status, path)
	default:
		if detail != "" {
			fmt.Fprintf(p.Out, "%s %s %s\n", status.Render(), path, Styles.Muted.Render("("+detail+")"))
		} else {
			fmt.Fprintf(p.Out, "%s %s\n", status.Render(), path)
		}
	}
}

// Summary prints outcome counts.
func (p *Printer) Summary(parsed, unparseable, notFound int) {
	total := parsed + unparseable + notFound
	if p.machine() {
		fmt.Fprintf(p.Out, "SUMMARY: parsed=%d unparseable=%d not_found=%d total=%d\n",
			parsed, unparseable, notFound, total)
		return
	}
	fmt.Fprintf(p.Out, "\n%s %s  %s %s  %s %s  %s %s\n",
		p.styled(Styles.Success, fmt.Sprintf("%d", parsed)), p.styled(Styles.Muted, "parsed"),
		p.styled(Styles.Error, fmt.Sprintf("%d", unparseable)), p.styled(Styles.Muted, "unparseable"),
		p.styled(Styles.Warning, fmt.Sprintf("%d", notFound)), p.styled(Styles.Muted, "not found"),
		p.styled(Styles.Bold, fmt.Sprintf("%d", total)), p.styled(Styles.Muted, "total"),
	)
}
