// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui holds the small set of colored-output helpers the CLI uses
// for human-readable (non-JSON) output.
package ui

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

var (
	headerColor  = color.New(color.FgCyan, color.Bold)
	subColor     = color.New(color.Bold)
	labelColor   = color.New(color.FgBlue)
	dimColor     = color.New(color.Faint)
	warningColor = color.New(color.FgYellow, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	infoColor    = color.New(color.FgGreen)
)

// InitColors disables color output when noColor is set, NO_COLOR is
// present, or stdout is not a terminal.
func InitColors(noColor bool) {
	if noColor || !isatty.IsTerminal(os.Stdout.Fd()) {
		color.NoColor = true
	}
}

// Header prints a bold section title.
func Header(s string) { headerColor.Println(s) }

// SubHeader prints a bold, lower-emphasis title.
func SubHeader(s string) { subColor.Println(s) }

// Label formats a field name for use before a value on the same line.
func Label(s string) string { return labelColor.Sprint(s) }

// DimText renders s in a dimmed style for secondary detail (paths, ids).
func DimText(s string) string { return dimColor.Sprint(s) }

// CountText renders a numeric count, dimmed when zero.
func CountText(n int) string {
	if n == 0 {
		return dimColor.Sprint("0")
	}
	return fmt.Sprintf("%d", n)
}

// Warning prints a yellow warning line to stderr.
func Warning(s string) { warningColor.Fprintln(os.Stderr, s) }

// Warningf formats and prints a yellow warning line to stderr.
func Warningf(format string, args ...any) { warningColor.Fprintf(os.Stderr, format+"\n", args...) }

// Errorf formats and prints a red error line to stderr.
func Errorf(format string, args ...any) { errorColor.Fprintf(os.Stderr, format+"\n", args...) }

// Info prints a green informational line to stderr.
func Info(s string) { infoColor.Fprintln(os.Stderr, s) }
