// Copyright (c) 2025 Tether
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package terminal clears interactive prompts once they have been answered.
package terminal

import (
	"fmt"
	"math"
	"os"
	"strings"

	"golang.org/x/term"
)

// ClearPreviousLines erases a prompt of textLength characters, wrapped at the
// terminal width, plus the empty line left after Enter. Used after the login
// password prompt.
func ClearPreviousLines(textLength int) {
	fmt.Print(clearSequence(textLength, width()))
}

func width() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return 80
}

// clearSequence builds the ANSI codes that erase the wrapped text and the
// line the cursor moved to after Enter.
func clearSequence(textLength, termWidth int) string {
	if termWidth <= 0 {
		termWidth = 80
	}
	lines := int(math.Ceil(float64(textLength) / float64(termWidth)))
	if lines < 1 {
		lines = 1
	}
	lines++

	var b strings.Builder
	for i := 0; i < lines; i++ {
		b.WriteString("\r\x1b[2K")
		if i < lines-1 {
			b.WriteString("\x1b[1A")
		}
	}
	return b.String()
}
