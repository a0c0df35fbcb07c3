// Copyright (c) 2025 Tether
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"strings"

	"github.com/pterm/pterm"

	"tether/cli/internal/errors"
	"tether/cli/internal/httperrors"
)

// CheckFailure is the category of a failed session check.
type CheckFailure int

const (
	CheckFailureUnknown CheckFailure = iota
	CheckFailureStorage
	CheckFailureCorruptCache
	CheckFailureNetwork
	CheckFailureTimeout
	CheckFailureServer
)

// ClassifyCheckError categorizes a bootstrap error for presentation.
func ClassifyCheckError(err error) CheckFailure {
	if err == nil {
		return CheckFailureUnknown
	}
	switch errors.KindOf(err) {
	case errors.StoreReadFailed, errors.PersistFailed:
		return CheckFailureStorage
	case errors.DecodeFailed:
		return CheckFailureCorruptCache
	}

	switch httperrors.Classify(err) {
	case httperrors.ClassTimeout:
		return CheckFailureTimeout
	case httperrors.ClassServer:
		return CheckFailureServer
	case httperrors.ClassDNS, httperrors.ClassRefused, httperrors.ClassTLS:
		return CheckFailureNetwork
	}
	return CheckFailureUnknown
}

// FormatCheckError explains a failed session check. The session is treated as
// logged out either way; this only tells the user why.
func FormatCheckError(err error) string {
	var b strings.Builder

	b.WriteString(pterm.NewStyle(pterm.FgYellow, pterm.Bold).Sprint("Session check failed"))
	b.WriteString("\n\n")

	switch ClassifyCheckError(err) {
	case CheckFailureStorage:
		writeHints(&b, "The local session cache could not be accessed.", []string{
			"The OS keyring may be locked",
			"TETHER_KEYRING_PASSWORD may be missing for the file keyring",
			"The Postgres store may be unreachable",
		})
	case CheckFailureCorruptCache:
		writeHints(&b, "The cached user record is unreadable.", []string{
			"Run 'tether logout' to clear it",
		})
	case CheckFailureNetwork, CheckFailureTimeout, CheckFailureServer:
		headline, hints := networkHints(httperrors.Classify(err))
		writeHints(&b, headline, hints)
	default:
		b.WriteString("An unexpected error occurred while checking the session.\n")
	}

	b.WriteString("\n")
	b.WriteString(pterm.NewStyle(pterm.FgYellow).Sprint("→ Continuing as logged out"))
	b.WriteString("\n")

	if err != nil {
		b.WriteString("\n")
		b.WriteString(pterm.NewStyle(pterm.FgGray).Sprint("Technical details: " + Mask(err.Error())))
	}
	return b.String()
}
