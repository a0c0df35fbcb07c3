// Copyright (c) 2025 Tether
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"strings"

	"github.com/pterm/pterm"

	"tether/cli/internal/httperrors"
)

// networkHints returns a headline and troubleshooting hints for a failed
// call to the Appwrite endpoint.
func networkHints(c httperrors.Class) (string, []string) {
	switch c {
	case httperrors.ClassTimeout:
		return "The Appwrite endpoint took too long to respond.", []string{
			"Slow internet connection or a busy server",
			"Raise identity.timeout or try again later",
		}
	case httperrors.ClassDNS:
		return "The Appwrite endpoint's host name could not be resolved.", []string{
			"Check appwrite.endpoint in your config",
			"Check your DNS settings and internet connection",
		}
	case httperrors.ClassRefused:
		return "The Appwrite endpoint refused the connection.", []string{
			"Self-hosted: make sure Appwrite is running",
			"Check the port in appwrite.endpoint",
		}
	case httperrors.ClassTLS:
		return "A secure connection to Appwrite could not be established.", []string{
			"Check your system date and time",
			"Check proxy settings that intercept HTTPS",
		}
	case httperrors.ClassServer:
		return "The Appwrite server returned an internal error.", []string{
			"This is not a problem with your setup",
			"Self-hosted: check the appwrite container logs",
		}
	default:
		return "Tether could not reach the Appwrite endpoint.", []string{
			"Check your internet connection",
			"Check appwrite.endpoint in your config",
		}
	}
}

func writeHints(b *strings.Builder, headline string, hints []string) {
	b.WriteString(headline)
	b.WriteString("\n")
	for _, h := range hints {
		b.WriteString("  • ")
		b.WriteString(h)
		b.WriteString("\n")
	}
}

// NetworkErrorMessage explains a failed Appwrite call made while doing action.
// Technical details are masked.
func NetworkErrorMessage(err error, action string) string {
	var b strings.Builder
	b.WriteString(pterm.NewStyle(pterm.FgRed, pterm.Bold).Sprintf("Request failed while %s", action))
	b.WriteString("\n\n")
	headline, hints := networkHints(httperrors.Classify(err))
	writeHints(&b, headline, hints)
	b.WriteString("\n")
	b.WriteString(pterm.NewStyle(pterm.FgGray).Sprint("Technical details: " + Mask(err.Error())))
	return b.String()
}
