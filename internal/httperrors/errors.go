// Copyright (c) 2025 Tether
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package httperrors classifies failed calls to the Appwrite endpoint so the
// CLI can explain them.
package httperrors

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
	"syscall"
)

// Class is the category of a failed HTTP call.
type Class int

const (
	ClassUnknown Class = iota
	ClassTimeout
	ClassDNS
	ClassRefused
	ClassTLS
	ClassServer
)

func (c Class) String() string {
	switch c {
	case ClassTimeout:
		return "timeout"
	case ClassDNS:
		return "dns"
	case ClassRefused:
		return "refused"
	case ClassTLS:
		return "tls"
	case ClassServer:
		return "server"
	default:
		return "unknown"
	}
}

// Classify categorizes err. Transport failures are checked before the HTTP
// status, so a 5xx is only reported when the server actually answered.
func Classify(err error) Class {
	switch {
	case err == nil:
		return ClassUnknown
	case isTimeoutError(err):
		return ClassTimeout
	case isDNSError(err):
		return ClassDNS
	case isConnectionRefusedError(err):
		return ClassRefused
	case isSSLError(err):
		return ClassTLS
	case isServerError(err):
		return ClassServer
	}
	return ClassUnknown
}

// StatusCode returns the HTTP status carried by err, or 0 when the call never
// got an answer.
func StatusCode(err error) int {
	var sc interface{ StatusCode() int }
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return 0
}

func isTimeoutError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if StatusCode(err) != 0 {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}

func isDNSError(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

func isConnectionRefusedError(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "connection refused")
}

func isSSLError(err error) bool {
	if StatusCode(err) != 0 {
		return false
	}
	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "tls") ||
		strings.Contains(lower, "x509") ||
		strings.Contains(lower, "certificate") ||
		strings.Contains(lower, "handshake")
}

func isServerError(err error) bool {
	if code := StatusCode(err); code != 0 {
		return code >= 500
	}
	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "internal server error") ||
		strings.Contains(lower, "bad gateway") ||
		strings.Contains(lower, "service unavailable") ||
		strings.Contains(lower, "gateway timeout")
}

// ExtractHostFromURL extracts the hostname from a URL for error messages.
func ExtractHostFromURL(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil || u.Host == "" {
		return "server"
	}
	return u.Host
}
