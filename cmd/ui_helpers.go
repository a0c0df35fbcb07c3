// Copyright (c) 2025 Tether
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// startInlineSpinner draws frames followed by text on a single line until the
// returned stop function is called. Stopping clears the line and waits for
// the drawing goroutine to exit.
func startInlineSpinner(w io.Writer, text string, frames []string, interval time.Duration) func() {
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		i := 0
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			line := fmt.Sprintf("%s %s", frames[i%len(frames)], text)
			select {
			case <-stop:
				fmt.Fprintf(w, "\r%*s\r", len(line), "")
				return
			case <-ticker.C:
				fmt.Fprintf(w, "\r%s", line)
				i++
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			wg.Wait()
		})
	}
}

// describeState renders a one-line summary of a session snapshot.
func describeState(loading, loggedIn bool, label string) string {
	switch {
	case loading && loggedIn:
		return fmt.Sprintf("restoring session for %s", label)
	case loading:
		return "checking session"
	case loggedIn:
		return fmt.Sprintf("signed in as %s", label)
	default:
		return "logged out"
	}
}
