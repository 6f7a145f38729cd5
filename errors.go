/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"log"
	"time"
	"unicode/utf8"
)

func logf(cfg *Config, format string, args ...any) {
	if !cfg.verbose {
		return
	}

	log.Printf("%s | "+format, append([]any{time.Now().Format(logDate)}, args...)...)
}

const truncationNotice = "...\n(Message truncated due to length limit)"

// truncateMessage caps a reply at Discord's message length limit. The
// notice counts against the limit, and the cut never splits a rune.
func truncateMessage(s string, limit int) string {
	if len(s) <= limit {
		return s
	}

	cut := limit - len(truncationNotice)
	if cut < 0 {
		cut = 0
	}
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}

	return s[:cut] + truncationNotice
}
