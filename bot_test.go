package main

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

type recordingLinker struct {
	calls   int
	lastID  string
	lastSID string
	err     error
}

func (l *recordingLinker) Link(discordID, steamID string) error {
	l.calls++
	l.lastID = discordID
	l.lastSID = steamID
	return l.err
}

func TestLinkSteamAccountValidation(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"sixteen digits", "1234567890123456"},
		{"wrong prefix", "12345671234567890"},
		{"letters", "7656119abcdefghij"},
		{"too long", "765611912345678901"},
		{"empty", ""},
		{"prefix only", "7656119"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &recordingLinker{}
			reply := linkSteamAccount(store, "user1", tt.input, "<@admin>")

			if store.calls != 0 {
				t.Errorf("store contacted for invalid input %q", tt.input)
			}
			if !strings.Contains(reply, "valid 17-digit SteamID") {
				t.Errorf("reply = %q, want the corrective message", reply)
			}
		})
	}
}

func TestLinkSteamAccountSuccess(t *testing.T) {
	store := &recordingLinker{}

	// Whitespace is trimmed before validation, like the modal does.
	reply := linkSteamAccount(store, "user1", " 76561191234567890 ", "<@admin>")

	if store.calls != 1 {
		t.Fatalf("store called %d times, want 1", store.calls)
	}
	if store.lastID != "user1" || store.lastSID != "76561191234567890" {
		t.Errorf("Link(%q, %q)", store.lastID, store.lastSID)
	}
	if !strings.Contains(reply, "successfully linked") {
		t.Errorf("reply = %q", reply)
	}
}

func TestLinkSteamAccountStoreFailure(t *testing.T) {
	store := &recordingLinker{err: errors.New("Discord ID user1 not found in the sheet")}

	reply := linkSteamAccount(store, "user1", "76561191234567890", "<@admin>")

	if !strings.Contains(reply, "Failed to link your SteamID") {
		t.Errorf("reply = %q", reply)
	}
	if !strings.Contains(reply, "<@admin>") {
		t.Errorf("reply %q does not mention the admin", reply)
	}
}

func TestTruncateMessage(t *testing.T) {
	short := "hello"
	if got := truncateMessage(short, 2000); got != short {
		t.Errorf("truncateMessage(short) = %q", got)
	}

	long := strings.Repeat("x", 2500)
	got := truncateMessage(long, 2000)
	if len(got) > 2000 {
		t.Errorf("truncated message is %d bytes, want at most 2000", len(got))
	}
	if !strings.HasPrefix(got, strings.Repeat("x", 2000-len(truncationNotice))) {
		t.Error("truncated message does not keep the leading content")
	}
	if !strings.HasSuffix(got, "(Message truncated due to length limit)") {
		t.Errorf("truncated message ends with %q", got[len(got)-40:])
	}

	// Multi-byte usernames must not be cut mid-rune.
	wide := strings.Repeat("é", 1200)
	got = truncateMessage(wide, 2000)
	if len(got) > 2000 {
		t.Errorf("truncated message is %d bytes, want at most 2000", len(got))
	}
	if !utf8.ValidString(got) {
		t.Error("truncation split a rune")
	}
	if !strings.HasSuffix(got, "(Message truncated due to length limit)") {
		t.Errorf("truncated message ends with %q", got)
	}
}

func TestAdminMention(t *testing.T) {
	cfg := &Config{adminID: "42"}
	if got := cfg.adminMention(); got != "<@42>" {
		t.Errorf("adminMention() = %q", got)
	}

	cfg = &Config{}
	if got := cfg.adminMention(); got != "the server admin" {
		t.Errorf("adminMention() without an admin = %q", got)
	}
}
