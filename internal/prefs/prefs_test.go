// SPDX-License-Identifier: Apache-2.0
package prefs_test

import (
	"testing"
	"time"

	"github.com/tripline/pushgate/internal/prefs"
)

func at(hour, minute int) time.Time {
	return time.Date(2025, 6, 15, hour, minute, 0, 0, time.UTC)
}

func TestQuietHoursWrapMidnight(t *testing.T) {
	p := prefs.Defaults("bob")
	p.QuietEnabled = true
	p.QuietStart = "22:00"
	p.QuietEnd = "08:00"

	cases := []struct {
		now       time.Time
		suppress  bool
		labelTime string
	}{
		{at(23, 30), true, "23:30"},
		{at(3, 0), true, "03:00"},
		{at(12, 0), false, "12:00"},
		{at(22, 0), true, "22:00"},
		{at(8, 0), false, "08:00"}, // end is exclusive
		{at(7, 59), true, "07:59"},
	}

	for _, tc := range cases {
		if got := p.InQuietHours(tc.now); got != tc.suppress {
			t.Fatalf("at %s expected suppress=%v, got %v", tc.labelTime, tc.suppress, got)
		}
	}
}

func TestQuietHoursSameDayWindow(t *testing.T) {
	p := prefs.Defaults("bob")
	p.QuietEnabled = true
	p.QuietStart = "13:00"
	p.QuietEnd = "15:00"

	if !p.InQuietHours(at(14, 0)) {
		t.Fatal("expected 14:00 inside 13:00-15:00")
	}
	if p.InQuietHours(at(15, 0)) {
		t.Fatal("expected 15:00 outside 13:00-15:00")
	}
	if p.InQuietHours(at(9, 0)) {
		t.Fatal("expected 09:00 outside 13:00-15:00")
	}
}

func TestQuietHoursTimezone(t *testing.T) {
	p := prefs.Defaults("bob")
	p.QuietEnabled = true
	p.QuietStart = "22:00"
	p.QuietEnd = "08:00"
	p.Timezone = "America/Mexico_City"

	// 05:00 UTC is 23:00 in Mexico City (UTC-6)
	if !p.InQuietHours(at(5, 0)) {
		t.Fatal("expected 05:00 UTC to fall inside the recipient's local window")
	}
	// 18:00 UTC is midday local
	if p.InQuietHours(at(18, 0)) {
		t.Fatal("expected 18:00 UTC to fall outside the recipient's local window")
	}
}

func TestQuietHoursBadInputDoesNotMute(t *testing.T) {
	p := prefs.Defaults("bob")
	p.QuietEnabled = true
	p.QuietStart = "whenever"
	p.QuietEnd = "08:00"

	if p.InQuietHours(at(3, 0)) {
		t.Fatal("an unparseable window must not suppress delivery")
	}

	p.QuietStart = "22:00"
	p.Timezone = "Mars/Olympus_Mons"
	// bad timezone falls back to UTC rather than erroring
	if !p.InQuietHours(at(23, 30)) {
		t.Fatal("expected UTC fallback to keep the window working")
	}
}

func TestQuietHoursDisabled(t *testing.T) {
	p := prefs.Defaults("bob")
	p.QuietStart = "22:00"
	p.QuietEnd = "08:00"

	if p.InQuietHours(at(23, 30)) {
		t.Fatal("disabled quiet hours must never suppress")
	}
}

func TestTypeAllowed(t *testing.T) {
	p := prefs.Defaults("bob")
	p.Payments = false
	p.Polls = false

	if p.TypeAllowed("payment_request") {
		t.Fatal("payments are muted")
	}
	if p.TypeAllowed("poll_vote") {
		t.Fatal("polls are muted")
	}
	if !p.TypeAllowed("chat_message") {
		t.Fatal("chat messages are not muted")
	}
	if !p.TypeAllowed("some_future_type") {
		t.Fatal("unknown types default to allowed")
	}
}

func TestShouldDeliver(t *testing.T) {
	p := prefs.Defaults("bob")
	p.QuietEnabled = true
	p.QuietStart = "22:00"
	p.QuietEnd = "08:00"
	p.Tasks = false

	if prefs.ShouldDeliver(p, "chat_message", at(23, 30)) {
		t.Fatal("quiet hours suppress regardless of type")
	}
	if prefs.ShouldDeliver(p, "task_assigned", at(12, 0)) {
		t.Fatal("muted type suppresses outside quiet hours")
	}
	if !prefs.ShouldDeliver(p, "chat_message", at(12, 0)) {
		t.Fatal("allowed type outside quiet hours delivers")
	}
}

func TestDefaultsAllowEverything(t *testing.T) {
	p := prefs.Defaults("new-user")
	for _, typ := range []string{
		"chat_message", "itinerary_update", "payment_request",
		"trip_reminder", "trip_invite", "poll_vote",
		"task_assigned", "broadcast", "mention",
	} {
		if !prefs.ShouldDeliver(p, typ, at(12, 0)) {
			t.Fatalf("new users must not be muted for %s", typ)
		}
	}
}
