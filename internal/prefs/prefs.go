// SPDX-License-Identifier: Apache-2.0

// Package prefs decides whether a recipient wants to be disturbed by a
// given notification right now. Both gates are advisory at the
// application layer; push services know nothing about them.
package prefs

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/upper/db/v4"
)

type Preferences struct {
	UserID         string `db:"user_id" json:"user_id"`
	ChatMessages   bool   `db:"chat_messages" json:"chat_messages"`
	CalendarEvents bool   `db:"calendar_events" json:"calendar_events"`
	Payments       bool   `db:"payments" json:"payments"`
	Reminders      bool   `db:"reminders" json:"reminders"`
	Invites        bool   `db:"invites" json:"invites"`
	Polls          bool   `db:"polls" json:"polls"`
	Tasks          bool   `db:"tasks" json:"tasks"`
	Broadcasts     bool   `db:"broadcasts" json:"broadcasts"`
	Mentions       bool   `db:"mentions" json:"mentions"`
	QuietEnabled   bool   `db:"quiet_enabled" json:"quiet_enabled"`
	QuietStart     string `db:"quiet_start" json:"quiet_start,omitempty"`
	QuietEnd       string `db:"quiet_end" json:"quiet_end,omitempty"`
	Timezone       string `db:"timezone" json:"timezone,omitempty"`
}

func (p *Preferences) Store(sess db.Session) db.Store {
	return sess.Collection("preferences")
}

var _ db.Record = &Preferences{}

// Defaults allows every category and disables quiet hours, so users
// without a stored row are never silently muted.
func Defaults(userID string) *Preferences {
	return &Preferences{
		UserID:         userID,
		ChatMessages:   true,
		CalendarEvents: true,
		Payments:       true,
		Reminders:      true,
		Invites:        true,
		Polls:          true,
		Tasks:          true,
		Broadcasts:     true,
		Mentions:       true,
	}
}

// TypeAllowed maps a notification type to its preference column.
// Unknown types are allowed rather than dropped.
func (p *Preferences) TypeAllowed(notificationType string) bool {
	switch notificationType {
	case "chat_message":
		return p.ChatMessages
	case "itinerary_update":
		return p.CalendarEvents
	case "trip_reminder":
		return p.Reminders
	case "payment_request":
		return p.Payments
	case "trip_invite":
		return p.Invites
	case "poll_vote":
		return p.Polls
	case "task_assigned":
		return p.Tasks
	case "broadcast":
		return p.Broadcasts
	case "mention":
		return p.Mentions
	default:
		return true
	}
}

// parseClock turns "HH:MM" into minutes since midnight.
func parseClock(src string) (int, error) {
	hm := strings.Split(src, ":")
	if len(hm) != 2 {
		return 0, fmt.Errorf("unknown format for clock time: %s", src)
	}

	h, err := strconv.Atoi(hm[0])
	if err != nil {
		return 0, err
	}
	m, err := strconv.Atoi(hm[1])
	if err != nil {
		return 0, err
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("clock time out of range: %s", src)
	}

	return h*60 + m, nil
}

// InQuietHours evaluates the [start, end) window against the
// recipient's local wall clock. start > end means the window wraps
// midnight. A bad timezone falls back to UTC; a bad window disables
// quiet hours instead of muting the user.
func (p *Preferences) InQuietHours(now time.Time) bool {
	if !p.QuietEnabled {
		return false
	}

	start, err := parseClock(p.QuietStart)
	if err != nil {
		logrus.Debugf("ignoring quiet hours for %s: %s", p.UserID, err)
		return false
	}
	end, err := parseClock(p.QuietEnd)
	if err != nil {
		logrus.Debugf("ignoring quiet hours for %s: %s", p.UserID, err)
		return false
	}
	if start == end {
		return false
	}

	loc := time.UTC
	if p.Timezone != "" {
		if parsed, err := time.LoadLocation(p.Timezone); err == nil {
			loc = parsed
		} else {
			logrus.Debugf("unknown timezone %q for %s, using UTC", p.Timezone, p.UserID)
		}
	}

	local := now.In(loc)
	current := local.Hour()*60 + local.Minute()

	if start < end {
		return current >= start && current < end
	}
	return current >= start || current < end
}

// ShouldDeliver is the single gate the dispatcher consults per
// recipient.
func ShouldDeliver(p *Preferences, notificationType string, now time.Time) bool {
	return p.TypeAllowed(notificationType) && !p.InQuietHours(now)
}

type Store struct {
	sess db.Session
}

func NewStore(sess db.Session) *Store {
	return &Store{sess: sess}
}

// Get returns the stored preferences, or the allow-everything defaults
// when the user never saved any.
func (st *Store) Get(userID string) (*Preferences, error) {
	p := &Preferences{}
	err := st.sess.Collection("preferences").Find(db.Cond{"user_id": userID}).One(p)
	if err != nil {
		if err == db.ErrNoMoreRows {
			return Defaults(userID), nil
		}
		return nil, err
	}
	return p, nil
}

func (st *Store) Save(p *Preferences) error {
	count, err := st.sess.Collection("preferences").Find(db.Cond{"user_id": p.UserID}).Count()
	if err != nil {
		return err
	}
	if count > 0 {
		return st.sess.Collection("preferences").Find(db.Cond{"user_id": p.UserID}).Update(p)
	}
	_, err = st.sess.Collection("preferences").Insert(p)
	return err
}
