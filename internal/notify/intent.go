// SPDX-License-Identifier: Apache-2.0

// Package notify turns a validated notification intent into one
// encrypted delivery attempt per eligible subscription.
package notify

import (
	"encoding/json"
	"time"

	"github.com/tripline/pushgate/internal/errors"
)

type Type string

const (
	TypeChatMessage     Type = "chat_message"
	TypeItineraryUpdate Type = "itinerary_update"
	TypePaymentRequest  Type = "payment_request"
	TypeTripReminder    Type = "trip_reminder"
	TypeTripInvite      Type = "trip_invite"
	TypePollVote        Type = "poll_vote"
	TypeTaskAssigned    Type = "task_assigned"
	TypeBroadcast       Type = "broadcast"
	TypeMention         Type = "mention"
)

func (t Type) Valid() bool {
	switch t {
	case TypeChatMessage, TypeItineraryUpdate, TypePaymentRequest,
		TypeTripReminder, TypeTripInvite, TypePollVote,
		TypeTaskAssigned, TypeBroadcast, TypeMention:
		return true
	}
	return false
}

// Action is an interactive button on the rendered notification.
type Action struct {
	Action string `json:"action"`
	Title  string `json:"title"`
	Icon   string `json:"icon,omitempty"`
}

const DefaultTTL = 300

// Intent is the unit of work callers submit: what to say, who should
// hear it, and how the client should render it. Data is an opaque
// routing payload for deep links; nothing here interprets it.
type Intent struct {
	UserIDs       []string `json:"userIds,omitempty"`
	TripID        string   `json:"tripId,omitempty"`
	ExcludeUserID string   `json:"excludeUserId,omitempty"`

	Type               Type           `json:"type"`
	Title              string         `json:"title"`
	Body               string         `json:"body"`
	Icon               string         `json:"icon,omitempty"`
	Badge              string         `json:"badge,omitempty"`
	Image              string         `json:"image,omitempty"`
	Tag                string         `json:"tag,omitempty"`
	RequireInteraction bool           `json:"requireInteraction,omitempty"`
	TTL                int            `json:"ttl,omitempty"`
	Data               map[string]any `json:"data,omitempty"`
	Actions            []Action       `json:"actions,omitempty"`
}

func (in *Intent) Validate() error {
	if in.Title == "" {
		return errors.BadRequest{Reason: "title is required"}
	}
	if in.Body == "" {
		return errors.BadRequest{Reason: "body is required"}
	}
	if len(in.UserIDs) == 0 && in.TripID == "" {
		return errors.BadRequest{Reason: "either userIds or tripId is required"}
	}
	if !in.Type.Valid() {
		return errors.BadRequest{Reason: "unknown notification type"}
	}
	return nil
}

func (in *Intent) ttlSeconds() int {
	if in.TTL > 0 {
		return in.TTL
	}
	return DefaultTTL
}

// payload is the JSON the service worker receives. One payload is
// built per batch and shared across recipients.
type payload struct {
	Type               Type           `json:"type"`
	Title              string         `json:"title"`
	Body               string         `json:"body"`
	Icon               string         `json:"icon,omitempty"`
	Badge              string         `json:"badge,omitempty"`
	Image              string         `json:"image,omitempty"`
	Tag                string         `json:"tag,omitempty"`
	Data               map[string]any `json:"data,omitempty"`
	Actions            []Action       `json:"actions,omitempty"`
	RequireInteraction bool           `json:"requireInteraction"`
	Renotify           bool           `json:"renotify"`
	Timestamp          int64          `json:"timestamp"`
}

func (in *Intent) Payload(now time.Time) ([]byte, error) {
	return json.Marshal(payload{
		Type:               in.Type,
		Title:              in.Title,
		Body:               in.Body,
		Icon:               in.Icon,
		Badge:              in.Badge,
		Image:              in.Image,
		Tag:                in.Tag,
		Data:               in.Data,
		Actions:            in.Actions,
		RequireInteraction: in.RequireInteraction,
		Renotify:           true,
		Timestamp:          now.UnixMilli(),
	})
}
