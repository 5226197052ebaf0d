// SPDX-License-Identifier: Apache-2.0

// Package subscription persists browser push registrations and the
// delivery-health bookkeeping around them.
package subscription

import (
	"time"

	"github.com/google/uuid"
	"github.com/tripline/pushgate/internal/webpush"
	"github.com/upper/db/v4"
)

// Subscriptions are never deleted: a dead endpoint flips Active off and
// keeps its row for audit history.
type Subscription struct {
	ID          string     `db:"id" json:"id"`
	UserID      string     `db:"user_id" json:"user_id"`
	Endpoint    string     `db:"endpoint" json:"endpoint"`
	P256dh      string     `db:"p256dh" json:"-"`
	Auth        string     `db:"auth" json:"-"`
	UserAgent   string     `db:"user_agent" json:"user_agent,omitempty"`
	Active      bool       `db:"active" json:"active"`
	FailedCount int        `db:"failed_count" json:"failed_count"`
	LastUsedAt  *time.Time `db:"last_used_at,omitempty" json:"last_used_at,omitempty"`
	LastError   string     `db:"last_error" json:"last_error,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

func New(userID string, sub *webpush.Subscription, userAgent string) *Subscription {
	return &Subscription{
		ID:        uuid.NewString(),
		UserID:    userID,
		Endpoint:  sub.Endpoint,
		P256dh:    sub.P256dh,
		Auth:      sub.Auth,
		UserAgent: userAgent,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
}

func (s *Subscription) Store(sess db.Session) db.Store {
	return sess.Collection("subscription")
}

// AsWebPush exposes the wire-level triple the protocol layer works with.
func (s *Subscription) AsWebPush() *webpush.Subscription {
	return &webpush.Subscription{
		Endpoint: s.Endpoint,
		P256dh:   s.P256dh,
		Auth:     s.Auth,
	}
}

var _ db.Record = &Subscription{}
