// SPDX-License-Identifier: Apache-2.0
package subscription

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tripline/pushgate/internal/webpush"
	"github.com/upper/db/v4"
)

// FailureThreshold soft-suppresses a subscription from targeting after
// this many consecutive failed attempts. The row stays active: only a
// push-service 404/410 retires it for good, and one successful delivery
// resets the counter.
const FailureThreshold = 3

type Store struct {
	sess db.Session
}

func NewStore(sess db.Session) *Store {
	return &Store{sess: sess}
}

func (st *Store) collection() db.Collection {
	return st.sess.Collection("subscription")
}

// ListEligible returns the subscriptions worth attempting for the given
// users: active and under the failure threshold.
func (st *Store) ListEligible(userIDs []string) ([]*Subscription, error) {
	subs := []*Subscription{}
	if len(userIDs) == 0 {
		return subs, nil
	}

	err := st.collection().Find(db.Cond{
		"user_id":        userIDs,
		"active":         true,
		"failed_count <": FailureThreshold,
	}).All(&subs)
	if err != nil {
		return nil, err
	}

	return subs, nil
}

func (st *Store) ForUser(userID string) ([]*Subscription, error) {
	subs := []*Subscription{}
	err := st.collection().Find(db.Cond{"user_id": userID}).All(&subs)
	return subs, err
}

func (st *Store) Insert(sub *Subscription) error {
	_, err := st.collection().Insert(sub)
	return err
}

func (st *Store) MarkDelivered(id string) error {
	_, err := st.sess.SQL().Exec(
		`UPDATE subscription SET failed_count = 0, last_error = '', last_used_at = ? WHERE id = ?`,
		time.Now().UTC(), id,
	)
	return err
}

// MarkExpired permanently retires a subscription. Only called when the
// push service answered 404/410 for its endpoint.
func (st *Store) MarkExpired(id string) error {
	logrus.Infof("deactivating expired subscription %s", id)
	_, err := st.sess.SQL().Exec(
		`UPDATE subscription SET active = ?, last_error = ?, last_used_at = ? WHERE id = ?`,
		false, string(webpush.ClassExpired), time.Now().UTC(), id,
	)
	return err
}

func (st *Store) MarkTransientFailure(id string, class webpush.ErrorClass) error {
	_, err := st.sess.SQL().Exec(
		`UPDATE subscription SET failed_count = failed_count + 1, last_error = ?, last_used_at = ? WHERE id = ?`,
		string(class), time.Now().UTC(), id,
	)
	return err
}
