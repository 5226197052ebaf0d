// SPDX-License-Identifier: Apache-2.0

// Package trip answers the membership questions the authorization guard
// asks; trip CRUD itself lives in another service.
package trip

import (
	"time"

	"github.com/upper/db/v4"
)

type Membership struct {
	TripID   string    `db:"trip_id" json:"trip_id"`
	UserID   string    `db:"user_id" json:"user_id"`
	Role     string    `db:"role" json:"role"`
	JoinedAt time.Time `db:"joined_at" json:"joined_at"`
}

func (m *Membership) Store(sess db.Session) db.Store {
	return sess.Collection("trip_member")
}

var _ db.Record = &Membership{}

type Store struct {
	sess db.Session
}

func NewStore(sess db.Session) *Store {
	return &Store{sess: sess}
}

func (st *Store) Members(tripID string) ([]string, error) {
	rows := []Membership{}
	err := st.sess.Collection("trip_member").Find(db.Cond{"trip_id": tripID}).All(&rows)
	if err != nil {
		return nil, err
	}

	members := make([]string, 0, len(rows))
	for _, row := range rows {
		members = append(members, row.UserID)
	}
	return members, nil
}

func (st *Store) IsMember(userID, tripID string) (bool, error) {
	count, err := st.sess.Collection("trip_member").Find(db.Cond{
		"trip_id": tripID,
		"user_id": userID,
	}).Count()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// SharesAnyTrip reports whether two users are members of at least one
// common trip.
func (st *Store) SharesAnyTrip(userA, userB string) (bool, error) {
	row := struct {
		Count int `db:"count"`
	}{}

	q := st.sess.SQL().
		Select(db.Raw("COUNT(*) as count")).
		From("trip_member as a").
		Join("trip_member as b").On("a.trip_id = b.trip_id").
		Where(db.Cond{"a.user_id": userA, "b.user_id": userB})

	if err := q.One(&row); err != nil {
		return false, err
	}

	return row.Count > 0, nil
}

func (st *Store) Add(m *Membership) error {
	_, err := st.sess.Collection("trip_member").Insert(m)
	return err
}
