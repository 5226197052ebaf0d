// SPDX-License-Identifier: Apache-2.0
package notify

import (
	"fmt"

	"github.com/tripline/pushgate/internal/errors"
)

// TripDirectory is the slice of the trip service this package consults.
type TripDirectory interface {
	Members(tripID string) ([]string, error)
	IsMember(userID, tripID string) (bool, error)
	SharesAnyTrip(userA, userB string) (bool, error)
}

// Guard resolves an intent's targets into a concrete recipient set,
// enforcing who the caller may notify. All-or-nothing: one unauthorized
// target rejects the whole request before anything is sent.
type Guard struct {
	trips TripDirectory
}

func NewGuard(trips TripDirectory) *Guard {
	return &Guard{trips: trips}
}

func (g *Guard) Resolve(callerID string, in *Intent) ([]string, error) {
	if callerID == "" {
		return nil, errors.Unauthenticated{Reason: "no caller identity"}
	}

	var targets []string
	var err error

	if in.TripID != "" {
		targets, err = g.resolveTrip(callerID, in.TripID)
	} else {
		targets, err = g.resolveExplicit(callerID, in.UserIDs)
	}
	if err != nil {
		return nil, err
	}

	resolved := make([]string, 0, len(targets))
	seen := map[string]bool{}
	for _, id := range targets {
		if id == in.ExcludeUserID || seen[id] {
			continue
		}
		seen[id] = true
		resolved = append(resolved, id)
	}

	return resolved, nil
}

func (g *Guard) resolveTrip(callerID, tripID string) ([]string, error) {
	member, err := g.trips.IsMember(callerID, tripID)
	if err != nil {
		return nil, fmt.Errorf("could not check membership: %w", err)
	}
	if !member {
		return nil, errors.Forbidden{Reason: fmt.Sprintf("%s is not a member of trip %s", callerID, tripID)}
	}

	return g.trips.Members(tripID)
}

func (g *Guard) resolveExplicit(callerID string, userIDs []string) ([]string, error) {
	for _, target := range userIDs {
		// self-targeting needs no shared trip
		if target == callerID {
			continue
		}

		shared, err := g.trips.SharesAnyTrip(callerID, target)
		if err != nil {
			return nil, fmt.Errorf("could not check shared trips: %w", err)
		}
		if !shared {
			return nil, errors.Forbidden{Reason: fmt.Sprintf("%s shares no trip with %s", callerID, target)}
		}
	}

	return userIDs, nil
}
