// SPDX-License-Identifier: Apache-2.0
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tripline/pushgate/internal/prefs"
	"github.com/tripline/pushgate/internal/subscription"
	"github.com/tripline/pushgate/internal/webpush"
)

// SubscriptionStore is the persistence slice the dispatcher needs: who
// to attempt, and where to record what happened.
type SubscriptionStore interface {
	ListEligible(userIDs []string) ([]*subscription.Subscription, error)
	MarkDelivered(id string) error
	MarkExpired(id string) error
	MarkTransientFailure(id string, class webpush.ErrorClass) error
}

// PreferenceSource yields per-recipient delivery preferences; missing
// rows come back as allow-everything defaults.
type PreferenceSource interface {
	Get(userID string) (*prefs.Preferences, error)
}

// Detail is the outcome of one subscription's delivery attempt.
type Detail struct {
	UserID         string `json:"userId"`
	SubscriptionID string `json:"subscriptionId"`
	Success        bool   `json:"success"`
	Error          string `json:"error,omitempty"`
}

// Result aggregates one batch. Success means the request was processed
// without a fatal error; a batch where every device was unreachable is
// still Success with sent == 0, and callers must read the counts to
// know the practical outcome.
type Result struct {
	Success bool     `json:"success"`
	Sent    int      `json:"sent"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors"`
	Details []Detail `json:"details"`
}

const defaultSendTimeout = 10 * time.Second

type Dispatcher struct {
	guard   *Guard
	subs    SubscriptionStore
	prefs   PreferenceSource
	client  *webpush.Client
	subject string
	timeout time.Duration
}

func NewDispatcher(guard *Guard, subs SubscriptionStore, preferences PreferenceSource, client *webpush.Client, subject string) *Dispatcher {
	return &Dispatcher{
		guard:   guard,
		subs:    subs,
		prefs:   preferences,
		client:  client,
		subject: subject,
		timeout: defaultSendTimeout,
	}
}

// WithSendTimeout bounds each delivery attempt so one unresponsive
// push service cannot stall the rest of the batch.
func (d *Dispatcher) WithSendTimeout(timeout time.Duration) *Dispatcher {
	d.timeout = timeout
	return d
}

// Dispatch runs one notification batch: authorize, filter, fan out one
// concurrent send per subscription, and record every outcome. Fatal
// errors (authentication, authorization, validation) return before any
// subscription is touched; per-subscription failures only ever land in
// the aggregate.
func (d *Dispatcher) Dispatch(ctx context.Context, callerID string, in *Intent) (*Result, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	targets, err := d.guard.Resolve(callerID, in)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	recipients := make([]string, 0, len(targets))
	for _, userID := range targets {
		p, err := d.prefs.Get(userID)
		if err != nil {
			logrus.Errorf("could not load preferences for %s, allowing: %s", userID, err)
			p = prefs.Defaults(userID)
		}

		if !prefs.ShouldDeliver(p, string(in.Type), now) {
			logrus.Debugf("suppressing %s notification for %s", in.Type, userID)
			continue
		}
		recipients = append(recipients, userID)
	}

	result := &Result{Success: true, Errors: []string{}, Details: []Detail{}}
	if len(recipients) == 0 {
		return result, nil
	}

	subs, err := d.subs.ListEligible(recipients)
	if err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return result, nil
	}

	message, err := in.Payload(now)
	if err != nil {
		return nil, err
	}

	opts := &webpush.Options{
		Subject: d.subject,
		TTL:     in.ttlSeconds(),
	}

	// One goroutine per subscription; each owns its own ephemeral key,
	// salt, token and HTTP call. Sends outlive caller cancellation: a
	// message that reached the push service cannot be un-sent.
	sendCtx := context.WithoutCancel(ctx)
	details := make([]Detail, len(subs))
	var wg sync.WaitGroup

	for i, sub := range subs {
		wg.Add(1)
		go func(i int, sub *subscription.Subscription) {
			defer wg.Done()
			details[i] = d.send(sendCtx, sub, message, opts)
		}(i, sub)
	}
	wg.Wait()

	for _, detail := range details {
		result.Details = append(result.Details, detail)
		if detail.Success {
			result.Sent++
		} else {
			result.Failed++
			result.Errors = append(result.Errors, detail.Error)
		}
	}

	logrus.Infof("dispatched %s notification: %d sent, %d failed", in.Type, result.Sent, result.Failed)
	return result, nil
}

func (d *Dispatcher) send(ctx context.Context, sub *subscription.Subscription, message []byte, opts *webpush.Options) Detail {
	detail := Detail{UserID: sub.UserID, SubscriptionID: sub.ID}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	class, err := d.client.Send(ctx, sub.AsWebPush(), message, opts)

	switch class {
	case webpush.ClassNone:
		detail.Success = true
		if err := d.subs.MarkDelivered(sub.ID); err != nil {
			logrus.Errorf("could not record delivery for %s: %s", sub.ID, err)
		}
	case webpush.ClassExpired:
		detail.Error = err.Error()
		if err := d.subs.MarkExpired(sub.ID); err != nil {
			logrus.Errorf("could not deactivate %s: %s", sub.ID, err)
		}
	default:
		detail.Error = err.Error()
		if err := d.subs.MarkTransientFailure(sub.ID, class); err != nil {
			logrus.Errorf("could not record failure for %s: %s", sub.ID, err)
		}
	}

	return detail
}
