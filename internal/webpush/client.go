// SPDX-License-Identifier: Apache-2.0
package webpush

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// ErrorClass buckets a failed delivery attempt for bookkeeping. An
// empty class means the attempt succeeded.
type ErrorClass string

const (
	ClassNone            ErrorClass = ""
	ClassExpired         ErrorClass = "expired"
	ClassPayloadTooLarge ErrorClass = "payload_too_large"
	ClassRateLimited     ErrorClass = "rate_limited"
	ClassOther           ErrorClass = "other"
)

type Options struct {
	// Subject identifies the sender to the push service, a mailto: or
	// https: URL an operator could use to reach us.
	Subject string
	// TTL in seconds the push service may hold the message.
	TTL int
	// Urgency: very-low, low, normal or high. Defaults to normal.
	Urgency string
}

// Client sends encrypted messages to push services under one VAPID
// identity. Safe for concurrent use.
type Client struct {
	keys *VAPIDKeys
	http *http.Client
}

func NewClient(keys *VAPIDKeys, timeout time.Duration) *Client {
	return &Client{
		keys: keys,
		http: &http.Client{Timeout: timeout},
	}
}

// Send encrypts message for one subscription and POSTs it to the
// subscription's endpoint. A non-empty ErrorClass comes with an error
// describing the attempt; callers decide what to persist, nothing is
// retried here.
func (c *Client) Send(ctx context.Context, sub *Subscription, message []byte, opts *Options) (ErrorClass, error) {
	if opts == nil {
		opts = &Options{}
	}

	body, err := Encrypt(message, sub)
	if err != nil {
		return ClassOther, fmt.Errorf("could not encrypt payload: %w", err)
	}

	authorization, err := c.keys.AuthorizationHeader(sub.Endpoint, opts.Subject, time.Now())
	if err != nil {
		return ClassOther, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.Endpoint, bytes.NewReader(body))
	if err != nil {
		return ClassOther, fmt.Errorf("could not build request: %w", err)
	}

	urgency := opts.Urgency
	if urgency == "" {
		urgency = "normal"
	}

	req.Header.Set("Authorization", authorization)
	req.Header.Set("Content-Encoding", "aes128gcm")
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("TTL", strconv.Itoa(opts.TTL))
	req.Header.Set("Urgency", urgency)

	resp, err := c.http.Do(req)
	if err != nil {
		return ClassOther, fmt.Errorf("could not reach push service: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return classify(resp.StatusCode)
}

func classify(status int) (ErrorClass, error) {
	switch {
	case status >= 200 && status < 300:
		return ClassNone, nil
	case status == http.StatusNotFound || status == http.StatusGone:
		return ClassExpired, fmt.Errorf("push service reports subscription gone (%d)", status)
	case status == http.StatusRequestEntityTooLarge:
		return ClassPayloadTooLarge, fmt.Errorf("push service rejected payload size (413)")
	case status == http.StatusTooManyRequests:
		return ClassRateLimited, fmt.Errorf("push service rate limited us (429)")
	default:
		return ClassOther, fmt.Errorf("push service returned %d", status)
	}
}
