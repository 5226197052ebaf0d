// SPDX-License-Identifier: Apache-2.0
package webpush_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tripline/pushgate/internal/webpush"
)

func newTestClient(t *testing.T) *webpush.Client {
	t.Helper()
	keys, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("could not generate keys: %s", err)
	}
	return webpush.NewClient(keys, 5*time.Second)
}

func TestSendHeaders(t *testing.T) {
	var got *http.Request
	var bodyLen int

	service := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		body, _ := io.ReadAll(r.Body)
		bodyLen = len(body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer service.Close()

	s := newSubscriber(t)
	s.sub.Endpoint = service.URL + "/send/abc"

	client := newTestClient(t)
	class, err := client.Send(context.Background(), s.sub, []byte("hola"), &webpush.Options{
		Subject: "mailto:ops@tripline.example",
		TTL:     42,
	})
	if err != nil {
		t.Fatalf("send failed: %s", err)
	}
	if class != webpush.ClassNone {
		t.Fatalf("expected success, got class %q", class)
	}

	if !strings.HasPrefix(got.Header.Get("Authorization"), "vapid t=") {
		t.Fatalf("bad authorization header: %s", got.Header.Get("Authorization"))
	}
	if got.Header.Get("Content-Encoding") != "aes128gcm" {
		t.Fatalf("bad content encoding: %s", got.Header.Get("Content-Encoding"))
	}
	if got.Header.Get("TTL") != "42" {
		t.Fatalf("bad ttl header: %s", got.Header.Get("TTL"))
	}
	if got.Header.Get("Urgency") != "normal" {
		t.Fatalf("bad urgency header: %s", got.Header.Get("Urgency"))
	}

	// salt + rs + idlen + keyid + payload + delimiter + tag
	if expected := 86 + 4 + 1 + 16; bodyLen != expected {
		t.Fatalf("expected %d-byte body, got %d", expected, bodyLen)
	}
}

func TestSendClassification(t *testing.T) {
	cases := []struct {
		status int
		class  webpush.ErrorClass
	}{
		{http.StatusOK, webpush.ClassNone},
		{http.StatusCreated, webpush.ClassNone},
		{http.StatusNotFound, webpush.ClassExpired},
		{http.StatusGone, webpush.ClassExpired},
		{http.StatusRequestEntityTooLarge, webpush.ClassPayloadTooLarge},
		{http.StatusTooManyRequests, webpush.ClassRateLimited},
		{http.StatusBadGateway, webpush.ClassOther},
		{http.StatusBadRequest, webpush.ClassOther},
	}

	for _, tc := range cases {
		service := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))

		s := newSubscriber(t)
		s.sub.Endpoint = service.URL + "/send/abc"

		client := newTestClient(t)
		class, err := client.Send(context.Background(), s.sub, []byte("x"), &webpush.Options{
			Subject: "mailto:ops@tripline.example",
			TTL:     30,
		})
		service.Close()

		if class != tc.class {
			t.Fatalf("status %d: expected class %q, got %q (%v)", tc.status, tc.class, class, err)
		}
		if tc.class == webpush.ClassNone && err != nil {
			t.Fatalf("status %d: unexpected error %s", tc.status, err)
		}
		if tc.class != webpush.ClassNone && err == nil {
			t.Fatalf("status %d: expected a descriptive error", tc.status)
		}
	}
}

func TestSendClientTimeout(t *testing.T) {
	service := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(30 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer service.Close()

	s := newSubscriber(t)
	s.sub.Endpoint = service.URL + "/send/abc"

	keys, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("could not generate keys: %s", err)
	}
	client := webpush.NewClient(keys, 200*time.Millisecond)

	start := time.Now()
	class, err := client.Send(context.Background(), s.sub, []byte("x"), &webpush.Options{
		Subject: "mailto:ops@tripline.example",
	})
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("send against a stalled service took %s", elapsed)
	}
	if class != webpush.ClassOther {
		t.Fatalf("expected class other, got %q", class)
	}
	if err == nil {
		t.Fatal("expected a timeout error")
	}
}

func TestSendUnreachableService(t *testing.T) {
	s := newSubscriber(t)
	s.sub.Endpoint = "https://127.0.0.1:1/send/abc"

	client := newTestClient(t)
	class, err := client.Send(context.Background(), s.sub, []byte("x"), &webpush.Options{
		Subject: "mailto:ops@tripline.example",
	})
	if class != webpush.ClassOther {
		t.Fatalf("expected class other, got %q", class)
	}
	if err == nil {
		t.Fatal("expected a transport error")
	}
}
