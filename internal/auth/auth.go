// SPDX-License-Identifier: Apache-2.0

// Package auth verifies caller identity on the way in. Callers present
// an HS256 bearer token minted by the main Tripline backend; the sub
// claim carries the acting user's id.
package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/julienschmidt/httprouter"
	"github.com/tripline/pushgate/internal/constants"
	"github.com/tripline/pushgate/internal/errors"
)

type Manager struct {
	secret []byte
}

func NewManager(secret []byte) *Manager {
	return &Manager{secret: secret}
}

// CallerFromContext returns the verified user id for this request, or
// an empty string when the request never passed RequireAuth.
func CallerFromContext(req *http.Request) string {
	if id, ok := req.Context().Value(constants.ContextCaller).(string); ok {
		return id
	}
	return ""
}

func (am *Manager) verify(req *http.Request) (string, error) {
	header := req.Header.Get("Authorization")
	if header == "" {
		return "", errors.Unauthenticated{Reason: "no authorization header"}
	}

	raw, found := strings.CutPrefix(header, "Bearer ")
	if !found {
		return "", errors.Unauthenticated{Reason: "authorization header is not a bearer token"}
	}

	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Unauthenticated{Reason: "unexpected signing method"}
		}
		return am.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return "", errors.Unauthenticated{Reason: err.Error()}
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", errors.Unauthenticated{Reason: "token has no subject"}
	}

	return subject, nil
}

// RequireAuth rejects anonymous requests before the handler runs and
// stashes the verified caller id in the request context.
func (am *Manager) RequireAuth(handler httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, ps httprouter.Params) {
		callerID, err := am.verify(req)
		if err != nil {
			if uerr, ok := err.(errors.Unauthenticated); ok {
				uerr.Log()
			}
			message, code := errors.ToHTTP(err)
			http.Error(w, message, code)
			return
		}

		ctx := context.WithValue(req.Context(), constants.ContextCaller, callerID)
		handler(w, req.WithContext(ctx), ps)
	}
}
