// SPDX-License-Identifier: Apache-2.0
package errors

import (
	"net/http"

	"github.com/sirupsen/logrus"
)

type HTTPError interface {
	Error() string
	Code() int
}

func ToHTTP(err error) (string, int) {
	if herr, ok := err.(HTTPError); ok {
		return herr.Error(), herr.Code()
	}
	return err.Error(), http.StatusInternalServerError
}

// Unauthenticated rejects requests carrying no usable caller credential.
type Unauthenticated struct {
	Reason string
}

func (err Unauthenticated) Error() string {
	return "missing or invalid credentials"
}

func (err Unauthenticated) Code() int {
	return http.StatusUnauthorized
}

func (err Unauthenticated) Log() {
	logrus.Debugf("rejecting unauthenticated request: %s", err.Reason)
}

// Forbidden rejects a whole notification request when the caller may not
// target at least one of the requested recipients. There is no partial
// authorization: one bad target fails the batch before any send happens.
type Forbidden struct {
	Reason string
}

func (err Forbidden) Error() string {
	return "not allowed to notify the requested recipients"
}

func (err Forbidden) Code() int {
	return http.StatusForbidden
}

func (err Forbidden) Log() {
	logrus.Errorf("forbidden: %s", err.Reason)
}

type BadRequest struct {
	Reason string
}

func (err BadRequest) Error() string {
	return err.Reason
}

func (err BadRequest) Code() int {
	return http.StatusBadRequest
}
