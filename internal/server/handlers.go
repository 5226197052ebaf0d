// SPDX-License-Identifier: Apache-2.0
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/sirupsen/logrus"
	"github.com/tripline/pushgate/internal/auth"
	"github.com/tripline/pushgate/internal/errors"
	"github.com/tripline/pushgate/internal/notify"
	"github.com/tripline/pushgate/internal/subscription"
)

type handlers struct {
	dispatcher *notify.Dispatcher
	subs       *subscription.Store
	publicKey  string
}

// deliveryLog records one row per processed batch, fatal or not.
type deliveryLog struct {
	Timestamp time.Time `db:"timestamp"`
	Caller    string    `db:"caller"`
	Type      string    `db:"type"`
	Sent      int       `db:"sent"`
	Failed    int       `db:"failed"`
	Err       string    `db:"error"`
}

func newDeliveryLog(callerID string, in *notify.Intent, result *notify.Result, err error) *deliveryLog {
	dl := &deliveryLog{
		Timestamp: time.Now().UTC(),
		Caller:    callerID,
		Type:      string(in.Type),
	}

	if result != nil {
		dl.Sent = result.Sent
		dl.Failed = result.Failed
	}
	if err != nil {
		dl.Err = err.Error()
	}

	return dl
}

func sendError(w http.ResponseWriter, err error) {
	logrus.Error(err)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, data any) error {
	res, err := json.Marshal(data)
	if err != nil {
		return err
	}

	w.Header().Add("content-type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, err = w.Write(res)
	return err
}

func (h *handlers) vapidKey(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, map[string]string{"key": h.publicKey})
}

func (h *handlers) notify(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	callerID := auth.CallerFromContext(r)

	in := &notify.Intent{}
	if err := json.NewDecoder(r.Body).Decode(in); err != nil {
		http.Error(w, "could not decode intent", http.StatusBadRequest)
		return
	}

	var result *notify.Result
	var err error

	defer func() {
		if _, sqlErr := _db.Collection("delivery_log").Insert(newDeliveryLog(callerID, in, result, err)); sqlErr != nil {
			logrus.Errorf("could not record delivery log: %s", sqlErr)
		}
	}()

	result, err = h.dispatcher.Dispatch(r.Context(), callerID, in)
	if err != nil {
		message, code := errors.ToHTTP(err)
		http.Error(w, message, code)
		return
	}

	writeJSON(w, result)
}

func (h *handlers) listSubscriptions(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	callerID := auth.CallerFromContext(r)
	userID := params.ByName("user")

	// users may only inspect their own devices
	if userID != callerID {
		err := errors.Forbidden{Reason: "callers may only list their own subscriptions"}
		err.Log()
		http.Error(w, err.Error(), err.Code())
		return
	}

	subs, err := h.subs.ForUser(userID)
	if err != nil {
		sendError(w, err)
		return
	}

	writeJSON(w, subs)
}
