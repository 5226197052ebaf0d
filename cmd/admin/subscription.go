// SPDX-License-Identifier: Apache-2.0
package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"git.rob.mx/nidito/chinampa/pkg/command"
	"github.com/sirupsen/logrus"
	"github.com/tripline/pushgate/internal/server"
	"github.com/tripline/pushgate/internal/subscription"
	"github.com/tripline/pushgate/internal/webpush"
	"github.com/upper/db/v4/adapter/sqlite"
)

func loadConfig(cmd *command.Command) (*server.Config, error) {
	return server.LoadConfig(
		cmd.Options["config"].ToValue().(string),
		cmd.Options["db"].ToValue().(string),
	)
}

var configOptions = command.Options{
	"config": {
		Type:    "string",
		Default: "./config.yaml",
	},
	"db": {
		Type:    "string",
		Default: "./pushgate.db",
	},
}

// SubscriptionAddCommand inserts a registration a browser already
// exported; the subscribe flow itself lives in the main app.
var SubscriptionAddCommand = &command.Command{
	Path:        []string{"admin", "subscription", "add"},
	Summary:     "Registers a push subscription for a user",
	Description: "Takes the JSON blob produced by PushManager.subscribe: {endpoint, keys: {p256dh, auth}}.",
	Arguments: command.Arguments{
		{
			Name:        "user",
			Description: "the user id owning this subscription",
			Required:    true,
		},
		{
			Name:        "subscription",
			Description: "the subscription JSON exported from the browser",
			Required:    true,
		},
	},
	Options: configOptions,
	Action: func(cmd *command.Command) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		var blob struct {
			Endpoint string `json:"endpoint"`
			Keys     struct {
				P256dh string `json:"p256dh"`
				Auth   string `json:"auth"`
			} `json:"keys"`
		}
		if err := json.Unmarshal([]byte(cmd.Arguments[1].ToString()), &blob); err != nil {
			return fmt.Errorf("could not decode subscription json: %w", err)
		}
		if blob.Endpoint == "" || blob.Keys.P256dh == "" || blob.Keys.Auth == "" {
			return fmt.Errorf("subscription json needs endpoint, keys.p256dh and keys.auth")
		}

		sess, err := sqlite.Open(sqlite.ConnectionURL{Database: cfg.DB})
		if err != nil {
			return fmt.Errorf("could not open connection to db: %s", err)
		}
		defer sess.Close()

		sub := subscription.New(cmd.Arguments[0].ToString(), &webpush.Subscription{
			Endpoint: blob.Endpoint,
			P256dh:   blob.Keys.P256dh,
			Auth:     blob.Keys.Auth,
		}, "")

		if err := subscription.NewStore(sess).Insert(sub); err != nil {
			return fmt.Errorf("failed to insert %s", err)
		}

		logrus.Infof("Created subscription %s for user %s", sub.ID, sub.UserID)
		return nil
	},
}

// SubscriptionTestCommand fires a plain test message at every one of a
// user's registered devices and reports per-device outcomes.
var SubscriptionTestCommand = &command.Command{
	Path:        []string{"admin", "subscription", "test"},
	Summary:     "Sends a test notification to a user's devices",
	Description: "",
	Arguments: command.Arguments{
		{
			Name:        "user",
			Description: "the user id to notify",
			Required:    true,
		},
	},
	Options: configOptions,
	Action: func(cmd *command.Command) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.VAPID == nil || cfg.VAPID.Private == "" {
			return fmt.Errorf("VAPID keys are not configured, run `pushgate vapid generate`")
		}

		sess, err := sqlite.Open(sqlite.ConnectionURL{Database: cfg.DB})
		if err != nil {
			return fmt.Errorf("could not open connection to db: %s", err)
		}
		defer sess.Close()

		userID := cmd.Arguments[0].ToString()
		store := subscription.NewStore(sess)
		subs, err := store.ListEligible([]string{userID})
		if err != nil {
			return err
		}
		if len(subs) == 0 {
			return fmt.Errorf("no eligible subscriptions for user %s", userID)
		}

		message, err := json.Marshal(map[string]any{
			"type":  "broadcast",
			"title": "pushgate",
			"body":  "test notification",
		})
		if err != nil {
			return err
		}

		client := webpush.NewClient(cfg.VAPID, 30*time.Second)
		for _, sub := range subs {
			class, err := client.Send(context.Background(), sub.AsWebPush(), message, &webpush.Options{
				Subject: cfg.Subject,
				TTL:     30,
			})

			switch class {
			case webpush.ClassNone:
				logrus.Infof("delivered to %s", sub.ID)
				if err := store.MarkDelivered(sub.ID); err != nil {
					logrus.Errorf("could not record delivery: %s", err)
				}
			case webpush.ClassExpired:
				logrus.Warnf("subscription %s expired: %s", sub.ID, err)
				if err := store.MarkExpired(sub.ID); err != nil {
					logrus.Errorf("could not deactivate: %s", err)
				}
			default:
				logrus.Errorf("delivery to %s failed: %s", sub.ID, err)
				if err := store.MarkTransientFailure(sub.ID, class); err != nil {
					logrus.Errorf("could not record failure: %s", err)
				}
			}
		}

		return nil
	},
}
