// SPDX-License-Identifier: Apache-2.0
package main

import (
	"os"

	"git.rob.mx/nidito/chinampa"
	"git.rob.mx/nidito/chinampa/pkg/runtime"
	"github.com/sirupsen/logrus"
	"github.com/tripline/pushgate/cmd/admin"
	"github.com/tripline/pushgate/cmd/db"
	"github.com/tripline/pushgate/cmd/server"
	"github.com/tripline/pushgate/cmd/vapid"
)

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{
		DisableLevelTruncation: true,
		DisableTimestamp:       true,
		ForceColors:            runtime.ColorEnabled(),
	})

	if runtime.DebugEnabled() {
		logrus.SetLevel(logrus.DebugLevel)
		logrus.Debug("Debugging enabled")
	}

	cfg := chinampa.Config{
		Name:        "pushgate",
		Version:     "0.0.0",
		Summary:     "delivers web push notifications for tripline",
		Description: "Encrypts, signs and fans out push messages to registered browsers.",
	}

	chinampa.Register(
		server.ServerCommand,
		db.MigrationsCommand,
		vapid.GenerateCommand,
		admin.SubscriptionAddCommand,
		admin.SubscriptionTestCommand,
	)

	if err := chinampa.Execute(cfg); err != nil {
		logrus.Errorf("total failure: %s", err)
		os.Exit(2)
	}
}
