// SPDX-License-Identifier: Apache-2.0
package server

import (
	"fmt"
	"net/http"

	"git.rob.mx/nidito/chinampa/pkg/command"
	"github.com/sirupsen/logrus"
	"github.com/tripline/pushgate/internal/server"
)

var ServerCommand = &command.Command{
	Path:        []string{"server"},
	Summary:     "Runs the http server",
	Description: "",
	Options: command.Options{
		"config": {
			Type:    "string",
			Default: "./config.yaml",
		},
		"db": {
			Type:    "string",
			Default: "./pushgate.db",
		},
	},
	Action: func(cmd *command.Command) error {
		cfg, err := server.LoadConfig(
			cmd.Options["config"].ToValue().(string),
			cmd.Options["db"].ToValue().(string),
		)
		if err != nil {
			return err
		}

		logrus.SetFormatter(&logrus.JSONFormatter{DisableTimestamp: false})

		router, err := server.Initialize(cfg)
		if err != nil {
			return err
		}

		logrus.Infof("Listening on port %d", cfg.HTTP.Listen)
		return http.ListenAndServe(fmt.Sprintf(":%d", cfg.HTTP.Listen), router)
	},
}
