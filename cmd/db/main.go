// SPDX-License-Identifier: Apache-2.0
package db

import (
	"embed"
	"fmt"
	"sort"
	"strings"
	"time"

	"git.rob.mx/nidito/chinampa/pkg/command"
	"github.com/sirupsen/logrus"
	"github.com/tripline/pushgate/internal/server"
	"github.com/upper/db/v4"
	"github.com/upper/db/v4/adapter/sqlite"
)

//go:embed migrations/*
var migrationsDir embed.FS

// baseMigration creates the migrations ledger itself and always runs
// first on a fresh database.
const baseMigration = "0000-00-00-base.sql"

func apply(sess db.Session, name string) error {
	contents, err := migrationsDir.ReadFile("migrations/" + name)
	if err != nil {
		return err
	}

	logrus.Infof("applying %s", name)
	return sess.Tx(func(tx db.Session) error {
		q := fmt.Sprintf("%s;\nINSERT INTO migrations (name, applied) VALUES (?, ?);", contents)
		_, err := tx.SQL().Exec(q, name, time.Now().UTC().Format(time.RFC3339))
		return err
	})
}

func hasLedger(sess db.Session) (bool, error) {
	cols, err := sess.Collections()
	if err != nil {
		return false, err
	}
	for _, col := range cols {
		if col.Name() == "migrations" {
			return true, nil
		}
	}
	return false, nil
}

func pending(sess db.Session) ([]string, error) {
	entries, err := migrationsDir.ReadDir("migrations")
	if err != nil {
		return nil, err
	}

	names := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if name == baseMigration || !strings.HasSuffix(name, ".sql") || !entry.Type().IsRegular() {
			continue
		}

		applied, err := sess.Collection("migrations").Find(db.Cond{"name": name}).Count()
		if err != nil {
			return nil, fmt.Errorf("could not check ledger for %s: %w", name, err)
		}
		if applied > 0 {
			logrus.Debugf("already applied %s", name)
			continue
		}

		names = append(names, name)
	}

	sort.Strings(names)
	return names, nil
}

var MigrationsCommand = &command.Command{
	Path:        []string{"db", "migrate"},
	Summary:     "Runs database migrations",
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

		sess, err := sqlite.Open(sqlite.ConnectionURL{
			Database: cfg.DB,
			Options: map[string]string{
				"_journal":      "WAL",
				"_busy_timeout": "5000",
			},
		})
		if err != nil {
			return err
		}
		defer sess.Close()

		bootstrapped, err := hasLedger(sess)
		if err != nil {
			return err
		}
		if !bootstrapped {
			logrus.Info("fresh database, creating migrations ledger")
			if err := apply(sess, baseMigration); err != nil {
				return fmt.Errorf("could not bootstrap migrations: %w", err)
			}
		}

		names, err := pending(sess)
		if err != nil {
			return err
		}
		if len(names) == 0 {
			logrus.Info("database is up to date")
			return nil
		}

		for _, name := range names {
			if err := apply(sess, name); err != nil {
				return fmt.Errorf("could not apply %s: %w", name, err)
			}
		}

		return nil
	},
}
