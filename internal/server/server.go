// SPDX-License-Identifier: Apache-2.0
package server

import (
	"fmt"
	"net/http"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/julienschmidt/httprouter"
	"github.com/tripline/pushgate/internal/auth"
	"github.com/tripline/pushgate/internal/notify"
	"github.com/tripline/pushgate/internal/prefs"
	"github.com/tripline/pushgate/internal/subscription"
	"github.com/tripline/pushgate/internal/trip"
	"github.com/tripline/pushgate/internal/webpush"
	"github.com/upper/db/v4"
	"github.com/upper/db/v4/adapter/sqlite"
	"gopkg.in/yaml.v3"
)

type HTTPConfig struct {
	Listen int    `yaml:"listen"`
	Domain string `yaml:"domain"`
}

type Config struct {
	Name string      `yaml:"name"`
	HTTP *HTTPConfig `yaml:"http"`

	DB string `yaml:"db"`

	// VAPID material and the token secret may live in the yaml file for
	// development, but env vars win so production keys never touch disk.
	VAPID       *webpush.VAPIDKeys `yaml:"vapid"`
	Subject     string             `yaml:"subject" env:"PUSHGATE_VAPID_SUBJECT"`
	TokenSecret string             `yaml:"token_secret" env:"PUSHGATE_TOKEN_SECRET"`
}

func ConfigDefaults(dbPath string) *Config {
	return &Config{
		DB: dbPath,
		HTTP: &HTTPConfig{
			Listen: 8000,
			Domain: "localhost",
		},
		VAPID: &webpush.VAPIDKeys{},
	}
}

// LoadEnv overlays environment-provided secrets on top of whatever the
// yaml file carried.
func (cfg *Config) LoadEnv() error {
	if cfg.VAPID == nil {
		cfg.VAPID = &webpush.VAPIDKeys{}
	}
	return env.Parse(cfg)
}

// LoadConfig reads the yaml file over ConfigDefaults and overlays
// environment secrets. Every subcommand goes through here.
func LoadConfig(path, dbPath string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}

	cfg := ConfigDefaults(dbPath)
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("could not unserialize yaml at %s: %w", path, err)
	}

	if err := cfg.LoadEnv(); err != nil {
		return nil, fmt.Errorf("could not read environment overrides: %w", err)
	}

	return cfg, nil
}

func (cfg *Config) validate() error {
	if cfg.VAPID == nil || cfg.VAPID.Private == "" || cfg.VAPID.Public == "" {
		return fmt.Errorf("VAPID keys are not configured, run `pushgate vapid generate`")
	}
	if _, err := cfg.VAPID.SigningKey(); err != nil {
		return err
	}
	if cfg.Subject == "" {
		return fmt.Errorf("a VAPID subject (mailto: or https: contact) is required")
	}
	if cfg.TokenSecret == "" {
		return fmt.Errorf("a bearer token secret is required")
	}
	return nil
}

var _db db.Session

func Initialize(config *Config) (http.Handler, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}

	router := httprouter.New()

	conn := sqlite.ConnectionURL{
		Database: config.DB,
		Options: map[string]string{
			"_journal":      "WAL",
			"_busy_timeout": "5000",
		},
	}
	var err error
	_db, err = sqlite.Open(conn)
	if err != nil {
		return nil, err
	}

	subs := subscription.NewStore(_db)
	trips := trip.NewStore(_db)
	preferences := prefs.NewStore(_db)
	client := webpush.NewClient(config.VAPID, 0)

	dispatcher := notify.NewDispatcher(
		notify.NewGuard(trips),
		subs,
		preferences,
		client,
		config.Subject,
	)

	am := auth.NewManager([]byte(config.TokenSecret))
	h := &handlers{
		dispatcher: dispatcher,
		subs:       subs,
		publicKey:  config.VAPID.Public,
	}

	router.GET("/api/vapid-key", h.vapidKey)
	router.POST("/api/notify", am.RequireAuth(h.notify))
	router.GET("/api/subscriptions/:user", am.RequireAuth(h.listSubscriptions))

	return router, nil
}
