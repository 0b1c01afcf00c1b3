package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/Spok95/pharmacy-ledger/internal/sri"
)

type Config struct {
	App struct {
		Env      string
		Timezone string
	} `mapstructure:"app"`

	HTTP struct {
		Addr string
	} `mapstructure:"http"`

	Postgres struct {
		DSN string
	} `mapstructure:"postgres"`

	Metrics struct {
		Enabled bool
	} `mapstructure:"metrics"`

	Telegram struct {
		Token       string
		AdminChatID int64   `mapstructure:"admin_chat_id"`
		ChatIDs     []int64 `mapstructure:"chat_ids"`
	} `mapstructure:"telegram"`

	Alerts struct {
		Enabled          bool
		ExpiryWindowDays int `mapstructure:"expiry_window_days"`
		Interval         time.Duration
	} `mapstructure:"alerts"`

	Merchant sri.MerchantConfig `mapstructure:"merchant"`
}

// Load reads the YAML file at path. A .env file in the working directory is
// loaded first, and APP_* variables override file values, e.g.
// APP_POSTGRES_DSN for postgres.dsn.
func Load(path string) (Config, error) {
	_ = gotenv.Load()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	var c Config
	if err := v.ReadInConfig(); err != nil {
		return c, err
	}
	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}
	return c, c.Validate()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "prod")
	v.SetDefault("app.timezone", "America/Guayaquil")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.admin_chat_id", 0)
	v.SetDefault("telegram.chat_ids", []int64{})
	v.SetDefault("alerts.enabled", false)
	v.SetDefault("alerts.expiry_window_days", 30)
	v.SetDefault("alerts.interval", time.Hour)
	for _, k := range []string{"ruc", "legal_name", "trade_name", "head_office_address", "establishment_address", "establishment", "emission_point"} {
		v.SetDefault("merchant."+k, "")
	}
	v.SetDefault("merchant.environment", 1)
	v.SetDefault("merchant.keeps_accounting", false)
}

func (c Config) Validate() error {
	if c.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if _, err := time.LoadLocation(c.App.Timezone); err != nil {
		return fmt.Errorf("app.timezone: %w", err)
	}
	if c.Alerts.Enabled {
		if c.Telegram.Token == "" {
			return errors.New("telegram.token is required when alerts are enabled")
		}
		if len(c.AlertChats()) == 0 {
			return errors.New("telegram.admin_chat_id or telegram.chat_ids is required when alerts are enabled")
		}
	}
	return nil
}

// Clock returns time.Now in the configured timezone, so "today" for expiry
// follows the pharmacy's calendar.
func (c Config) Clock() func() time.Time {
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		loc = time.UTC
	}
	return func() time.Time { return time.Now().In(loc) }
}

// AlertChats is the admin chat followed by the extra chats.
func (c Config) AlertChats() []int64 {
	var out []int64
	if c.Telegram.AdminChatID != 0 {
		out = append(out, c.Telegram.AdminChatID)
	}
	return append(out, c.Telegram.ChatIDs...)
}
