// Package config loads daemon settings from environment variables and an
// optional savline.yaml file. Environment wins over the file, the file over
// defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config bundles everything the daemon needs at startup.
type Config struct {
	ListenAddr string
	DataDir    string

	AdminUser         string
	AdminPasswordHash string
	SessionTTL        time.Duration

	SMTPHost   string
	SMTPPort   int
	SMTPUser   string
	SMTPPass   string
	SMTPSSL    bool
	MailFrom   string
	MailSender string

	NotifyDefault string
	NotifyStores  map[string]string
}

// Load reads configuration. Admin credentials have no defaults: the daemon
// refuses to start without them.
func Load() (Config, error) {
	v := viper.New()

	v.SetDefault("listen_addr", ":8090")
	v.SetDefault("data_dir", "./data")
	v.SetDefault("session_ttl", "12h")
	v.SetDefault("smtp.port", 465)
	v.SetDefault("smtp.ssl", true)
	v.SetDefault("mail.from", "no-reply@savline.local")
	v.SetDefault("mail.sender", "Savline Warranty")

	v.SetConfigName("savline")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/savline")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("config: read file: %w", err)
		}
	}

	v.SetEnvPrefix("SAVLINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := Config{
		ListenAddr:        v.GetString("listen_addr"),
		DataDir:           v.GetString("data_dir"),
		AdminUser:         v.GetString("admin.user"),
		AdminPasswordHash: v.GetString("admin.password_hash"),
		SessionTTL:        v.GetDuration("session_ttl"),
		SMTPHost:          v.GetString("smtp.host"),
		SMTPPort:          v.GetInt("smtp.port"),
		SMTPUser:          v.GetString("smtp.user"),
		SMTPPass:          v.GetString("smtp.pass"),
		SMTPSSL:           v.GetBool("smtp.ssl"),
		MailFrom:          v.GetString("mail.from"),
		MailSender:        v.GetString("mail.sender"),
		NotifyDefault:     v.GetString("notify.default"),
		NotifyStores:      v.GetStringMapString("notify.stores"),
	}

	if cfg.AdminUser == "" || cfg.AdminPasswordHash == "" {
		return Config{}, fmt.Errorf("config: admin.user and admin.password_hash must be set")
	}
	return cfg, nil
}
