package config

import (
	"os"
	"testing"
	"time"
)

// chdir is a stand-in for testing.T.Chdir, which requires Go 1.24+.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}

func TestLoadRequiresAdminCredentials(t *testing.T) {
	chdir(t, t.TempDir()) // no savline.yaml in reach

	if _, err := Load(); err == nil {
		t.Fatal("Expected Load to fail without admin credentials")
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("SAVLINE_ADMIN_USER", "admin")
	t.Setenv("SAVLINE_ADMIN_PASSWORD_HASH", "$2a$10$fakehash")
	t.Setenv("SAVLINE_LISTEN_ADDR", ":9999")
	t.Setenv("SAVLINE_SESSION_TTL", "30m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.AdminUser != "admin" {
		t.Errorf("Expected admin user, got %q", cfg.AdminUser)
	}
	if cfg.ListenAddr != ":9999" {
		t.Errorf("Expected :9999, got %q", cfg.ListenAddr)
	}
	if cfg.SessionTTL != 30*time.Minute {
		t.Errorf("Expected 30m TTL, got %v", cfg.SessionTTL)
	}
	if cfg.DataDir != "./data" {
		t.Errorf("Expected default data dir, got %q", cfg.DataDir)
	}
	if cfg.SMTPPort != 465 || !cfg.SMTPSSL {
		t.Errorf("Expected SMTP defaults, got port=%d ssl=%v", cfg.SMTPPort, cfg.SMTPSSL)
	}
}
