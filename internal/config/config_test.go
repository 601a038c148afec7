package config

import (
	"strings"
	"testing"
	"time"
)

// clearEnv blanks every bound variable; viper treats empty values as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	for _, env := range envBindings {
		t.Setenv(env, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.BaseURL != "http://k8s.local" {
		t.Errorf("Expected default base url, got %q", cfg.BaseURL)
	}
	if cfg.Server.Port != "5000" {
		t.Errorf("Expected port 5000, got %q", cfg.Server.Port)
	}
	if cfg.DB.ConnectTimeout != 5*time.Second {
		t.Errorf("Expected 5s connect timeout, got %v", cfg.DB.ConnectTimeout)
	}
	if cfg.SMTP.Port != 587 {
		t.Errorf("Expected SMTP port 587, got %d", cfg.SMTP.Port)
	}
	if !cfg.Stripe.RequirePaid {
		t.Error("Expected payment status check to be on by default")
	}
	if cfg.Server.ExposeErrors {
		t.Error("Expected error echo to be off by default")
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("BASE_URL", "https://plannerrun.com/")
	t.Setenv("DB_HOST", "postgres.internal")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("DB_CONNECT_TIMEOUT", "2s")
	t.Setenv("SMTP_PORT", "2525")
	t.Setenv("STRIPE_API_KEY", "sk_test_123")
	t.Setenv("STRIPE_REQUIRE_PAID", "false")
	t.Setenv("PRICE_ID_3_MONTHS", "price_3")
	t.Setenv("PRICE_ID_6_MONTHS", "price_6")
	t.Setenv("TELEGRAM_ADMIN_CHAT_ID", "-100200300")
	t.Setenv("ALLOWED_ORIGINS", "https://staging.plannerrun.com,http://192.168.0.10:3000")
	t.Setenv("WORKER_INTERVAL", "1m")
	t.Setenv("WORKER_RETRY_BACKOFF", "30s")
	t.Setenv("WORKER_CLAIM_TIMEOUT", "5m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.BaseURL != "https://plannerrun.com" {
		t.Errorf("Expected trailing slash trimmed, got %q", cfg.BaseURL)
	}
	if cfg.DB.Host != "postgres.internal" || cfg.DB.Port != "6543" {
		t.Errorf("Unexpected DB host/port %q:%q", cfg.DB.Host, cfg.DB.Port)
	}
	if cfg.DB.ConnectTimeout != 2*time.Second {
		t.Errorf("Expected 2s connect timeout, got %v", cfg.DB.ConnectTimeout)
	}
	if cfg.SMTP.Port != 2525 {
		t.Errorf("Expected SMTP port 2525, got %d", cfg.SMTP.Port)
	}
	if cfg.Stripe.RequirePaid {
		t.Error("Expected STRIPE_REQUIRE_PAID=false to be honoured")
	}
	if cfg.Telegram.AdminChatID != -100200300 {
		t.Errorf("Unexpected admin chat id %d", cfg.Telegram.AdminChatID)
	}
	if cfg.Worker.Interval != time.Minute {
		t.Errorf("Expected 1m worker interval, got %v", cfg.Worker.Interval)
	}
	if cfg.Worker.RetryBackoff != 30*time.Second || cfg.Worker.ClaimTimeout != 5*time.Minute {
		t.Errorf("Unexpected retry backoff %v or claim timeout %v", cfg.Worker.RetryBackoff, cfg.Worker.ClaimTimeout)
	}
	if cfg.Worker.MaxRetryBackoff != time.Hour {
		t.Errorf("Expected default 1h max backoff, got %v", cfg.Worker.MaxRetryBackoff)
	}

	tiers := cfg.Stripe.PriceTiers()
	if tiers[3] != "price_3" || tiers[6] != "price_6" || tiers[4] != "" {
		t.Errorf("Unexpected price tiers %v", tiers)
	}
	if len(tiers) != 4 {
		t.Errorf("Expected exactly four tiers, got %d", len(tiers))
	}

	origins := strings.Join(cfg.Origins(), " ")
	for _, want := range []string{
		"https://plannerrun.com",
		"https://plannerrun.com:3000",
		"http://localhost:3000",
		"https://www.plannerrun.com",
		"https://staging.plannerrun.com",
		"http://192.168.0.10:3000",
	} {
		if !strings.Contains(origins, want) {
			t.Errorf("Expected origin %q in %q", want, origins)
		}
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("Expected error for empty config")
	}
	for _, want := range []string{"STRIPE_API_KEY", "PRICE_ID", "SENDER_EMAIL"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Expected %q in %q", want, err.Error())
		}
	}

	cfg.Stripe.SecretKey = "sk_test_123"
	cfg.Stripe.PriceMonths4 = "price_4"
	cfg.SMTP.Sender = "noreply@plannerrun.com"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected valid config, got %v", err)
	}

	cfg.Telegram.Token = "123:abc"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "TELEGRAM_ADMIN_CHAT_ID") {
		t.Errorf("Expected missing admin chat id, got %v", err)
	}
}
