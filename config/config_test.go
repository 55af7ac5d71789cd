package config

import "testing"

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	cfg.Symbol = "BTCUSDT"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected default config to validate, got %v", err)
	}
}

func TestValidateFailsOnEmptySymbol(t *testing.T) {
	cfg := Default()
	cfg.Symbol = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for empty symbol")
	}
}

func TestValidateFailsOnBadLeverage(t *testing.T) {
	cfg := Default()
	cfg.Symbol = "BTCUSDT"
	cfg.Leverage = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for zero leverage")
	}
}

func TestValidateFailsOnBadSoftStopMode(t *testing.T) {
	cfg := Default()
	cfg.Symbol = "BTCUSDT"
	cfg.SoftStopConfirmMode = 1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for unsupported soft-stop mode")
	}
}

func TestLoadUserCredentialsStopsAtFirstGap(t *testing.T) {
	t.Setenv("USER1_API_KEY", "k1")
	t.Setenv("USER1_SECRET", "s1")
	t.Setenv("USER2_API_KEY", "k2")
	t.Setenv("USER2_SECRET", "s2")
	t.Setenv("USER3_API_KEY", "")
	t.Setenv("USER3_SECRET", "")

	users := loadUserCredentials()
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
	if users[0].APIKey != "k1" || users[1].APIKey != "k2" {
		t.Fatalf("unexpected credentials loaded: %+v", users)
	}
}
