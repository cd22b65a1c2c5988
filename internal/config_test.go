package internal

import (
	"strings"
	"testing"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if got := cfg.App.HTTP.Address(); got != "127.0.0.1:8080" {
		t.Errorf("address = %q", got)
	}
}

func TestBuildConfig_RequiresInterpreter(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Build.Interpreter = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("empty interpreter should fail validation")
	}
}

func TestPreviewConfig_RequiresHost(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Preview.Host = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("empty preview host should fail validation")
	}
}

func TestLogFileConfig_NegativeSize(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.App.LogFile.MaxSizeMB = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("negative log file size should fail validation")
	}
}

func TestHTTPConfig_EmptyHostListensEverywhere(t *testing.T) {
	c := HTTPConfig{Port: 9000}
	if got := c.Address(); got != ":9000" {
		t.Errorf("address = %q, want :9000", got)
	}
}
