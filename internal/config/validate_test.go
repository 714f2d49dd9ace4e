package config

import (
	"os"
	"strings"
	"testing"
)

func TestValidateNode_DefaultsAreValid(t *testing.T) {
	clearNodeEnv()

	if err := ValidateNode(LoadNode()); err != nil {
		t.Errorf("default node config should validate, got: %v", err)
	}
}

func TestValidateNode_PortCollision(t *testing.T) {
	clearNodeEnv()
	os.Setenv("LISTEN_PORT", "5005")
	os.Setenv("ACK_PORT", "5005")
	defer clearNodeEnv()

	err := ValidateNode(LoadNode())
	if err == nil {
		t.Fatal("expected validation error for colliding ports")
	}
	if !strings.Contains(err.Error(), "ACK_PORT") {
		t.Errorf("error should name ACK_PORT, got: %v", err)
	}
}

func TestValidateNode_BadDurationAndQuality(t *testing.T) {
	clearNodeEnv()
	os.Setenv("SETTLE_DURATION", "soon")
	os.Setenv("CAPTURE_QUALITY", "250")
	defer clearNodeEnv()

	err := ValidateNode(LoadNode())
	if err == nil {
		t.Fatal("expected validation errors")
	}
	verrs, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	if len(verrs) != 2 {
		t.Errorf("expected 2 errors, got %d: %v", len(verrs), err)
	}
}

func TestValidateCoordinator_RequiresFleet(t *testing.T) {
	clearCoordinatorEnv()

	err := ValidateCoordinator(LoadCoordinator())
	if err == nil {
		t.Fatal("expected validation error without FLEET_ADDRS")
	}
	if !strings.Contains(err.Error(), "FLEET_ADDRS") {
		t.Errorf("error should name FLEET_ADDRS, got: %v", err)
	}
}

func TestValidateCoordinator_UnknownTimezone(t *testing.T) {
	clearCoordinatorEnv()
	os.Setenv("FLEET_ADDRS", "192.168.1.10:5005")
	os.Setenv("SCHEDULE_TIMEZONE", "Mars/Olympus")
	defer clearCoordinatorEnv()

	err := ValidateCoordinator(LoadCoordinator())
	if err == nil {
		t.Fatal("expected validation error for unknown timezone")
	}
	if !strings.Contains(err.Error(), "SCHEDULE_TIMEZONE") {
		t.Errorf("error should name SCHEDULE_TIMEZONE, got: %v", err)
	}
}

func TestValidateCoordinator_ValidConfig(t *testing.T) {
	clearCoordinatorEnv()
	os.Setenv("FLEET_ADDRS", "192.168.1.10:5005,192.168.1.11:5005")
	defer clearCoordinatorEnv()

	if err := ValidateCoordinator(LoadCoordinator()); err != nil {
		t.Errorf("config should validate, got: %v", err)
	}
}

func TestValidationErrors_MultiLineMessage(t *testing.T) {
	errs := ValidationErrors{
		{Field: "A", Message: "required"},
		{Field: "B", Message: "must be positive"},
	}
	msg := errs.Error()
	if !strings.Contains(msg, "2 validation errors") {
		t.Errorf("expected count header, got: %s", msg)
	}
	if !strings.Contains(msg, "A: required") || !strings.Contains(msg, "B: must be positive") {
		t.Errorf("expected both errors listed, got: %s", msg)
	}
}
