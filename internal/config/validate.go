package config

import (
	"fmt"
	"time"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	msg := fmt.Sprintf("%d validation errors:", len(e))
	for _, err := range e {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// checkDuration appends an error when value is set but not a positive duration.
func checkDuration(errs ValidationErrors, field, value string) ValidationErrors {
	if value == "" {
		return errs
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return append(errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("invalid duration: %v", err),
		})
	}
	if d <= 0 {
		return append(errs, ValidationError{
			Field:   field,
			Message: "must be positive",
		})
	}
	return errs
}

// ValidateNode checks camnode configuration for errors.
// Returns nil if valid, or ValidationErrors if invalid.
func ValidateNode(cfg NodeConfig) error {
	var errs ValidationErrors

	if cfg.ListenPort == cfg.AckPort {
		errs = append(errs, ValidationError{
			Field:   "ACK_PORT",
			Message: fmt.Sprintf("must differ from LISTEN_PORT (%d)", cfg.ListenPort),
		})
	}
	if cfg.SaveDir == "" {
		errs = append(errs, ValidationError{
			Field:   "SAVE_DIR",
			Message: "required",
		})
	}
	if cfg.CaptureQuality < 1 || cfg.CaptureQuality > 100 {
		errs = append(errs, ValidationError{
			Field:   "CAPTURE_QUALITY",
			Message: fmt.Sprintf("must be between 1 and 100, got %d", cfg.CaptureQuality),
		})
	}

	errs = checkDuration(errs, "DEFAULT_LEAD_TIME", cfg.DefaultLeadTimeStr)
	errs = checkDuration(errs, "SETTLE_DURATION", cfg.SettleDurationStr)
	errs = checkDuration(errs, "FINE_WAIT_THRESHOLD", cfg.FineWaitThresholdStr)
	errs = checkDuration(errs, "CAPTURE_TIMEOUT", cfg.CaptureTimeoutStr)
	errs = checkDuration(errs, "SWEEP_INTERVAL", cfg.SweepIntervalStr)
	errs = checkDuration(errs, "SWEEP_MAX_AGE", cfg.SweepMaxAgeStr)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ValidateCoordinator checks camsync configuration for errors.
// Returns nil if valid, or ValidationErrors if invalid.
func ValidateCoordinator(cfg CoordinatorConfig) error {
	var errs ValidationErrors

	if cfg.FleetAddrs == "" && cfg.FleetFile == "" {
		errs = append(errs, ValidationError{
			Field:   "FLEET_ADDRS",
			Message: "required (or set FLEET_FILE)",
		})
	}
	if _, err := cfg.Fleet(); err != nil && (cfg.FleetAddrs != "" || cfg.FleetFile != "") {
		errs = append(errs, ValidationError{
			Field:   "FLEET_ADDRS",
			Message: err.Error(),
		})
	}
	if cfg.ScheduleTimezone != "" {
		if _, err := time.LoadLocation(cfg.ScheduleTimezone); err != nil {
			errs = append(errs, ValidationError{
				Field:   "SCHEDULE_TIMEZONE",
				Message: fmt.Sprintf("unknown timezone: %v", err),
			})
		}
	}

	errs = checkDuration(errs, "LEAD_TIME", cfg.LeadTimeStr)
	errs = checkDuration(errs, "ACK_WAIT", cfg.AckWaitStr)
	errs = checkDuration(errs, "DB_OP_TIMEOUT", cfg.DBOpTimeoutStr)

	if len(errs) > 0 {
		return errs
	}
	return nil
}
