package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// envNames maps struct namespaces to the variables that populate them.
var envNames = map[string]string{
	"Config.Redis.URL":            "REDIS_URL",
	"Config.Redis.MaxConnections": "REDIS_MAX_CONNECTIONS",
	"Config.Poll.Interval":        "POLL_INTERVAL",
	"Config.Poll.SlowlogMaxLen":   "SLOWLOG_MAX_LEN",
	"Config.Log.Level":            "LOG_LEVEL",
	"Config.HTTP.Addr":            "HTTP_ADDR",
	"Config.Service":              "SERVICE_NAME",
}

// Validate checks Config for problems that would prevent collection.
// It collects all errors into a single joined error.
func (c *Config) Validate() error {
	var errs []string

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("validating config: %w", err)
		}
		for _, fe := range verrs {
			errs = append(errs, describe(fe))
		}
	}

	// Missing URL is allowed for local runs; collection is simply unavailable.
	if c.Redis.URL != "" && c.Redis.CertPath == "" {
		errs = append(errs, "REDIS_CERT_PATH is required when REDIS_URL is set")
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  " + strings.Join(errs, "\n  "))
	}
	return nil
}

func describe(fe validator.FieldError) string {
	name, ok := envNames[fe.Namespace()]
	if !ok {
		name = fe.Namespace()
	}
	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "gt":
		return fmt.Sprintf("%s must be greater than %s, got %v", name, fe.Param(), fe.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", name, fe.Param(), fe.Value())
	case "url":
		return name + " must be a valid URL"
	case "hostname_port":
		return fmt.Sprintf("%s must be host:port, got %q", name, fe.Value())
	default:
		return fmt.Sprintf("%s failed %s validation", name, fe.Tag())
	}
}
