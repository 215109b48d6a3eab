package config

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ValidationError lists every problem found in a config.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid config: " + strings.Join(e.Problems, "; ")
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "" || name == "-" {
				return f.Name
			}
			return name
		})
		validate = v
	})
	return validate
}

// Validate checks field rules, durations and provider names.
func Validate(cfg *Config) error {
	if cfg == nil {
		return &ValidationError{Problems: []string{"config is empty"}}
	}
	var problems []string

	if err := validatorInstance().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			problems = append(problems, describe(fe))
		}
	}

	keys := make([]string, 0)
	durs := cfg.durations()
	for k := range durs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, err := ParseDurationField(k, durs[k]); err != nil {
			problems = append(problems, err.Error())
		}
	}

	seen := map[string]bool{}
	for i, p := range cfg.Providers {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			continue
		}
		if seen[name] {
			problems = append(problems, fmt.Sprintf("providers[%d].name: duplicate provider %q", i, name))
		}
		seen[name] = true
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// describe renders a field error with its dotted json path, e.g. "telegram.token: is required".
func describe(fe validator.FieldError) string {
	path := fe.Namespace()
	if _, rest, ok := strings.Cut(path, "."); ok {
		path = rest
	}
	var msg string
	switch fe.Tag() {
	case "required":
		msg = "is required"
	case "required_if":
		msg = "is required when " + fe.Param()
	case "oneof":
		msg = "must be one of: " + fe.Param()
	case "gte":
		msg = "must be >= " + fe.Param()
	case "lte":
		msg = "must be <= " + fe.Param()
	case "url":
		msg = "must be a URL"
	case "timezone":
		msg = "must be an IANA time zone"
	case "bcp47_language_tag":
		msg = "must be a language tag"
	case "hostname_port":
		msg = "must be host:port"
	case "excluded_without":
		msg = "needs " + fe.Param()
	default:
		msg = "is invalid (" + fe.Tag() + ")"
	}
	return path + ": " + msg
}
