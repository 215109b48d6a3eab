package subscription

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// TimeLayout is the wall-clock format of subscription times (UTC).
const TimeLayout = "15:04:05"

var ErrInvalidTime = errors.New("invalid time, want HH:MM:SS")

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidateTime checks a subscription time: three colon separated fields,
// hour 0..23, minute and second 0..59.
func ValidateTime(s string) error {
	if strings.Count(s, ":") != 2 {
		return fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	if err := validatorInstance().Var(s, "required,datetime="+TimeLayout); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	return nil
}

// ParseTime returns the offset of s from midnight.
func ParseTime(s string) (time.Duration, error) {
	if err := ValidateTime(s); err != nil {
		return 0, err
	}
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second, nil
}
