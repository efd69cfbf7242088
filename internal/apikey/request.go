package apikey

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/eleven-am/zentoria-gateway/internal/shared"
)

const (
	nameMinLength = 1
	nameMaxLength = 100

	minLifetime = 24 * time.Hour
	maxLifetime = 10 * 365 * 24 * time.Hour

	minPerMinute = 1
	maxPerMinute = 10000
	minPerDay    = 1
	maxPerDay    = 1000000
)

var expiresInPattern = regexp.MustCompile(`^\d+[dwmy]$`)

type CreateRequest struct {
	Name               string   `json:"name"`
	Scopes             []string `json:"scopes"`
	ExpiresIn          string   `json:"expires_in"`
	RateLimitPerMinute *int     `json:"rate_limit_per_minute"`
	RateLimitPerDay    *int     `json:"rate_limit_per_day"`
}

// ParseExpiresIn converts "<n>d|w|m|y" into a lifetime. Months count as 30
// days and years as 365.
func ParseExpiresIn(s string) (time.Duration, error) {
	if !expiresInPattern.MatchString(s) {
		return 0, errors.New("must be digits followed by d, w, m or y")
	}

	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil {
		return 0, errors.New("is out of range")
	}

	var days int
	switch s[len(s)-1] {
	case 'd':
		days = 1
	case 'w':
		days = 7
	case 'm':
		days = 30
	case 'y':
		days = 365
	}

	// Bound the day count before it becomes a Duration so large values
	// cannot wrap back into range.
	maxDays := int(maxLifetime / (24 * time.Hour))
	if n > maxDays/days {
		return 0, fmt.Errorf("must not exceed %d days", maxDays)
	}
	return time.Duration(n*days) * 24 * time.Hour, nil
}

func ScopeRules() []validation.Rule {
	return []validation.Rule{
		validation.Required.Error("at least one scope is required"),
		validation.Each(validation.By(func(value interface{}) error {
			s, _ := value.(string)
			if _, err := shared.ParseScope(s); err != nil {
				return validation.NewError("validation_unknown_scope", err.Error())
			}
			return nil
		})),
	}
}

func NameRules() []validation.Rule {
	return []validation.Rule{
		validation.Required,
		validation.RuneLength(nameMinLength, nameMaxLength),
	}
}

func ExpiresInRules() []validation.Rule {
	return []validation.Rule{
		validation.By(func(value interface{}) error {
			s, _ := value.(string)
			if s == "" {
				return nil
			}
			d, err := ParseExpiresIn(s)
			if err != nil {
				return validation.NewError("validation_expires_in", err.Error())
			}
			if d < minLifetime || d > maxLifetime {
				return validation.NewError("validation_expires_in", "must be between 1 day and 10 years")
			}
			return nil
		}),
	}
}

func (r *CreateRequest) Validate() error {
	err := validation.ValidateStruct(r,
		validation.Field(&r.Name, NameRules()...),
		validation.Field(&r.Scopes, ScopeRules()...),
		validation.Field(&r.ExpiresIn, ExpiresInRules()...),
		validation.Field(&r.RateLimitPerMinute, validation.NilOrNotEmpty, validation.Min(minPerMinute), validation.Max(maxPerMinute)),
		validation.Field(&r.RateLimitPerDay, validation.NilOrNotEmpty, validation.Min(minPerDay), validation.Max(maxPerDay)),
	)
	return shared.FromValidation(err)
}
