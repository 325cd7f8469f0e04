package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// Custom validator tags registered by New.
const (
	tagBasicEmail  = "basic_email"
	tagEmailDomain = "email_domain"
	tagPasswordMix = "password_mix"
	tagPersonName  = "person_name"
	tagPhoneDigits = "phone_digits"
)

var (
	basicEmailRe  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	personNameRe  = regexp.MustCompile(`^[\p{L}\s\-']+$`)
	phoneDigitsRe = regexp.MustCompile(`^[+]?[0-9]{7,15}$`)
	phoneFormatRe = regexp.MustCompile(`[\s\-().]`)
	upperRe       = regexp.MustCompile(`[A-Z]`)
	lowerRe       = regexp.MustCompile(`[a-z]`)
	digitRe       = regexp.MustCompile(`[0-9]`)
)

// Engine validates form values against a RuleSet.
//
// Checks are expressed as go-playground/validator tags so that each rule is a
// short tag chain; the first failing tag selects the message shown.
// An Engine is safe for concurrent use.
type Engine struct {
	v      *validator.Validate
	domain string
}

// New creates an Engine whose domain-restricted email rule accepts only
// addresses ending in "@"+allowedDomain (compared case-insensitively).
func New(allowedDomain string) (*Engine, error) {
	allowedDomain = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(allowedDomain), "@"))
	if allowedDomain == "" {
		return nil, errors.New("validation: allowed email domain is required")
	}

	e := &Engine{v: validator.New(), domain: allowedDomain}

	custom := map[string]validator.Func{
		tagBasicEmail: func(fl validator.FieldLevel) bool {
			return basicEmailRe.MatchString(fl.Field().String())
		},
		tagEmailDomain: func(fl validator.FieldLevel) bool {
			return strings.HasSuffix(strings.ToLower(fl.Field().String()), "@"+e.domain)
		},
		tagPasswordMix: func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			return upperRe.MatchString(s) && lowerRe.MatchString(s) && digitRe.MatchString(s)
		},
		tagPersonName: func(fl validator.FieldLevel) bool {
			return personNameRe.MatchString(fl.Field().String())
		},
		tagPhoneDigits: func(fl validator.FieldLevel) bool {
			return phoneDigitsRe.MatchString(phoneFormatRe.ReplaceAllString(fl.Field().String(), ""))
		},
	}
	for tag, fn := range custom {
		if err := e.v.RegisterValidation(tag, fn); err != nil {
			return nil, fmt.Errorf("validation: register %s: %w", tag, err)
		}
	}

	return e, nil
}

// AllowedDomain returns the campus email domain, without the "@".
func (e *Engine) AllowedDomain() string {
	return e.domain
}

// ValidateForm applies every rule in rules to the matching entry of values.
// Missing values are treated as empty strings. Fields without a rule are ignored.
func (e *Engine) ValidateForm(values map[string]string, rules RuleSet) Result {
	errs := make(map[string]string)
	for field, rule := range rules {
		if msg := e.ValidateField(field, values[field], rule, values); msg != "" {
			errs[field] = msg
		}
	}
	return Result{IsValid: len(errs) == 0, Errors: errs}
}

// ValidateField returns the message for the first check value fails, or "".
func (e *Engine) ValidateField(field, value string, rule Rule, values map[string]string) string {
	switch rule.Kind {
	case KindRequired:
		if e.fails(strings.TrimSpace(value), "required") != "" {
			label := rule.Label
			if label == "" {
				label = field
			}
			return label + " is required"
		}

	case KindEmail:
		value = strings.TrimSpace(value)
		switch e.fails(value, "required,"+tagBasicEmail) {
		case "required":
			return "Email is required"
		case tagBasicEmail:
			return "Please enter a valid email address"
		}
		if rule.RequireDomain && e.fails(value, tagEmailDomain) != "" {
			return fmt.Sprintf("Only @%s emails are accepted", e.domain)
		}

	case KindPassword:
		minLen := rule.MinLength
		if minLen <= 0 {
			minLen = DefaultPasswordMinLength
		}
		switch e.fails(value, fmt.Sprintf("required,min=%d,%s", minLen, tagPasswordMix)) {
		case "required":
			return "Password is required"
		case "min":
			return fmt.Sprintf("Password must be at least %d characters long", minLen)
		case tagPasswordMix:
			return "Password must contain at least one uppercase letter, one lowercase letter, and one number"
		}

	case KindConfirmPassword:
		other := values[rule.CompareField]
		err := e.v.VarWithValue(value, other, "required,eqfield")
		switch failedTag(err) {
		case "required":
			return "Please confirm your password"
		case "eqfield":
			return "Passwords do not match"
		}

	case KindFullName:
		if value == "" {
			return "Full name is required"
		}
		trimmed := strings.TrimSpace(value)
		switch e.fails(trimmed, "min=2,max=100,"+tagPersonName) {
		case "min":
			return "Full name must be at least 2 characters long"
		case "max":
			return "Full name must not exceed 100 characters"
		case tagPersonName:
			return "Full name contains invalid characters"
		}

	case KindPhone:
		if value == "" {
			return ""
		}
		if e.fails(value, tagPhoneDigits) != "" {
			return "Please enter a valid phone number (7-15 digits)"
		}

	case KindAddress:
		if value == "" {
			return ""
		}
		if e.fails(strings.TrimSpace(value), "max=200") != "" {
			return "Address must not exceed 200 characters"
		}

	case KindTitle:
		return e.boundedText("Title", value, 3, orDefault(rule.MaxLength, DefaultTitleMaxLength))

	case KindDescription:
		return e.boundedText("Description", value, 10, orDefault(rule.MaxLength, DefaultDescriptionMax))

	case KindPrice:
		return e.price(value, rule)

	case KindURL:
		if value == "" {
			return ""
		}
		if e.fails(value, "url") != "" {
			return "Please enter a valid URL"
		}

	case KindCustom:
		if rule.Func != nil {
			return rule.Func(value, values)
		}
	}

	return ""
}

func (e *Engine) boundedText(name, value string, minLen, maxLen int) string {
	if value == "" {
		return name + " is required"
	}
	trimmed := strings.TrimSpace(value)
	switch e.fails(trimmed, fmt.Sprintf("min=%d,max=%d", minLen, maxLen)) {
	case "min":
		return fmt.Sprintf("%s must be at least %d characters long", name, minLen)
	case "max":
		return fmt.Sprintf("%s must not exceed %d characters", name, maxLen)
	}
	return ""
}

func (e *Engine) price(value string, rule Rule) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "Price is required"
	}
	num, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return "Please enter a valid price"
	}

	maxPrice := rule.Max
	if maxPrice == 0 {
		maxPrice = DefaultPriceMax
	}
	tag := fmt.Sprintf("gte=%s,lte=%s", formatNumber(rule.Min), formatNumber(maxPrice))
	switch failedTag(e.v.Var(num, tag)) {
	case "gte":
		return "Price must be at least " + formatNumber(rule.Min)
	case "lte":
		return "Price must not exceed " + formatNumber(maxPrice)
	}

	if _, frac, ok := strings.Cut(formatNumber(num), "."); ok && utf8.RuneCountInString(frac) > 2 {
		return "Price can have at most 2 decimal places"
	}
	return ""
}

// fails runs tag against value and returns the first failing tag, or "".
func (e *Engine) fails(value string, tag string) string {
	return failedTag(e.v.Var(value, tag))
}

func failedTag(err error) string {
	if err == nil {
		return ""
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return verrs[0].Tag()
	}
	// InvalidValidationError only arises from programming mistakes in tag chains.
	return "invalid"
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
