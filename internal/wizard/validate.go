package wizard

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Kind selects which stateless validator a step applies to its input.
type Kind string

const (
	KindEmail    Kind = "email"
	KindIPv4     Kind = "ipv4"
	KindPort     Kind = "port"
	KindDomain   Kind = "domain"
	KindUsername Kind = "username"
	KindPassword Kind = "password"
	KindPath     Kind = "path"
	KindBoolean  Kind = "boolean"
	KindInteger  Kind = "integer"
	KindFreeform Kind = "freeform"
)

// Reason classifies a validation failure.
type Reason string

const (
	ReasonRequired   Reason = "required"
	ReasonFormat     Reason = "format"
	ReasonOutOfRange Reason = "out_of_range"
)

// ValidationError reports a rejected wizard input. It never aborts a session;
// the caller re-prompts the same step.
type ValidationError struct {
	Field  string
	Reason Reason
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("field %s: %s (%s)", e.Field, e.Detail, e.Reason)
}

var (
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	domainPattern   = regexp.MustCompile(`^([a-zA-Z0-9]([a-zA-Z0-9\-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]{2,}$`)
	usernamePattern = regexp.MustCompile(`^[a-z][a-z0-9_\-]*$`)
	pathPattern     = regexp.MustCompile(`^/[a-zA-Z0-9._/\-]*$`)
	integerPattern  = regexp.MustCompile(`^[0-9]+$`)
)

var booleanTokens = map[string]bool{
	"yes": true, "y": true, "true": true, "1": true,
	"no": true, "n": true, "false": true, "0": true,
}

// Check runs the validator for kind against value. A nil return means the
// value passed; otherwise the error is a *ValidationError with the field left
// blank for the session to fill in.
func Check(kind Kind, value string) error {
	switch kind {
	case KindEmail:
		if !emailPattern.MatchString(value) {
			return formatError("not a valid email address")
		}
	case KindIPv4:
		if err := checkIPv4(value); err != nil {
			return err
		}
	case KindPort:
		if !integerPattern.MatchString(value) {
			return formatError("port must be a number")
		}
		port, err := strconv.Atoi(value)
		if err != nil || port < 1 || port > 65535 {
			return formatError("port must be between 1 and 65535")
		}
	case KindDomain:
		if !domainPattern.MatchString(value) {
			return formatError("not a valid domain name")
		}
	case KindUsername:
		if !usernamePattern.MatchString(value) {
			return formatError("username must start with a lowercase letter and use a-z, 0-9, _ or -")
		}
		if len(value) > 32 {
			return formatError("username must be at most 32 characters")
		}
	case KindPassword:
		if utf8.RuneCountInString(value) < 8 {
			return formatError("password must be at least 8 characters")
		}
	case KindPath:
		if !pathPattern.MatchString(value) {
			return formatError("path must be absolute and use POSIX-safe characters")
		}
	case KindBoolean:
		if !booleanTokens[strings.ToLower(value)] {
			return formatError("expected yes or no")
		}
	case KindInteger:
		if !integerPattern.MatchString(value) {
			return formatError("expected digits only")
		}
	case KindFreeform:
		if strings.TrimSpace(value) == "" {
			return formatError("value must not be empty")
		}
	default:
		return formatError(fmt.Sprintf("unknown validator kind %q", kind))
	}
	return nil
}

// TruthyBoolean reports whether a value already accepted by KindBoolean is an
// affirmative token.
func TruthyBoolean(value string) bool {
	switch strings.ToLower(value) {
	case "yes", "y", "true", "1":
		return true
	default:
		return false
	}
}

func checkIPv4(value string) error {
	octets := strings.Split(value, ".")
	if len(octets) != 4 {
		return formatError("expected four dot-separated octets")
	}
	for _, octet := range octets {
		if octet == "" || len(octet) > 3 || !integerPattern.MatchString(octet) {
			return formatError("octets must be numbers between 0 and 255")
		}
		n, err := strconv.Atoi(octet)
		if err != nil || n > 255 {
			return formatError("octets must be numbers between 0 and 255")
		}
	}
	return nil
}

func formatError(detail string) error {
	return &ValidationError{Reason: ReasonFormat, Detail: detail}
}
