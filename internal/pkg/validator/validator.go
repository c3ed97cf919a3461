package validator

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

// accountPattern: 1-12 chars of a-z, 1-5 and dots, not starting or ending with a dot.
var accountPattern = regexp.MustCompile(`^[a-z1-5]([a-z1-5.]{0,10}[a-z1-5])?$`)

// bcrypt rejects inputs longer than 72 bytes; "max" counts runes.
const bcryptMaxBytes = 72

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	_ = validate.RegisterValidation("account", func(fl validator.FieldLevel) bool {
		return accountPattern.MatchString(fl.Field().String())
	})
	_ = validate.RegisterValidation("bcryptlen", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= bcryptMaxBytes
	})
}

// FieldError names the first failing field by its json path and the rule it broke.
type FieldError struct {
	Field string
	Tag   string
}

func (e *FieldError) Error() string { return e.Field + ": " + e.Tag }

// Missing reports whether the field was absent rather than badly formatted.
func (e *FieldError) Missing() bool { return e.Tag == "required" }

// Validate returns nil or a *FieldError. A missing required field is
// reported before any format error; otherwise the first violated rule in
// struct field order wins.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	first := verrs[0]
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			first = fe
			break
		}
	}
	ns := first.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		ns = ns[i+1:]
	}
	return &FieldError{Field: ns, Tag: first.Tag()}
}

func IsEmail(s string) bool {
	return validate.Var(s, "required,email") == nil
}
