package utils

import (
	"errors"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/ttacon/libphonenumber"
)

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the shared validator instance.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		_ = validate.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
			v := fl.Field().String()
			return v == "" || ValidatePhoneNumber(v, "") == nil
		})
	})
	return validate
}

// ValidateStruct runs validator tags on input.
func ValidateStruct(input any) error {
	return Validator().Struct(input)
}

func IsValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// ValidatePhoneNumber parses phoneNumber for region countryCode ("" means the number must carry a +country prefix).
func ValidatePhoneNumber(phoneNumber, countryCode string) error {
	p, err := libphonenumber.Parse(phoneNumber, strings.ToUpper(countryCode))
	if err != nil {
		return err
	}
	if !libphonenumber.IsValidNumber(p) {
		return InvalidInput("phone number is not valid")
	}
	return nil
}

// FormatPhoneNumber returns phoneNumber in E.164 form.
func FormatPhoneNumber(phoneNumber, countryCode string) (string, error) {
	p, err := libphonenumber.Parse(phoneNumber, strings.ToUpper(countryCode))
	if err != nil {
		return "", err
	}
	if !libphonenumber.IsValidNumber(p) {
		return "", InvalidInput("phone number is not valid")
	}
	return libphonenumber.Format(p, libphonenumber.E164), nil
}

// ProcessValidationErrors maps validator errors to field -> failed tag.
func ProcessValidationErrors(err error) map[string]string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return nil
	}
	errorResponse := make(map[string]string, len(validationErrors))
	for _, ve := range validationErrors {
		errorResponse[ve.Field()] = ve.Tag()
	}
	return errorResponse
}

func NewTrue() *bool {
	b := true
	return &b
}

func NewFalse() *bool {
	b := false
	return &b
}

func DereferencePtr[T any](p *T, def ...T) T {
	if p != nil {
		return *p
	}
	if len(def) > 0 {
		return def[0]
	}
	var zero T
	return zero
}

// returns slice removing duplicate elements
func UniqueSlice[T comparable](slice []T) []T {
	inResult := make(map[T]bool)
	var result []T
	for _, elm := range slice {
		if _, ok := inResult[elm]; !ok {
			inResult[elm] = true
			result = append(result, elm)
		}
	}
	return result
}
