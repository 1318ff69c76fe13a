package validation

import (
	"unicode"

	validatorv10 "github.com/go-playground/validator/v10"
)

const maxChargeIDLen = 128

// New returns a configured validator with the custom tags used by the request types.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	// chargeid: printable, no whitespace, bounded length. The id ends up in a
	// URL path and in order notes.
	_ = v.RegisterValidation("chargeid", validateChargeID)

	return v
}

func validateChargeID(fl validatorv10.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" || len(s) > maxChargeIDLen {
		return false
	}
	for _, r := range s {
		if unicode.IsSpace(r) || !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}
