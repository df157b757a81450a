package cartsync

import (
	"errors"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"storefront/models"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

var contactNumberRE = regexp.MustCompile(`^[0-9]{10}$`)

// ValidateAddress checks that every non-geo address field is filled in
// and the postal code is numeric. Shared by order placement and the
// saved-address endpoint.
func ValidateAddress(address models.DeliveryAddress) error {
	err := validate.Struct(address)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		f := verrs[0]
		msg := "is required"
		if f.Tag() != "required" {
			msg = "is not a valid " + f.Tag() + " value"
		}
		return &ValidationError{Field: lowerFirst(f.Field()), Message: msg}
	}
	return err
}

func validateOrderInput(address models.DeliveryAddress, contactNumber string) error {
	if err := ValidateAddress(address); err != nil {
		return err
	}
	if !contactNumberRE.MatchString(contactNumber) {
		return &ValidationError{Field: "contactNumber", Message: "must be exactly 10 digits"}
	}
	return nil
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
