package serverutils

import (
	"errors"
	"fmt"
	"strings"

	"chatsync-be/pkg/apperror"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateRequest runs struct tag validation and reports failures as a validation error.
func ValidateRequest(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperror.Wrap(apperror.KindValidation, "invalid request", err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed on '%s=%s'", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed on '%s'", fe.Field(), fe.Tag()))
		}
	}
	return apperror.Validation(strings.Join(msgs, "; "))
}
