package handler

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"user_backend/internal/apperror"
	"user_backend/internal/middleware"
	"user_backend/internal/model"
	"user_backend/internal/utils"
)

var registerOnce sync.Once

// RegisterValidators installs the custom binding tags and reports fields by
// their JSON names.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("phone", validatePhone)
		_ = v.RegisterValidation("bcryptlen", validateBcryptLen)
	})
}

func validatePhone(fl validator.FieldLevel) bool {
	_, err := model.ParsePhoneNumber(fl.Field().String())
	return err == nil
}

// validateBcryptLen counts bytes, not characters: bcrypt rejects inputs over 72 bytes.
func validateBcryptLen(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= utils.MaxPasswordBytes
}

// bindJSON decodes the body into obj and writes the error response on failure.
func bindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		middleware.AbortWithError(c, bindingError(err))
		return false
	}
	return true
}

// bindingError maps validation failures to 422 and malformed input to 400.
func bindingError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details := apperror.Details{}
		for _, fe := range verrs {
			details[fe.Field()] = describe(fe)
		}
		return apperror.Validation("Validation error", details)
	}
	if errors.Is(err, io.EOF) {
		return apperror.BadRequest("Request body is required", nil)
	}
	return apperror.BadRequest("Invalid request body", nil)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "phone":
		return "invalid phone number"
	case "bcryptlen":
		return fmt.Sprintf("must be at most %d bytes", utils.MaxPasswordBytes)
	default:
		return "invalid value"
	}
}
