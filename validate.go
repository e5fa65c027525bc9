package historyquiz

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	govalidator "github.com/go-playground/validator/v10"
)

var (
	validate     *govalidator.Validate
	validateOnce sync.Once
)

func validatorInstance() *govalidator.Validate {
	validateOnce.Do(func() {
		validate = govalidator.New()
		// Use JSON tag name for field names in error messages.
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// ValidateQuizConfig checks a QuizConfig before generation starts.
func ValidateQuizConfig(cfg QuizConfig) error {
	return validateStruct(cfg)
}

// ValidateLLMConfig checks generation credentials.
func ValidateLLMConfig(cfg LLMConfig) error {
	return validateStruct(cfg)
}

func validateStruct(v interface{}) error {
	err := validatorInstance().Struct(v)
	if err == nil {
		return nil
	}

	var ve govalidator.ValidationErrors
	if !errors.As(err, &ve) {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s", fe.Field(), fe.Tag()))
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
}
