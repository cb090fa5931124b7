// Package validate provides support for validating configuration and
// settings values against their struct tags.
package validate

import (
	"errors"
	"fmt"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// validate holds the settings and caches for validating struct values.
var validate *validator.Validate

// translator is a cache of locale and translation information.
var translator ut.Translator

func init() {

	// Instantiate a validator.
	validate = validator.New()

	// Instantiate the english locale for the validator library.
	enLocale := en.New()

	// Create a value using English as the fallback locale.
	uni := ut.New(enLocale, enLocale)

	// Query the english translator from the universal translator value.
	translator, _ = uni.GetTranslator(enLocale.Locale())

	// Register the english error messages for use.
	en_translations.RegisterDefaultTranslations(validate, translator)
}

// Check validates the provided value against its declared struct tags.
func Check(val any) error {
	if err := validate.Struct(val); err != nil {

		// Use a type assertion to get the real error value.
		var verrors validator.ValidationErrors
		if !errors.As(err, &verrors) {
			return err
		}

		var msg string
		for _, verror := range verrors {
			msg += fmt.Sprintf("[%s] ", verror.Translate(translator))
		}
		return errors.New(msg)
	}

	return nil
}
