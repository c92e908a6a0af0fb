// Package validation checks request messages field by field before they
// reach the domain layer, using struct tags and English error messages.
package validation

import (
	"errors"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/mmynk/splitledger/internal/money"
)

// Error lists every field that failed validation.
type Error struct {
	// Fields maps a field path such as "splits[1].owed_share" to its message.
	Fields map[string]string
}

func (e *Error) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	messages := make([]string, len(keys))
	for i, k := range keys {
		messages[i] = e.Fields[k]
	}
	return strings.Join(messages, ", ")
}

// Validator wraps a configured validator.Validate and its translator.
// It is safe for concurrent use.
type Validator struct {
	validate *validator.Validate
	trans    ut.Translator
}

// New builds a Validator with the money tags registered:
//
//	money           non-negative decimal string with at most 2 decimal places
//	positive_money  like money, and greater than zero
func New() *Validator {
	validate := validator.New(validator.WithRequiredStructEnabled())

	eng := en.New()
	uni := ut.New(eng, eng)
	trans, _ := uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, trans)

	validate.RegisterTagNameFunc(jsonFieldName)

	custom := []struct {
		tag     string
		fn      validator.Func
		message string
	}{
		{"money", isMoney, "{0} must be a non-negative amount with at most 2 decimal places"},
		{"positive_money", isPositiveMoney, "{0} must be an amount greater than zero with at most 2 decimal places"},
	}
	for _, c := range custom {
		_ = validate.RegisterValidation(c.tag, c.fn)
		_ = validate.RegisterTranslation(c.tag, trans, registerMessage(c.tag, c.message), translateMessage(c.tag))
	}

	return &Validator{validate: validate, trans: trans}
}

// Struct validates s and returns *Error when any field fails.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	out := &Error{Fields: make(map[string]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		out.Fields[fieldPath(fe.Namespace())] = fe.Translate(v.trans)
	}
	return out
}

func isMoney(fl validator.FieldLevel) bool {
	_, err := money.ParseNonNegative(fl.Field().String())
	return err == nil
}

func isPositiveMoney(fl validator.FieldLevel) bool {
	d, err := money.ParseNonNegative(fl.Field().String())
	return err == nil && d.IsPositive()
}

func registerMessage(tag, message string) validator.RegisterTranslationsFunc {
	return func(trans ut.Translator) error {
		return trans.Add(tag, message, true)
	}
}

func translateMessage(tag string) validator.TranslationFunc {
	return func(trans ut.Translator, fe validator.FieldError) string {
		msg, err := trans.T(tag, fe.Field())
		if err != nil {
			return fe.Error()
		}
		return msg
	}
}

// jsonFieldName reports fields by their JSON name so messages match the wire.
func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	switch name {
	case "-":
		return ""
	case "":
		return fld.Name
	}
	return name
}

// fieldPath drops the leading struct name from a namespace.
func fieldPath(namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}
