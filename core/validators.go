package core

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// ValidationTag is a validation tag and the message its failures render to.
// A tag without Func only overrides the message of a built-in or struct-level tag.
type ValidationTag struct {
	Name string
	Text string
	Func validator.Func
}

var (
	alphaNumUnderRegex = regexp.MustCompile(`^[\w\s]+$`)

	commonTags = []ValidationTag{
		{Name: "alphanum_", Text: "only alphanumeric characters and underscores are allowed", Func: func(fl validator.FieldLevel) bool {
			return alphaNumUnderRegex.MatchString(fl.Field().String())
		}},
	}
	requiredText = "this field is required"
)

// NewTranslator returns the english translator used to render validation errors.
func NewTranslator() ut.Translator {
	english := en.New()
	translator, _ := ut.New(english, english).GetTranslator("en")
	return translator
}

// InitValidators sets up `validate` with the default english messages, JSON field names and the common tags.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	RegisterTags(validate, translator, commonTags...)
	for _, tag := range []string{"required", "required_with"} {
		translate(validate, translator, tag, requiredText, true)
	}
}

// RegisterTags registers the validation funcs of `tags` and their messages.
func RegisterTags(validate *validator.Validate, translator ut.Translator, tags ...ValidationTag) {
	for _, tag := range tags {
		if tag.Func != nil {
			_ = validate.RegisterValidation(tag.Name, tag.Func)
		}
		translate(validate, translator, tag.Name, tag.Text, false)
	}
}

func translate(validate *validator.Validate, translator ut.Translator, tag, text string, override bool) {
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, override) },
		func(t ut.Translator, fe validator.FieldError) string {
			msg, _ := t.T(tag, fe.Field())
			return msg
		},
	)
}
