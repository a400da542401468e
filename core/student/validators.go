package student

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/classcue/core"
)

var (
	interestTag  = "interest"
	interestText = "unknown interest"

	skillTag  = "skill"
	skillText = "unknown skill"

	goalTag  = "goal"
	goalText = "unknown goal"
)

// InitValidators registers the profile catalogue validators and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	core.RegisterTags(validate, translator,
		core.ValidationTag{Name: interestTag, Text: interestText, Func: catalogueValidation(InterestOptions)},
		core.ValidationTag{Name: skillTag, Text: skillText, Func: catalogueValidation(SkillOptions)},
		core.ValidationTag{Name: goalTag, Text: goalText, Func: catalogueValidation(GoalOptions)},
	)
}

func catalogueValidation(opts []Option) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return hasOption(opts, fl.Field().String())
	}
}
