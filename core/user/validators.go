package user

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/trezcool/classcue/core"
	appfs "github.com/trezcool/classcue/fs"
)

var (
	allRolesTag  = "allroles"
	allRolesText = "invalid roles"

	themeTag  = "theme"
	themeText = "theme must be one of: " + strings.Join(Themes, ", ")

	usernameOrEmailTag  = "username_or_email"
	usernameOrEmailText = "one of username or email is required"

	enrollmentTag   = "enrollment"
	enrollmentText  = "enrollment number must be exactly 12 digits"
	enrollmentRegex = regexp.MustCompile(`^[0-9]{12}$`)

	facultyEmailTag  = "faculty_email"
	facultyEmailText = "faculty members need an email address"

	// password policy
	pwdMinLen     = 8
	pwdMinLenTag  = "pwdminlen"
	pwdMinLenText = fmt.Sprintf("password must contain at least %d characters", pwdMinLen)

	pwdNoSpaceTag  = "pwdnospace"
	pwdNoSpaceText = "password must not contain whitespace"

	pwdNotAllNumTag  = "pwdnotallnum"
	pwdNotAllNumText = "password cannot be entirely numeric"

	pwdComplexityTag  = "pwdcplx"
	pwdComplexityText = "password must contain at least 1 uppercase character, 1 lowercase character, 1 digit and 1 special character"
	specialRegex      = regexp.MustCompile("[^A-Za-z0-9]")

	pwdMaxSim      = .7
	pwdAttrSimTag  = "pwdtoosim"
	pwdAttrSimText = "password cannot be similar to user attributes"

	pwdNoCommonTag  = "pwdnocommon"
	pwdNoCommonText = "password is too common"
	commonPasswords []string
)

// InitValidators registers the user validators and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(userStructValidation, NewUser{}, UpdateUser{})
	core.RegisterTags(validate, translator,
		core.ValidationTag{Name: allRolesTag, Text: allRolesText, Func: allRolesValidation},
		core.ValidationTag{Name: themeTag, Text: themeText, Func: themeValidation},
		// reported by userStructValidation
		core.ValidationTag{Name: usernameOrEmailTag, Text: usernameOrEmailText},
		core.ValidationTag{Name: enrollmentTag, Text: enrollmentText},
		core.ValidationTag{Name: facultyEmailTag, Text: facultyEmailText},
		core.ValidationTag{Name: pwdMinLenTag, Text: pwdMinLenText},
		core.ValidationTag{Name: pwdNoSpaceTag, Text: pwdNoSpaceText},
		core.ValidationTag{Name: pwdNotAllNumTag, Text: pwdNotAllNumText},
		core.ValidationTag{Name: pwdComplexityTag, Text: pwdComplexityText},
		core.ValidationTag{Name: pwdAttrSimTag, Text: pwdAttrSimText},
		core.ValidationTag{Name: pwdNoCommonTag, Text: pwdNoCommonText},
	)
}

// LoadCommonPasswords reads the embedded list of common passwords rejected by the password policy.
func LoadCommonPasswords(logger core.Logger) {
	file, err := appfs.FS.Open("assets/common-passwords.txt.gz")
	if err != nil {
		logger.Error(fmt.Sprintf("user.LoadCommonPasswords: %v", err), err)
		return
	}
	//goland:noinspection GoUnhandledErrorResult
	defer file.Close()

	gzRdr, err := gzip.NewReader(file)
	if err != nil {
		logger.Error(fmt.Sprintf("user.LoadCommonPasswords: %v", err), err)
		return
	}
	pwds := make([]string, 0, 1024)
	scanner := bufio.NewScanner(gzRdr)
	for scanner.Scan() {
		if pwd := strings.ToLower(strings.TrimSpace(scanner.Text())); pwd != "" {
			pwds = append(pwds, pwd)
		}
	}
	sort.Strings(pwds)
	commonPasswords = pwds
}

// IsEnrollmentNumber tells whether `s` is a student enrollment number.
func IsEnrollmentNumber(s string) bool {
	return enrollmentRegex.MatchString(s)
}

// Custom Validators

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// allRolesValidation checks that every role is one of AllRoles.
func allRolesValidation(fl validator.FieldLevel) bool {
	roles, ok := fl.Field().Interface().([]string)
	if !ok {
		return false
	}
	for _, role := range roles {
		if !contains(AllRoles, role) {
			return false
		}
	}
	return true
}

func themeValidation(fl validator.FieldLevel) bool {
	return contains(Themes, fl.Field().String())
}

// userStructValidation does struct level validation on NewUser and UpdateUser structs.
func userStructValidation(sl validator.StructLevel) {
	switch usr := sl.Current().Interface().(type) {
	case NewUser:
		if usr.Username == "" && usr.Email == "" {
			sl.ReportError(usr.Username, "username", "Username", usernameOrEmailTag, "")
			sl.ReportError(usr.Email, "email", "Email", usernameOrEmailTag, "")
		}
		validateRoleCredentials(usr.Username, usr.Email, usr.Roles, sl)
		validatePassword(usr.Password, sl, usr.Name, usr.Username, usr.Email)
	case UpdateUser:
		validateRoleCredentials(usr.Username, usr.Email, usr.Roles, sl)
		if usr.Password != "" {
			validatePassword(usr.Password, sl, usr.Name, usr.Username, usr.Email)
		}
	}
}

// validateRoleCredentials enforces the sign in identifier of each role:
// students use their enrollment number, faculty members their email.
func validateRoleCredentials(uname, email string, roles []string, sl validator.StructLevel) {
	usr := User{Roles: roles}
	if usr.IsStudent() && !IsEnrollmentNumber(uname) {
		sl.ReportError(uname, "username", "Username", enrollmentTag, "")
	}
	if usr.IsFaculty() && email == "" {
		sl.ReportError(email, "email", "Email", facultyEmailTag, "")
	}
}

// passwordRule reports whether `pwd` breaks the rule; `attrs` are the user's name, username and email.
type passwordRule struct {
	tag    string
	broken func(pwd string, attrs []string) bool
}

// passwordPolicy is checked in order; only the first broken rule is reported.
var passwordPolicy = []passwordRule{
	{pwdMinLenTag, func(pwd string, _ []string) bool {
		return utf8.RuneCountInString(pwd) < pwdMinLen
	}},
	{pwdNoSpaceTag, func(pwd string, _ []string) bool {
		return strings.IndexFunc(pwd, unicode.IsSpace) >= 0
	}},
	{pwdNotAllNumTag, func(pwd string, _ []string) bool {
		return strings.IndexFunc(pwd, func(r rune) bool { return !unicode.IsDigit(r) }) < 0
	}},
	{pwdComplexityTag, func(pwd string, _ []string) bool {
		return strings.IndexFunc(pwd, unicode.IsUpper) < 0 ||
			strings.IndexFunc(pwd, unicode.IsLower) < 0 ||
			strings.IndexFunc(pwd, unicode.IsDigit) < 0 ||
			!specialRegex.MatchString(pwd)
	}},
	{pwdAttrSimTag, func(pwd string, attrs []string) bool {
		chars := strings.Split(strings.ToLower(pwd), "")
		for _, attr := range attrs {
			if attr == "" {
				continue
			}
			m := difflib.NewMatcher(chars, strings.Split(strings.ToLower(attr), ""))
			if m.QuickRatio() >= pwdMaxSim {
				return true
			}
		}
		return false
	}},
	{pwdNoCommonTag, func(pwd string, _ []string) bool {
		lower := strings.ToLower(pwd)
		idx := sort.SearchStrings(commonPasswords, lower)
		return idx < len(commonPasswords) && commonPasswords[idx] == lower
	}},
}

func validatePassword(pwd string, sl validator.StructLevel, attrs ...string) {
	for _, rule := range passwordPolicy {
		if rule.broken(pwd, attrs) {
			sl.ReportError(pwd, "password", "Password", rule.tag, "")
			return
		}
	}
}
