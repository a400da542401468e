package user

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/classcue/core"
)

// Roles
const (
	// Admin
	RoleAdmin          = "admin:"
	RoleAdminOwner     = "admin:owner"
	RoleAdminPrincipal = "admin:principal"

	// Faculty
	RoleFaculty = "faculty:"

	// Student
	RoleStudent = "student:"
)

// Themes
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// Roles lists the assignable roles from the least to the most privileged.
var Roles = []Role{
	{Name: "Student", Value: RoleStudent, priority: 1},
	{Name: "Faculty", Value: RoleFaculty, priority: 11},
	{Name: "Admin", Value: RoleAdmin, priority: 21},
	{Name: "Admin Principal", Value: RoleAdminPrincipal, priority: 29},
	{Name: "Admin Owner", Value: RoleAdminOwner, priority: 30},
}

var (
	AdminRoles   = rolesWithPrefix(RoleAdmin)
	FacultyRoles = rolesWithPrefix(RoleFaculty)
	StudentRoles = rolesWithPrefix(RoleStudent)
	// AllRoles starts with the plain admin role.
	AllRoles = append(append(append([]string{}, AdminRoles...), FacultyRoles...), StudentRoles...)

	Themes = []string{ThemeLight, ThemeDark}
)

type Role struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	priority int
}

func rolesWithPrefix(prefix string) []string {
	var values []string
	for _, r := range Roles {
		if strings.HasPrefix(r.Value, prefix) {
			values = append(values, r.Value)
		}
	}
	return values
}

// MaxRolePriority returns the priority of the most privileged of `roles`, 0 for none.
func MaxRolePriority(roles []string) int {
	var max int
	for _, r := range Roles {
		if r.priority > max && contains(roles, r.Value) {
			max = r.priority
		}
	}
	return max
}

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	IsActive     *bool     `json:"is_active"`
	Roles        []string  `json:"roles"`
	Theme        string    `json:"theme"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login"` // UTC
}

func (u *User) SetActive(active bool) {
	u.IsActive = &active
}

func (u *User) Active() bool {
	return u.IsActive == nil || *u.IsActive
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) RoleStartsWith(prefix string) bool {
	for _, role := range u.Roles {
		if strings.HasPrefix(role, prefix) {
			return true
		}
	}
	return false
}

func (u *User) IsAdmin() bool {
	return u.RoleStartsWith(RoleAdmin)
}

func (u *User) IsFaculty() bool {
	return u.RoleStartsWith(RoleFaculty)
}

func (u *User) IsStudent() bool {
	return u.RoleStartsWith(RoleStudent)
}

// FirstName is what the dashboards greet the user with.
func (u *User) FirstName() string {
	if fields := strings.Fields(u.Name); len(fields) > 0 {
		return fields[0]
	}
	if u.Username != "" {
		return u.Username
	}
	return u.Email
}

// NewUser contains information needed to create a new User.
// Students sign in with their 12 digit enrollment number as username, faculty members with their email.
type NewUser struct {
	Name            string   `json:"name" validate:"required"`
	Username        string   `json:"username" validate:"omitempty,min=6,alphanum_"`
	Email           string   `json:"email" validate:"omitempty,email"`
	Password        string   `json:"password" validate:"required"`
	PasswordConfirm string   `json:"password_confirm" validate:"required,eqfield=Password"`
	Roles           []string `json:"roles" validate:"omitempty,allroles"`
}

func (nu *NewUser) Validate(ctx context.Context, validate *validator.Validate, svc ServiceInterface) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)

	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, nu.Username, nu.Email)
}

// UpdateUser defines what information may be provided to modify an existing User.
type UpdateUser struct {
	Name            string   `json:"name"`
	Username        string   `json:"username" validate:"omitempty,min=6,alphanum_"`
	Email           string   `json:"email" validate:"omitempty,email"`
	IsActive        *bool    `json:"is_active"`
	Roles           []string `json:"roles" validate:"omitempty,allroles"`
	Theme           string   `json:"theme" validate:"omitempty,theme"`
	Password        string   `json:"password" validate:"omitempty"`
	PasswordConfirm string   `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

func (uu *UpdateUser) Validate(ctx context.Context, origUsr User, validate *validator.Validate, svc ServiceInterface) error {
	uu.Name = cleanOr(uu.Name, false, origUsr.Name)
	uu.Username = cleanOr(uu.Username, true, origUsr.Username)
	uu.Email = cleanOr(uu.Email, true, origUsr.Email)
	uu.Theme = cleanOr(uu.Theme, true, origUsr.Theme)
	if uu.Roles == nil {
		uu.Roles = origUsr.Roles
	}

	if err := validate.Struct(uu); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, uu.Username, uu.Email, origUsr)
}

// cleanOr returns the cleaned `s`, or `orig` when nothing is left of it.
func cleanOr(s string, lower bool, orig string) string {
	if s = core.CleanString(s, lower); s != "" {
		return s
	}
	return orig
}

// UpdatePreferences holds the settings a user may change on their own account.
type UpdatePreferences struct {
	Theme string `json:"theme" validate:"required,theme"`
}

func (up *UpdatePreferences) Validate(validate *validator.Validate) error {
	up.Theme = core.CleanString(up.Theme, true /* lower */)
	return validate.Struct(up)
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetUserPassword) Validate(validate *validator.Validate) error { return validate.Struct(rp) }

type QueryFilter struct {
	Search      string
	Roles       []string
	IsActive    *bool
	CreatedFrom time.Time
	CreatedTo   time.Time
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Roles == nil && qf.IsActive == nil && qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Roles = core.CleanStrings(qf.Roles, true /* lower */)
}

// GetFilter selects a single User. The first non-empty field wins.
type GetFilter struct {
	ID              string
	Username        string
	Email           string
	UsernameOrEmail string
}
