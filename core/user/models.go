package user

import (
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Roles
const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

// Account statuses
const (
	StatusActive   = "active"
	StatusDisabled = "disabled"
)

// Registration statuses
const (
	RegistrationPendingEmail    = "pending_email_verification"
	RegistrationPendingApproval = "pending_admin_approval"
)

var AllRoles = []string{RoleAdmin, RoleTeacher, RoleStudent}

type User struct {
	ID           int       `json:"id"`
	Name         string    `json:"name"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	TeacherName  string    `json:"teacher_name,omitempty"`
	Section      string    `json:"section,omitempty"`
	Status       string    `json:"status"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login"` // UTC
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

func (u *User) IsAdmin() bool   { return u.Role == RoleAdmin }
func (u *User) IsTeacher() bool { return u.Role == RoleTeacher }
func (u *User) IsStudent() bool { return u.Role == RoleStudent }

func (u *User) IsActive() bool { return u.Status == StatusActive }

// DisplayName is the name sessions are matched against for teachers: the
// dedicated teacher name when set, otherwise the account name or username.
func (u *User) DisplayName() string {
	if u.TeacherName != "" {
		return u.TeacherName
	}
	if u.Name != "" {
		return u.Name
	}
	return u.Username
}

// Registration is a self-service signup awaiting email verification and, for
// teachers, admin approval. The plaintext password is never stored.
type Registration struct {
	ID                    int64     `json:"id"`
	Token                 string    `json:"token"` // uuid handed back to the registrant
	Username              string    `json:"username"`
	Email                 string    `json:"email"`
	Name                  string    `json:"name"`
	Role                  string    `json:"role"`
	TeacherName           string    `json:"teacher_name,omitempty"`
	Section               string    `json:"section,omitempty"`
	Status                string    `json:"status"`
	PasswordHash          []byte    `json:"-"`
	VerificationCodeHash  []byte    `json:"-"`
	VerificationExpiresAt time.Time `json:"verification_expires_at"`
	CreatedAt             time.Time `json:"created_at"`
}

func (r *Registration) SetVerificationCode(code string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	r.VerificationCodeHash = hash
	return nil
}

func (r *Registration) CheckVerificationCode(code string) error {
	return bcrypt.CompareHashAndPassword(r.VerificationCodeHash, []byte(code))
}

func (r *Registration) CodeExpired(now time.Time) bool {
	return now.After(r.VerificationExpiresAt)
}

// NewUser is the admin-facing payload for creating an account directly.
type NewUser struct {
	Name        string `json:"name" validate:"omitempty,alphanum_"`
	Username    string `json:"username" validate:"required,alphanum_"`
	Email       string `json:"email" validate:"required,email"`
	Role        string `json:"role" validate:"required,userrole"`
	TeacherName string `json:"teacher_name" validate:"omitempty"`
	Section     string `json:"section" validate:"omitempty"`
	Password    string `json:"password" validate:"required"`
}

// NewRegistration is the public signup payload. Only teacher and student
// accounts can register themselves.
type NewRegistration struct {
	Name        string `json:"name" validate:"omitempty,alphanum_"`
	Username    string `json:"username" validate:"required,alphanum_"`
	Email       string `json:"email" validate:"required,email"`
	Role        string `json:"role" validate:"required,oneof=teacher student"`
	TeacherName string `json:"teacher_name" validate:"required_if=Role teacher"`
	Section     string `json:"section" validate:"required_if=Role student"`
	Password    string `json:"password" validate:"required"`
}

// UpdateUser is the admin-facing partial update payload.
type UpdateUser struct {
	Name        string `json:"name" validate:"omitempty,alphanum_"`
	Username    string `json:"username" validate:"omitempty,alphanum_"`
	Email       string `json:"email" validate:"omitempty,email"`
	Role        string `json:"role" validate:"omitempty,userrole"`
	TeacherName string `json:"teacher_name"`
	Section     string `json:"section"`
	Password    string `json:"password"`
}

// QueryFilter narrows user listings. Search matches name, username or email
// case-insensitively.
type QueryFilter struct {
	Search string `json:"search"`
	Role   string `json:"role"`
}

func (f QueryFilter) Matches(u User) bool {
	if f.Role != "" && u.Role != f.Role {
		return false
	}
	if f.Search == "" {
		return true
	}
	needle := strings.ToLower(f.Search)
	for _, hay := range []string{u.Name, u.Username, u.Email} {
		if strings.Contains(strings.ToLower(hay), needle) {
			return true
		}
	}
	return false
}
