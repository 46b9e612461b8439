package user

import (
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartsched/console/core"
)

func newTestValidator() *validator.Validate {
	validate := validator.New()
	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	translator, _ := uni.GetTranslator("en")
	core.InitValidators(validate, translator)
	RegisterValidators(validate, translator)
	return validate
}

func failedTags(err error) []string {
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []string{err.Error()}
	}
	tags := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		tags = append(tags, fe.Tag())
	}
	return tags
}

func TestPasswordValidation(t *testing.T) {
	validate := newTestValidator()

	newUser := func(pwd string) NewUser {
		return NewUser{
			Name:     "John Test",
			Username: "jtest",
			Email:    "jtest@test.com",
			Role:     RoleStudent,
			Password: pwd,
		}
	}

	tests := []struct {
		name    string
		pwd     string
		wantTag string
	}{
		{name: "too short", pwd: "Sh0rt!", wantTag: pwdMinLenTag},
		{name: "whitespace", pwd: "Pass word1!", wantTag: pwdNoSpaceTag},
		{name: "all numeric", pwd: "12345678", wantTag: pwdNotAllNumTag},
		{name: "no complexity", pwd: "passwordpassword", wantTag: pwdComplexityTag},
		{name: "missing special char", pwd: "Password1", wantTag: pwdComplexityTag},
		{name: "similar to email", pwd: "Jtest@test.com1", wantTag: pwdAttrSimTag},
		{name: "valid", pwd: "Str0ng&Secure"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate.Struct(newUser(tt.pwd))
			if tt.wantTag == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, failedTags(err), tt.wantTag)
		})
	}

	t.Run("update skips empty password", func(t *testing.T) {
		assert.NoError(t, validate.Struct(UpdateUser{Name: "John"}))
	})
}

func TestRoleValidation(t *testing.T) {
	validate := newTestValidator()

	t.Run("unknown role rejected", func(t *testing.T) {
		err := validate.Struct(NewUser{
			Username: "jtest",
			Email:    "jtest@test.com",
			Role:     "superhero",
			Password: "Str0ng&Secure",
		})
		require.Error(t, err)
		assert.Contains(t, failedTags(err), roleTag)
	})

	t.Run("self registration cannot claim admin", func(t *testing.T) {
		err := validate.Struct(NewRegistration{
			Username: "jtest",
			Email:    "jtest@test.com",
			Role:     RoleAdmin,
			Password: "Str0ng&Secure",
		})
		require.Error(t, err)
		assert.Contains(t, failedTags(err), "oneof")
	})

	t.Run("teacher registration requires teacher name", func(t *testing.T) {
		err := validate.Struct(NewRegistration{
			Username: "jteach",
			Email:    "jteach@test.com",
			Role:     RoleTeacher,
			Password: "Str0ng&Secure",
		})
		require.Error(t, err)
		assert.Contains(t, failedTags(err), "required_if")
	})
}
