package user

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/smartsched/console/core"
)

var (
	// errors
	ErrNotFound             = errors.New("user not found")
	ErrEmailExists          = errors.New("a user with this email already exists")
	ErrUsernameExists       = errors.New("a user with this username already exists")
	ErrInvalidCredentials   = errors.New("invalid username or password")
	ErrAccountDisabled      = errors.New("this account has been disabled")
	ErrRegistrationNotFound = errors.New("registration request not found")
	ErrRegistrationResolved = errors.New("registration already resolved")
	ErrCodeExpired          = errors.New("verification code expired. Please register again")
	ErrInvalidCode          = errors.New("invalid verification code")
	ErrNotApprovable        = errors.New("only teacher requests require admin approval")
)

type (
	Repository interface {
		CheckUsernameUniqueness(username, email string, excludedUsers ...User) error
		CreateUser(user User) (User, error)
		QueryAllUsers() ([]User, error)
		GetUserByID(id int) (User, error)
		GetUserByUsername(username string) (User, error)
		GetUserByEmail(email string) (User, error)
		GetUserByUsernameOrEmail(username string) (User, error)
		// FilterUsers applies AND operation on available QueryFilter fields.
		FilterUsers(filter QueryFilter) ([]User, error)
		UpdateUser(user User) (User, error)
		DeleteUsersByID(ids ...int) error
	}

	RegistrationRepository interface {
		CreateRegistration(reg Registration) (Registration, error)
		GetRegistrationByID(id int64) (Registration, error)
		QueryAllRegistrations() ([]Registration, error)
		UpdateRegistration(reg Registration) (Registration, error)
		DeleteRegistration(id int64) error
	}

	Service struct {
		repo        Repository
		regRepo     RegistrationRepository
		mailSvc     core.EmailService
		appName     string
		codeTimeout time.Duration
		clock       func() time.Time
	}
)

func NewService(repo Repository, regRepo RegistrationRepository, mailSvc core.EmailService, appName string, codeTimeout time.Duration) *Service {
	return &Service{
		repo:        repo,
		regRepo:     regRepo,
		mailSvc:     mailSvc,
		appName:     appName,
		codeTimeout: codeTimeout,
		clock:       func() time.Time { return time.Now().UTC() },
	}
}

func (svc *Service) checkUniqueness(uname, email string, exclUsers ...User) error {
	if err := svc.repo.CheckUsernameUniqueness(uname, email, exclUsers...); err != nil {
		var field string
		switch err {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

// Authenticate verifies credentials against the username or email and stamps
// the login time. Failures are indistinguishable between unknown account and
// wrong password.
func (svc *Service) Authenticate(uname, pwd string) (User, error) {
	usr, err := svc.repo.GetUserByUsernameOrEmail(core.CleanString(uname, true))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if err := usr.CheckPassword(pwd); err != nil {
		return User{}, ErrInvalidCredentials
	}
	if !usr.IsActive() {
		return User{}, ErrAccountDisabled
	}
	usr.LastLogin = svc.clock()
	usr.UpdatedAt = usr.LastLogin
	return svc.repo.UpdateUser(usr)
}

// Create provisions an account directly, without the registration flow.
func (svc *Service) Create(nu NewUser) (User, error) {
	uname := core.CleanString(nu.Username, true)
	email := core.CleanString(nu.Email, true)
	if err := svc.checkUniqueness(uname, email); err != nil {
		return User{}, err
	}

	now := svc.clock()
	usr := User{
		Name:        core.CleanString(nu.Name),
		Username:    uname,
		Email:       email,
		Role:        nu.Role,
		TeacherName: core.CleanString(nu.TeacherName),
		Section:     core.CleanString(nu.Section),
		Status:      StatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, err
	}
	return svc.repo.CreateUser(usr)
}

func (svc *Service) QueryAll() ([]User, error) {
	return svc.repo.QueryAllUsers()
}

func (svc *Service) Filter(filter QueryFilter) ([]User, error) {
	return svc.repo.FilterUsers(filter)
}

func (svc *Service) GetByID(id int) (User, error) {
	return svc.repo.GetUserByID(id)
}

func (svc *Service) GetByUsername(uname string) (User, error) {
	return svc.repo.GetUserByUsername(core.CleanString(uname, true))
}

func (svc *Service) Update(id int, uu UpdateUser) (User, error) {
	usr, err := svc.repo.GetUserByID(id)
	if err != nil {
		return User{}, err
	}

	uname := core.CleanString(uu.Username, true)
	email := core.CleanString(uu.Email, true)
	if uname != "" || email != "" {
		if err := svc.checkUniqueness(uname, email, usr); err != nil {
			return User{}, err
		}
	}

	if uu.Name != "" {
		usr.Name = core.CleanString(uu.Name)
	}
	if uname != "" {
		usr.Username = uname
	}
	if email != "" {
		usr.Email = email
	}
	if uu.Role != "" {
		usr.Role = uu.Role
	}
	if uu.TeacherName != "" {
		usr.TeacherName = core.CleanString(uu.TeacherName)
	}
	if uu.Section != "" {
		usr.Section = core.CleanString(uu.Section)
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, err
		}
	}
	usr.UpdatedAt = svc.clock()
	return svc.repo.UpdateUser(usr)
}

func (svc *Service) SetPassword(id int, pwd string) (User, error) {
	usr, err := svc.repo.GetUserByID(id)
	if err != nil {
		return User{}, err
	}
	if err := usr.SetPassword(pwd); err != nil {
		return User{}, err
	}
	usr.UpdatedAt = svc.clock()
	return svc.repo.UpdateUser(usr)
}

func (svc *Service) Delete(ids ...int) error {
	return svc.repo.DeleteUsersByID(ids...)
}

// RegisterStart files a signup request and emails a verification code. The
// account is not created until the code is verified (and, for teachers, an
// admin approves).
func (svc *Service) RegisterStart(nr NewRegistration) (Registration, error) {
	uname := core.CleanString(nr.Username, true)
	email := core.CleanString(nr.Email, true)
	if err := svc.checkUniqueness(uname, email); err != nil {
		return Registration{}, err
	}
	regs, err := svc.regRepo.QueryAllRegistrations()
	if err != nil {
		return Registration{}, err
	}
	for _, r := range regs {
		if r.Username == uname {
			return Registration{}, core.NewValidationError(ErrUsernameExists, core.FieldError{Field: "username", Error: ErrUsernameExists.Error()})
		}
		if r.Email == email {
			return Registration{}, core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
		}
	}

	now := svc.clock()
	teacherName := core.CleanString(nr.TeacherName)
	if nr.Role == RoleTeacher && teacherName == "" {
		teacherName = core.CleanString(nr.Name)
	}
	reg := Registration{
		ID:                    now.UnixNano() / int64(time.Millisecond),
		Token:                 uuid.NewString(),
		Username:              uname,
		Email:                 email,
		Name:                  core.CleanString(nr.Name),
		Role:                  nr.Role,
		TeacherName:           teacherName,
		Section:               core.CleanString(nr.Section),
		Status:                RegistrationPendingEmail,
		VerificationExpiresAt: now.Add(svc.codeTimeout),
		CreatedAt:             now,
	}
	if err := reg.SetPassword(nr.Password); err != nil {
		return Registration{}, err
	}

	code, err := verificationCode()
	if err != nil {
		return Registration{}, err
	}
	if err := reg.SetVerificationCode(code); err != nil {
		return Registration{}, err
	}

	reg, err = svc.regRepo.CreateRegistration(reg)
	if err != nil {
		return Registration{}, err
	}
	svc.sendVerificationCode(reg, code)
	return reg, nil
}

// RegisterVerify checks the emailed code. Student registrations become
// active accounts immediately; teacher registrations move on to admin
// approval. The created account, if any, is returned.
func (svc *Service) RegisterVerify(id int64, token, code string) (Registration, *User, error) {
	reg, err := svc.regRepo.GetRegistrationByID(id)
	if err != nil {
		return Registration{}, nil, err
	}
	if reg.Token != token {
		return Registration{}, nil, ErrRegistrationNotFound
	}
	if reg.Status != RegistrationPendingEmail {
		return Registration{}, nil, ErrRegistrationResolved
	}
	if reg.CodeExpired(svc.clock()) {
		return Registration{}, nil, ErrCodeExpired
	}
	if err := reg.CheckVerificationCode(strings.TrimSpace(code)); err != nil {
		return Registration{}, nil, ErrInvalidCode
	}

	if reg.Role == RoleStudent {
		usr, err := svc.activateRegistration(reg)
		if err != nil {
			return Registration{}, nil, err
		}
		return reg, &usr, nil
	}

	reg.Status = RegistrationPendingApproval
	reg, err = svc.regRepo.UpdateRegistration(reg)
	if err != nil {
		return Registration{}, nil, err
	}
	return reg, nil, nil
}

// PendingApprovals lists teacher registrations awaiting an admin decision,
// newest first.
func (svc *Service) PendingApprovals() ([]Registration, error) {
	regs, err := svc.regRepo.QueryAllRegistrations()
	if err != nil {
		return nil, err
	}
	pending := []Registration{}
	for _, r := range regs {
		if r.Role == RoleTeacher && r.Status == RegistrationPendingApproval {
			pending = append(pending, r)
		}
	}
	for i := 1; i < len(pending); i++ {
		for j := i; j > 0 && pending[j].CreatedAt.After(pending[j-1].CreatedAt); j-- {
			pending[j], pending[j-1] = pending[j-1], pending[j]
		}
	}
	return pending, nil
}

// ApproveRegistration turns a verified teacher registration into an account.
func (svc *Service) ApproveRegistration(id int64) (User, error) {
	reg, err := svc.regRepo.GetRegistrationByID(id)
	if err != nil {
		return User{}, err
	}
	if reg.Role != RoleTeacher {
		return User{}, ErrNotApprovable
	}
	if reg.Status != RegistrationPendingApproval {
		return User{}, ErrRegistrationResolved
	}
	return svc.activateRegistration(reg)
}

// RejectRegistration discards a verified teacher registration.
func (svc *Service) RejectRegistration(id int64) (Registration, error) {
	reg, err := svc.regRepo.GetRegistrationByID(id)
	if err != nil {
		return Registration{}, err
	}
	if reg.Role != RoleTeacher {
		return Registration{}, ErrNotApprovable
	}
	if reg.Status != RegistrationPendingApproval {
		return Registration{}, ErrRegistrationResolved
	}
	if err := svc.regRepo.DeleteRegistration(id); err != nil {
		return Registration{}, err
	}
	return reg, nil
}

func (svc *Service) activateRegistration(reg Registration) (User, error) {
	if err := svc.checkUniqueness(reg.Username, reg.Email); err != nil {
		return User{}, err
	}
	now := svc.clock()
	usr, err := svc.repo.CreateUser(User{
		Name:         reg.Name,
		Username:     reg.Username,
		Email:        reg.Email,
		Role:         reg.Role,
		TeacherName:  reg.TeacherName,
		Section:      reg.Section,
		Status:       StatusActive,
		PasswordHash: reg.PasswordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return User{}, err
	}
	if err := svc.regRepo.DeleteRegistration(reg.ID); err != nil {
		return User{}, err
	}
	return usr, nil
}

// RequestPasswordReset emails a single-use reset link to the account behind
// the address. Unknown addresses are reported so the handler can decide
// whether to reveal that.
func (svc *Service) RequestPasswordReset(email string) error {
	usr, err := svc.repo.GetUserByEmail(core.CleanString(email, true))
	if err != nil {
		return err
	}
	token, err := MakeToken(usr)
	if err != nil {
		return err
	}
	link := fmt.Sprintf("%s/password-reset/%s/%s", core.Conf.FrontendBaseURL, EncodeUID(usr), token)
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject: fmt.Sprintf("%s - Password reset", svc.appName),
		BodyStr: fmt.Sprintf("Hello %s,\n\nFollow this link to reset your password: %s", usr.DisplayName(), link),
	})
	return nil
}

// ResetPassword sets a new password given a valid uid/token pair from a
// reset link.
func (svc *Service) ResetPassword(uid, token, pwd string) (User, error) {
	id, err := decodeUID(uid)
	if err != nil {
		return User{}, errInvalidToken
	}
	usr, err := svc.repo.GetUserByID(id)
	if err != nil {
		return User{}, err
	}
	if err := verifyToken(usr, token); err != nil {
		return User{}, err
	}
	return svc.SetPassword(usr.ID, pwd)
}

// SyncFromTimetable provisions missing teacher and student accounts for the
// names appearing in a freshly published timetable. Existing accounts are
// left alone. Returns the number of accounts created.
func (svc *Service) SyncFromTimetable(teacherNames, sectionNames []string, teacherPwd, studentPwd string) (int, error) {
	created := 0
	for _, name := range teacherNames {
		name = core.CleanString(name)
		if name == "" {
			continue
		}
		ok, err := svc.ensureAccount("t_"+slugifyUsername(name), RoleTeacher, name, "", teacherPwd)
		if err != nil {
			return created, err
		}
		if ok {
			created++
		}
	}
	for _, section := range sectionNames {
		section = core.CleanString(section)
		if section == "" {
			continue
		}
		ok, err := svc.ensureAccount("s_"+slugifyUsername(section), RoleStudent, section, section, studentPwd)
		if err != nil {
			return created, err
		}
		if ok {
			created++
		}
	}
	return created, nil
}

func (svc *Service) ensureAccount(username, role, name, section, pwd string) (bool, error) {
	if _, err := svc.repo.GetUserByUsername(username); err == nil {
		return false, nil
	} else if !errors.Is(err, ErrNotFound) {
		return false, err
	}

	now := svc.clock()
	usr := User{
		Name:      name,
		Username:  username,
		Role:      role,
		Section:   section,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if role == RoleTeacher {
		usr.TeacherName = name
	}
	if err := usr.SetPassword(pwd); err != nil {
		return false, err
	}
	if _, err := svc.repo.CreateUser(usr); err != nil {
		return false, err
	}
	return true, nil
}

func (svc *Service) sendVerificationCode(reg Registration, code string) {
	body := fmt.Sprintf(
		"Hello %s,\n\nYour %s verification code is: %s\n\n"+
			"It expires in %d minutes. If you did not request this, ignore this email.",
		reg.DisplayGreeting(), svc.appName, code, int(svc.codeTimeout.Minutes()),
	)
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: reg.Name, Address: reg.Email}},
		Subject: fmt.Sprintf("%s - Verify your email", svc.appName),
		BodyStr: body,
	})
}

// DisplayGreeting picks a name to address the registrant by.
func (r Registration) DisplayGreeting() string {
	if r.Name != "" {
		return r.Name
	}
	return r.Username
}

func (r *Registration) SetPassword(pwd string) error {
	usr := User{}
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}
	r.PasswordHash = usr.PasswordHash
	return nil
}

var nonAlnumRegex = regexp.MustCompile(`[^a-z0-9]+`)

// slugifyUsername lowers a display name into a username-safe slug.
func slugifyUsername(name string) string {
	slug := nonAlnumRegex.ReplaceAllString(strings.ToLower(name), "_")
	return strings.Trim(slug, "_")
}

// verificationCode draws a random 6 digit code.
func verificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
