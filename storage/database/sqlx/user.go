package sqlxrepos

import (
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/smartsched/console/core/user"
)

type userRow struct {
	ID           int        `db:"id"`
	Name         string     `db:"name"`
	Username     string     `db:"username"`
	Email        string     `db:"email"`
	Role         string     `db:"role"`
	TeacherName  string     `db:"teacher_name"`
	Section      string     `db:"section"`
	Status       string     `db:"status"`
	PasswordHash null.Bytes `db:"password_hash"`
	CreatedAt    null.Time  `db:"created_at"`
	UpdatedAt    null.Time  `db:"updated_at"`
	LastLogin    null.Time  `db:"last_login"`
}

func rowFromUser(usr user.User) userRow {
	return userRow{
		ID:           usr.ID,
		Name:         usr.Name,
		Username:     usr.Username,
		Email:        usr.Email,
		Role:         usr.Role,
		TeacherName:  usr.TeacherName,
		Section:      usr.Section,
		Status:       usr.Status,
		PasswordHash: null.BytesFrom(usr.PasswordHash),
		CreatedAt:    null.NewTime(usr.CreatedAt.UTC(), !usr.CreatedAt.IsZero()),
		UpdatedAt:    null.NewTime(usr.UpdatedAt.UTC(), !usr.UpdatedAt.IsZero()),
		LastLogin:    null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

func (r userRow) toUser() user.User {
	return user.User{
		ID:           r.ID,
		Name:         r.Name,
		Username:     r.Username,
		Email:        r.Email,
		Role:         r.Role,
		TeacherName:  r.TeacherName,
		Section:      r.Section,
		Status:       r.Status,
		PasswordHash: r.PasswordHash.Bytes,
		CreatedAt:    r.CreatedAt.Time,
		UpdatedAt:    r.UpdatedAt.Time,
		LastLogin:    r.LastLogin.Time,
	}
}

func toUsers(rows []userRow) []user.User {
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.toUser())
	}
	return users
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

func (repo userRepository) CheckUsernameUniqueness(username, email string, excludedUsers ...user.User) error {
	query := `SELECT username, email FROM users WHERE lower(username) = lower($1) OR lower(email) = lower($2)`
	args := []interface{}{username, email}
	if len(excludedUsers) > 0 {
		ids := make([]int, 0, len(excludedUsers))
		for _, usr := range excludedUsers {
			ids = append(ids, usr.ID)
		}
		inQuery, inArgs, err := sqlx.In(`SELECT username, email FROM users WHERE (lower(username) = lower(?) OR lower(email) = lower(?)) AND id NOT IN (?)`, username, email, ids)
		if err != nil {
			return errors.Wrap(err, "building uniqueness query")
		}
		query = repo.db.Rebind(inQuery)
		args = inArgs
	}

	var rows []userRow
	if err := repo.db.Select(&rows, query, args...); err != nil {
		return errors.Wrap(err, "checking username uniqueness")
	}
	for _, r := range rows {
		if strings.EqualFold(r.Username, username) {
			return user.ErrUsernameExists
		}
		if strings.EqualFold(r.Email, email) {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo userRepository) CreateUser(usr user.User) (user.User, error) {
	row := rowFromUser(usr)
	query := `
		INSERT INTO users (name, username, email, role, teacher_name, section, status, password_hash, created_at, updated_at, last_login)
		VALUES (:name, :username, :email, :role, :teacher_name, :section, :status, :password_hash, :created_at, :updated_at, :last_login)
		RETURNING id`
	stmt, err := repo.db.PrepareNamed(query)
	if err != nil {
		return user.User{}, errors.Wrap(err, "preparing user insert")
	}
	defer func() { _ = stmt.Close() }()

	if err = stmt.Get(&row.ID, row); err != nil {
		return user.User{}, errors.Wrap(err, "creating user")
	}
	usr.ID = row.ID
	return usr, nil
}

func (repo userRepository) QueryAllUsers() ([]user.User, error) {
	var rows []userRow
	if err := repo.db.Select(&rows, `SELECT * FROM users ORDER BY id`); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	return toUsers(rows), nil
}

func (repo userRepository) getUser(query string, args ...interface{}) (user.User, error) {
	var row userRow
	if err := repo.db.Get(&row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "getting user")
	}
	return row.toUser(), nil
}

func (repo userRepository) GetUserByID(id int) (user.User, error) {
	return repo.getUser(`SELECT * FROM users WHERE id = $1`, id)
}

func (repo userRepository) GetUserByUsername(username string) (user.User, error) {
	return repo.getUser(`SELECT * FROM users WHERE lower(username) = lower($1)`, username)
}

func (repo userRepository) GetUserByEmail(email string) (user.User, error) {
	return repo.getUser(`SELECT * FROM users WHERE lower(email) = lower($1)`, email)
}

func (repo userRepository) GetUserByUsernameOrEmail(username string) (user.User, error) {
	return repo.getUser(`SELECT * FROM users WHERE lower(username) = lower($1) OR lower(email) = lower($1)`, username)
}

func (repo userRepository) FilterUsers(filter user.QueryFilter) ([]user.User, error) {
	query := `SELECT * FROM users`
	var clauses []string
	var args []interface{}

	if filter.Search != "" {
		term := "%" + filter.Search + "%"
		args = append(args, term, term, term)
		clauses = append(clauses, `(name ILIKE ? OR username ILIKE ? OR email ILIKE ?)`)
	}
	if filter.Role != "" {
		args = append(args, filter.Role)
		clauses = append(clauses, `role = ?`)
	}
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY id`
	query = repo.db.Rebind(query)

	var rows []userRow
	if err := repo.db.Select(&rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "filtering users")
	}
	return toUsers(rows), nil
}

func (repo userRepository) UpdateUser(usr user.User) (user.User, error) {
	row := rowFromUser(usr)
	query := `
		UPDATE users
		SET name = :name, username = :username, email = :email, role = :role,
		    teacher_name = :teacher_name, section = :section, status = :status,
		    password_hash = :password_hash, updated_at = :updated_at, last_login = :last_login
		WHERE id = :id`
	res, err := repo.db.NamedExec(query, row)
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

func (repo userRepository) DeleteUsersByID(ids ...int) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`DELETE FROM users WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "building user delete")
	}
	if _, err = repo.db.Exec(repo.db.Rebind(query), args...); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return nil
}

type registrationRow struct {
	ID                    int64      `db:"id"`
	Token                 string     `db:"token"`
	Username              string     `db:"username"`
	Email                 string     `db:"email"`
	Name                  string     `db:"name"`
	Role                  string     `db:"role"`
	TeacherName           string     `db:"teacher_name"`
	Section               string     `db:"section"`
	Status                string     `db:"status"`
	PasswordHash          null.Bytes `db:"password_hash"`
	VerificationCodeHash  null.Bytes `db:"verification_code_hash"`
	VerificationExpiresAt null.Time  `db:"verification_expires_at"`
	CreatedAt             null.Time  `db:"created_at"`
}

func rowFromRegistration(reg user.Registration) registrationRow {
	return registrationRow{
		ID:                    reg.ID,
		Token:                 reg.Token,
		Username:              reg.Username,
		Email:                 reg.Email,
		Name:                  reg.Name,
		Role:                  reg.Role,
		TeacherName:           reg.TeacherName,
		Section:               reg.Section,
		Status:                reg.Status,
		PasswordHash:          null.BytesFrom(reg.PasswordHash),
		VerificationCodeHash:  null.BytesFrom(reg.VerificationCodeHash),
		VerificationExpiresAt: null.TimeFrom(reg.VerificationExpiresAt.UTC()),
		CreatedAt:             null.NewTime(reg.CreatedAt.UTC(), !reg.CreatedAt.IsZero()),
	}
}

func (r registrationRow) toRegistration() user.Registration {
	return user.Registration{
		ID:                    r.ID,
		Token:                 r.Token,
		Username:              r.Username,
		Email:                 r.Email,
		Name:                  r.Name,
		Role:                  r.Role,
		TeacherName:           r.TeacherName,
		Section:               r.Section,
		Status:                r.Status,
		PasswordHash:          r.PasswordHash.Bytes,
		VerificationCodeHash:  r.VerificationCodeHash.Bytes,
		VerificationExpiresAt: r.VerificationExpiresAt.Time,
		CreatedAt:             r.CreatedAt.Time,
	}
}

type registrationRepository struct {
	db *sqlx.DB
}

var _ user.RegistrationRepository = (*registrationRepository)(nil)

func NewRegistrationRepository(db *sqlx.DB) *registrationRepository {
	return &registrationRepository{db: db}
}

func (repo registrationRepository) CreateRegistration(reg user.Registration) (user.Registration, error) {
	query := `
		INSERT INTO registrations (id, token, username, email, name, role, teacher_name, section, status,
		                           password_hash, verification_code_hash, verification_expires_at, created_at)
		VALUES (:id, :token, :username, :email, :name, :role, :teacher_name, :section, :status,
		        :password_hash, :verification_code_hash, :verification_expires_at, :created_at)`
	if _, err := repo.db.NamedExec(query, rowFromRegistration(reg)); err != nil {
		return user.Registration{}, errors.Wrap(err, "creating registration")
	}
	return reg, nil
}

func (repo registrationRepository) GetRegistrationByID(id int64) (user.Registration, error) {
	var row registrationRow
	if err := repo.db.Get(&row, `SELECT * FROM registrations WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return user.Registration{}, user.ErrRegistrationNotFound
		}
		return user.Registration{}, errors.Wrap(err, "getting registration")
	}
	return row.toRegistration(), nil
}

func (repo registrationRepository) QueryAllRegistrations() ([]user.Registration, error) {
	var rows []registrationRow
	if err := repo.db.Select(&rows, `SELECT * FROM registrations ORDER BY created_at`); err != nil {
		return nil, errors.Wrap(err, "querying registrations")
	}
	regs := make([]user.Registration, 0, len(rows))
	for _, r := range rows {
		regs = append(regs, r.toRegistration())
	}
	return regs, nil
}

func (repo registrationRepository) UpdateRegistration(reg user.Registration) (user.Registration, error) {
	query := `
		UPDATE registrations
		SET status = :status, password_hash = :password_hash,
		    verification_code_hash = :verification_code_hash,
		    verification_expires_at = :verification_expires_at
		WHERE id = :id`
	res, err := repo.db.NamedExec(query, rowFromRegistration(reg))
	if err != nil {
		return user.Registration{}, errors.Wrap(err, "updating registration")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.Registration{}, user.ErrRegistrationNotFound
	}
	return reg, nil
}

func (repo registrationRepository) DeleteRegistration(id int64) error {
	if _, err := repo.db.Exec(`DELETE FROM registrations WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting registration")
	}
	return nil
}
