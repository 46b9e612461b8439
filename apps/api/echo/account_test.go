package echoapi

import (
	"encoding/json"
	"net/http"
	"regexp"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/smartsched/console/core"
	"github.com/smartsched/console/core/user"
	emailsvc "github.com/smartsched/console/services/email"
)

var codeRegex = regexp.MustCompile(`code is: (\d{6})`)

func lastSentCode(t *testing.T) string {
	if len(emailsvc.SentMessages) == 0 {
		t.Fatal("lastSentCode() no messages sent")
	}
	msg := emailsvc.SentMessages[len(emailsvc.SentMessages)-1]
	m := codeRegex.FindStringSubmatch(msg.BodyStr)
	if m == nil {
		t.Fatalf("lastSentCode() no code in %q", msg.BodyStr)
	}
	return m[1]
}

func Test_accountApi_login(t *testing.T) {
	srv := newTestServer(t)
	usr := createUser(t, srv.usrRepo, "Jane", "jane", "jane@test.test", "Str0ng&Secure", user.RoleStudent, "CSE-A")
	disabled := createUser(t, srv.usrRepo, "Dis", "dis", "dis@test.test", "Str0ng&Secure", user.RoleTeacher)
	disabled.Status = user.StatusDisabled
	if _, err := srv.usrRepo.UpdateUser(disabled); err != nil {
		t.Fatalf("UpdateUser() failed: %v", err)
	}

	tests := []httpTest{
		{
			name:     "empty body",
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, echo.Map{"username": "this field is required", "password": "this field is required"}),
		},
		{
			name:     "wrong password",
			body:     marchallObj(t, LoginRequest{Username: "jane", Password: "nope"}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: user.ErrInvalidCredentials.Error()}),
		},
		{
			name:     "unknown user",
			body:     marchallObj(t, LoginRequest{Username: "ghost", Password: "Str0ng&Secure"}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: user.ErrInvalidCredentials.Error()}),
		},
		{
			name:     "disabled account",
			body:     marchallObj(t, LoginRequest{Username: "dis", Password: "Str0ng&Secure"}),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: user.ErrAccountDisabled.Error()}),
		},
		{
			name:     "login by username",
			body:     marchallObj(t, LoginRequest{Username: "jane", Password: "Str0ng&Secure"}),
			wantCode: http.StatusOK,
		},
		{
			name:     "login by email",
			body:     marchallObj(t, LoginRequest{Username: "jane@test.test", Password: "Str0ng&Secure"}),
			wantCode: http.StatusOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/auth/login", tt.body)
			srv.ServeHTTP(rec, req)

			if tt.wantCode != http.StatusOK {
				checkCodeAndData(t, tt, rec)
				return
			}
			if rec.Code != tt.wantCode {
				t.Fatalf("login() code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
			}
			var resp LoginResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("login() invalid response: %v", err)
			}
			if resp.Token == "" {
				t.Error("login() token is empty")
			}
			if resp.User.ID != usr.ID {
				t.Errorf("login() user = %v; want %v", resp.User.ID, usr.ID)
			}
		})
	}
}

func Test_accountApi_me(t *testing.T) {
	srv := newTestServer(t)
	usr := createUser(t, srv.usrRepo, "Jane", "jane", "jane@test.test", "Str0ng&Secure", user.RoleStudent, "CSE-A")

	tests := []httpTest{
		{
			name:     "auth required",
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "me",
			token:    getToken(t, usr),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, usr),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, "/v1/auth/me", tt.token)
			srv.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_accountApi_tokenRefresh(t *testing.T) {
	srv := newTestServer(t)
	usr := createUser(t, srv.usrRepo, "Jane", "jane", "jane@test.test", "Str0ng&Secure", user.RoleStudent, "CSE-A")

	expiredOrig := time.Now().Add(-core.Conf.JWTRefreshExpirationDelta - time.Minute).Unix()
	staleToken, err := GenerateToken(GetUserClaims(usr, expiredOrig))
	if err != nil {
		t.Fatalf("GenerateToken() failed: %v", err)
	}

	tests := []httpTest{
		{
			name:     "auth required",
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "refresh window expired",
			token:    staleToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "refresh has expired"}),
		},
		{
			name:     "refreshed",
			token:    getToken(t, usr),
			wantCode: http.StatusOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/auth/token-refresh", tt.token)
			srv.ServeHTTP(rec, req)

			if tt.wantCode != http.StatusOK {
				checkCodeAndData(t, tt, rec)
				return
			}
			if rec.Code != tt.wantCode {
				t.Fatalf("tokenRefresh() code = %v; body %s", rec.Code, rec.Body.String())
			}
			var resp map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("tokenRefresh() invalid response: %v", err)
			}
			if resp["token"] == "" {
				t.Error("tokenRefresh() token is empty")
			}
		})
	}
}

func Test_accountApi_registrationFlow(t *testing.T) {
	srv := newTestServer(t)
	admin := createUser(t, srv.usrRepo, "Admin", "admin", "admin@test.test", "Str0ng&Secure", user.RoleAdmin)
	adminToken := getToken(t, admin)

	register := func(t *testing.T, body []byte) user.Registration {
		req, rec := newRequest(http.MethodPost, "/v1/auth/register", body)
		srv.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("register code = %v; body %s", rec.Code, rec.Body.String())
		}
		var reg user.Registration
		if err := json.Unmarshal(rec.Body.Bytes(), &reg); err != nil {
			t.Fatalf("register invalid response: %v", err)
		}
		return reg
	}
	verify := func(t *testing.T, reg user.Registration, code string) (*httpTestResponse, int) {
		body := marchallObj(t, VerifyRequest{ID: reg.ID, Token: reg.Token, Code: code})
		req, rec := newRequest(http.MethodPost, "/v1/auth/register/verify", body)
		srv.ServeHTTP(rec, req)
		var resp httpTestResponse
		_ = json.Unmarshal(rec.Body.Bytes(), &resp)
		return &resp, rec.Code
	}

	t.Run("student auto-activates", func(t *testing.T) {
		reg := register(t, marchallObj(t, map[string]string{
			"username": "stud", "email": "stud@test.test", "name": "Stud",
			"role": "student", "section": "CSE-A", "password": "Str0ng&Secure",
		}))
		resp, code := verify(t, reg, lastSentCode(t))
		if code != http.StatusOK {
			t.Fatalf("verify code = %v", code)
		}
		if resp.User == nil || resp.Token == "" {
			t.Fatal("student verify should log the user in")
		}
		if resp.User.Status != user.StatusActive {
			t.Errorf("status = %v; want %v", resp.User.Status, user.StatusActive)
		}
	})

	t.Run("wrong code rejected", func(t *testing.T) {
		reg := register(t, marchallObj(t, map[string]string{
			"username": "stud2", "email": "stud2@test.test", "name": "Stud Two",
			"role": "student", "section": "CSE-B", "password": "Str0ng&Secure",
		}))
		_, code := verify(t, reg, "000000")
		if code != http.StatusBadRequest {
			t.Errorf("verify code = %v; want 400", code)
		}
	})

	t.Run("teacher requires admin approval", func(t *testing.T) {
		reg := register(t, marchallObj(t, map[string]string{
			"username": "prof", "email": "prof@test.test", "name": "Prof",
			"role": "teacher", "teacher_name": "Dr. Rao", "password": "Str0ng&Secure",
		}))
		resp, code := verify(t, reg, lastSentCode(t))
		if code != http.StatusOK {
			t.Fatalf("verify code = %v", code)
		}
		if resp.User != nil {
			t.Fatal("teacher must not be logged in before approval")
		}
		if resp.Registration.Status != user.RegistrationPendingApproval {
			t.Errorf("status = %v; want %v", resp.Registration.Status, user.RegistrationPendingApproval)
		}

		// appears in the admin queue
		req, rec := newAuthRequest(http.MethodGet, "/v1/registrations", adminToken)
		srv.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("pending code = %v", rec.Code)
		}
		var pending []user.Registration
		if err := json.Unmarshal(rec.Body.Bytes(), &pending); err != nil {
			t.Fatalf("pending invalid response: %v", err)
		}
		if len(pending) != 1 || pending[0].ID != reg.ID {
			t.Fatalf("pending = %+v; want the teacher registration", pending)
		}

		// non-admins cannot approve
		req, rec = newRequest(http.MethodPost, "/v1/registrations/"+itoa64(reg.ID)+"/approve")
		srv.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("unauthed approve code = %v; want 401", rec.Code)
		}

		req, rec = newAuthRequest(http.MethodPost, "/v1/registrations/"+itoa64(reg.ID)+"/approve", adminToken)
		srv.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("approve code = %v; body %s", rec.Code, rec.Body.String())
		}
		var usr user.User
		if err := json.Unmarshal(rec.Body.Bytes(), &usr); err != nil {
			t.Fatalf("approve invalid response: %v", err)
		}
		if usr.Username != "prof" || usr.Status != user.StatusActive {
			t.Errorf("approved user = %+v", usr)
		}
	})

	t.Run("rejection", func(t *testing.T) {
		reg := register(t, marchallObj(t, map[string]string{
			"username": "prof2", "email": "prof2@test.test", "name": "Prof Two",
			"role": "teacher", "teacher_name": "Dr. Iyer", "password": "Str0ng&Secure",
		}))
		if _, code := verify(t, reg, lastSentCode(t)); code != http.StatusOK {
			t.Fatalf("verify code = %v", code)
		}

		req, rec := newAuthRequest(http.MethodPost, "/v1/registrations/"+itoa64(reg.ID)+"/reject", adminToken)
		srv.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("reject code = %v; body %s", rec.Code, rec.Body.String())
		}
		// the account must not exist
		req, rec = newRequest(http.MethodPost, "/v1/auth/login",
			marchallObj(t, LoginRequest{Username: "prof2", Password: "Str0ng&Secure"}))
		srv.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("rejected teacher can log in; code = %v", rec.Code)
		}
	})

	t.Run("unknown registration", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/registrations/12345/approve", adminToken)
		srv.ServeHTTP(rec, req)
		tt := httpTest{
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: user.ErrRegistrationNotFound.Error()}),
		}
		checkCodeAndData(t, tt, rec)
	})
}

func Test_accountApi_passwordReset(t *testing.T) {
	srv := newTestServer(t)
	usr := createUser(t, srv.usrRepo, "Jane", "jane", "jane@test.test", "Str0ng&Secure", user.RoleStudent, "CSE-A")
	_ = usr

	detail := marchallObj(t, echo.Map{"detail": "If the email is known, a password reset link has been sent"})
	linkRegex := regexp.MustCompile(`password-reset/([^/\s]+)/([^/\s]+)`)

	t.Run("unknown email is not revealed", func(t *testing.T) {
		sent := len(emailsvc.SentMessages)
		req, rec := newRequest(http.MethodPost, "/v1/auth/password-reset",
			marchallObj(t, PasswordResetRequest{Email: "ghost@test.test"}))
		srv.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: detail}, rec)
		if len(emailsvc.SentMessages) != sent {
			t.Error("no email should have been sent")
		}
	})

	t.Run("reset round trip", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/auth/password-reset",
			marchallObj(t, PasswordResetRequest{Email: "jane@test.test"}))
		srv.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: detail}, rec)

		msg := emailsvc.SentMessages[len(emailsvc.SentMessages)-1]
		m := linkRegex.FindStringSubmatch(msg.BodyStr)
		if m == nil {
			t.Fatalf("no reset link in %q", msg.BodyStr)
		}
		uid, token := m[1], m[2]

		req, rec = newRequest(http.MethodPost, "/v1/auth/password-reset-confirm",
			marchallObj(t, PasswordResetConfirmRequest{UID: uid, Token: token, Password: "N3w&Secure!"}))
		srv.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("confirm code = %v; body %s", rec.Code, rec.Body.String())
		}

		req, rec = newRequest(http.MethodPost, "/v1/auth/login",
			marchallObj(t, LoginRequest{Username: "jane", Password: "N3w&Secure!"}))
		srv.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("login with new password code = %v; body %s", rec.Code, rec.Body.String())
		}

		// token is single-purpose: a second confirm with the same token fails
		req, rec = newRequest(http.MethodPost, "/v1/auth/password-reset-confirm",
			marchallObj(t, PasswordResetConfirmRequest{UID: uid, Token: token, Password: "An0ther&One!"}))
		srv.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("stale token confirm code = %v; want 400", rec.Code)
		}
	})
}

type httpTestResponse struct {
	Registration *user.Registration `json:"registration"`
	User         *user.User         `json:"user"`
	Token        string             `json:"token"`
}
