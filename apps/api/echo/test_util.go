package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strconv"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	"github.com/smartsched/console/core"
	"github.com/smartsched/console/core/schedule"
	"github.com/smartsched/console/core/timetable"
	"github.com/smartsched/console/core/user"
	emailsvc "github.com/smartsched/console/services/email"
	inmemdb "github.com/smartsched/console/storage/database/inmem"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

// testLogger keeps handler tests quiet.
type testLogger struct{}

func (testLogger) Debug(msg string, args ...interface{}) {}
func (testLogger) Info(msg string, args ...interface{})  {}
func (testLogger) Warn(msg string, args ...interface{})  {}
func (testLogger) Error(msg string, args ...interface{}) {}
func (testLogger) Fatal(msg string, args ...interface{}) {}

// fakeGenerator stands in for the scheduling engine in handler tests.
type fakeGenerator struct {
	result schedule.Result
	report schedule.InputReport
	err    error
}

func (g *fakeGenerator) Generate(ctx context.Context, cfg timetable.Config) (schedule.Result, error) {
	if g.err != nil {
		return schedule.Result{}, g.err
	}
	return g.result, nil
}

func (g *fakeGenerator) ValidateInput(ctx context.Context, cfg timetable.Config) (schedule.InputReport, error) {
	if g.err != nil {
		return schedule.InputReport{}, g.err
	}
	return g.report, nil
}

type testServer struct {
	*Server
	usrSvc   *user.Service
	schedSvc *schedule.Service
	usrRepo  user.Repository
	gen      *fakeGenerator
}

func newTestServer(t *testing.T) *testServer {
	core.Conf = &core.Config{
		Debug:                     true,
		TestMode:                  true,
		AppName:                   "Smart Scheduler",
		SecretKey:                 []byte("secret"),
		FrontendBaseURL:           "http://localhost:5173",
		DefaultFromAddr:           "noreply@localhost",
		DefaultTeacherPassword:    "teacher123",
		DefaultStudentPassword:    "student123",
		JWTExpirationDelta:        10 * time.Minute,
		JWTRefreshExpirationDelta: 4 * time.Hour,
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		RegistrationCodeTimeout:   15 * time.Minute,
		ActivityLogRetention:      48 * time.Hour,
	}

	validate := validator.New()
	enLocale := en.New()
	translator, _ := ut.New(enLocale, enLocale).GetTranslator(enLocale.Locale())
	core.InitValidators(validate, translator)
	user.RegisterValidators(validate, translator)

	emailsvc.ClearSentMessages()

	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("newTestServer() failed: %v", err)
	}
	usrRepo := inmemdb.NewUserRepository(db)
	usrSvc := user.NewService(
		usrRepo,
		inmemdb.NewRegistrationRepository(db),
		emailsvc.NewConsoleServiceMock(),
		core.Conf.AppName,
		core.Conf.RegistrationCodeTimeout,
	)

	gen := &fakeGenerator{report: schedule.InputReport{Valid: true}}
	schedSvc := schedule.NewService(
		inmemdb.NewPublishedRepository(db),
		inmemdb.NewRescheduleRepository(db),
		inmemdb.NewActivityRepository(db),
		gen,
		core.Conf.ActivityLogRetention,
	)

	srv := NewServer(ServerDeps{
		Logger:         testLogger{},
		UserSvc:        usrSvc,
		ScheduleSvc:    schedSvc,
		DraftStore:     inmemdb.NewDraftStore(db),
		DisableReqLogs: true,
	})
	return &testServer{Server: srv, usrSvc: usrSvc, schedSvc: schedSvc, usrRepo: usrRepo, gen: gen}
}

func createUser(t *testing.T, repo user.Repository, name, uname, email, pwd, role string, extra ...string) user.User {
	tstamp := time.Now().UTC()
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Role:      role,
		Status:    user.StatusActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	switch role {
	case user.RoleTeacher:
		if len(extra) > 0 {
			usr.TeacherName = extra[0]
		}
	case user.RoleStudent:
		if len(extra) > 0 {
			usr.Section = extra[0]
		}
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

func getToken(t *testing.T, usr user.User) string {
	token, err := GenerateToken(GetUserClaims(usr))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func itoa64(id int64) string {
	return strconv.FormatInt(id, 10)
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

// sampleConfig is a minimal configuration that passes validation: one class,
// one theory subject with a teacher and a weekly requirement, one room.
func sampleConfig() timetable.Config {
	cfg := timetable.New()
	cfg.Classes = []timetable.ClassDefinition{{
		Name:        "CSE 3rd Year",
		Subjects:    []string{"Math"},
		LabSubjects: []string{},
		Sections:    []timetable.Section{{Name: "CSE-A", StudentCount: 60}},
	}}
	cfg.Rooms = []string{"R101"}
	cfg.Teachers = map[string][]string{"Math": {"Dr. Rao"}}
	cfg.LectureRequirements = map[string]int{"Math": 4}
	return cfg
}

func sampleResult() schedule.Result {
	return schedule.Result{
		Timetable: []schedule.Session{
			{Section: "CSE-A", Day: "Monday", Slot: "9:00-9:55", Subject: "Math", Room: "R101", Teacher: "Dr. Rao"},
			{Section: "CSE-A", Day: "Tuesday", Slot: "9:55-10:50", Subject: "Math", Room: "R101", Teacher: "Dr. Rao"},
		},
		Unfulfilled: schedule.Unfulfilled{},
	}
}
