package echoapi

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/smartsched/console/core/schedule"
	"github.com/smartsched/console/core/user"
)

func publishSample(t *testing.T, srv *testServer, token string) PublishResponse {
	body := marchallObj(t, PublishRequest{InputData: sampleConfig(), TimetableData: sampleResult()})
	req, rec := newAuthRequest(http.MethodPost, "/v1/schedule/publish", token, body)
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("publish code = %v; body %s", rec.Code, rec.Body.String())
	}
	var resp PublishResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("publish invalid response: %v", err)
	}
	return resp
}

func Test_scheduleApi_publish(t *testing.T) {
	srv := newTestServer(t)
	admin := createUser(t, srv.usrRepo, "Admin", "admin", "admin@test.test", "", user.RoleAdmin)
	token := getToken(t, admin)

	t.Run("nothing live yet", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/schedule/published", token)
		srv.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: schedule.ErrNotPublished.Error()}),
		}, rec)
	})

	t.Run("publish provisions accounts", func(t *testing.T) {
		resp := publishSample(t, srv, token)
		if resp.PublishedBy != "admin" {
			t.Errorf("publishedBy = %v; want admin", resp.PublishedBy)
		}
		// one teacher + one section account
		if resp.AccountsCreated != 2 {
			t.Errorf("accountsCreated = %v; want 2", resp.AccountsCreated)
		}
		if _, err := srv.usrSvc.GetByUsername("t_dr_rao"); err != nil {
			t.Errorf("teacher account missing: %v", err)
		}
		if _, err := srv.usrSvc.GetByUsername("s_cse_a"); err != nil {
			t.Errorf("section account missing: %v", err)
		}
	})

	t.Run("double publish conflicts", func(t *testing.T) {
		body := marchallObj(t, PublishRequest{InputData: sampleConfig(), TimetableData: sampleResult()})
		req, rec := newAuthRequest(http.MethodPost, "/v1/schedule/publish", token, body)
		srv.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusConflict,
			wantData: marchallObj(t, httpErr{Error: schedule.ErrAlreadyPublished.Error()}),
		}, rec)
	})

	t.Run("empty timetable rejected", func(t *testing.T) {
		delReq, delRec := newAuthRequest(http.MethodDelete, "/v1/schedule/published", token)
		srv.ServeHTTP(delRec, delReq)
		if delRec.Code != http.StatusNoContent {
			t.Fatalf("delete code = %v", delRec.Code)
		}

		body := marchallObj(t, PublishRequest{InputData: sampleConfig(), TimetableData: schedule.Result{}})
		req, rec := newAuthRequest(http.MethodPost, "/v1/schedule/publish", token, body)
		srv.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: schedule.ErrEmptyTimetable.Error()}),
		}, rec)
	})
}

func Test_scheduleApi_mySchedule(t *testing.T) {
	srv := newTestServer(t)
	admin := createUser(t, srv.usrRepo, "Admin", "admin", "admin@test.test", "", user.RoleAdmin)
	publishSample(t, srv, getToken(t, admin))

	teacher, err := srv.usrSvc.GetByUsername("t_dr_rao")
	if err != nil {
		t.Fatalf("GetByUsername() failed: %v", err)
	}
	student, err := srv.usrSvc.GetByUsername("s_cse_a")
	if err != nil {
		t.Fatalf("GetByUsername() failed: %v", err)
	}
	outsider := createUser(t, srv.usrRepo, "Out", "out", "out@test.test", "", user.RoleStudent, "ECE-A")

	get := func(t *testing.T, usr user.User) MyScheduleResponse {
		req, rec := newAuthRequest(http.MethodGet, "/v1/schedule/my", getToken(t, usr))
		srv.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("my code = %v; body %s", rec.Code, rec.Body.String())
		}
		var resp MyScheduleResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("my invalid response: %v", err)
		}
		return resp
	}

	t.Run("admin sees everything", func(t *testing.T) {
		resp := get(t, admin)
		if len(resp.Timetable) != 2 {
			t.Errorf("timetable rows = %v; want 2", len(resp.Timetable))
		}
		if len(resp.Grid.Sections) != 1 || resp.Grid.Sections[0].Section != "CSE-A" {
			t.Errorf("grid sections = %+v", resp.Grid.Sections)
		}
	})

	t.Run("teacher sees own sessions", func(t *testing.T) {
		resp := get(t, teacher)
		if len(resp.Timetable) != 2 {
			t.Errorf("timetable rows = %v; want 2", len(resp.Timetable))
		}
		for _, s := range resp.Timetable {
			if s.Teacher != "Dr. Rao" {
				t.Errorf("foreign session leaked: %+v", s)
			}
		}
	})

	t.Run("student sees own section", func(t *testing.T) {
		resp := get(t, student)
		for _, s := range resp.Timetable {
			if s.Section != "CSE-A" {
				t.Errorf("foreign session leaked: %+v", s)
			}
		}
		if len(resp.Timetable) != 2 {
			t.Errorf("timetable rows = %v; want 2", len(resp.Timetable))
		}
	})

	t.Run("unscheduled section sees none", func(t *testing.T) {
		resp := get(t, outsider)
		if len(resp.Timetable) != 0 {
			t.Errorf("timetable rows = %v; want 0", len(resp.Timetable))
		}
	})
}

func Test_scheduleApi_searchSections(t *testing.T) {
	srv := newTestServer(t)
	admin := createUser(t, srv.usrRepo, "Admin", "admin", "admin@test.test", "", user.RoleAdmin)
	token := getToken(t, admin)
	publishSample(t, srv, token)

	tests := []httpTest{
		{name: "all", path: "/v1/schedule/sections", wantData: marchallObj(t, []string{"CSE-A"})},
		{name: "by name", path: "/v1/schedule/sections?q=cse", wantData: marchallObj(t, []string{"CSE-A"})},
		{name: "by teacher", path: "/v1/schedule/sections?q=rao", wantData: marchallObj(t, []string{"CSE-A"})},
		{name: "no match", path: "/v1/schedule/sections?q=zzz", wantData: []byte(`null`)},
	}
	for _, tt := range tests {
		tt.wantCode = http.StatusOK

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, token)
			srv.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_scheduleApi_availableSlots(t *testing.T) {
	srv := newTestServer(t)
	admin := createUser(t, srv.usrRepo, "Admin", "admin", "admin@test.test", "", user.RoleAdmin)
	publishSample(t, srv, getToken(t, admin))
	teacher, err := srv.usrSvc.GetByUsername("t_dr_rao")
	if err != nil {
		t.Fatalf("GetByUsername() failed: %v", err)
	}
	token := getToken(t, teacher)

	t.Run("admins have no slots of their own", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/schedule/available-slots?day=Monday&slot=9:00-9:55", getToken(t, admin))
		srv.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("code = %v; want 403", rec.Code)
		}
	})

	t.Run("missing params", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/schedule/available-slots", token)
		srv.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("code = %v; want 400", rec.Code)
		}
	})

	t.Run("no assignment at slot", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/schedule/available-slots?day=Friday&slot=9:00-9:55", token)
		srv.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: schedule.ErrNoAssignment.Error()}),
		}, rec)
	})

	t.Run("free slots listed", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/schedule/available-slots?day=Monday&slot=9:00-9:55", token)
		srv.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; body %s", rec.Code, rec.Body.String())
		}
		var resp struct {
			AvailableSlots []string `json:"available_slots"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("invalid response: %v", err)
		}
		if len(resp.AvailableSlots) == 0 {
			t.Error("expected at least one available slot")
		}
		for _, s := range resp.AvailableSlots {
			if s == "9:00-9:55" {
				t.Error("the source slot must not be offered")
			}
			if s == "Lunch Break" {
				t.Error("lunch must not be offered")
			}
		}
	})
}

func Test_scheduleApi_rescheduleFlow(t *testing.T) {
	srv := newTestServer(t)
	admin := createUser(t, srv.usrRepo, "Admin", "admin", "admin@test.test", "", user.RoleAdmin)
	adminToken := getToken(t, admin)
	publishSample(t, srv, adminToken)
	teacher, err := srv.usrSvc.GetByUsername("t_dr_rao")
	if err != nil {
		t.Fatalf("GetByUsername() failed: %v", err)
	}
	teacherToken := getToken(t, teacher)

	fileRequest := func(t *testing.T, day, slot string) schedule.RescheduleRequest {
		body := marchallObj(t, RescheduleRequest{
			Day: day, Slot: slot, RequestType: schedule.RequestUnavailable, Reason: "medical",
		})
		req, rec := newAuthRequest(http.MethodPost, "/v1/schedule/reschedule-requests", teacherToken, body)
		srv.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("request code = %v; body %s", rec.Code, rec.Body.String())
		}
		var out schedule.RescheduleRequest
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("request invalid response: %v", err)
		}
		return out
	}

	t.Run("admins cannot file requests", func(t *testing.T) {
		body := marchallObj(t, RescheduleRequest{Day: "Monday", Slot: "9:00-9:55", RequestType: schedule.RequestUnavailable})
		req, rec := newAuthRequest(http.MethodPost, "/v1/schedule/reschedule-requests", adminToken, body)
		srv.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("code = %v; want 403", rec.Code)
		}
	})

	t.Run("approve releases the slot", func(t *testing.T) {
		filed := fileRequest(t, "Monday", "9:00-9:55")
		if filed.Status != schedule.StatusPending || filed.Teacher != "Dr. Rao" {
			t.Fatalf("filed = %+v", filed)
		}

		// duplicate filing conflicts
		body := marchallObj(t, RescheduleRequest{Day: "Monday", Slot: "9:00-9:55", RequestType: schedule.RequestUnavailable})
		req, rec := newAuthRequest(http.MethodPost, "/v1/schedule/reschedule-requests", teacherToken, body)
		srv.ServeHTTP(rec, req)
		if rec.Code != http.StatusConflict {
			t.Errorf("duplicate code = %v; want 409", rec.Code)
		}

		// pending queue is admin-only
		req, rec = newAuthRequest(http.MethodGet, "/v1/schedule/reschedule-requests", teacherToken)
		srv.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("pending as teacher code = %v; want 403", rec.Code)
		}

		req, rec = newAuthRequest(http.MethodGet, "/v1/schedule/reschedule-requests", adminToken)
		srv.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("pending code = %v", rec.Code)
		}
		var pending []schedule.RescheduleRequest
		if err := json.Unmarshal(rec.Body.Bytes(), &pending); err != nil {
			t.Fatalf("pending invalid response: %v", err)
		}
		if len(pending) != 1 || pending[0].ID != filed.ID {
			t.Fatalf("pending = %+v", pending)
		}

		req, rec = newAuthRequest(http.MethodPost, "/v1/schedule/reschedule-requests/"+itoa64(filed.ID)+"/approve", adminToken)
		srv.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("approve code = %v; body %s", rec.Code, rec.Body.String())
		}
		var resp struct {
			Request   schedule.RescheduleRequest `json:"request"`
			Published schedule.Published         `json:"published"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("approve invalid response: %v", err)
		}
		if resp.Request.Status != schedule.StatusApproved {
			t.Errorf("status = %v; want approved", resp.Request.Status)
		}
		for _, s := range resp.Published.Result.Timetable {
			if s.Day == "Monday" && s.Slot == "9:00-9:55" && s.Teacher == "Dr. Rao" {
				t.Errorf("approved slot still scheduled: %+v", s)
			}
		}

		// resolved requests are gone from the queue
		req, rec = newAuthRequest(http.MethodPost, "/v1/schedule/reschedule-requests/"+itoa64(filed.ID)+"/approve", adminToken)
		srv.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("re-approve code = %v; want 404", rec.Code)
		}
	})

	t.Run("reject leaves the timetable alone", func(t *testing.T) {
		filed := fileRequest(t, "Tuesday", "9:55-10:50")

		body := marchallObj(t, RejectRequest{AdminNote: "find a substitute"})
		req, rec := newAuthRequest(http.MethodPost, "/v1/schedule/reschedule-requests/"+itoa64(filed.ID)+"/reject", adminToken, body)
		srv.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("reject code = %v; body %s", rec.Code, rec.Body.String())
		}
		var rejected schedule.RescheduleRequest
		if err := json.Unmarshal(rec.Body.Bytes(), &rejected); err != nil {
			t.Fatalf("reject invalid response: %v", err)
		}
		if rejected.Status != schedule.StatusRejected || rejected.AdminNote != "find a substitute" {
			t.Errorf("rejected = %+v", rejected)
		}

		pub, err := srv.schedSvc.GetPublished()
		if err != nil {
			t.Fatalf("GetPublished() failed: %v", err)
		}
		found := false
		for _, s := range pub.Result.Timetable {
			if s.Day == "Tuesday" && s.Slot == "9:55-10:50" && s.Teacher == "Dr. Rao" {
				found = true
			}
		}
		if !found {
			t.Error("rejected slot should stay scheduled")
		}
	})

	t.Run("unknown request", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/schedule/reschedule-requests/99999/approve", adminToken)
		srv.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: schedule.ErrRequestNotFound.Error()}),
		}, rec)
	})
}

func Test_scheduleApi_activityFeed(t *testing.T) {
	srv := newTestServer(t)
	admin := createUser(t, srv.usrRepo, "Admin", "admin", "admin@test.test", "", user.RoleAdmin)
	token := getToken(t, admin)
	publishSample(t, srv, token)

	req, rec := newAuthRequest(http.MethodGet, "/v1/schedule/activity-feed", token)
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("feed code = %v; body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Date                 string                       `json:"date"`
		Events               []schedule.ActivityEntry     `json:"events"`
		PendingReschedules   []schedule.RescheduleRequest `json:"pendingReschedules"`
		PendingRegistrations []user.Registration          `json:"pendingRegistrations"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("feed invalid response: %v", err)
	}

	found := false
	for _, e := range resp.Events {
		if e.Type == "timetable_published" {
			found = true
		}
	}
	if !found {
		t.Errorf("events = %+v; want a timetable_published entry", resp.Events)
	}
	if len(resp.PendingReschedules) != 0 {
		t.Errorf("pendingReschedules = %+v; want none", resp.PendingReschedules)
	}
	if len(resp.PendingRegistrations) != 0 {
		t.Errorf("pendingRegistrations = %+v; want none", resp.PendingRegistrations)
	}
}
