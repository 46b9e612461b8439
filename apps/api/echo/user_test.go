package echoapi

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"testing"

	"github.com/smartsched/console/core/user"
)

func Test_userApi_adminOnly(t *testing.T) {
	srv := newTestServer(t)
	teacher := createUser(t, srv.usrRepo, "Prof", "prof", "prof@test.test", "", user.RoleTeacher, "Dr. Rao")
	student := createUser(t, srv.usrRepo, "Stud", "stud", "stud@test.test", "", user.RoleStudent, "CSE-A")

	forbidden := marchallObj(t, httpErr{Error: "permission denied"})
	tests := []httpTest{
		{name: "anonymous", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "teacher", token: getToken(t, teacher), wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "student", token: getToken(t, student), wantCode: http.StatusForbidden, wantData: forbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, "/v1/users", tt.token)
			srv.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_userQuery(t *testing.T) {
	srv := newTestServer(t)
	admin := createUser(t, srv.usrRepo, "Admin", "admin", "admin@test.test", "", user.RoleAdmin)
	teacher := createUser(t, srv.usrRepo, "Prof", "prof", "prof@test.test", "", user.RoleTeacher, "Dr. Rao")
	stud1 := createUser(t, srv.usrRepo, "Hero", "hero", "hero@test.test", "", user.RoleStudent, "CSE-A")
	stud2 := createUser(t, srv.usrRepo, "King", "king", "king@test.test", "", user.RoleStudent, "CSE-B")
	token := getToken(t, admin)

	path := func(search, role string) string {
		v := make(url.Values)
		if search != "" {
			v.Add("search", search)
		}
		if role != "" {
			v.Add("role", role)
		}
		return "/v1/users?" + v.Encode()
	}
	empty := marchallObj(t, []user.User{})

	tests := []httpTest{
		{name: "all", path: "/v1/users", wantData: marchallObj(t, []user.User{admin, teacher, stud1, stud2})},
		{name: "search (unknown)", path: path("lol", ""), wantData: empty},
		{name: "search=her", path: path("her", ""), wantData: marchallObj(t, []user.User{stud1})},
		{name: "role (unknown)", path: path("", "lol"), wantData: empty},
		{name: "role=student", path: path("", user.RoleStudent), wantData: marchallObj(t, []user.User{stud1, stud2})},
		{name: "role=teacher", path: path("", user.RoleTeacher), wantData: marchallObj(t, []user.User{teacher})},
		{name: "combo", path: path("king", user.RoleStudent), wantData: marchallObj(t, []user.User{stud2})},
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

func Test_userApi_userCreate(t *testing.T) {
	srv := newTestServer(t)
	admin := createUser(t, srv.usrRepo, "Admin", "admin", "admin@test.test", "", user.RoleAdmin)
	token := getToken(t, admin)

	t.Run("created", func(t *testing.T) {
		body := marchallObj(t, user.NewUser{
			Name:     "Jane",
			Username: "jane",
			Email:    "jane@test.test",
			Role:     user.RoleStudent,
			Section:  "CSE-A",
			Password: "Str0ng&Secure",
		})
		req, rec := newAuthRequest(http.MethodPost, "/v1/users", token, body)
		srv.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("userCreate() code = %v; body %s", rec.Code, rec.Body.String())
		}
		var usr user.User
		if err := json.Unmarshal(rec.Body.Bytes(), &usr); err != nil {
			t.Fatalf("userCreate() invalid response: %v", err)
		}
		if usr.Username != "jane" || usr.Role != user.RoleStudent {
			t.Errorf("userCreate() user = %+v", usr)
		}
	})

	t.Run("duplicate username", func(t *testing.T) {
		body := marchallObj(t, user.NewUser{
			Name:     "Jane2",
			Username: "jane",
			Email:    "jane2@test.test",
			Role:     user.RoleStudent,
			Section:  "CSE-A",
			Password: "Str0ng&Secure",
		})
		req, rec := newAuthRequest(http.MethodPost, "/v1/users", token, body)
		srv.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("userCreate() code = %v; want 400; body %s", rec.Code, rec.Body.String())
		}
	})
}

func Test_userApi_userDetail(t *testing.T) {
	srv := newTestServer(t)
	admin := createUser(t, srv.usrRepo, "Admin", "admin", "admin@test.test", "", user.RoleAdmin)
	usr := createUser(t, srv.usrRepo, "Jane", "jane", "jane@test.test", "", user.RoleStudent, "CSE-A")
	token := getToken(t, admin)

	notFound := marchallObj(t, httpErr{Error: "not found"})

	t.Run("retrieve", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/users/"+strconv.Itoa(usr.ID), token)
		srv.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, usr)}, rec)
	})

	t.Run("retrieve unknown", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/users/666", token)
		srv.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: notFound}, rec)
	})

	t.Run("retrieve bad id", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/users/nope", token)
		srv.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: notFound}, rec)
	})

	t.Run("update", func(t *testing.T) {
		body := marchallObj(t, user.UpdateUser{Name: "Jane_Doe"})
		req, rec := newAuthRequest(http.MethodPut, "/v1/users/"+strconv.Itoa(usr.ID), token, body)
		srv.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("userUpdate() code = %v; body %s", rec.Code, rec.Body.String())
		}
		var updated user.User
		if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
			t.Fatalf("userUpdate() invalid response: %v", err)
		}
		if updated.Name != "Jane_Doe" {
			t.Errorf("userUpdate() name = %v; want Jane_Doe", updated.Name)
		}
	})

	t.Run("self-delete forbidden", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/users/"+strconv.Itoa(admin.ID), token)
		srv.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		}, rec)
	})

	t.Run("destroy", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/users/"+strconv.Itoa(usr.ID), token)
		srv.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("userDestroy() code = %v; body %s", rec.Code, rec.Body.String())
		}
		req, rec = newAuthRequest(http.MethodGet, "/v1/users/"+strconv.Itoa(usr.ID), token)
		srv.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("deleted user still retrievable; code = %v", rec.Code)
		}
	})
}

func Test_userApi_userDestroyMultiple(t *testing.T) {
	srv := newTestServer(t)
	admin := createUser(t, srv.usrRepo, "Admin", "admin", "admin@test.test", "", user.RoleAdmin)
	usr1 := createUser(t, srv.usrRepo, "One", "one", "one@test.test", "", user.RoleStudent, "CSE-A")
	usr2 := createUser(t, srv.usrRepo, "Two", "two", "two@test.test", "", user.RoleStudent, "CSE-A")
	token := getToken(t, admin)

	t.Run("cannot include self", func(t *testing.T) {
		path := "/v1/users?id=" + strconv.Itoa(admin.ID) + "&id=" + strconv.Itoa(usr1.ID)
		req, rec := newAuthRequest(http.MethodDelete, path, token)
		srv.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("code = %v; want 403", rec.Code)
		}
	})

	t.Run("deletes all listed", func(t *testing.T) {
		path := "/v1/users?id=" + strconv.Itoa(usr1.ID) + "&id=" + strconv.Itoa(usr2.ID)
		req, rec := newAuthRequest(http.MethodDelete, path, token)
		srv.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("code = %v; body %s", rec.Code, rec.Body.String())
		}

		req, rec = newAuthRequest(http.MethodGet, "/v1/users", token)
		srv.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, []user.User{admin})}, rec)
	})
}

func Test_userApi_userQueryRoles(t *testing.T) {
	srv := newTestServer(t)
	admin := createUser(t, srv.usrRepo, "Admin", "admin", "admin@test.test", "", user.RoleAdmin)

	req, rec := newAuthRequest(http.MethodGet, "/v1/users/roles", getToken(t, admin))
	srv.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, user.AllRoles)}, rec)
}
