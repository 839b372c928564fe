package echoapi

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/trezcool/darasa/core/classroom"
	"github.com/trezcool/darasa/core/user"
)

// lastOTP digs the relayed code out of the most recent owner email.
func (srv *testServer) lastOTP(t *testing.T) string {
	t.Helper()

	srv.mailSvc.mu.Lock()
	defer srv.mailSvc.mu.Unlock()
	if len(srv.mailSvc.sent) == 0 {
		t.Fatal("no email was sent")
	}
	text := srv.mailSvc.sent[len(srv.mailSvc.sent)-1].TextContent
	return text[strings.LastIndex(text, " ")+1:]
}

func Test_classroomApi_create(t *testing.T) {
	srv := newTestServer(t)
	teacher := srv.createUser(t, "Teacher", "teacher@test.cd", user.RoleTeacher, "s3cr3t")
	student := srv.createUser(t, "Student", "student@test.cd", user.RoleStudent, "s3cr3t")

	body := []byte(`{"name": "Maths", "description": "Algebra & friends"}`)

	// no session
	rec := srv.do(http.MethodPost, "/class/create", body, nil)
	checkCode(t, rec, http.StatusUnauthorized)

	// students cannot create
	rec = srv.do(http.MethodPost, "/class/create", body, srv.sessionCookies(t, student))
	checkCode(t, rec, http.StatusForbidden)

	// name is required
	rec = srv.do(http.MethodPost, "/class/create", []byte(`{"description": "?"}`), srv.sessionCookies(t, teacher))
	checkCode(t, rec, http.StatusBadRequest)

	rec = srv.do(http.MethodPost, "/class/create", body, srv.sessionCookies(t, teacher))
	checkCode(t, rec, http.StatusCreated)

	var cls classroom.Classroom
	decodeData(t, rec, &cls)
	if cls.Name != "Maths" || cls.OwnerID != teacher.ID {
		t.Errorf("cls = %+v; want Maths owned by %d", cls, teacher.ID)
	}
	if len(cls.JoinCode) != 6 {
		t.Errorf("len(JoinCode) = %d; want 6", len(cls.JoinCode))
	}
}

func Test_classroomApi_queries(t *testing.T) {
	srv := newTestServer(t)
	teacher := srv.createUser(t, "Teacher", "teacher@test.cd", user.RoleTeacher, "s3cr3t")
	student := srv.createUser(t, "Student", "student@test.cd", user.RoleStudent, "s3cr3t")

	// nothing enrolled yet
	rec := srv.do(http.MethodGet, "/class/classroomsforstudent", nil, srv.sessionCookies(t, student))
	checkCode(t, rec, http.StatusNotFound)

	rec = srv.do(http.MethodPost, "/class/create", []byte(`{"name": "Maths"}`), srv.sessionCookies(t, teacher))
	checkCode(t, rec, http.StatusCreated)
	var cls classroom.Classroom
	decodeData(t, rec, &cls)

	rec = srv.do(http.MethodGet, "/class/classroomscreatedbyme", nil, srv.sessionCookies(t, teacher))
	checkCode(t, rec, http.StatusOK)
	var owned []classroom.Classroom
	decodeData(t, rec, &owned)
	if len(owned) != 1 || owned[0].ID != cls.ID {
		t.Errorf("owned = %+v; want [%d]", owned, cls.ID)
	}

	// enroll the student, then the listing shows up
	body := fmt.Sprintf(`{"joinCode": %q}`, cls.JoinCode)
	rec = srv.do(http.MethodPost, "/class/join-by-code", []byte(body), srv.sessionCookies(t, student))
	checkCode(t, rec, http.StatusOK)

	rec = srv.do(http.MethodGet, "/class/classroomsforstudent", nil, srv.sessionCookies(t, student))
	checkCode(t, rec, http.StatusOK)
	var enrolled []classroom.Classroom
	decodeData(t, rec, &enrolled)
	if len(enrolled) != 1 || enrolled[0].ID != cls.ID {
		t.Errorf("enrolled = %+v; want [%d]", enrolled, cls.ID)
	}
}

func Test_classroomApi_posts(t *testing.T) {
	srv := newTestServer(t)
	teacher := srv.createUser(t, "Teacher", "teacher@test.cd", user.RoleTeacher, "s3cr3t")
	student := srv.createUser(t, "Student", "student@test.cd", user.RoleStudent, "s3cr3t")

	rec := srv.do(http.MethodPost, "/class/create", []byte(`{"name": "Maths"}`), srv.sessionCookies(t, teacher))
	checkCode(t, rec, http.StatusCreated)
	var cls classroom.Classroom
	decodeData(t, rec, &cls)

	post := fmt.Sprintf(`{"classId": %d, "title": "Welcome", "description": "First day"}`, cls.ID)

	// owner only
	rec = srv.do(http.MethodPost, "/class/addpost", []byte(post), srv.sessionCookies(t, student))
	checkCode(t, rec, http.StatusForbidden)

	rec = srv.do(http.MethodPost, "/class/addpost", []byte(post), srv.sessionCookies(t, teacher))
	checkCode(t, rec, http.StatusCreated)

	rec = srv.do(http.MethodGet, fmt.Sprintf("/class/getclassbyid/%d", cls.ID), nil, srv.sessionCookies(t, student))
	checkCode(t, rec, http.StatusOK)
	var got classroom.Classroom
	decodeData(t, rec, &got)
	if len(got.Posts) != 1 || got.Posts[0].Title != "Welcome" {
		t.Errorf("got.Posts = %+v; want the Welcome post", got.Posts)
	}

	rec = srv.do(http.MethodGet, "/class/getclassbyid/nope", nil, srv.sessionCookies(t, student))
	checkCode(t, rec, http.StatusNotFound)
}

func Test_classroomApi_search(t *testing.T) {
	srv := newTestServer(t)
	teacher := srv.createUser(t, "Teacher", "teacher@test.cd", user.RoleTeacher, "s3cr3t")

	rec := srv.do(http.MethodPost, "/class/create", []byte(`{"name": "Advanced Maths"}`), srv.sessionCookies(t, teacher))
	checkCode(t, rec, http.StatusCreated)

	// discovery needs no session
	rec = srv.do(http.MethodGet, "/class/classrooms/search?term=maths", nil, nil)
	checkCode(t, rec, http.StatusOK)
	var results []classroom.Classroom
	decodeData(t, rec, &results)
	if len(results) != 1 {
		t.Fatalf("len(results) = %d; want 1", len(results))
	}

	rec = srv.do(http.MethodGet, "/class/classrooms/search?term=biology", nil, nil)
	checkCode(t, rec, http.StatusNotFound)
}

func Test_classroomApi_joinByCode(t *testing.T) {
	srv := newTestServer(t)
	teacher := srv.createUser(t, "Teacher", "teacher@test.cd", user.RoleTeacher, "s3cr3t")
	student := srv.createUser(t, "Student", "student@test.cd", user.RoleStudent, "s3cr3t")

	rec := srv.do(http.MethodPost, "/class/create", []byte(`{"name": "Maths"}`), srv.sessionCookies(t, teacher))
	checkCode(t, rec, http.StatusCreated)
	var cls classroom.Classroom
	decodeData(t, rec, &cls)

	// bogus code
	rec = srv.do(http.MethodPost, "/class/join-by-code", []byte(`{"joinCode": "ZZZZZZ"}`), srv.sessionCookies(t, student))
	checkCode(t, rec, http.StatusNotFound)

	// codes match regardless of case
	body := fmt.Sprintf(`{"joinCode": %q}`, strings.ToLower(cls.JoinCode))
	rec = srv.do(http.MethodPost, "/class/join-by-code", []byte(body), srv.sessionCookies(t, student))
	checkCode(t, rec, http.StatusOK)
	var joined classroom.Classroom
	decodeData(t, rec, &joined)
	if !joined.HasMember(student.Email) {
		t.Errorf("joined.Members = %v; want %s enrolled", joined.Members, student.Email)
	}

	// joining twice conflicts
	rec = srv.do(http.MethodPost, "/class/join-by-code", []byte(body), srv.sessionCookies(t, student))
	checkCode(t, rec, http.StatusConflict)
}

func Test_classroomApi_otpFlow(t *testing.T) {
	srv := newTestServer(t)
	teacher := srv.createUser(t, "Teacher", "teacher@test.cd", user.RoleTeacher, "s3cr3t")
	student := srv.createUser(t, "Student", "student@test.cd", user.RoleStudent, "s3cr3t")

	rec := srv.do(http.MethodPost, "/class/create", []byte(`{"name": "Maths"}`), srv.sessionCookies(t, teacher))
	checkCode(t, rec, http.StatusCreated)
	var cls classroom.Classroom
	decodeData(t, rec, &cls)

	// the request-to-join endpoint needs no session
	body := fmt.Sprintf(`{"classroomId": %d, "studentEmail": %q}`, cls.ID, student.Email)
	rec = srv.do(http.MethodPost, "/class/request-to-join", []byte(body), nil)
	checkCode(t, rec, http.StatusOK)
	otp := srv.lastOTP(t)

	// the wrong code does not enroll; generated codes never start with a zero
	verify := fmt.Sprintf(`{"classroomId": %d, "studentEmail": %q, "otp": "000000"}`, cls.ID, student.Email)
	rec = srv.do(http.MethodPost, "/class/verify-otp", []byte(verify), srv.sessionCookies(t, student))
	checkCode(t, rec, http.StatusNotFound)

	verify = fmt.Sprintf(`{"classroomId": %d, "studentEmail": %q, "otp": %q}`, cls.ID, student.Email, otp)
	rec = srv.do(http.MethodPost, "/class/verify-otp", []byte(verify), srv.sessionCookies(t, student))
	checkCode(t, rec, http.StatusOK)

	// the code is consumed; a replay fails
	rec = srv.do(http.MethodPost, "/class/verify-otp", []byte(verify), srv.sessionCookies(t, student))
	checkCode(t, rec, http.StatusNotFound)
}

func Test_classroomApi_requestToJoin_mailFailure(t *testing.T) {
	srv := newTestServer(t)
	teacher := srv.createUser(t, "Teacher", "teacher@test.cd", user.RoleTeacher, "s3cr3t")
	student := srv.createUser(t, "Student", "student@test.cd", user.RoleStudent, "s3cr3t")

	rec := srv.do(http.MethodPost, "/class/create", []byte(`{"name": "Maths"}`), srv.sessionCookies(t, teacher))
	checkCode(t, rec, http.StatusCreated)
	var cls classroom.Classroom
	decodeData(t, rec, &cls)

	srv.mailSvc.fail = true
	body := fmt.Sprintf(`{"classroomId": %d, "studentEmail": %q}`, cls.ID, student.Email)
	rec = srv.do(http.MethodPost, "/class/request-to-join", []byte(body), nil)
	checkCode(t, rec, http.StatusBadGateway)
}
