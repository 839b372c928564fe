package classroom_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/classroom"
	"github.com/trezcool/darasa/core/user"
	dummydb "github.com/trezcool/darasa/storage/database/dummy"
)

type mockMailService struct {
	mu   sync.Mutex
	sent []core.EmailMessage
	fail bool
}

var _ core.EmailService = (*mockMailService)(nil)

func (m *mockMailService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		_ = m.SendMessage(msg)
	}
}

func (m *mockMailService) SendMessage(msg *core.EmailMessage) error {
	if m.fail {
		return errors.New("smtp down")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, *msg)
	return nil
}

func (m *mockMailService) lastOTP(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		t.Fatal("no email was sent")
	}
	text := m.sent[len(m.sent)-1].TextContent
	return text[strings.LastIndex(text, " ")+1:]
}

func setup(t *testing.T) (*classroom.Service, user.Repository, *mockMailService) {
	t.Helper()

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed, %v", err)
	}
	usrRepo := dummydb.NewUserRepository(db)
	usrSvc := user.NewService(usrRepo)
	mailSvc := new(mockMailService)
	conf := &core.Config{AppName: "Darasa", TestMode: true}
	svc := classroom.NewService(dummydb.NewClassroomRepository(db), usrSvc, mailSvc, conf)
	return svc, usrRepo, mailSvc
}

func createUser(t *testing.T, repo user.Repository, name, email, role string) user.User {
	t.Helper()
	usr, err := repo.CreateUser(context.Background(), user.User{Name: name, Email: email, Role: role})
	if err != nil {
		t.Fatalf("CreateUser() failed, %v", err)
	}
	return usr
}

func createClassroom(t *testing.T, svc *classroom.Service, owner user.User, name string) classroom.Classroom {
	t.Helper()
	cls, err := svc.Create(context.Background(), owner, classroom.NewClassroom{Name: name})
	if err != nil {
		t.Fatalf("Create() failed, %v", err)
	}
	return cls
}

func TestService_Create(t *testing.T) {
	svc, usrRepo, _ := setup(t)
	ctx := context.Background()

	teacher := createUser(t, usrRepo, "Teacher", "teacher@test.cd", user.RoleTeacher)
	student := createUser(t, usrRepo, "Student", "student@test.cd", user.RoleStudent)

	if _, err := svc.Create(ctx, student, classroom.NewClassroom{Name: "Maths"}); err == nil {
		t.Error("Create() by a student should fail")
	} else if _, ok := errors.Cause(err).(*core.PermissionError); !ok {
		t.Errorf("Create() error = %T; want *core.PermissionError", errors.Cause(err))
	}

	cls, err := svc.Create(ctx, teacher, classroom.NewClassroom{Name: "Maths", Description: "Algebra"})
	if err != nil {
		t.Fatalf("Create() failed, %v", err)
	}
	if cls.OwnerID != teacher.ID {
		t.Errorf("cls.OwnerID = %d; want %d", cls.OwnerID, teacher.ID)
	}
	if len(cls.JoinCode) != 6 {
		t.Errorf("len(cls.JoinCode) = %d; want 6", len(cls.JoinCode))
	}
	if len(cls.Members) != 0 {
		t.Errorf("cls.Members = %v; want empty", cls.Members)
	}
}

// collideRepo simulates a join code pool that is fully taken.
type collideRepo struct {
	classroom.Repository
}

func (collideRepo) CreateClassroom(ctx context.Context, cls classroom.Classroom) (classroom.Classroom, error) {
	return classroom.Classroom{}, classroom.ErrJoinCodeExists
}

func TestService_Create_codeExhaustion(t *testing.T) {
	_, usrRepo, mailSvc := setup(t)
	teacher := createUser(t, usrRepo, "Teacher", "teacher@test.cd", user.RoleTeacher)

	db, _ := dummydb.Open()
	svc := classroom.NewService(
		collideRepo{Repository: dummydb.NewClassroomRepository(db)},
		user.NewService(usrRepo),
		mailSvc,
		&core.Config{AppName: "Darasa"},
	)

	_, err := svc.Create(context.Background(), teacher, classroom.NewClassroom{Name: "Maths"})
	if err == nil {
		t.Fatal("Create() should fail once the retry budget is spent")
	}
	if !strings.Contains(err.Error(), "could not allocate a unique join code") {
		t.Errorf("Create() error = %v; want join code allocation failure", err)
	}
}

func TestService_JoinByCode(t *testing.T) {
	svc, usrRepo, _ := setup(t)
	ctx := context.Background()

	teacher := createUser(t, usrRepo, "Teacher", "teacher@test.cd", user.RoleTeacher)
	student := createUser(t, usrRepo, "Student", "student@test.cd", user.RoleStudent)
	cls := createClassroom(t, svc, teacher, "Maths")

	if _, err := svc.JoinByCode(ctx, teacher, classroom.JoinByCode{JoinCode: cls.JoinCode}); err == nil {
		t.Error("JoinByCode() by a teacher should fail")
	}

	if _, err := svc.JoinByCode(ctx, student, classroom.JoinByCode{JoinCode: "ZZZZZZ"}); err == nil {
		t.Error("JoinByCode() with an unknown code should fail")
	} else if _, ok := errors.Cause(err).(*core.NotFoundError); !ok {
		t.Errorf("JoinByCode() error = %T; want *core.NotFoundError", errors.Cause(err))
	}

	joined, err := svc.JoinByCode(ctx, student, classroom.JoinByCode{JoinCode: cls.JoinCode})
	if err != nil {
		t.Fatalf("JoinByCode() failed, %v", err)
	}
	if !joined.HasMember(student.Email) {
		t.Errorf("classroom members = %v; want %s enrolled", joined.Members, student.Email)
	}

	// joining twice is a conflict
	if _, err := svc.JoinByCode(ctx, student, classroom.JoinByCode{JoinCode: cls.JoinCode}); err == nil {
		t.Error("JoinByCode() twice should fail")
	} else if _, ok := errors.Cause(err).(*core.ConflictError); !ok {
		t.Errorf("JoinByCode() error = %T; want *core.ConflictError", errors.Cause(err))
	}
}

func TestService_OTPFlow(t *testing.T) {
	svc, usrRepo, mailSvc := setup(t)
	ctx := context.Background()

	teacher := createUser(t, usrRepo, "Teacher", "teacher@test.cd", user.RoleTeacher)
	student := createUser(t, usrRepo, "Student", "student@test.cd", user.RoleStudent)
	cls := createClassroom(t, svc, teacher, "Maths")

	if err := svc.RequestToJoin(ctx, classroom.JoinRequestInput{ClassroomID: cls.ID, StudentEmail: student.Email}); err != nil {
		t.Fatalf("RequestToJoin() failed, %v", err)
	}
	if to := mailSvc.sent[0].To[0].Address; to != teacher.Email {
		t.Errorf("OTP sent to %s; want the class owner %s", to, teacher.Email)
	}
	otp := mailSvc.lastOTP(t)

	// wrong code leaves the request intact
	wrong := "000000"
	if wrong == otp {
		wrong = "000001"
	}
	err := svc.VerifyOTP(ctx, student, classroom.VerifyOTPInput{ClassroomID: cls.ID, StudentEmail: student.Email, Code: wrong})
	if _, ok := errors.Cause(err).(*core.NotFoundError); !ok {
		t.Errorf("VerifyOTP() with wrong code error = %v; want *core.NotFoundError", err)
	}

	// right code enrolls and consumes the request
	if err := svc.VerifyOTP(ctx, student, classroom.VerifyOTPInput{ClassroomID: cls.ID, StudentEmail: student.Email, Code: otp}); err != nil {
		t.Fatalf("VerifyOTP() failed, %v", err)
	}
	enrolled, err := svc.GetByID(ctx, cls.ID)
	if err != nil {
		t.Fatalf("GetByID() failed, %v", err)
	}
	if !enrolled.HasMember(student.Email) {
		t.Errorf("classroom members = %v; want %s enrolled", enrolled.Members, student.Email)
	}

	// replay fails: the code is single-use
	err = svc.VerifyOTP(ctx, student, classroom.VerifyOTPInput{ClassroomID: cls.ID, StudentEmail: student.Email, Code: otp})
	if _, ok := errors.Cause(err).(*core.NotFoundError); !ok {
		t.Errorf("VerifyOTP() replay error = %v; want *core.NotFoundError", err)
	}
}

func TestService_RequestToJoin_mailFailure(t *testing.T) {
	svc, usrRepo, mailSvc := setup(t)
	ctx := context.Background()

	teacher := createUser(t, usrRepo, "Teacher", "teacher@test.cd", user.RoleTeacher)
	student := createUser(t, usrRepo, "Student", "student@test.cd", user.RoleStudent)
	cls := createClassroom(t, svc, teacher, "Maths")

	mailSvc.fail = true
	err := svc.RequestToJoin(ctx, classroom.JoinRequestInput{ClassroomID: cls.ID, StudentEmail: student.Email})
	if _, ok := errors.Cause(err).(*core.UpstreamError); !ok {
		t.Errorf("RequestToJoin() error = %v; want *core.UpstreamError", err)
	}
}

func TestService_QueryEnrolled(t *testing.T) {
	svc, usrRepo, _ := setup(t)
	ctx := context.Background()

	teacher := createUser(t, usrRepo, "Teacher", "teacher@test.cd", user.RoleTeacher)
	student := createUser(t, usrRepo, "Student", "student@test.cd", user.RoleStudent)

	// nothing enrolled yet
	_, err := svc.QueryEnrolled(ctx, student)
	if _, ok := errors.Cause(err).(*core.NotFoundError); !ok {
		t.Errorf("QueryEnrolled() error = %v; want *core.NotFoundError", err)
	}

	cls := createClassroom(t, svc, teacher, "Maths")
	if _, err := svc.JoinByCode(ctx, student, classroom.JoinByCode{JoinCode: cls.JoinCode}); err != nil {
		t.Fatalf("JoinByCode() failed, %v", err)
	}

	classrooms, err := svc.QueryEnrolled(ctx, student)
	if err != nil {
		t.Fatalf("QueryEnrolled() failed, %v", err)
	}
	if len(classrooms) != 1 || classrooms[0].ID != cls.ID {
		t.Errorf("QueryEnrolled() = %v; want [%d]", classrooms, cls.ID)
	}
}

func TestService_Search(t *testing.T) {
	svc, usrRepo, _ := setup(t)
	ctx := context.Background()

	teacher := createUser(t, usrRepo, "Teacher", "teacher@test.cd", user.RoleTeacher)
	createClassroom(t, svc, teacher, "Advanced Maths")

	if _, err := svc.Search(ctx, "physics"); err == nil {
		t.Error("Search() with no match should fail")
	}

	results, err := svc.Search(ctx, "maths")
	if err != nil {
		t.Fatalf("Search() failed, %v", err)
	}
	if len(results) != 1 {
		t.Errorf("len(results) = %d; want 1", len(results))
	}
}

func TestService_AddPost(t *testing.T) {
	svc, usrRepo, _ := setup(t)
	ctx := context.Background()

	teacher := createUser(t, usrRepo, "Teacher", "teacher@test.cd", user.RoleTeacher)
	other := createUser(t, usrRepo, "Other", "other@test.cd", user.RoleTeacher)
	cls := createClassroom(t, svc, teacher, "Maths")

	if _, err := svc.AddPost(ctx, other, classroom.NewPost{ClassroomID: cls.ID, Title: "Hi"}); err == nil {
		t.Error("AddPost() by a non-owner should fail")
	} else if _, ok := errors.Cause(err).(*core.PermissionError); !ok {
		t.Errorf("AddPost() error = %T; want *core.PermissionError", errors.Cause(err))
	}

	first, err := svc.AddPost(ctx, teacher, classroom.NewPost{ClassroomID: cls.ID, Title: "Welcome"})
	if err != nil {
		t.Fatalf("AddPost() failed, %v", err)
	}
	second, err := svc.AddPost(ctx, teacher, classroom.NewPost{ClassroomID: cls.ID, Title: "Homework"})
	if err != nil {
		t.Fatalf("AddPost() failed, %v", err)
	}

	withPosts, err := svc.GetWithPosts(ctx, cls.ID)
	if err != nil {
		t.Fatalf("GetWithPosts() failed, %v", err)
	}
	if len(withPosts.Posts) != 2 {
		t.Fatalf("len(posts) = %d; want 2", len(withPosts.Posts))
	}
	// newest-first
	if withPosts.Posts[0].ID != second.ID || withPosts.Posts[1].ID != first.ID {
		t.Errorf("posts order = [%d %d]; want [%d %d]", withPosts.Posts[0].ID, withPosts.Posts[1].ID, second.ID, first.ID)
	}
}
