package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/assignment"
	"github.com/trezcool/darasa/core/classroom"
	"github.com/trezcool/darasa/core/user"
	"github.com/trezcool/darasa/services/filestore"
	dummydb "github.com/trezcool/darasa/storage/database/dummy"
)

type nopLogger struct{}

var _ core.Logger = (*nopLogger)(nil)

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

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

type testServer struct {
	*Server
	conf    *core.Config
	usrRepo user.Repository
	mailSvc *mockMailService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	conf := &core.Config{
		TestMode:         true,
		Env:              "TEST",
		AppName:          "Darasa",
		SecretKey:        []byte("secret"),
		RefreshSecretKey: []byte("refresh-secret"),
		FrontendBaseURL:  "http://localhost:3000",
		Server: core.ServerConfig{
			Address:                     ":0",
			ShutdownTimeout:             time.Second,
			AccessTokenExpirationDelta:  10 * time.Minute,
			RefreshTokenExpirationDelta: 4 * time.Hour,
		},
		Uploads: core.UploadsConfig{
			Provider: "local",
			Dir:      t.TempDir(),
			BaseURL:  "/uploads",
			MaxFiles: 5,
		},
	}

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed, %v", err)
	}
	usrRepo := dummydb.NewUserRepository(db)
	usrSvc := user.NewService(usrRepo)
	mailSvc := new(mockMailService)
	clsSvc := classroom.NewService(dummydb.NewClassroomRepository(db), usrSvc, mailSvc, conf)
	assignSvc := assignment.NewService(dummydb.NewAssignmentRepository(db), clsSvc)

	fileStore, err := filestore.NewLocalService(conf)
	if err != nil {
		t.Fatalf("NewLocalService() failed, %v", err)
	}

	validate := validator.New()
	translator := newTestTranslator()
	core.InitValidators(validate, translator)

	srv := NewServer(ServerDeps{
		Conf:          conf,
		Logger:        nopLogger{},
		UserSvc:       usrSvc,
		ClassroomSvc:  clsSvc,
		AssignmentSvc: assignSvc,
		FileStore:     fileStore,
		Validate:      validate,
		Translator:    translator,
	})
	return &testServer{Server: srv, conf: conf, usrRepo: usrRepo, mailSvc: mailSvc}
}

func newTestTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func (srv *testServer) createUser(t *testing.T, name, email, role, pwd string) user.User {
	t.Helper()

	now := time.Now().UTC()
	usr := user.User{Name: name, Email: email, Role: role, CreatedAt: now, UpdatedAt: now}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("SetPassword() failed, %v", err)
		}
	}
	usr, err := srv.usrRepo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed, %v", err)
	}
	return usr
}

// sessionCookies mints a valid cookie pair for usr, bypassing the login endpoint.
func (srv *testServer) sessionCookies(t *testing.T, usr user.User) []*http.Cookie {
	t.Helper()

	access, refresh, err := srv.session.tokenPair(usr)
	if err != nil {
		t.Fatalf("tokenPair() failed, %v", err)
	}
	return []*http.Cookie{
		{Name: authCookieName, Value: access},
		{Name: refreshCookieName, Value: refresh},
	}
}

func (srv *testServer) do(method, path string, body []byte, cookies []*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

// testEnvelope mirrors the response envelope with raw payloads for assertions.
type testEnvelope struct {
	Message json.RawMessage `json:"message"`
	Data    json.RawMessage `json:"data"`
	Success bool            `json:"success"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) testEnvelope {
	t.Helper()

	var env testEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decoding envelope failed, %v; body: %s", err, rec.Body.String())
	}
	return env
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()

	env := decodeEnvelope(t, rec)
	if err := json.Unmarshal(env.Data, dst); err != nil {
		t.Fatalf("decoding envelope data failed, %v; data: %s", err, string(env.Data))
	}
}

func checkCode(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()

	if rec.Code != want {
		t.Fatalf("code = %d; want %d; body: %s", rec.Code, want, rec.Body.String())
	}
}

func responseCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
