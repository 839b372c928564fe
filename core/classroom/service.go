package classroom

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
)

var (
	// errors
	ErrNotFound            = errors.New("classroom not found")
	ErrJoinCodeExists      = errors.New("join code already in use")
	ErrAlreadyMember       = errors.New("already enrolled in this classroom")
	ErrJoinRequestNotFound = errors.New("invalid OTP or join request not found")
)

type (
	Repository interface {
		// CreateClassroom returns ErrJoinCodeExists when the generated code is already taken.
		CreateClassroom(ctx context.Context, cls Classroom) (Classroom, error)
		GetClassroomByID(ctx context.Context, id int) (Classroom, error)
		GetClassroomByJoinCode(ctx context.Context, code string) (Classroom, error)
		QueryClassroomsByOwner(ctx context.Context, ownerID int) ([]Classroom, error)
		QueryClassroomsByMember(ctx context.Context, email string) ([]Classroom, error)
		// SearchClassrooms does a case-insensitive substring match on the classroom name.
		SearchClassrooms(ctx context.Context, term string) ([]Classroom, error)
		// AddMember returns ErrAlreadyMember when email is already enrolled.
		AddMember(ctx context.Context, classroomID int, email string) error

		CreatePost(ctx context.Context, post Post) (Post, error)
		// QueryPostsByClassroom returns posts newest-first.
		QueryPostsByClassroom(ctx context.Context, classroomID int) ([]Post, error)

		CreateJoinRequest(ctx context.Context, req JoinRequest) (JoinRequest, error)
		// GetJoinRequest matches all three fields exactly; returns ErrJoinRequestNotFound otherwise.
		GetJoinRequest(ctx context.Context, classroomID int, studentEmail, code string) (JoinRequest, error)
		DeleteJoinRequest(ctx context.Context, id int) error
	}

	Service struct {
		repo    Repository
		usrSvc  *user.Service
		mailSvc core.EmailService
		conf    *core.Config
	}
)

func NewService(repo Repository, usrSvc *user.Service, mailSvc core.EmailService, conf *core.Config) *Service {
	return &Service{
		repo:    repo,
		usrSvc:  usrSvc,
		mailSvc: mailSvc,
		conf:    conf,
	}
}

// Create registers a new classroom owned by actor with a fresh unique join code.
func (svc *Service) Create(ctx context.Context, actor user.User, nc NewClassroom) (Classroom, error) {
	if !actor.IsTeacher() {
		return Classroom{}, core.NewPermissionError("only teachers can create classrooms")
	}

	now := time.Now().UTC()
	cls := Classroom{
		Name:        nc.Name,
		Description: nc.Description,
		OwnerID:     actor.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// the join code is unique-indexed in storage; regenerate on collision, fail closed past the budget
	for attempt := 0; attempt < joinCodeMaxAttempts; attempt++ {
		code, err := generateJoinCode()
		if err != nil {
			return Classroom{}, errors.Wrap(err, "generating join code")
		}
		cls.JoinCode = code

		created, err := svc.repo.CreateClassroom(ctx, cls)
		if errors.Cause(err) == ErrJoinCodeExists {
			continue
		}
		if err != nil {
			return Classroom{}, errors.Wrap(err, "creating classroom")
		}
		return created, nil
	}
	return Classroom{}, errors.New("could not allocate a unique join code")
}

func (svc *Service) GetByID(ctx context.Context, id int) (Classroom, error) {
	cls, err := svc.repo.GetClassroomByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Classroom{}, core.NewNotFoundError("classroom not found")
		}
		return Classroom{}, err
	}
	return cls, nil
}

// GetWithPosts returns the classroom with its posts loaded, newest-first.
func (svc *Service) GetWithPosts(ctx context.Context, id int) (Classroom, error) {
	cls, err := svc.GetByID(ctx, id)
	if err != nil {
		return Classroom{}, err
	}
	posts, err := svc.repo.QueryPostsByClassroom(ctx, cls.ID)
	if err != nil {
		return Classroom{}, errors.Wrap(err, "querying posts")
	}
	cls.Posts = posts
	return cls, nil
}

func (svc *Service) QueryOwned(ctx context.Context, actor user.User) ([]Classroom, error) {
	if !actor.IsTeacher() {
		return nil, core.NewPermissionError("only teachers can access created classrooms")
	}
	return svc.repo.QueryClassroomsByOwner(ctx, actor.ID)
}

func (svc *Service) QueryEnrolled(ctx context.Context, actor user.User) ([]Classroom, error) {
	if !actor.IsStudent() {
		return nil, core.NewPermissionError("only students can access enrolled classrooms")
	}
	classrooms, err := svc.repo.QueryClassroomsByMember(ctx, actor.Email)
	if err != nil {
		return nil, err
	}
	if len(classrooms) == 0 {
		return nil, core.NewNotFoundError("no classrooms found")
	}
	return classrooms, nil
}

func (svc *Service) Search(ctx context.Context, term string) ([]Classroom, error) {
	results, err := svc.repo.SearchClassrooms(ctx, core.CleanString(term))
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, core.NewNotFoundError("classroom not found")
	}
	return results, nil
}

// JoinByCode enrolls the student directly using a classroom's join code.
func (svc *Service) JoinByCode(ctx context.Context, actor user.User, data JoinByCode) (Classroom, error) {
	if !actor.IsStudent() {
		return Classroom{}, core.NewPermissionError("only students can join classrooms")
	}

	cls, err := svc.repo.GetClassroomByJoinCode(ctx, data.JoinCode)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Classroom{}, core.NewNotFoundError("invalid join code")
		}
		return Classroom{}, errors.Wrap(err, "finding classroom by join code")
	}

	if cls.HasMember(actor.Email) {
		return Classroom{}, core.NewConflictError("you are already enrolled in this classroom")
	}
	if err := svc.repo.AddMember(ctx, cls.ID, actor.Email); err != nil {
		if errors.Cause(err) == ErrAlreadyMember {
			return Classroom{}, core.NewConflictError("you are already enrolled in this classroom")
		}
		return Classroom{}, errors.Wrap(err, "adding member")
	}
	cls.Members = append(cls.Members, actor.Email)
	return cls, nil
}

// RequestToJoin starts the owner-relayed OTP flow: a one-time code is emailed to the
// classroom owner (not the student), then persisted as a JoinRequest. Delivery failure
// aborts the transition so no orphaned request is left behind.
func (svc *Service) RequestToJoin(ctx context.Context, data JoinRequestInput) error {
	cls, err := svc.GetByID(ctx, data.ClassroomID)
	if err != nil {
		return err
	}

	owner, err := svc.usrSvc.GetByID(ctx, cls.OwnerID)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return core.NewNotFoundError("class owner not found")
		}
		return errors.Wrap(err, "finding classroom owner")
	}

	code, err := generateOTP()
	if err != nil {
		return errors.Wrap(err, "generating OTP")
	}

	msg := &core.EmailMessage{
		To:          []mail.Address{{Name: owner.Name, Address: owner.Email}},
		Subject:     fmt.Sprintf("OTP for %s", svc.conf.AppName),
		TextContent: fmt.Sprintf("%s requested to join %q. Share this code with them to approve: %s", data.StudentEmail, cls.Name, code),
		HTMLContent: fmt.Sprintf("<b>Your OTP is %s</b>", code),
	}
	if err := svc.mailSvc.SendMessage(msg); err != nil {
		return core.NewUpstreamError("failed to send OTP", err)
	}

	req := JoinRequest{
		ClassroomID:  cls.ID,
		StudentEmail: data.StudentEmail,
		Code:         code,
		OwnerEmail:   owner.Email,
		CreatedAt:    time.Now().UTC(),
	}
	if _, err := svc.repo.CreateJoinRequest(ctx, req); err != nil {
		return errors.Wrap(err, "creating join request")
	}
	return nil
}

// VerifyOTP completes the OTP flow: on an exact (classroom, email, code) match the
// student is enrolled (idempotently) and the join request is deleted, making the code
// single-use. A mismatch leaves any outstanding request intact for another attempt.
func (svc *Service) VerifyOTP(ctx context.Context, actor user.User, data VerifyOTPInput) error {
	if !actor.IsStudent() {
		return core.NewPermissionError("only students can join classrooms")
	}

	req, err := svc.repo.GetJoinRequest(ctx, data.ClassroomID, data.StudentEmail, data.Code)
	if err != nil {
		if errors.Cause(err) == ErrJoinRequestNotFound {
			return core.NewNotFoundError(ErrJoinRequestNotFound.Error())
		}
		return errors.Wrap(err, "finding join request")
	}

	cls, err := svc.GetByID(ctx, data.ClassroomID)
	if err != nil {
		return err
	}

	if !cls.HasMember(data.StudentEmail) {
		if err := svc.repo.AddMember(ctx, cls.ID, data.StudentEmail); err != nil && errors.Cause(err) != ErrAlreadyMember {
			return errors.Wrap(err, "adding member")
		}
	}
	if err := svc.repo.DeleteJoinRequest(ctx, req.ID); err != nil {
		return errors.Wrap(err, "deleting join request")
	}
	return nil
}

// AddPost publishes an announcement on the classroom board. Owner only; posts are immutable.
func (svc *Service) AddPost(ctx context.Context, actor user.User, np NewPost) (Post, error) {
	cls, err := svc.GetByID(ctx, np.ClassroomID)
	if err != nil {
		return Post{}, err
	}
	if !cls.IsOwnedBy(actor) {
		return Post{}, core.NewPermissionError("only classroom owners can create posts")
	}

	post := Post{
		ClassroomID: cls.ID,
		AuthorID:    actor.ID,
		Title:       np.Title,
		Description: np.Description,
		CreatedAt:   time.Now().UTC(),
	}
	return svc.repo.CreatePost(ctx, post)
}
