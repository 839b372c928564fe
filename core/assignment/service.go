package assignment

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/classroom"
	"github.com/trezcool/darasa/core/user"
)

var (
	// errors
	ErrNotFound           = errors.New("assignment not found")
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrSubmissionExists   = errors.New("you have already submitted this assignment")

	// NowFunc returns the reference time for deadline checks. Mockable in tests.
	NowFunc = time.Now
)

type (
	Repository interface {
		CreateAssignment(ctx context.Context, a Assignment) (Assignment, error)
		GetAssignmentByID(ctx context.Context, id int) (Assignment, error)
		// QueryAssignmentsByClassroom returns assignments newest-first.
		QueryAssignmentsByClassroom(ctx context.Context, classroomID int) ([]Assignment, error)
		UpdateAssignment(ctx context.Context, a Assignment) (Assignment, error)
		// DeleteAssignment also removes the assignment's submissions.
		DeleteAssignment(ctx context.Context, id int) error

		// CreateSubmission returns ErrSubmissionExists when the (assignment, student)
		// pair already has one; uniqueness is enforced at the storage layer.
		CreateSubmission(ctx context.Context, s Submission) (Submission, error)
		GetSubmission(ctx context.Context, assignmentID, studentID int) (Submission, error)
		// QuerySubmissionsByAssignment returns submissions newest-first with student
		// name/email resolved for display.
		QuerySubmissionsByAssignment(ctx context.Context, assignmentID int) ([]Submission, error)
	}

	Service struct {
		repo   Repository
		clsSvc *classroom.Service
	}
)

func NewService(repo Repository, clsSvc *classroom.Service) *Service {
	return &Service{repo: repo, clsSvc: clsSvc}
}

func (svc *Service) getOwnedClassroom(ctx context.Context, actor user.User, classroomID int) (classroom.Classroom, error) {
	cls, err := svc.clsSvc.GetByID(ctx, classroomID)
	if err != nil {
		return classroom.Classroom{}, err
	}
	if !cls.IsOwnedBy(actor) {
		return classroom.Classroom{}, core.NewPermissionError("only the classroom owner may do this")
	}
	return cls, nil
}

func (svc *Service) getAssignment(ctx context.Context, id int) (Assignment, error) {
	a, err := svc.repo.GetAssignmentByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Assignment{}, core.NewNotFoundError("assignment not found")
		}
		return Assignment{}, err
	}
	return a, nil
}

// Create adds a work item to the classroom. Owner only; an absent due date means "no deadline".
func (svc *Service) Create(ctx context.Context, actor user.User, na NewAssignment) (Assignment, error) {
	if _, err := svc.getOwnedClassroom(ctx, actor, na.ClassroomID); err != nil {
		return Assignment{}, err
	}

	now := time.Now().UTC()
	a := Assignment{
		ClassroomID: na.ClassroomID,
		Title:       na.Title,
		Description: na.Description,
		DueDate:     na.DueDate.Time,
		Rubric:      na.Rubric.JSON,
		Attachments: FileRefs{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return svc.repo.CreateAssignment(ctx, a)
}

func (svc *Service) Get(ctx context.Context, id int) (Assignment, error) {
	return svc.getAssignment(ctx, id)
}

// Query lists all assignments of an existing classroom, newest-first.
func (svc *Service) Query(ctx context.Context, classroomID int) ([]Assignment, error) {
	if _, err := svc.clsSvc.GetByID(ctx, classroomID); err != nil {
		return nil, err
	}
	return svc.repo.QueryAssignmentsByClassroom(ctx, classroomID)
}

// Update applies a partial update: only fields present in ua are overwritten.
func (svc *Service) Update(ctx context.Context, actor user.User, id int, ua UpdateAssignment) (Assignment, error) {
	a, err := svc.getAssignment(ctx, id)
	if err != nil {
		return Assignment{}, err
	}
	if _, err := svc.getOwnedClassroom(ctx, actor, a.ClassroomID); err != nil {
		return Assignment{}, err
	}

	a = ua.apply(a)
	a.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateAssignment(ctx, a)
}

// Delete removes the assignment and, by design, its submissions.
func (svc *Service) Delete(ctx context.Context, actor user.User, id int) error {
	a, err := svc.getAssignment(ctx, id)
	if err != nil {
		return err
	}
	if _, err := svc.getOwnedClassroom(ctx, actor, a.ClassroomID); err != nil {
		return err
	}
	return svc.repo.DeleteAssignment(ctx, a.ID)
}

// Submit records the one-and-only submission of actor for the assignment.
// Rejected when now is strictly past the due date, or when one already exists.
func (svc *Service) Submit(ctx context.Context, actor user.User, assignmentID int, ns NewSubmission) (Submission, error) {
	if !actor.IsStudent() {
		return Submission{}, core.NewPermissionError("only students can submit assignments")
	}

	a, err := svc.getAssignment(ctx, assignmentID)
	if err != nil {
		return Submission{}, err
	}
	if a.DeadlinePassed(NowFunc()) {
		return Submission{}, core.NewValidationError(errors.New("deadline has passed"))
	}

	files := ns.Files
	if files == nil {
		files = FileRefs{}
	}
	sub := Submission{
		AssignmentID: a.ID,
		ClassroomID:  a.ClassroomID,
		StudentID:    actor.ID,
		TextAnswer:   core.CleanString(ns.TextAnswer),
		Files:        files,
		SubmittedAt:  NowFunc().UTC(),
	}

	created, err := svc.repo.CreateSubmission(ctx, sub)
	if err != nil {
		if errors.Cause(err) == ErrSubmissionExists {
			return Submission{}, core.NewConflictError(ErrSubmissionExists.Error())
		}
		return Submission{}, errors.Wrap(err, "creating submission")
	}
	return created, nil
}

// GetStatus answers "have I submitted assignment X" for the acting student,
// including grade/feedback/files when a submission exists.
func (svc *Service) GetStatus(ctx context.Context, actor user.User, assignmentID int) (Status, error) {
	a, err := svc.getAssignment(ctx, assignmentID)
	if err != nil {
		return Status{}, err
	}

	sub, err := svc.repo.GetSubmission(ctx, a.ID, actor.ID)
	if err != nil {
		if errors.Cause(err) == ErrSubmissionNotFound {
			return Status{Submitted: false}, nil
		}
		return Status{}, err
	}
	submittedAt := sub.SubmittedAt
	return Status{
		Submitted:   true,
		SubmittedAt: &submittedAt,
		Grade:       sub.Grade,
		Feedback:    sub.Feedback,
		Files:       sub.Files,
	}, nil
}

// QuerySubmissions lists all submissions for an assignment, newest-first. Owner only.
func (svc *Service) QuerySubmissions(ctx context.Context, actor user.User, assignmentID int) ([]Submission, error) {
	a, err := svc.getAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if _, err := svc.getOwnedClassroom(ctx, actor, a.ClassroomID); err != nil {
		return nil, err
	}
	return svc.repo.QuerySubmissionsByAssignment(ctx, a.ID)
}
