package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core/assignment"
)

type assignmentRow struct {
	ID          int                 `db:"id"`
	ClassroomID int                 `db:"classroom_id"`
	Title       string              `db:"title"`
	Description string              `db:"description"`
	DueDate     null.Time           `db:"due_date"`
	Rubric      null.JSON           `db:"rubric"`
	Attachments assignment.FileRefs `db:"attachments"`
	CreatedAt   time.Time           `db:"created_at"`
	UpdatedAt   time.Time           `db:"updated_at"`
}

func (r assignmentRow) toDomain() assignment.Assignment {
	return assignment.Assignment{
		ID:          r.ID,
		ClassroomID: r.ClassroomID,
		Title:       r.Title,
		Description: r.Description,
		DueDate:     r.DueDate,
		Rubric:      r.Rubric,
		Attachments: r.Attachments,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

type submissionRow struct {
	ID           int                 `db:"id"`
	AssignmentID int                 `db:"assignment_id"`
	ClassroomID  int                 `db:"classroom_id"`
	StudentID    int                 `db:"student_id"`
	StudentName  null.String         `db:"student_name"`
	StudentEmail null.String         `db:"student_email"`
	TextAnswer   string              `db:"text_answer"`
	Files        assignment.FileRefs `db:"files"`
	SubmittedAt  time.Time           `db:"submitted_at"`
	Grade        null.Float64        `db:"grade"`
	Feedback     null.String         `db:"feedback"`
}

func (r submissionRow) toDomain() assignment.Submission {
	return assignment.Submission{
		ID:           r.ID,
		AssignmentID: r.AssignmentID,
		ClassroomID:  r.ClassroomID,
		StudentID:    r.StudentID,
		StudentName:  r.StudentName.String,
		StudentEmail: r.StudentEmail.String,
		TextAnswer:   r.TextAnswer,
		Files:        r.Files,
		SubmittedAt:  r.SubmittedAt.UTC(),
		Grade:        r.Grade,
		Feedback:     r.Feedback,
	}
}

type assignmentRepository struct {
	db *sqlx.DB
}

var _ assignment.Repository = (*assignmentRepository)(nil) // interface compliance check

func NewAssignmentRepository(db *sqlx.DB) assignment.Repository {
	return &assignmentRepository{db: db}
}

func (repo *assignmentRepository) CreateAssignment(ctx context.Context, a assignment.Assignment) (assignment.Assignment, error) {
	q := `INSERT INTO assignment (classroom_id, title, description, due_date, rubric, attachments, created_at, updated_at)
	      VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	      RETURNING id`
	err := repo.db.QueryRowContext(
		ctx, q,
		a.ClassroomID, a.Title, a.Description, a.DueDate, a.Rubric, a.Attachments, a.CreatedAt, a.UpdatedAt,
	).Scan(&a.ID)
	if err != nil {
		return assignment.Assignment{}, errors.Wrap(err, "inserting assignment")
	}
	return a, nil
}

func (repo *assignmentRepository) GetAssignmentByID(ctx context.Context, id int) (assignment.Assignment, error) {
	var row assignmentRow
	q := `SELECT * FROM assignment WHERE id = $1`
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		if isNoRows(err) {
			return assignment.Assignment{}, assignment.ErrNotFound
		}
		return assignment.Assignment{}, errors.Wrap(err, "getting assignment")
	}
	return row.toDomain(), nil
}

func (repo *assignmentRepository) QueryAssignmentsByClassroom(ctx context.Context, classroomID int) ([]assignment.Assignment, error) {
	var rows []assignmentRow
	q := `SELECT * FROM assignment WHERE classroom_id = $1 ORDER BY created_at DESC`
	if err := repo.db.SelectContext(ctx, &rows, q, classroomID); err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	assignments := make([]assignment.Assignment, 0, len(rows))
	for _, row := range rows {
		assignments = append(assignments, row.toDomain())
	}
	return assignments, nil
}

func (repo *assignmentRepository) UpdateAssignment(ctx context.Context, a assignment.Assignment) (assignment.Assignment, error) {
	q := `UPDATE assignment
	      SET title = $1, description = $2, due_date = $3, rubric = $4, updated_at = $5
	      WHERE id = $6`
	res, err := repo.db.ExecContext(ctx, q, a.Title, a.Description, a.DueDate, a.Rubric, a.UpdatedAt, a.ID)
	if err != nil {
		return assignment.Assignment{}, errors.Wrap(err, "updating assignment")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return assignment.Assignment{}, assignment.ErrNotFound
	}
	return a, nil
}

func (repo *assignmentRepository) DeleteAssignment(ctx context.Context, id int) error {
	// submissions go with it (ON DELETE CASCADE)
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM assignment WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting assignment")
	}
	return nil
}

func (repo *assignmentRepository) CreateSubmission(ctx context.Context, s assignment.Submission) (assignment.Submission, error) {
	q := `INSERT INTO submission (assignment_id, classroom_id, student_id, text_answer, files, submitted_at, grade, feedback)
	      VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	      RETURNING id`
	err := repo.db.QueryRowContext(
		ctx, q,
		s.AssignmentID, s.ClassroomID, s.StudentID, s.TextAnswer, s.Files, s.SubmittedAt, s.Grade, s.Feedback,
	).Scan(&s.ID)
	if err != nil {
		if violatesUnique(err, "submission_assignment_id_student_id_key") {
			return assignment.Submission{}, assignment.ErrSubmissionExists
		}
		return assignment.Submission{}, errors.Wrap(err, "inserting submission")
	}
	return s, nil
}

func (repo *assignmentRepository) GetSubmission(ctx context.Context, assignmentID, studentID int) (assignment.Submission, error) {
	var row submissionRow
	q := `SELECT s.*, u.name AS student_name, u.email AS student_email
	      FROM submission s
	      JOIN "user" u ON u.id = s.student_id
	      WHERE s.assignment_id = $1 AND s.student_id = $2`
	if err := repo.db.GetContext(ctx, &row, q, assignmentID, studentID); err != nil {
		if isNoRows(err) {
			return assignment.Submission{}, assignment.ErrSubmissionNotFound
		}
		return assignment.Submission{}, errors.Wrap(err, "getting submission")
	}
	return row.toDomain(), nil
}

func (repo *assignmentRepository) QuerySubmissionsByAssignment(ctx context.Context, assignmentID int) ([]assignment.Submission, error) {
	var rows []submissionRow
	q := `SELECT s.*, u.name AS student_name, u.email AS student_email
	      FROM submission s
	      JOIN "user" u ON u.id = s.student_id
	      WHERE s.assignment_id = $1
	      ORDER BY s.submitted_at DESC`
	if err := repo.db.SelectContext(ctx, &rows, q, assignmentID); err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	submissions := make([]assignment.Submission, 0, len(rows))
	for _, row := range rows {
		submissions = append(submissions, row.toDomain())
	}
	return submissions, nil
}
