package assignment

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
)

// FileRef describes one stored upload: server-generated name, served URL, MIME type and size.
type FileRef struct {
	Filename    string `json:"filename"`
	URL         string `json:"url"`
	ContentType string `json:"mimetype"`
	Size        int64  `json:"size"`
}

// FileRefs is stored as a single JSONB column.
type FileRefs []FileRef

func (f FileRefs) Value() (driver.Value, error) {
	if f == nil {
		f = FileRefs{}
	}
	return json.Marshal(f)
}

func (f *FileRefs) Scan(src interface{}) error {
	switch src := src.(type) {
	case nil:
		*f = nil
		return nil
	case []byte:
		return json.Unmarshal(src, f)
	case string:
		return json.Unmarshal([]byte(src), f)
	}
	return errors.Errorf("cannot scan %T into FileRefs", src)
}

type Assignment struct {
	ID          int       `json:"id"`
	ClassroomID int       `json:"classId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	DueDate     null.Time `json:"dueDate"`
	Rubric      null.JSON `json:"rubric"`
	Attachments FileRefs  `json:"attachments"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

// DeadlinePassed reports whether now is strictly after the due date.
// A submission at the due date itself is still accepted; no due date means no deadline.
func (a Assignment) DeadlinePassed(now time.Time) bool {
	return a.DueDate.Valid && now.After(a.DueDate.Time)
}

type Submission struct {
	ID           int          `json:"id"`
	AssignmentID int          `json:"assignmentId"`
	ClassroomID  int          `json:"classId"`
	StudentID    int          `json:"studentId"`
	StudentName  string       `json:"studentName,omitempty"`  // resolved on teacher listing
	StudentEmail string       `json:"studentEmail,omitempty"` // resolved on teacher listing
	TextAnswer   string       `json:"textAnswer"`
	Files        FileRefs     `json:"files"`
	SubmittedAt  time.Time    `json:"submittedAt"` // UTC
	Grade        null.Float64 `json:"grade"`
	Feedback     null.String  `json:"feedback"`
}

// Status is the student-facing read-only projection of a Submission.
type Status struct {
	Submitted   bool         `json:"submitted"`
	SubmittedAt *time.Time   `json:"submittedAt,omitempty"`
	Grade       null.Float64 `json:"grade,omitempty"`
	Feedback    null.String  `json:"feedback,omitempty"`
	Files       FileRefs     `json:"files,omitempty"`
}

// OptionalTime is a null.Time that also records whether the field was present in the
// request body at all, so a partial update can tell "leave untouched" from "clear".
// An explicit null or empty string clears the value.
type OptionalTime struct {
	null.Time
	Set bool
}

func (t *OptionalTime) UnmarshalJSON(b []byte) error {
	t.Set = true
	if bytes.Equal(b, []byte("null")) || bytes.Equal(b, []byte(`""`)) {
		t.Valid = false
		t.Time.Time = time.Time{}
		return nil
	}
	return t.Time.UnmarshalJSON(b)
}

// OptionalJSON is the free-form-rubric counterpart of OptionalTime.
type OptionalJSON struct {
	null.JSON
	Set bool
}

func (j *OptionalJSON) UnmarshalJSON(b []byte) error {
	j.Set = true
	return j.JSON.UnmarshalJSON(b)
}

// NewAssignment contains information needed to create a new Assignment.
type NewAssignment struct {
	ClassroomID int          `json:"classId" validate:"required"`
	Title       string       `json:"title" validate:"required"`
	Description string       `json:"description"`
	DueDate     OptionalTime `json:"dueDate"`
	Rubric      OptionalJSON `json:"rubric"`
}

func (na *NewAssignment) Validate(validate *validator.Validate) error {
	na.Title = core.CleanString(na.Title)
	na.Description = core.CleanString(na.Description)
	return validate.Struct(na)
}

// UpdateAssignment defines what may be provided to modify an existing Assignment.
// Only fields present in the request are overwritten; an explicit null/empty due date clears it.
type UpdateAssignment struct {
	Title       *string      `json:"title"`
	Description *string      `json:"description"`
	DueDate     OptionalTime `json:"dueDate"`
	Rubric      OptionalJSON `json:"rubric"`
}

func (ua *UpdateAssignment) Validate(validate *validator.Validate) error {
	if ua.Title != nil {
		t := core.CleanString(*ua.Title)
		ua.Title = &t
	}
	if ua.Description != nil {
		d := core.CleanString(*ua.Description)
		ua.Description = &d
	}
	return validate.Struct(ua)
}

// apply overlays the provided fields onto an existing assignment.
func (ua UpdateAssignment) apply(a Assignment) Assignment {
	if ua.Title != nil && *ua.Title != "" {
		a.Title = *ua.Title
	}
	if ua.Description != nil {
		a.Description = *ua.Description
	}
	if ua.DueDate.Set {
		a.DueDate = ua.DueDate.Time
	}
	if ua.Rubric.Set {
		a.Rubric = ua.Rubric.JSON
	}
	return a
}

// NewSubmission contains the student-provided parts of a submission;
// files are stored by the caller before the domain record is created.
type NewSubmission struct {
	TextAnswer string   `json:"textAnswer"`
	Files      FileRefs `json:"-"`
}
