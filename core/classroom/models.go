package classroom

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
)

type Classroom struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	OwnerID     int       `json:"owner"`
	JoinCode    string    `json:"join_code"`
	Members     []string  `json:"students"` // student emails, append-only
	Posts       []Post    `json:"posts,omitempty"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

// IsOwnedBy reports whether usr is the teacher who created this classroom.
// The owner is the sole authority for assignment CRUD and submission visibility.
func (c Classroom) IsOwnedBy(usr user.User) bool {
	return c.OwnerID == usr.ID
}

func (c Classroom) HasMember(email string) bool {
	for _, m := range c.Members {
		if m == email {
			return true
		}
	}
	return false
}

type Post struct {
	ID          int       `json:"id"`
	ClassroomID int       `json:"classId"`
	AuthorID    int       `json:"createdBy"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"` // UTC
}

// JoinRequest is an outstanding owner-relayed OTP approval.
// It lives until matched by a successful verification; it never expires on its own,
// and several may coexist for the same (classroom, student) pair.
type JoinRequest struct {
	ID           int       `json:"id"`
	ClassroomID  int       `json:"classroomId"`
	StudentEmail string    `json:"studentEmail"`
	Code         string    `json:"-"`
	OwnerEmail   string    `json:"classOwnerEmail"`
	CreatedAt    time.Time `json:"created_at"` // UTC
}

// NewClassroom contains information needed to create a new Classroom.
type NewClassroom struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

func (nc *NewClassroom) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Description = core.CleanString(nc.Description)
	return validate.Struct(nc)
}

type NewPost struct {
	ClassroomID int    `json:"classId" validate:"required"`
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
}

func (np *NewPost) Validate(validate *validator.Validate) error {
	np.Title = core.CleanString(np.Title)
	np.Description = core.CleanString(np.Description)
	return validate.Struct(np)
}

type JoinByCode struct {
	JoinCode string `json:"joinCode" validate:"required,len=6"`
}

func (jc *JoinByCode) Validate(validate *validator.Validate) error {
	// codes are matched case-insensitively; normalize to the stored uppercase form
	jc.JoinCode = strings.ToUpper(core.CleanString(jc.JoinCode))
	return validate.Struct(jc)
}

type JoinRequestInput struct {
	ClassroomID  int    `json:"classroomId" validate:"required"`
	StudentEmail string `json:"studentEmail" validate:"required,email"`
}

func (jr *JoinRequestInput) Validate(validate *validator.Validate) error {
	jr.StudentEmail = core.CleanString(jr.StudentEmail, true /* lower */)
	return validate.Struct(jr)
}

type VerifyOTPInput struct {
	ClassroomID  int    `json:"classroomId" validate:"required"`
	StudentEmail string `json:"studentEmail" validate:"required,email"`
	Code         string `json:"otp" validate:"required,len=6,numeric"`
}

func (vo *VerifyOTPInput) Validate(validate *validator.Validate) error {
	vo.StudentEmail = core.CleanString(vo.StudentEmail, true /* lower */)
	vo.Code = core.CleanString(vo.Code)
	return validate.Struct(vo)
}
