package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/classroom"
)

type classroomRow struct {
	ID          int            `db:"id"`
	Name        string         `db:"name"`
	Description string         `db:"description"`
	OwnerID     int            `db:"owner_id"`
	JoinCode    string         `db:"join_code"`
	Members     pq.StringArray `db:"members"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

func (r classroomRow) toDomain() classroom.Classroom {
	return classroom.Classroom{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		OwnerID:     r.OwnerID,
		JoinCode:    r.JoinCode,
		Members:     []string(r.Members),
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

type postRow struct {
	ID          int       `db:"id"`
	ClassroomID int       `db:"classroom_id"`
	AuthorID    int       `db:"author_id"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r postRow) toDomain() classroom.Post {
	return classroom.Post{
		ID:          r.ID,
		ClassroomID: r.ClassroomID,
		AuthorID:    r.AuthorID,
		Title:       r.Title,
		Description: r.Description,
		CreatedAt:   r.CreatedAt.UTC(),
	}
}

type joinRequestRow struct {
	ID           int       `db:"id"`
	ClassroomID  int       `db:"classroom_id"`
	StudentEmail string    `db:"student_email"`
	Code         string    `db:"code"`
	OwnerEmail   string    `db:"owner_email"`
	CreatedAt    time.Time `db:"created_at"`
}

func (r joinRequestRow) toDomain() classroom.JoinRequest {
	return classroom.JoinRequest{
		ID:           r.ID,
		ClassroomID:  r.ClassroomID,
		StudentEmail: r.StudentEmail,
		Code:         r.Code,
		OwnerEmail:   r.OwnerEmail,
		CreatedAt:    r.CreatedAt.UTC(),
	}
}

// classroomQuery loads classrooms with their member emails aggregated in one round-trip.
const classroomQuery = `
SELECT c.id, c.name, c.description, c.owner_id, c.join_code, c.created_at, c.updated_at,
       COALESCE(array_agg(m.email ORDER BY m.joined_at) FILTER (WHERE m.email IS NOT NULL), '{}') AS members
FROM classroom c
LEFT JOIN classroom_member m ON m.classroom_id = c.id
`

type classroomRepository struct {
	db *sqlx.DB
}

var _ classroom.Repository = (*classroomRepository)(nil) // interface compliance check

func NewClassroomRepository(db *sqlx.DB) classroom.Repository {
	return &classroomRepository{db: db}
}

func (repo *classroomRepository) CreateClassroom(ctx context.Context, cls classroom.Classroom) (classroom.Classroom, error) {
	q := `INSERT INTO classroom (name, description, owner_id, join_code, created_at, updated_at)
	      VALUES ($1, $2, $3, $4, $5, $6)
	      RETURNING id`
	err := repo.db.QueryRowContext(
		ctx, q,
		cls.Name, cls.Description, cls.OwnerID, cls.JoinCode, cls.CreatedAt, cls.UpdatedAt,
	).Scan(&cls.ID)
	if err != nil {
		if violatesUnique(err, "classroom_join_code_key") {
			return classroom.Classroom{}, classroom.ErrJoinCodeExists
		}
		return classroom.Classroom{}, errors.Wrap(err, "inserting classroom")
	}
	cls.Members = []string{}
	return cls, nil
}

func (repo *classroomRepository) getClassroom(ctx context.Context, where string, arg interface{}) (classroom.Classroom, error) {
	var row classroomRow
	q := classroomQuery + where + " GROUP BY c.id"
	if err := repo.db.GetContext(ctx, &row, q, arg); err != nil {
		if isNoRows(err) {
			return classroom.Classroom{}, classroom.ErrNotFound
		}
		return classroom.Classroom{}, errors.Wrap(err, "getting classroom")
	}
	return row.toDomain(), nil
}

func (repo *classroomRepository) queryClassrooms(ctx context.Context, where string, arg interface{}) ([]classroom.Classroom, error) {
	var rows []classroomRow
	q := classroomQuery + where + " GROUP BY c.id ORDER BY c.created_at DESC"
	if err := repo.db.SelectContext(ctx, &rows, q, arg); err != nil {
		return nil, errors.Wrap(err, "querying classrooms")
	}
	classrooms := make([]classroom.Classroom, 0, len(rows))
	for _, row := range rows {
		classrooms = append(classrooms, row.toDomain())
	}
	return classrooms, nil
}

func (repo *classroomRepository) GetClassroomByID(ctx context.Context, id int) (classroom.Classroom, error) {
	return repo.getClassroom(ctx, "WHERE c.id = $1", id)
}

func (repo *classroomRepository) GetClassroomByJoinCode(ctx context.Context, code string) (classroom.Classroom, error) {
	return repo.getClassroom(ctx, "WHERE c.join_code = $1", code)
}

func (repo *classroomRepository) QueryClassroomsByOwner(ctx context.Context, ownerID int) ([]classroom.Classroom, error) {
	return repo.queryClassrooms(ctx, "WHERE c.owner_id = $1", ownerID)
}

func (repo *classroomRepository) QueryClassroomsByMember(ctx context.Context, email string) ([]classroom.Classroom, error) {
	return repo.queryClassrooms(
		ctx, "WHERE EXISTS (SELECT 1 FROM classroom_member cm WHERE cm.classroom_id = c.id AND cm.email = $1)", email)
}

func (repo *classroomRepository) SearchClassrooms(ctx context.Context, term string) ([]classroom.Classroom, error) {
	return repo.queryClassrooms(ctx, "WHERE c.name ILIKE '%' || $1 || '%'", term)
}

func (repo *classroomRepository) AddMember(ctx context.Context, classroomID int, email string) error {
	q := `INSERT INTO classroom_member (classroom_id, email) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	res, err := repo.db.ExecContext(ctx, q, classroomID, email)
	if err != nil {
		return errors.Wrap(err, "inserting member")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return classroom.ErrAlreadyMember
	}
	return nil
}

func (repo *classroomRepository) CreatePost(ctx context.Context, post classroom.Post) (classroom.Post, error) {
	q := `INSERT INTO post (classroom_id, author_id, title, description, created_at)
	      VALUES ($1, $2, $3, $4, $5)
	      RETURNING id`
	err := repo.db.QueryRowContext(
		ctx, q,
		post.ClassroomID, post.AuthorID, post.Title, post.Description, post.CreatedAt,
	).Scan(&post.ID)
	if err != nil {
		return classroom.Post{}, errors.Wrap(err, "inserting post")
	}
	return post, nil
}

func (repo *classroomRepository) QueryPostsByClassroom(ctx context.Context, classroomID int) ([]classroom.Post, error) {
	var rows []postRow
	q := `SELECT * FROM post WHERE classroom_id = $1 ORDER BY created_at DESC`
	if err := repo.db.SelectContext(ctx, &rows, q, classroomID); err != nil {
		return nil, errors.Wrap(err, "querying posts")
	}
	posts := make([]classroom.Post, 0, len(rows))
	for _, row := range rows {
		posts = append(posts, row.toDomain())
	}
	return posts, nil
}

func (repo *classroomRepository) CreateJoinRequest(ctx context.Context, req classroom.JoinRequest) (classroom.JoinRequest, error) {
	q := `INSERT INTO classroom_join_request (classroom_id, student_email, code, owner_email, created_at)
	      VALUES ($1, $2, $3, $4, $5)
	      RETURNING id`
	err := repo.db.QueryRowContext(
		ctx, q,
		req.ClassroomID, req.StudentEmail, req.Code, req.OwnerEmail, req.CreatedAt,
	).Scan(&req.ID)
	if err != nil {
		return classroom.JoinRequest{}, errors.Wrap(err, "inserting join request")
	}
	return req, nil
}

func (repo *classroomRepository) GetJoinRequest(ctx context.Context, classroomID int, studentEmail, code string) (classroom.JoinRequest, error) {
	var row joinRequestRow
	q := `SELECT * FROM classroom_join_request WHERE classroom_id = $1 AND student_email = $2 AND code = $3`
	if err := repo.db.GetContext(ctx, &row, q, classroomID, studentEmail, code); err != nil {
		if isNoRows(err) {
			return classroom.JoinRequest{}, classroom.ErrJoinRequestNotFound
		}
		return classroom.JoinRequest{}, errors.Wrap(err, "getting join request")
	}
	return row.toDomain(), nil
}

func (repo *classroomRepository) DeleteJoinRequest(ctx context.Context, id int) error {
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM classroom_join_request WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting join request")
	}
	return nil
}
