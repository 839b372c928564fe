package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/darasa/core/classroom"
)

type classroomRepository struct {
	db *classroomTable
}

var _ classroom.Repository = (*classroomRepository)(nil) // interface compliance check

func NewClassroomRepository(db *DB) classroom.Repository {
	return &classroomRepository{db: db.classroom}
}

func copyClassroom(cls classroom.Classroom) classroom.Classroom {
	cls.Members = append([]string{}, cls.Members...)
	cls.Posts = nil
	return cls
}

func sortClassrooms(classrooms []classroom.Classroom) {
	// newest-first
	sort.Slice(classrooms, func(i, j int) bool { return classrooms[i].ID > classrooms[j].ID })
}

func (repo *classroomRepository) CreateClassroom(ctx context.Context, cls classroom.Classroom) (classroom.Classroom, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, c := range repo.db.table {
		if c.JoinCode == cls.JoinCode {
			return classroom.Classroom{}, classroom.ErrJoinCodeExists
		}
	}

	repo.db.pkCount++
	cls.ID = repo.db.pkCount
	cls.Members = []string{}
	stored := cls
	repo.db.table[cls.ID] = &stored
	return cls, nil
}

func (repo *classroomRepository) GetClassroomByID(ctx context.Context, id int) (classroom.Classroom, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if cls, ok := repo.db.table[id]; ok {
		return copyClassroom(*cls), nil
	}
	return classroom.Classroom{}, classroom.ErrNotFound
}

func (repo *classroomRepository) GetClassroomByJoinCode(ctx context.Context, code string) (classroom.Classroom, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, cls := range repo.db.table {
		if cls.JoinCode == code {
			return copyClassroom(*cls), nil
		}
	}
	return classroom.Classroom{}, classroom.ErrNotFound
}

func (repo *classroomRepository) QueryClassroomsByOwner(ctx context.Context, ownerID int) ([]classroom.Classroom, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	classrooms := make([]classroom.Classroom, 0)
	for _, cls := range repo.db.table {
		if cls.OwnerID == ownerID {
			classrooms = append(classrooms, copyClassroom(*cls))
		}
	}
	sortClassrooms(classrooms)
	return classrooms, nil
}

func (repo *classroomRepository) QueryClassroomsByMember(ctx context.Context, email string) ([]classroom.Classroom, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	classrooms := make([]classroom.Classroom, 0)
	for _, cls := range repo.db.table {
		if cls.HasMember(email) {
			classrooms = append(classrooms, copyClassroom(*cls))
		}
	}
	sortClassrooms(classrooms)
	return classrooms, nil
}

func (repo *classroomRepository) SearchClassrooms(ctx context.Context, term string) ([]classroom.Classroom, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	term = strings.ToLower(term)
	classrooms := make([]classroom.Classroom, 0)
	for _, cls := range repo.db.table {
		if strings.Contains(strings.ToLower(cls.Name), term) {
			classrooms = append(classrooms, copyClassroom(*cls))
		}
	}
	sortClassrooms(classrooms)
	return classrooms, nil
}

func (repo *classroomRepository) AddMember(ctx context.Context, classroomID int, email string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	cls, ok := repo.db.table[classroomID]
	if !ok {
		return classroom.ErrNotFound
	}
	if cls.HasMember(email) {
		return classroom.ErrAlreadyMember
	}
	cls.Members = append(cls.Members, email)
	return nil
}

func (repo *classroomRepository) CreatePost(ctx context.Context, post classroom.Post) (classroom.Post, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.pkCount++
	post.ID = repo.db.pkCount
	repo.db.posts[post.ID] = &post
	return post, nil
}

func (repo *classroomRepository) QueryPostsByClassroom(ctx context.Context, classroomID int) ([]classroom.Post, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	posts := make([]classroom.Post, 0)
	for _, post := range repo.db.posts {
		if post.ClassroomID == classroomID {
			posts = append(posts, *post)
		}
	}
	sort.Slice(posts, func(i, j int) bool { return posts[i].ID > posts[j].ID })
	return posts, nil
}

func (repo *classroomRepository) CreateJoinRequest(ctx context.Context, req classroom.JoinRequest) (classroom.JoinRequest, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.pkCount++
	req.ID = repo.db.pkCount
	repo.db.joinRequests[req.ID] = &req
	return req, nil
}

func (repo *classroomRepository) GetJoinRequest(ctx context.Context, classroomID int, studentEmail, code string) (classroom.JoinRequest, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, req := range repo.db.joinRequests {
		if req.ClassroomID == classroomID && req.StudentEmail == studentEmail && req.Code == code {
			return *req, nil
		}
	}
	return classroom.JoinRequest{}, classroom.ErrJoinRequestNotFound
}

func (repo *classroomRepository) DeleteJoinRequest(ctx context.Context, id int) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	delete(repo.db.joinRequests, id)
	return nil
}
