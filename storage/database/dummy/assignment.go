package dummydb

import (
	"context"
	"sort"

	"github.com/trezcool/darasa/core/assignment"
)

type assignmentRepository struct {
	db    *assignmentTable
	users *userTable
}

var _ assignment.Repository = (*assignmentRepository)(nil) // interface compliance check

func NewAssignmentRepository(db *DB) assignment.Repository {
	return &assignmentRepository{db: db.assignment, users: db.user}
}

func (repo *assignmentRepository) CreateAssignment(ctx context.Context, a assignment.Assignment) (assignment.Assignment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.pkCount++
	a.ID = repo.db.pkCount
	repo.db.table[a.ID] = &a
	return a, nil
}

func (repo *assignmentRepository) GetAssignmentByID(ctx context.Context, id int) (assignment.Assignment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if a, ok := repo.db.table[id]; ok {
		return *a, nil
	}
	return assignment.Assignment{}, assignment.ErrNotFound
}

func (repo *assignmentRepository) QueryAssignmentsByClassroom(ctx context.Context, classroomID int) ([]assignment.Assignment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	assignments := make([]assignment.Assignment, 0)
	for _, a := range repo.db.table {
		if a.ClassroomID == classroomID {
			assignments = append(assignments, *a)
		}
	}
	// newest-first
	sort.Slice(assignments, func(i, j int) bool { return assignments[i].ID > assignments[j].ID })
	return assignments, nil
}

func (repo *assignmentRepository) UpdateAssignment(ctx context.Context, a assignment.Assignment) (assignment.Assignment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[a.ID]; !ok {
		return assignment.Assignment{}, assignment.ErrNotFound
	}
	repo.db.table[a.ID] = &a
	return a, nil
}

func (repo *assignmentRepository) DeleteAssignment(ctx context.Context, id int) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	delete(repo.db.table, id)
	for sid, sub := range repo.db.submissions {
		if sub.AssignmentID == id {
			delete(repo.db.submissions, sid)
		}
	}
	return nil
}

func (repo *assignmentRepository) CreateSubmission(ctx context.Context, s assignment.Submission) (assignment.Submission, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, sub := range repo.db.submissions {
		if sub.AssignmentID == s.AssignmentID && sub.StudentID == s.StudentID {
			return assignment.Submission{}, assignment.ErrSubmissionExists
		}
	}

	repo.db.pkCount++
	s.ID = repo.db.pkCount
	repo.db.submissions[s.ID] = &s
	return s, nil
}

func (repo *assignmentRepository) resolveStudent(sub assignment.Submission) assignment.Submission {
	repo.users.RLock()
	defer repo.users.RUnlock()

	if usr, ok := repo.users.table[sub.StudentID]; ok {
		sub.StudentName = usr.Name
		sub.StudentEmail = usr.Email
	}
	return sub
}

func (repo *assignmentRepository) GetSubmission(ctx context.Context, assignmentID, studentID int) (assignment.Submission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, sub := range repo.db.submissions {
		if sub.AssignmentID == assignmentID && sub.StudentID == studentID {
			return repo.resolveStudent(*sub), nil
		}
	}
	return assignment.Submission{}, assignment.ErrSubmissionNotFound
}

func (repo *assignmentRepository) QuerySubmissionsByAssignment(ctx context.Context, assignmentID int) ([]assignment.Submission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	submissions := make([]assignment.Submission, 0)
	for _, sub := range repo.db.submissions {
		if sub.AssignmentID == assignmentID {
			submissions = append(submissions, repo.resolveStudent(*sub))
		}
	}
	// newest-first
	sort.Slice(submissions, func(i, j int) bool { return submissions[i].ID > submissions[j].ID })
	return submissions, nil
}
