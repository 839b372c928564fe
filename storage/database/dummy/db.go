// Package dummydb provides in-memory repositories for tests and local hacking.
package dummydb

import (
	"sync"

	"github.com/trezcool/darasa/core/assignment"
	"github.com/trezcool/darasa/core/classroom"
	"github.com/trezcool/darasa/core/user"
)

type (
	DB struct {
		user       *userTable
		classroom  *classroomTable
		assignment *assignmentTable
	}

	userTable struct {
		sync.RWMutex
		pkCount int
		table   map[int]*user.User
	}

	classroomTable struct {
		sync.RWMutex
		pkCount      int
		table        map[int]*classroom.Classroom
		posts        map[int]*classroom.Post
		joinRequests map[int]*classroom.JoinRequest
	}

	assignmentTable struct {
		sync.RWMutex
		pkCount     int
		table       map[int]*assignment.Assignment
		submissions map[int]*assignment.Submission
	}
)

func Open() (*DB, error) {
	db := &DB{
		user: &userTable{table: make(map[int]*user.User)},
		classroom: &classroomTable{
			table:        make(map[int]*classroom.Classroom),
			posts:        make(map[int]*classroom.Post),
			joinRequests: make(map[int]*classroom.JoinRequest),
		},
		assignment: &assignmentTable{
			table:       make(map[int]*assignment.Assignment),
			submissions: make(map[int]*assignment.Submission),
		},
	}
	return db, nil
}
