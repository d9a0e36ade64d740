package inmemdb

import (
	"sync"

	"github.com/shulebox/backend/core/game"
	"github.com/shulebox/backend/core/student"
	"github.com/shulebox/backend/core/teacher"
)

type (
	DB struct {
		student *studentTable
		teacher *teacherTable
		game    *gameTable
	}

	studentTable struct {
		sync.RWMutex
		table map[string]*student.Student
	}

	teacherTable struct {
		sync.RWMutex
		table map[string]*teacher.Teacher
	}

	gameTable struct {
		sync.RWMutex
		table map[string]*game.Game
	}
)

func Open() (*DB, error) {
	db := &DB{
		student: &studentTable{table: make(map[string]*student.Student)},
		teacher: &teacherTable{table: make(map[string]*teacher.Teacher)},
		game:    &gameTable{table: make(map[string]*game.Game)},
	}
	return db, nil
}

// Reset drops all rows. Tests use it to start from a clean slate without
// rebinding repositories.
func (db *DB) Reset() {
	db.student.Lock()
	db.student.table = make(map[string]*student.Student)
	db.student.Unlock()

	db.teacher.Lock()
	db.teacher.table = make(map[string]*teacher.Teacher)
	db.teacher.Unlock()

	db.game.Lock()
	db.game.table = make(map[string]*game.Game)
	db.game.Unlock()
}
