// Package inmemdb is a map-backed implementation of every repository, honouring the
// same constraints (unique keys, cascades) as the SQL schema. Used by tests and local demos.
package inmemdb

import (
	"context"
	"sync"

	"github.com/sekolah-app/sekolah/core"
	"github.com/sekolah-app/sekolah/core/attendance"
	"github.com/sekolah-app/sekolah/core/schedule"
	"github.com/sekolah-app/sekolah/core/school"
	"github.com/sekolah-app/sekolah/core/user"
)

// DB holds every table behind a single lock so multi-table writes are atomic.
type DB struct {
	mu    sync.RWMutex
	pkSeq int64

	users     map[int64]user.User // Profile is kept in profiles
	profiles  map[int64]user.StudentProfile
	classes   map[int64]school.Class
	subjects  map[int64]school.Subject
	schedules map[int64]schedule.Schedule
	records   map[int64]attendance.Record
}

var _ core.Pinger = (*DB)(nil)

func Open() *DB {
	return &DB{
		users:     make(map[int64]user.User),
		profiles:  make(map[int64]user.StudentProfile),
		classes:   make(map[int64]school.Class),
		subjects:  make(map[int64]school.Subject),
		schedules: make(map[int64]schedule.Schedule),
		records:   make(map[int64]attendance.Record),
	}
}

func (db *DB) PingContext(context.Context) error { return nil }

// nextID must be called with the write lock held.
func (db *DB) nextID() int64 {
	db.pkSeq++
	return db.pkSeq
}

// deleteUserCascade mirrors the ON DELETE rules of the users table. Write lock held.
func (db *DB) deleteUserCascade(id int64) {
	delete(db.users, id)
	delete(db.profiles, id)
	for rid, r := range db.records {
		if r.StudentID == id {
			delete(db.records, rid)
		} else if r.RecordedBy == id {
			r.RecordedBy = 0
			db.records[rid] = r
		}
	}
	for sid, s := range db.schedules {
		if s.TeacherID == id {
			db.deleteScheduleCascade(sid)
		}
	}
}

// deleteScheduleCascade removes a schedule and the attendance recorded through it. Write lock held.
func (db *DB) deleteScheduleCascade(id int64) {
	delete(db.schedules, id)
	for rid, r := range db.records {
		if r.ScheduleID != nil && *r.ScheduleID == id {
			delete(db.records, rid)
		}
	}
}

// deleteClassCascade mirrors the ON DELETE rules of the classes table. Write lock held.
func (db *DB) deleteClassCascade(id int64) {
	delete(db.classes, id)
	for uid, p := range db.profiles {
		if p.ClassID != nil && *p.ClassID == id {
			p.ClassID = nil
			db.profiles[uid] = p
		}
	}
	for sid, s := range db.schedules {
		if s.ClassID == id {
			db.deleteScheduleCascade(sid)
		}
	}
	for rid, r := range db.records {
		if r.ClassID == id {
			delete(db.records, rid)
		}
	}
}
