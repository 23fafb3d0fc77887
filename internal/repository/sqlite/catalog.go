package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/course-review/internal/apperror"
	"github.com/sakif/course-review/internal/model"
	"github.com/sakif/course-review/internal/repository"
)

var _ repository.CatalogRepository = (*DB)(nil)

// ============================================================================
// Courses
// ============================================================================

// UpsertCourse inserts or replaces the course with the same code. Seeding
// runs it on every import, so it must be repeatable.
func (db *DB) UpsertCourse(ctx context.Context, c model.Course) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO courses (code, title_en, title_tc, title_sc, department, language)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(code) DO UPDATE SET
		   title_en = excluded.title_en, title_tc = excluded.title_tc, title_sc = excluded.title_sc,
		   department = excluded.department, language = excluded.language`,
		c.Code, c.TitleEN, c.TitleTC, c.TitleSC, c.Department, c.Language,
	)
	if err != nil {
		return fmt.Errorf("sqlite: upserting course %s: %w", c.Code, err)
	}
	return nil
}

const courseColumns = `code, title_en, title_tc, title_sc, department, language`

func scanCourse(row interface{ Scan(...any) error }) (model.Course, error) {
	var c model.Course
	err := row.Scan(&c.Code, &c.TitleEN, &c.TitleTC, &c.TitleSC, &c.Department, &c.Language)
	return c, err
}

func (db *DB) GetCourse(ctx context.Context, code string) (*model.Course, error) {
	c, err := scanCourse(db.conn.QueryRowContext(ctx,
		`SELECT `+courseColumns+` FROM courses WHERE code = ?`, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("course", code)
		}
		return nil, fmt.Errorf("sqlite: getting course %s: %w", code, err)
	}
	return &c, nil
}

func (db *DB) ListCourses(ctx context.Context) ([]model.Course, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT `+courseColumns+` FROM courses ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing courses: %w", err)
	}
	defer rows.Close()

	var out []model.Course
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning course: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ============================================================================
// Terms
// ============================================================================

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t.UTC(), Valid: !t.IsZero()}
}

func (db *DB) UpsertTerm(ctx context.Context, t model.Term) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO terms (code, name, start_date, end_date) VALUES (?, ?, ?, ?)
		 ON CONFLICT(code) DO UPDATE SET
		   name = excluded.name, start_date = excluded.start_date, end_date = excluded.end_date`,
		t.Code, t.Name, nullTime(t.StartDate), nullTime(t.EndDate),
	)
	if err != nil {
		return fmt.Errorf("sqlite: upserting term %s: %w", t.Code, err)
	}
	return nil
}

func scanTerm(row interface{ Scan(...any) error }) (model.Term, error) {
	var (
		t          model.Term
		start, end sql.NullTime
	)
	if err := row.Scan(&t.Code, &t.Name, &start, &end); err != nil {
		return t, err
	}
	t.StartDate, t.EndDate = start.Time, end.Time
	return t, nil
}

func (db *DB) GetTerm(ctx context.Context, code string) (*model.Term, error) {
	t, err := scanTerm(db.conn.QueryRowContext(ctx,
		`SELECT code, name, start_date, end_date FROM terms WHERE code = ?`, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("term", code)
		}
		return nil, fmt.Errorf("sqlite: getting term %s: %w", code, err)
	}
	return &t, nil
}

// ListTerms returns the newest term first.
func (db *DB) ListTerms(ctx context.Context) ([]model.Term, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT code, name, start_date, end_date FROM terms ORDER BY start_date DESC, code DESC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing terms: %w", err)
	}
	defer rows.Close()

	var out []model.Term
	for rows.Next() {
		t, err := scanTerm(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning term: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ============================================================================
// Instructors and teaching records
// ============================================================================

func (db *DB) UpsertInstructor(ctx context.Context, i model.Instructor) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO instructors (name, title, department, email) VALUES (?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
		   title = excluded.title, department = excluded.department, email = excluded.email`,
		i.Name, i.Title, i.Department, i.Email,
	)
	if err != nil {
		return fmt.Errorf("sqlite: upserting instructor %s: %w", i.Name, err)
	}
	return nil
}

func (db *DB) ListInstructors(ctx context.Context) ([]model.Instructor, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT name, title, department, email FROM instructors ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing instructors: %w", err)
	}
	defer rows.Close()

	var out []model.Instructor
	for rows.Next() {
		var i model.Instructor
		if err := rows.Scan(&i.Name, &i.Title, &i.Department, &i.Email); err != nil {
			return nil, fmt.Errorf("sqlite: scanning instructor: %w", err)
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

// AddTeachingRecord ignores a record that already exists. The course, term
// and instructor must exist.
func (db *DB) AddTeachingRecord(ctx context.Context, r model.TeachingRecord) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT OR IGNORE INTO teaching_records (course_code, term_code, instructor_name, session_type)
		 VALUES (?, ?, ?, ?)`,
		r.CourseCode, r.TermCode, r.InstructorName, r.SessionType,
	)
	if err != nil {
		return fmt.Errorf("sqlite: adding teaching record %s/%s/%s: %w", r.CourseCode, r.TermCode, r.Key(), err)
	}
	return nil
}

func (db *DB) queryTeachingRecords(ctx context.Context, where string, args ...any) ([]model.TeachingRecord, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT course_code, term_code, instructor_name, session_type
		 FROM teaching_records `+where+`
		 ORDER BY course_code, term_code, instructor_name, session_type`, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing teaching records: %w", err)
	}
	defer rows.Close()

	var out []model.TeachingRecord
	for rows.Next() {
		var r model.TeachingRecord
		if err := rows.Scan(&r.CourseCode, &r.TermCode, &r.InstructorName, &r.SessionType); err != nil {
			return nil, fmt.Errorf("sqlite: scanning teaching record: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (db *DB) ListTeachingRecords(ctx context.Context, courseCode string) ([]model.TeachingRecord, error) {
	return db.queryTeachingRecords(ctx, `WHERE course_code = ?`, courseCode)
}

func (db *DB) ListAllTeachingRecords(ctx context.Context) ([]model.TeachingRecord, error) {
	return db.queryTeachingRecords(ctx, ``)
}

// CourseStats averages only real scores: AVG skips the NULLs produced for
// unrated (NULL) and N/A (-1) answers.
func (db *DB) CourseStats(ctx context.Context) (map[string]model.CourseStats, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT course_code,
		       COUNT(*),
		       COALESCE(AVG(CASE WHEN course_workload     >= 0 THEN course_workload END), 0),
		       COALESCE(AVG(CASE WHEN course_difficulties >= 0 THEN course_difficulties END), 0),
		       COALESCE(AVG(CASE WHEN course_usefulness   >= 0 THEN course_usefulness END), 0),
		       SUM(has_service_learning)
		FROM reviews
		GROUP BY course_code`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: aggregating course stats: %w", err)
	}
	defer rows.Close()

	out := make(map[string]model.CourseStats)
	for rows.Next() {
		var (
			code string
			s    model.CourseStats
		)
		if err := rows.Scan(&code, &s.ReviewCount, &s.AvgWorkload, &s.AvgDifficulty, &s.AvgUsefulness, &s.ServiceLearningCount); err != nil {
			return nil, fmt.Errorf("sqlite: scanning course stats: %w", err)
		}
		out[code] = s
	}
	return out, rows.Err()
}
