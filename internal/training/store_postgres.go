package training

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nguyenbaduy011/IE221-fe-sub000/internal/curriculum"
)

const dbTimeout = 5 * time.Second

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore is a PostgreSQL-backed Store implementation.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a PostgreSQL-backed store. The schema must already
// be applied (see database.DB.Migrate).
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) ListSubjects(ctx context.Context) ([]curriculum.Subject, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT id::text, name, estimated_time_days, max_score
		 FROM subjects
		 ORDER BY name, id`)
	if err != nil {
		return nil, s.fail("query subjects", err)
	}
	subjects, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (curriculum.Subject, error) {
		var subj curriculum.Subject
		err := row.Scan(&subj.ID, &subj.Name, &subj.EstimatedTimeDays, &subj.MaxScore)
		return subj, err
	})
	if err != nil {
		return nil, s.fail("scan subjects", err)
	}

	templates, err := s.templateTasks(ctx, s.pool, "")
	if err != nil {
		return nil, err
	}
	for i := range subjects {
		subjects[i].Tasks = templates[subjects[i].ID]
	}
	return subjects, nil
}

func (s *PostgresStore) CreateSubject(ctx context.Context, subj curriculum.Subject) (curriculum.Subject, error) {
	if err := subj.Validate(); err != nil {
		return curriculum.Subject{}, &ValidationError{Field: "subject", Message: err.Error()}
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	subj.Name = curriculum.CleanName(subj.Name)
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx,
			`INSERT INTO subjects (name, estimated_time_days, max_score)
			 VALUES ($1, $2, $3)
			 RETURNING id::text`,
			subj.Name,
			subj.EstimatedTimeDays,
			subj.MaxScore,
		).Scan(&subj.ID); err != nil {
			return fmt.Errorf("insert subject: %w", err)
		}

		tasks := make([]curriculum.Task, 0, len(subj.Tasks))
		for i, t := range subj.Tasks {
			task := curriculum.Task{SubjectID: subj.ID, Name: curriculum.CleanName(t.Name), Position: i + 1}
			if err := tx.QueryRow(ctx,
				`INSERT INTO subject_tasks (subject_id, name, position)
				 VALUES ($1::uuid, $2, $3)
				 RETURNING id::text`,
				subj.ID,
				task.Name,
				task.Position,
			).Scan(&task.ID); err != nil {
				return fmt.Errorf("insert subject task: %w", err)
			}
			tasks = append(tasks, task)
		}
		subj.Tasks = tasks
		return nil
	})
	if err != nil {
		return curriculum.Subject{}, s.fail("create subject", err)
	}
	return subj, nil
}

func (s *PostgresStore) GetSubject(ctx context.Context, id string) (curriculum.Subject, error) {
	if err := checkUUID("subject", id); err != nil {
		return curriculum.Subject{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	subj := curriculum.Subject{}
	err := s.pool.QueryRow(ctx,
		`SELECT id::text, name, estimated_time_days, max_score
		 FROM subjects
		 WHERE id = $1::uuid`,
		id,
	).Scan(&subj.ID, &subj.Name, &subj.EstimatedTimeDays, &subj.MaxScore)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return curriculum.Subject{}, notFound("subject", id)
		}
		return curriculum.Subject{}, s.fail("get subject", err)
	}

	templates, err := s.templateTasks(ctx, s.pool, id)
	if err != nil {
		return curriculum.Subject{}, err
	}
	subj.Tasks = templates[id]
	return subj, nil
}

func (s *PostgresStore) FetchCurriculum(ctx context.Context, courseID string) ([]CourseSubject, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx, courseSubjectSelect+`
		 WHERE cs.course_id = $1
		 ORDER BY cs.position, cs.id`,
		courseID,
	)
	if err != nil {
		return nil, s.fail("query curriculum", err)
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (CourseSubject, error) {
		return scanCourseSubject(row)
	})
	if err != nil {
		return nil, s.fail("scan curriculum", err)
	}

	tasks, err := s.instanceTasks(ctx, s.pool,
		`WHERE t.course_subject_id IN (SELECT id FROM course_subjects WHERE course_id = $1)`, courseID)
	if err != nil {
		return nil, err
	}
	for i := range list {
		list[i].Tasks = tasks[list[i].ID]
		if list[i].Tasks == nil {
			list[i].Tasks = []curriculum.Task{}
		}
	}
	return list, nil
}

func (s *PostgresStore) GetCourseSubject(ctx context.Context, id string) (CourseSubject, error) {
	if err := checkUUID("course subject", id); err != nil {
		return CourseSubject{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	cs, err := s.getCourseSubject(ctx, s.pool, id)
	if err != nil {
		return CourseSubject{}, s.fail("get course subject", err)
	}
	return cs, nil
}

func (s *PostgresStore) AttachSubject(ctx context.Context, req NewCourseSubject) (CourseSubject, error) {
	if err := checkDateRange("planned dates", req.PlannedStartDate, req.PlannedFinishDate); err != nil {
		return CourseSubject{}, err
	}
	if err := checkUUID("subject", req.SubjectID); err != nil {
		return CourseSubject{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var cs CourseSubject
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := lockCourse(ctx, tx, req.CourseID); err != nil {
			return err
		}

		var id string
		err := tx.QueryRow(ctx,
			`INSERT INTO course_subjects (course_id, subject_id, position, planned_start_date, planned_finish_date)
			 SELECT $1, s.id, COALESCE((SELECT MAX(position) FROM course_subjects WHERE course_id = $1), 0) + 1, $3, $4
			 FROM subjects s
			 WHERE s.id = $2::uuid
			 RETURNING id::text`,
			req.CourseID,
			req.SubjectID,
			DayPtr(req.PlannedStartDate),
			DayPtr(req.PlannedFinishDate),
		).Scan(&id)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return notFound("subject", req.SubjectID)
			}
			return fmt.Errorf("insert course subject: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO tasks (course_subject_id, subject_id, name, position)
			 SELECT $1::uuid, subject_id, name, position
			 FROM subject_tasks
			 WHERE subject_id = $2::uuid`,
			id,
			req.SubjectID,
		); err != nil {
			return fmt.Errorf("copy template tasks: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO trainee_task_statuses (trainee_id, task_id, status)
			 SELECT e.trainee_id, t.id, 'NOT_DONE'
			 FROM enrollments e
			 JOIN tasks t ON t.course_subject_id = $1::uuid
			 WHERE e.course_id = $2
			 ON CONFLICT DO NOTHING`,
			id,
			req.CourseID,
		); err != nil {
			return fmt.Errorf("create task statuses: %w", err)
		}

		cs, err = s.getCourseSubject(ctx, tx, id)
		return err
	})
	if err != nil {
		return CourseSubject{}, s.fail("attach subject", err)
	}
	return cs, nil
}

func (s *PostgresStore) RemoveCourseSubject(ctx context.Context, id string) error {
	if err := checkUUID("course subject", id); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	// tasks, trainee_task_statuses and trainee_subject_progress cascade.
	cmd, err := s.pool.Exec(ctx, `DELETE FROM course_subjects WHERE id = $1::uuid`, id)
	if err != nil {
		return s.fail("remove course subject", err)
	}
	if cmd.RowsAffected() == 0 {
		return notFound("course subject", id)
	}
	return nil
}

func (s *PostgresStore) UpdateCourseSubject(ctx context.Context, id string, patch CourseSubjectPatch) (CourseSubject, error) {
	if err := checkUUID("course subject", id); err != nil {
		return CourseSubject{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var cs CourseSubject
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var subjectID string
		var start, finish *time.Time
		err := tx.QueryRow(ctx,
			`SELECT subject_id::text, planned_start_date, planned_finish_date
			 FROM course_subjects
			 WHERE id = $1::uuid
			 FOR UPDATE`,
			id,
		).Scan(&subjectID, &start, &finish)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return notFound("course subject", id)
			}
			return fmt.Errorf("lock course subject: %w", err)
		}

		start, finish = patch.Dates(start, finish)
		if err := checkDateRange("planned dates", start, finish); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx,
			`UPDATE course_subjects
			 SET planned_start_date = $2, planned_finish_date = $3, updated_at = NOW()
			 WHERE id = $1::uuid`,
			id, start, finish,
		); err != nil {
			return fmt.Errorf("update course subject: %w", err)
		}

		if patch.Name != nil || patch.EstimatedTimeDays != nil {
			var name *string
			if patch.Name != nil {
				cleaned := curriculum.CleanName(*patch.Name)
				name = &cleaned
			}
			if _, err := tx.Exec(ctx,
				`UPDATE subjects
				 SET name = COALESCE($2::text, name),
				     estimated_time_days = COALESCE($3::int, estimated_time_days)
				 WHERE id = $1::uuid`,
				subjectID, name, patch.EstimatedTimeDays,
			); err != nil {
				return fmt.Errorf("update subject: %w", err)
			}
		}

		cs, err = s.getCourseSubject(ctx, tx, id)
		return err
	})
	if err != nil {
		return CourseSubject{}, s.fail("update course subject", err)
	}
	return cs, nil
}

func (s *PostgresStore) Reorder(ctx context.Context, courseID string, placements []Placement) error {
	ids := make([]string, len(placements))
	positions := make([]int, len(placements))
	for i, p := range placements {
		ids[i] = p.ID
		positions[i] = p.Position
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := lockCourse(ctx, tx, courseID); err != nil {
			return err
		}

		rows, err := tx.Query(ctx, `SELECT id::text FROM course_subjects WHERE course_id = $1`, courseID)
		if err != nil {
			return fmt.Errorf("query course subjects: %w", err)
		}
		current, err := pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return fmt.Errorf("scan course subjects: %w", err)
		}
		if err := CheckOrdering(courseID, current, ids); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx,
			`UPDATE course_subjects AS cs
			 SET position = v.position, updated_at = NOW()
			 FROM unnest($2::text[], $3::int[]) AS v(id, position)
			 WHERE cs.id = v.id::uuid AND cs.course_id = $1`,
			courseID, ids, positions,
		); err != nil {
			return fmt.Errorf("update positions: %w", err)
		}
		return nil
	})
	return s.fail("reorder", err)
}

func (s *PostgresStore) CoursesUsingSubject(ctx context.Context, subjectID string) ([]string, error) {
	if err := checkUUID("subject", subjectID); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT course_id FROM course_subjects WHERE subject_id = $1::uuid ORDER BY course_id`,
		subjectID,
	)
	if err != nil {
		return nil, s.fail("query courses", err)
	}
	courses, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, s.fail("scan courses", err)
	}
	return courses, nil
}

func (s *PostgresStore) GetTask(ctx context.Context, id string) (curriculum.Task, error) {
	if err := checkUUID("task", id); err != nil {
		return curriculum.Task{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	task, err := getTask(ctx, s.pool, id)
	if err != nil {
		return curriculum.Task{}, s.fail("get task", err)
	}
	return task, nil
}

func (s *PostgresStore) AddTask(ctx context.Context, courseSubjectID, name string) (curriculum.Task, error) {
	if err := checkUUID("course subject", courseSubjectID); err != nil {
		return curriculum.Task{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var task curriculum.Task
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var courseID string
		if err := tx.QueryRow(ctx,
			`SELECT course_id FROM course_subjects WHERE id = $1::uuid`,
			courseSubjectID,
		).Scan(&courseID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return notFound("course subject", courseSubjectID)
			}
			return fmt.Errorf("get course subject: %w", err)
		}
		// Course lock before row lock, the order reorder uses.
		if err := lockCourse(ctx, tx, courseID); err != nil {
			return err
		}
		var locked bool
		if err := tx.QueryRow(ctx,
			`SELECT true FROM course_subjects WHERE id = $1::uuid FOR UPDATE`,
			courseSubjectID,
		).Scan(&locked); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return notFound("course subject", courseSubjectID)
			}
			return fmt.Errorf("lock course subject: %w", err)
		}
		if err := checkTaskNameTx(ctx, tx, courseSubjectID, "", name); err != nil {
			return err
		}

		var err error
		task, err = scanTask(tx.QueryRow(ctx,
			`INSERT INTO tasks (course_subject_id, subject_id, name, position)
			 SELECT cs.id, cs.subject_id, $2,
			        COALESCE((SELECT MAX(position) FROM tasks WHERE course_subject_id = cs.id), 0) + 1
			 FROM course_subjects cs
			 WHERE cs.id = $1::uuid
			 RETURNING id::text, subject_id::text, course_subject_id::text, name, position`,
			courseSubjectID,
			curriculum.CleanName(name),
		))
		if err != nil {
			return fmt.Errorf("insert task: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO trainee_task_statuses (trainee_id, task_id, status)
			 SELECT trainee_id, $2::uuid, 'NOT_DONE'
			 FROM enrollments
			 WHERE course_id = $1
			 ON CONFLICT DO NOTHING`,
			courseID,
			task.ID,
		); err != nil {
			return fmt.Errorf("create task statuses: %w", err)
		}
		return nil
	})
	if err != nil {
		return curriculum.Task{}, s.fail("add task", err)
	}
	return task, nil
}

func (s *PostgresStore) RenameTask(ctx context.Context, id, name string) (curriculum.Task, error) {
	if err := checkUUID("task", id); err != nil {
		return curriculum.Task{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var task curriculum.Task
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		current, err := getTask(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`SELECT 1 FROM course_subjects WHERE id = $1::uuid FOR UPDATE`,
			current.CourseSubjectID,
		); err != nil {
			return fmt.Errorf("lock course subject: %w", err)
		}
		if err := checkTaskNameTx(ctx, tx, current.CourseSubjectID, id, name); err != nil {
			return err
		}

		task, err = scanTask(tx.QueryRow(ctx,
			`UPDATE tasks SET name = $2
			 WHERE id = $1::uuid
			 RETURNING id::text, subject_id::text, course_subject_id::text, name, position`,
			id,
			curriculum.CleanName(name),
		))
		if err != nil {
			return fmt.Errorf("update task: %w", err)
		}
		return nil
	})
	if err != nil {
		return curriculum.Task{}, s.fail("rename task", err)
	}
	return task, nil
}

func (s *PostgresStore) DeleteTask(ctx context.Context, id string) error {
	if err := checkUUID("task", id); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	// trainee_task_statuses cascade.
	cmd, err := s.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1::uuid`, id)
	if err != nil {
		return s.fail("delete task", err)
	}
	if cmd.RowsAffected() == 0 {
		return notFound("task", id)
	}
	return nil
}

func (s *PostgresStore) Enroll(ctx context.Context, courseID, traineeID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	created := false
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := lockCourse(ctx, tx, courseID); err != nil {
			return err
		}
		cmd, err := tx.Exec(ctx,
			`INSERT INTO enrollments (course_id, trainee_id)
			 VALUES ($1, $2)
			 ON CONFLICT DO NOTHING`,
			courseID, traineeID,
		)
		if err != nil {
			return fmt.Errorf("insert enrollment: %w", err)
		}
		if cmd.RowsAffected() == 0 {
			return nil
		}
		created = true

		if _, err := tx.Exec(ctx,
			`INSERT INTO trainee_task_statuses (trainee_id, task_id, status)
			 SELECT $2, t.id, 'NOT_DONE'
			 FROM tasks t
			 JOIN course_subjects cs ON cs.id = t.course_subject_id
			 WHERE cs.course_id = $1
			 ON CONFLICT DO NOTHING`,
			courseID, traineeID,
		); err != nil {
			return fmt.Errorf("create task statuses: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, s.fail("enroll", err)
	}
	return created, nil
}

func (s *PostgresStore) ListEnrolled(ctx context.Context, courseID string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT trainee_id FROM enrollments WHERE course_id = $1 ORDER BY trainee_id`,
		courseID,
	)
	if err != nil {
		return nil, s.fail("query enrollments", err)
	}
	trainees, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, s.fail("scan enrollments", err)
	}
	return trainees, nil
}

func (s *PostgresStore) FetchProgress(ctx context.Context, courseSubjectID, traineeID string) (Progress, error) {
	if err := checkUUID("course subject", courseSubjectID); err != nil {
		return Progress{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var p Progress
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := ensureProgress(ctx, tx, courseSubjectID, traineeID); err != nil {
			return err
		}
		var err error
		p, err = readProgress(ctx, tx, courseSubjectID, traineeID)
		return err
	})
	if err != nil {
		return Progress{}, s.fail("fetch progress", err)
	}
	return p, nil
}

func (s *PostgresStore) SetTaskStatus(ctx context.Context, taskID, traineeID string, status TaskStatus) error {
	if err := checkUUID("task", taskID); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		task, err := getTask(ctx, tx, taskID)
		if err != nil {
			return err
		}
		if err := ensureProgress(ctx, tx, task.CourseSubjectID, traineeID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO trainee_task_statuses (trainee_id, task_id, status, updated_at)
			 VALUES ($1, $2::uuid, $3, NOW())
			 ON CONFLICT (trainee_id, task_id)
			 DO UPDATE SET status = EXCLUDED.status, updated_at = EXCLUDED.updated_at`,
			traineeID, taskID, string(status),
		); err != nil {
			return fmt.Errorf("upsert task status: %w", err)
		}
		return nil
	})
	return s.fail("set task status", err)
}

func (s *PostgresStore) SaveCompletion(ctx context.Context, c Completion) error {
	if err := checkDateRange("actual dates", c.ActualStartDate, c.ActualFinishDate); err != nil {
		return err
	}
	if err := checkUUID("course subject", c.CourseSubjectID); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := ensureProgress(ctx, tx, c.CourseSubjectID, c.TraineeID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`UPDATE trainee_subject_progress
			 SET status = $3, actual_start_date = $4, actual_finish_date = $5, updated_at = NOW()
			 WHERE trainee_id = $1 AND course_subject_id = $2::uuid`,
			c.TraineeID, c.CourseSubjectID, string(c.Status),
			DayPtr(c.ActualStartDate), DayPtr(c.ActualFinishDate),
		); err != nil {
			return fmt.Errorf("update progress: %w", err)
		}
		if !c.MarkAllDone {
			return nil
		}
		if _, err := tx.Exec(ctx,
			`UPDATE trainee_task_statuses
			 SET status = 'DONE', updated_at = NOW()
			 WHERE trainee_id = $1
			   AND task_id IN (SELECT id FROM tasks WHERE course_subject_id = $2::uuid)`,
			c.TraineeID, c.CourseSubjectID,
		); err != nil {
			return fmt.Errorf("mark tasks done: %w", err)
		}
		return nil
	})
	return s.fail("save completion", err)
}

func (s *PostgresStore) SaveAssessment(ctx context.Context, a Assessment) error {
	if err := checkUUID("course subject", a.CourseSubjectID); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := ensureProgress(ctx, tx, a.CourseSubjectID, a.TraineeID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`UPDATE trainee_subject_progress
			 SET score = $3, supervisor_comment = $4, comment_updated_at = $5, updated_at = NOW()
			 WHERE trainee_id = $1 AND course_subject_id = $2::uuid`,
			a.TraineeID, a.CourseSubjectID, a.Score, a.SupervisorComment, a.CommentUpdatedAt,
		); err != nil {
			return fmt.Errorf("update assessment: %w", err)
		}
		return nil
	})
	return s.fail("save assessment", err)
}

const courseSubjectSelect = `SELECT cs.id::text, cs.course_id, cs.subject_id::text, cs.position,
		        cs.planned_start_date, cs.planned_finish_date,
		        s.name, s.estimated_time_days, s.max_score
		 FROM course_subjects cs
		 JOIN subjects s ON s.id = cs.subject_id`

func scanCourseSubject(row pgx.Row) (CourseSubject, error) {
	var cs CourseSubject
	err := row.Scan(
		&cs.ID,
		&cs.CourseID,
		&cs.SubjectID,
		&cs.Position,
		&cs.PlannedStartDate,
		&cs.PlannedFinishDate,
		&cs.Subject.Name,
		&cs.Subject.EstimatedTimeDays,
		&cs.Subject.MaxScore,
	)
	cs.Subject.ID = cs.SubjectID
	return cs, err
}

func (s *PostgresStore) getCourseSubject(ctx context.Context, q querier, id string) (CourseSubject, error) {
	cs, err := scanCourseSubject(q.QueryRow(ctx, courseSubjectSelect+`
		 WHERE cs.id = $1::uuid`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CourseSubject{}, notFound("course subject", id)
		}
		return CourseSubject{}, fmt.Errorf("get course subject: %w", err)
	}
	tasks, err := s.instanceTasks(ctx, q, `WHERE t.course_subject_id = $1::uuid`, id)
	if err != nil {
		return CourseSubject{}, err
	}
	cs.Tasks = tasks[id]
	if cs.Tasks == nil {
		cs.Tasks = []curriculum.Task{}
	}
	return cs, nil
}

// instanceTasks returns course subject tasks grouped by course subject id.
func (s *PostgresStore) instanceTasks(ctx context.Context, q querier, where string, args ...any) (map[string][]curriculum.Task, error) {
	rows, err := q.Query(ctx,
		`SELECT t.id::text, t.subject_id::text, t.course_subject_id::text, t.name, t.position
		 FROM tasks t `+where+`
		 ORDER BY t.position, t.id`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	tasks, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (curriculum.Task, error) {
		return scanTask(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan tasks: %w", err)
	}
	out := make(map[string][]curriculum.Task)
	for _, t := range tasks {
		out[t.CourseSubjectID] = append(out[t.CourseSubjectID], t)
	}
	return out, nil
}

// templateTasks returns catalog template tasks grouped by subject id; an empty
// subjectID loads all of them.
func (s *PostgresStore) templateTasks(ctx context.Context, q querier, subjectID string) (map[string][]curriculum.Task, error) {
	rows, err := q.Query(ctx,
		`SELECT id::text, subject_id::text, name, position
		 FROM subject_tasks
		 WHERE $1 = '' OR subject_id::text = $1
		 ORDER BY subject_id, position, id`,
		subjectID,
	)
	if err != nil {
		return nil, s.fail("query subject tasks", err)
	}
	tasks, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (curriculum.Task, error) {
		var t curriculum.Task
		err := row.Scan(&t.ID, &t.SubjectID, &t.Name, &t.Position)
		return t, err
	})
	if err != nil {
		return nil, s.fail("scan subject tasks", err)
	}
	out := make(map[string][]curriculum.Task)
	for _, t := range tasks {
		out[t.SubjectID] = append(out[t.SubjectID], t)
	}
	return out, nil
}

func scanTask(row pgx.Row) (curriculum.Task, error) {
	var t curriculum.Task
	err := row.Scan(&t.ID, &t.SubjectID, &t.CourseSubjectID, &t.Name, &t.Position)
	return t, err
}

func getTask(ctx context.Context, q querier, id string) (curriculum.Task, error) {
	task, err := scanTask(q.QueryRow(ctx,
		`SELECT id::text, subject_id::text, course_subject_id::text, name, position
		 FROM tasks
		 WHERE id = $1::uuid`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return curriculum.Task{}, notFound("task", id)
		}
		return curriculum.Task{}, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

func checkTaskNameTx(ctx context.Context, tx pgx.Tx, courseSubjectID, exceptID, name string) error {
	rows, err := tx.Query(ctx,
		`SELECT id::text, subject_id::text, course_subject_id::text, name, position
		 FROM tasks
		 WHERE course_subject_id = $1::uuid`,
		courseSubjectID,
	)
	if err != nil {
		return fmt.Errorf("query task names: %w", err)
	}
	tasks, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (curriculum.Task, error) {
		return scanTask(row)
	})
	if err != nil {
		return fmt.Errorf("scan task names: %w", err)
	}
	return checkTaskName(tasks, exceptID, name)
}

// lockCourse serializes position and enrollment writers of one course for
// the transaction.
func lockCourse(ctx context.Context, tx pgx.Tx, courseID string) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, courseID); err != nil {
		return fmt.Errorf("lock course: %w", err)
	}
	return nil
}

// ensureProgress lazily creates the progress row and NOT_DONE task rows.
func ensureProgress(ctx context.Context, tx pgx.Tx, courseSubjectID, traineeID string) error {
	var exists bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM course_subjects WHERE id = $1::uuid)`,
		courseSubjectID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("check course subject: %w", err)
	}
	if !exists {
		return notFound("course subject", courseSubjectID)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO trainee_subject_progress (trainee_id, course_subject_id, status)
		 VALUES ($1, $2::uuid, 'NOT_STARTED')
		 ON CONFLICT DO NOTHING`,
		traineeID, courseSubjectID,
	); err != nil {
		return fmt.Errorf("create progress: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO trainee_task_statuses (trainee_id, task_id, status)
		 SELECT $1, id, 'NOT_DONE'
		 FROM tasks
		 WHERE course_subject_id = $2::uuid
		 ON CONFLICT DO NOTHING`,
		traineeID, courseSubjectID,
	); err != nil {
		return fmt.Errorf("create task statuses: %w", err)
	}
	return nil
}

func readProgress(ctx context.Context, q querier, courseSubjectID, traineeID string) (Progress, error) {
	p := Progress{TraineeID: traineeID, CourseSubjectID: courseSubjectID}
	var status string
	if err := q.QueryRow(ctx,
		`SELECT status, actual_start_date, actual_finish_date, score, supervisor_comment, comment_updated_at
		 FROM trainee_subject_progress
		 WHERE trainee_id = $1 AND course_subject_id = $2::uuid`,
		traineeID, courseSubjectID,
	).Scan(&status, &p.ActualStartDate, &p.ActualFinishDate, &p.Score, &p.SupervisorComment, &p.CommentUpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Progress{}, notFound("progress", courseSubjectID+"/"+traineeID)
		}
		return Progress{}, fmt.Errorf("get progress: %w", err)
	}
	p.Status = SubjectStatus(status)

	rows, err := q.Query(ctx,
		`SELECT t.id::text, t.name, t.position, COALESCE(ts.status, 'NOT_DONE')
		 FROM tasks t
		 LEFT JOIN trainee_task_statuses ts ON ts.task_id = t.id AND ts.trainee_id = $1
		 WHERE t.course_subject_id = $2::uuid
		 ORDER BY t.position, t.id`,
		traineeID, courseSubjectID,
	)
	if err != nil {
		return Progress{}, fmt.Errorf("query task statuses: %w", err)
	}
	p.Tasks, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (TaskProgress, error) {
		var tp TaskProgress
		var st string
		err := row.Scan(&tp.TaskID, &tp.Name, &tp.Position, &st)
		tp.Status = TaskStatus(st)
		return tp, err
	})
	if err != nil {
		return Progress{}, fmt.Errorf("scan task statuses: %w", err)
	}
	return p, nil
}

// fail passes domain errors through and wraps everything else as a
// retryable persistence failure.
func (s *PostgresStore) fail(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsNotFound(err) || IsValidation(err) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23503": // foreign_key_violation: a referenced row vanished
			return &NotFoundError{Kind: "referenced row", ID: pgErr.ConstraintName}
		case "23514": // check_violation
			return &ValidationError{Field: pgErr.ConstraintName, Message: pgErr.Message}
		}
	}
	return persistence(op, err)
}

func checkUUID(kind, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return notFound(kind, id)
	}
	return nil
}

func nullIfEmpty(v string) any {
	if v == "" {
		return nil
	}
	return v
}
