// Package postgres implements store.Store on a pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"jobmate/workforce-service/internal/domain"
	"jobmate/workforce-service/internal/store"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the PostgreSQL store.
type Store struct {
	repo
	pool *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

// New returns a Store backed by pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{repo: repo{q: pool}, pool: pool}
}

// WithTx runs fn in a read-committed transaction. Row locks taken with
// GetJobForUpdate or GetApplicationForUpdate are held until commit or rollback.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Repository) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&repo{q: tx})
	})
}

type repo struct{ q querier }

// ─── translation helpers ─────────────────────────────────────────────────────

const uniqueViolation = "23505"

// translate maps driver errors onto the store sentinels.
func translate(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w (%s)", op, store.ErrConflict, pgErr.ConstraintName)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// ─── users ───────────────────────────────────────────────────────────────────

func (r *repo) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	err := r.q.QueryRow(ctx,
		`SELECT id, full_name, email, phone, role FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.FullName, &u.Email, &u.Phone, &u.Role)
	if err != nil {
		return nil, translate("getUser", err)
	}
	return &u, nil
}

// ─── jobs ────────────────────────────────────────────────────────────────────

const jobColumns = `id, provider_id, title, description, location, salary,
	start_date, end_date, status, created_at, updated_at`

func scanJob(row pgx.Row) (*domain.Job, error) {
	var j domain.Job
	err := row.Scan(&j.ID, &j.ProviderID, &j.Title, &j.Description, &j.Location, &j.Salary,
		&j.StartDate, &j.EndDate, &j.Status, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *repo) CreateJob(ctx context.Context, j *domain.Job) error {
	_, err := r.q.Exec(ctx,
		`INSERT INTO jobs (`+jobColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		j.ID, j.ProviderID, j.Title, j.Description, j.Location, j.Salary,
		j.StartDate, j.EndDate, string(j.Status), j.CreatedAt, j.UpdatedAt,
	)
	if err != nil {
		return translate("createJob", err)
	}
	return nil
}

func (r *repo) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	j, err := scanJob(r.q.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id))
	if err != nil {
		return nil, translate("getJob", err)
	}
	return j, nil
}

func (r *repo) GetJobForUpdate(ctx context.Context, id string) (*domain.Job, error) {
	j, err := scanJob(r.q.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, translate("getJobForUpdate", err)
	}
	return j, nil
}

func (r *repo) UpdateJob(ctx context.Context, j *domain.Job) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE jobs
		 SET title = $2, description = $3, location = $4, salary = $5,
		     start_date = $6, end_date = $7, status = $8, updated_at = $9
		 WHERE id = $1`,
		j.ID, j.Title, j.Description, j.Location, j.Salary,
		j.StartDate, j.EndDate, string(j.Status), j.UpdatedAt,
	)
	if err != nil {
		return translate("updateJob", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *repo) CloseJobIfOpen(ctx context.Context, id string, at time.Time) (bool, error) {
	tag, err := r.q.Exec(ctx,
		`UPDATE jobs SET status = 'Closed', updated_at = $2 WHERE id = $1 AND status = 'Open'`,
		id, at,
	)
	if err != nil {
		return false, translate("closeJobIfOpen", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repo) ListJobs(ctx context.Context, f store.JobFilter) ([]domain.Job, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+jobColumns+` FROM jobs
		 WHERE ($1::text = '' OR provider_id = $1)
		   AND ($2::text = '' OR status = $2)
		   AND ($3::date IS NULL OR end_date < $3::date)
		 ORDER BY created_at DESC, id DESC`,
		f.ProviderID, string(f.Status), f.EndBefore,
	)
	if err != nil {
		return nil, translate("listJobs query", err)
	}
	defer rows.Close()

	jobs := make([]domain.Job, 0)
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, translate("listJobs scan", err)
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

// ─── applications ────────────────────────────────────────────────────────────

const applicationColumns = `a.id, a.student_id, a.job_id, a.status, a.phone, a.student_year,
	a.work_type, a.notes, a.applied_at, a.updated_at`

func scanApplication(row pgx.Row) (*domain.Application, error) {
	var a domain.Application
	err := row.Scan(&a.ID, &a.StudentID, &a.JobID, &a.Status, &a.Phone, &a.StudentYear,
		&a.WorkType, &a.Notes, &a.AppliedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *repo) CreateApplication(ctx context.Context, a *domain.Application) error {
	_, err := r.q.Exec(ctx,
		`INSERT INTO applications (id, student_id, job_id, status, phone, student_year, work_type, notes, applied_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		a.ID, a.StudentID, a.JobID, string(a.Status), a.Phone, a.StudentYear,
		a.WorkType, a.Notes, a.AppliedAt, a.UpdatedAt,
	)
	if err != nil {
		return translate("createApplication", err)
	}
	return nil
}

func (r *repo) GetApplication(ctx context.Context, id string) (*domain.Application, error) {
	a, err := scanApplication(r.q.QueryRow(ctx,
		`SELECT `+applicationColumns+` FROM applications a WHERE a.id = $1`, id))
	if err != nil {
		return nil, translate("getApplication", err)
	}
	return a, nil
}

func (r *repo) GetApplicationForUpdate(ctx context.Context, id string) (*domain.Application, error) {
	a, err := scanApplication(r.q.QueryRow(ctx,
		`SELECT `+applicationColumns+` FROM applications a WHERE a.id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, translate("getApplicationForUpdate", err)
	}
	return a, nil
}

func (r *repo) FindApplication(ctx context.Context, studentID, jobID string) (*domain.Application, error) {
	a, err := scanApplication(r.q.QueryRow(ctx,
		`SELECT `+applicationColumns+` FROM applications a WHERE a.student_id = $1 AND a.job_id = $2`,
		studentID, jobID))
	if err != nil {
		return nil, translate("findApplication", err)
	}
	return a, nil
}

func (r *repo) UpdateApplicationStatus(ctx context.Context, id string, status domain.ApplicationStatus, at time.Time) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE applications SET status = $2, updated_at = $3 WHERE id = $1`,
		id, string(status), at,
	)
	if err != nil {
		return translate("updateApplicationStatus", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *repo) DeleteApplication(ctx context.Context, id string) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM applications WHERE id = $1`, id)
	if err != nil {
		return translate("deleteApplication", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *repo) ListApplications(ctx context.Context, f store.ApplicationFilter) ([]domain.Application, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+applicationColumns+`
		 FROM applications a
		 JOIN jobs j ON j.id = a.job_id
		 WHERE ($1::text = '' OR a.student_id = $1)
		   AND ($2::text = '' OR a.job_id = $2)
		   AND ($3::text = '' OR j.provider_id = $3)
		   AND ($4::text = '' OR a.status = $4)
		 ORDER BY a.applied_at DESC, a.id DESC`,
		f.StudentID, f.JobID, f.ProviderID, string(f.Status),
	)
	if err != nil {
		return nil, translate("listApplications query", err)
	}
	defer rows.Close()

	apps := make([]domain.Application, 0)
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, translate("listApplications scan", err)
		}
		apps = append(apps, *a)
	}
	return apps, rows.Err()
}

// ─── assignments ─────────────────────────────────────────────────────────────

func (r *repo) GetAssignment(ctx context.Context, studentID, jobID string) (*domain.Assignment, error) {
	var a domain.Assignment
	err := r.q.QueryRow(ctx,
		`SELECT id, student_id, job_id, assigned_at, status
		 FROM job_assignments WHERE student_id = $1 AND job_id = $2`,
		studentID, jobID,
	).Scan(&a.ID, &a.StudentID, &a.JobID, &a.AssignedAt, &a.Status)
	if err != nil {
		return nil, translate("getAssignment", err)
	}
	return &a, nil
}

func (r *repo) CreateAssignment(ctx context.Context, a *domain.Assignment) error {
	_, err := r.q.Exec(ctx,
		`INSERT INTO job_assignments (id, student_id, job_id, assigned_at, status)
		 VALUES ($1, $2, $3, $4, $5)`,
		a.ID, a.StudentID, a.JobID, a.AssignedAt, a.Status,
	)
	if err != nil {
		return translate("createAssignment", err)
	}
	return nil
}

func (r *repo) DeleteAssignment(ctx context.Context, studentID, jobID string) (bool, error) {
	tag, err := r.q.Exec(ctx,
		`DELETE FROM job_assignments WHERE student_id = $1 AND job_id = $2`, studentID, jobID)
	if err != nil {
		return false, translate("deleteAssignment", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *repo) ListAssignments(ctx context.Context, jobID string) ([]domain.Assignment, error) {
	rows, err := r.q.Query(ctx,
		`SELECT id, student_id, job_id, assigned_at, status
		 FROM job_assignments WHERE job_id = $1
		 ORDER BY assigned_at DESC, id DESC`, jobID)
	if err != nil {
		return nil, translate("listAssignments query", err)
	}
	defer rows.Close()

	out := make([]domain.Assignment, 0)
	for rows.Next() {
		var a domain.Assignment
		if err := rows.Scan(&a.ID, &a.StudentID, &a.JobID, &a.AssignedAt, &a.Status); err != nil {
			return nil, translate("listAssignments scan", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ─── attendance ──────────────────────────────────────────────────────────────

const attendanceColumns = `c.id, c.student_id, c.job_id, c.checkin_date, c.checkin_time, c.checkout_time`

func scanAttendance(row pgx.Row) (*domain.AttendanceRecord, error) {
	var rec domain.AttendanceRecord
	if err := row.Scan(&rec.ID, &rec.StudentID, &rec.JobID, &rec.CheckinDate, &rec.CheckinTime, &rec.CheckoutTime); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *repo) CreateAttendance(ctx context.Context, rec *domain.AttendanceRecord) error {
	_, err := r.q.Exec(ctx,
		`INSERT INTO checkin_records (id, student_id, job_id, checkin_date, checkin_time, checkout_time)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID, rec.StudentID, rec.JobID, rec.CheckinDate, rec.CheckinTime, rec.CheckoutTime,
	)
	if err != nil {
		return translate("createAttendance", err)
	}
	return nil
}

func (r *repo) GetAttendance(ctx context.Context, id string) (*domain.AttendanceRecord, error) {
	rec, err := scanAttendance(r.q.QueryRow(ctx,
		`SELECT `+attendanceColumns+` FROM checkin_records c WHERE c.id = $1`, id))
	if err != nil {
		return nil, translate("getAttendance", err)
	}
	return rec, nil
}

func (r *repo) FindAttendanceOnDay(ctx context.Context, studentID, jobID string, day time.Time) (*domain.AttendanceRecord, error) {
	rec, err := scanAttendance(r.q.QueryRow(ctx,
		`SELECT `+attendanceColumns+` FROM checkin_records c
		 WHERE c.student_id = $1 AND c.job_id = $2 AND c.checkin_date = $3`,
		studentID, jobID, day))
	if err != nil {
		return nil, translate("findAttendanceOnDay", err)
	}
	return rec, nil
}

func (r *repo) SetCheckout(ctx context.Context, id string, at time.Time) (bool, error) {
	tag, err := r.q.Exec(ctx,
		`UPDATE checkin_records SET checkout_time = $2 WHERE id = $1 AND checkout_time IS NULL`, id, at)
	if err != nil {
		return false, translate("setCheckout", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repo) ListAttendance(ctx context.Context, f store.AttendanceFilter) ([]domain.AttendanceRecord, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+attendanceColumns+`
		 FROM checkin_records c
		 JOIN jobs j ON j.id = c.job_id
		 WHERE ($1::text = '' OR c.student_id = $1)
		   AND ($2::text = '' OR c.job_id = $2)
		   AND ($3::text = '' OR j.provider_id = $3)
		   AND (NOT $4::boolean OR c.checkout_time IS NULL)
		 ORDER BY c.checkin_time DESC, c.id DESC`,
		f.StudentID, f.JobID, f.ProviderID, f.OpenOnly,
	)
	if err != nil {
		return nil, translate("listAttendance query", err)
	}
	defer rows.Close()

	out := make([]domain.AttendanceRecord, 0)
	for rows.Next() {
		rec, err := scanAttendance(rows)
		if err != nil {
			return nil, translate("listAttendance scan", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// ─── statistics ──────────────────────────────────────────────────────────────

func (r *repo) ProviderStatistics(ctx context.Context, providerID string) (*domain.ProviderStatistics, error) {
	st := domain.ProviderStatistics{ProviderID: providerID}
	err := r.q.QueryRow(ctx,
		`SELECT
		   (SELECT COUNT(*) FROM jobs WHERE provider_id = $1),
		   (SELECT COUNT(*) FROM jobs WHERE provider_id = $1 AND status = 'Open'),
		   (SELECT COUNT(*) FROM jobs WHERE provider_id = $1 AND status = 'Closed'),
		   (SELECT COUNT(*) FROM applications a JOIN jobs j ON j.id = a.job_id WHERE j.provider_id = $1),
		   (SELECT COUNT(*) FROM applications a JOIN jobs j ON j.id = a.job_id
		     WHERE j.provider_id = $1 AND a.status = 'Pending'),
		   (SELECT COUNT(DISTINCT s.student_id) FROM job_assignments s JOIN jobs j ON j.id = s.job_id
		     WHERE j.provider_id = $1)`,
		providerID,
	).Scan(&st.TotalJobs, &st.OpenJobs, &st.ClosedJobs,
		&st.TotalApplications, &st.PendingApplications, &st.TotalAssignedStudents)
	if err != nil {
		return nil, translate("providerStatistics", err)
	}
	return &st, nil
}
