package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"jobmate/workforce-service/internal/domain"
)

// Memory is an in-process Store. Writers are serialised; a transaction works
// on a copy of the tables and swaps it in only when fn succeeds.
type Memory struct {
	txMu sync.Mutex   // held by every writer, including whole transactions
	mu   sync.RWMutex // guards t
	t    *tables
}

var (
	_ Store      = (*Memory)(nil)
	_ Repository = (*tables)(nil)
)

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{t: newTables()}
}

// SeedUser inserts or replaces a user projection.
func (m *Memory) SeedUser(u domain.User) {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.t.users[u.ID] = u
}

// WithTx runs fn against a private copy of the tables.
func (m *Memory) WithTx(ctx context.Context, fn func(tx Repository) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.RLock()
	work := m.t.clone()
	m.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fn(work); err != nil {
		return err
	}

	m.mu.Lock()
	m.t = work
	m.mu.Unlock()
	return nil
}

func read[T any](m *Memory, fn func(*tables) (T, error)) (T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(m.t)
}

func write[T any](m *Memory, fn func(*tables) (T, error)) (T, error) {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(m.t)
}

func writeErr(m *Memory, fn func(*tables) error) error {
	_, err := write(m, func(t *tables) (struct{}, error) { return struct{}{}, fn(t) })
	return err
}

func (m *Memory) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return read(m, func(t *tables) (*domain.User, error) { return t.GetUser(ctx, id) })
}

func (m *Memory) CreateJob(ctx context.Context, j *domain.Job) error {
	return writeErr(m, func(t *tables) error { return t.CreateJob(ctx, j) })
}

func (m *Memory) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	return read(m, func(t *tables) (*domain.Job, error) { return t.GetJob(ctx, id) })
}

func (m *Memory) GetJobForUpdate(ctx context.Context, id string) (*domain.Job, error) {
	return m.GetJob(ctx, id)
}

func (m *Memory) UpdateJob(ctx context.Context, j *domain.Job) error {
	return writeErr(m, func(t *tables) error { return t.UpdateJob(ctx, j) })
}

func (m *Memory) CloseJobIfOpen(ctx context.Context, id string, at time.Time) (bool, error) {
	return write(m, func(t *tables) (bool, error) { return t.CloseJobIfOpen(ctx, id, at) })
}

func (m *Memory) ListJobs(ctx context.Context, f JobFilter) ([]domain.Job, error) {
	return read(m, func(t *tables) ([]domain.Job, error) { return t.ListJobs(ctx, f) })
}

func (m *Memory) CreateApplication(ctx context.Context, a *domain.Application) error {
	return writeErr(m, func(t *tables) error { return t.CreateApplication(ctx, a) })
}

func (m *Memory) GetApplication(ctx context.Context, id string) (*domain.Application, error) {
	return read(m, func(t *tables) (*domain.Application, error) { return t.GetApplication(ctx, id) })
}

func (m *Memory) GetApplicationForUpdate(ctx context.Context, id string) (*domain.Application, error) {
	return m.GetApplication(ctx, id)
}

func (m *Memory) FindApplication(ctx context.Context, studentID, jobID string) (*domain.Application, error) {
	return read(m, func(t *tables) (*domain.Application, error) { return t.FindApplication(ctx, studentID, jobID) })
}

func (m *Memory) UpdateApplicationStatus(ctx context.Context, id string, status domain.ApplicationStatus, at time.Time) error {
	return writeErr(m, func(t *tables) error { return t.UpdateApplicationStatus(ctx, id, status, at) })
}

func (m *Memory) DeleteApplication(ctx context.Context, id string) error {
	return writeErr(m, func(t *tables) error { return t.DeleteApplication(ctx, id) })
}

func (m *Memory) ListApplications(ctx context.Context, f ApplicationFilter) ([]domain.Application, error) {
	return read(m, func(t *tables) ([]domain.Application, error) { return t.ListApplications(ctx, f) })
}

func (m *Memory) GetAssignment(ctx context.Context, studentID, jobID string) (*domain.Assignment, error) {
	return read(m, func(t *tables) (*domain.Assignment, error) { return t.GetAssignment(ctx, studentID, jobID) })
}

func (m *Memory) CreateAssignment(ctx context.Context, a *domain.Assignment) error {
	return writeErr(m, func(t *tables) error { return t.CreateAssignment(ctx, a) })
}

func (m *Memory) DeleteAssignment(ctx context.Context, studentID, jobID string) (bool, error) {
	return write(m, func(t *tables) (bool, error) { return t.DeleteAssignment(ctx, studentID, jobID) })
}

func (m *Memory) ListAssignments(ctx context.Context, jobID string) ([]domain.Assignment, error) {
	return read(m, func(t *tables) ([]domain.Assignment, error) { return t.ListAssignments(ctx, jobID) })
}

func (m *Memory) CreateAttendance(ctx context.Context, r *domain.AttendanceRecord) error {
	return writeErr(m, func(t *tables) error { return t.CreateAttendance(ctx, r) })
}

func (m *Memory) GetAttendance(ctx context.Context, id string) (*domain.AttendanceRecord, error) {
	return read(m, func(t *tables) (*domain.AttendanceRecord, error) { return t.GetAttendance(ctx, id) })
}

func (m *Memory) FindAttendanceOnDay(ctx context.Context, studentID, jobID string, day time.Time) (*domain.AttendanceRecord, error) {
	return read(m, func(t *tables) (*domain.AttendanceRecord, error) {
		return t.FindAttendanceOnDay(ctx, studentID, jobID, day)
	})
}

func (m *Memory) SetCheckout(ctx context.Context, id string, at time.Time) (bool, error) {
	return write(m, func(t *tables) (bool, error) { return t.SetCheckout(ctx, id, at) })
}

func (m *Memory) ListAttendance(ctx context.Context, f AttendanceFilter) ([]domain.AttendanceRecord, error) {
	return read(m, func(t *tables) ([]domain.AttendanceRecord, error) { return t.ListAttendance(ctx, f) })
}

func (m *Memory) ProviderStatistics(ctx context.Context, providerID string) (*domain.ProviderStatistics, error) {
	return read(m, func(t *tables) (*domain.ProviderStatistics, error) { return t.ProviderStatistics(ctx, providerID) })
}

// ─── tables ──────────────────────────────────────────────────────────────────

// tables is the unsynchronised Repository behind Memory. Rows are stored by
// value so callers never alias stored state.
type tables struct {
	users        map[string]domain.User
	jobs         map[string]domain.Job
	applications map[string]domain.Application
	assignments  map[pairKey]domain.Assignment
	attendance   map[string]domain.AttendanceRecord
}

type pairKey struct{ studentID, jobID string }

func newTables() *tables {
	return &tables{
		users:        make(map[string]domain.User),
		jobs:         make(map[string]domain.Job),
		applications: make(map[string]domain.Application),
		assignments:  make(map[pairKey]domain.Assignment),
		attendance:   make(map[string]domain.AttendanceRecord),
	}
}

func (t *tables) clone() *tables {
	c := newTables()
	for k, v := range t.users {
		c.users[k] = v
	}
	for k, v := range t.jobs {
		c.jobs[k] = v
	}
	for k, v := range t.applications {
		c.applications[k] = v
	}
	for k, v := range t.assignments {
		c.assignments[k] = v
	}
	for k, v := range t.attendance {
		c.attendance[k] = v
	}
	return c
}

func (t *tables) GetUser(_ context.Context, id string) (*domain.User, error) {
	u, ok := t.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (t *tables) CreateJob(_ context.Context, j *domain.Job) error {
	if _, ok := t.jobs[j.ID]; ok {
		return ErrConflict
	}
	t.jobs[j.ID] = *j
	return nil
}

func (t *tables) GetJob(_ context.Context, id string) (*domain.Job, error) {
	j, ok := t.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &j, nil
}

func (t *tables) GetJobForUpdate(ctx context.Context, id string) (*domain.Job, error) {
	return t.GetJob(ctx, id)
}

func (t *tables) UpdateJob(_ context.Context, j *domain.Job) error {
	if _, ok := t.jobs[j.ID]; !ok {
		return ErrNotFound
	}
	t.jobs[j.ID] = *j
	return nil
}

func (t *tables) CloseJobIfOpen(_ context.Context, id string, at time.Time) (bool, error) {
	j, ok := t.jobs[id]
	if !ok || j.Status != domain.JobOpen {
		return false, nil
	}
	j.Status = domain.JobClosed
	j.UpdatedAt = at
	t.jobs[id] = j
	return true, nil
}

func (t *tables) ListJobs(_ context.Context, f JobFilter) ([]domain.Job, error) {
	out := make([]domain.Job, 0)
	for _, j := range t.jobs {
		if f.ProviderID != "" && j.ProviderID != f.ProviderID {
			continue
		}
		if f.Status != "" && j.Status != f.Status {
			continue
		}
		if f.EndBefore != nil && !j.ExpiredOn(*f.EndBefore) {
			continue
		}
		out = append(out, j)
	}
	sort.Slice(out, func(a, b int) bool { return newer(out[a].CreatedAt, out[b].CreatedAt, out[a].ID, out[b].ID) })
	return out, nil
}

func (t *tables) CreateApplication(_ context.Context, a *domain.Application) error {
	for _, existing := range t.applications {
		if existing.StudentID == a.StudentID && existing.JobID == a.JobID {
			return ErrConflict
		}
	}
	if _, ok := t.jobs[a.JobID]; !ok {
		return ErrNotFound
	}
	t.applications[a.ID] = *a
	return nil
}

func (t *tables) GetApplication(_ context.Context, id string) (*domain.Application, error) {
	a, ok := t.applications[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (t *tables) GetApplicationForUpdate(ctx context.Context, id string) (*domain.Application, error) {
	return t.GetApplication(ctx, id)
}

func (t *tables) FindApplication(_ context.Context, studentID, jobID string) (*domain.Application, error) {
	for _, a := range t.applications {
		if a.StudentID == studentID && a.JobID == jobID {
			return &a, nil
		}
	}
	return nil, ErrNotFound
}

func (t *tables) UpdateApplicationStatus(_ context.Context, id string, status domain.ApplicationStatus, at time.Time) error {
	a, ok := t.applications[id]
	if !ok {
		return ErrNotFound
	}
	a.Status = status
	a.UpdatedAt = at
	t.applications[id] = a
	return nil
}

func (t *tables) DeleteApplication(_ context.Context, id string) error {
	if _, ok := t.applications[id]; !ok {
		return ErrNotFound
	}
	delete(t.applications, id)
	return nil
}

func (t *tables) ListApplications(_ context.Context, f ApplicationFilter) ([]domain.Application, error) {
	out := make([]domain.Application, 0)
	for _, a := range t.applications {
		if f.StudentID != "" && a.StudentID != f.StudentID {
			continue
		}
		if f.JobID != "" && a.JobID != f.JobID {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		if f.ProviderID != "" && t.jobs[a.JobID].ProviderID != f.ProviderID {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return newer(out[i].AppliedAt, out[j].AppliedAt, out[i].ID, out[j].ID) })
	return out, nil
}

func (t *tables) GetAssignment(_ context.Context, studentID, jobID string) (*domain.Assignment, error) {
	a, ok := t.assignments[pairKey{studentID, jobID}]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (t *tables) CreateAssignment(_ context.Context, a *domain.Assignment) error {
	k := pairKey{a.StudentID, a.JobID}
	if _, ok := t.assignments[k]; ok {
		return ErrConflict
	}
	t.assignments[k] = *a
	return nil
}

func (t *tables) DeleteAssignment(_ context.Context, studentID, jobID string) (bool, error) {
	k := pairKey{studentID, jobID}
	if _, ok := t.assignments[k]; !ok {
		return false, nil
	}
	delete(t.assignments, k)
	return true, nil
}

func (t *tables) ListAssignments(_ context.Context, jobID string) ([]domain.Assignment, error) {
	out := make([]domain.Assignment, 0)
	for _, a := range t.assignments {
		if a.JobID == jobID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return newer(out[i].AssignedAt, out[j].AssignedAt, out[i].ID, out[j].ID) })
	return out, nil
}

func (t *tables) CreateAttendance(_ context.Context, r *domain.AttendanceRecord) error {
	for _, existing := range t.attendance {
		if existing.StudentID == r.StudentID && existing.JobID == r.JobID && existing.CheckinDate.Equal(r.CheckinDate) {
			return ErrConflict
		}
	}
	t.attendance[r.ID] = *r
	return nil
}

func (t *tables) GetAttendance(_ context.Context, id string) (*domain.AttendanceRecord, error) {
	r, ok := t.attendance[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (t *tables) FindAttendanceOnDay(_ context.Context, studentID, jobID string, day time.Time) (*domain.AttendanceRecord, error) {
	for _, r := range t.attendance {
		if r.StudentID == studentID && r.JobID == jobID && r.CheckinDate.Equal(day) {
			return &r, nil
		}
	}
	return nil, ErrNotFound
}

func (t *tables) SetCheckout(_ context.Context, id string, at time.Time) (bool, error) {
	r, ok := t.attendance[id]
	if !ok || r.CheckoutTime != nil {
		return false, nil
	}
	r.CheckoutTime = &at
	t.attendance[id] = r
	return true, nil
}

func (t *tables) ListAttendance(_ context.Context, f AttendanceFilter) ([]domain.AttendanceRecord, error) {
	out := make([]domain.AttendanceRecord, 0)
	for _, r := range t.attendance {
		if f.StudentID != "" && r.StudentID != f.StudentID {
			continue
		}
		if f.JobID != "" && r.JobID != f.JobID {
			continue
		}
		if f.OpenOnly && !r.Open() {
			continue
		}
		if f.ProviderID != "" && t.jobs[r.JobID].ProviderID != f.ProviderID {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return newer(out[i].CheckinTime, out[j].CheckinTime, out[i].ID, out[j].ID) })
	return out, nil
}

func (t *tables) ProviderStatistics(_ context.Context, providerID string) (*domain.ProviderStatistics, error) {
	st := &domain.ProviderStatistics{ProviderID: providerID}
	for _, j := range t.jobs {
		if j.ProviderID != providerID {
			continue
		}
		st.TotalJobs++
		switch j.Status {
		case domain.JobOpen:
			st.OpenJobs++
		case domain.JobClosed:
			st.ClosedJobs++
		}
	}
	for _, a := range t.applications {
		if t.jobs[a.JobID].ProviderID != providerID {
			continue
		}
		st.TotalApplications++
		if a.Status == domain.ApplicationPending {
			st.PendingApplications++
		}
	}
	students := make(map[string]struct{})
	for _, a := range t.assignments {
		if t.jobs[a.JobID].ProviderID == providerID {
			students[a.StudentID] = struct{}{}
		}
	}
	st.TotalAssignedStudents = len(students)
	return st, nil
}

// newer orders by timestamp descending, then id, so listings are stable.
func newer(a, b time.Time, idA, idB string) bool {
	if !a.Equal(b) {
		return a.After(b)
	}
	return idA > idB
}
