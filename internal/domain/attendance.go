package domain

import (
	"encoding/json"
	"math"
	"time"
)

const (
	AttendanceCheckedIn  = "Checked In"
	AttendanceCheckedOut = "Checked Out"
)

// AttendanceRecord is one check-in/check-out pair on one calendar day.
type AttendanceRecord struct {
	ID           string     `json:"id"`
	StudentID    string     `json:"studentId"`
	JobID        string     `json:"jobId"`
	CheckinDate  time.Time  `json:"checkinDate"`
	CheckinTime  time.Time  `json:"checkinTime"`
	CheckoutTime *time.Time `json:"checkoutTime"`
}

// Open reports whether the student is still clocked in.
func (r *AttendanceRecord) Open() bool { return r.CheckoutTime == nil }

// Status is "Checked In" while open and "Checked Out" after.
func (r *AttendanceRecord) Status() string {
	if r.Open() {
		return AttendanceCheckedIn
	}
	return AttendanceCheckedOut
}

// WorkedHours is checkout − checkin in hours, rounded to 2 decimals.
// Nil while the record is open.
func (r *AttendanceRecord) WorkedHours() *float64 {
	if r.CheckoutTime == nil {
		return nil
	}
	h := RoundHours(r.CheckoutTime.Sub(r.CheckinTime))
	return &h
}

// MarshalJSON adds the derived status and workedHours fields.
func (r AttendanceRecord) MarshalJSON() ([]byte, error) {
	type plain AttendanceRecord
	return json.Marshal(struct {
		plain
		CheckinDate string   `json:"checkinDate"`
		Status      string   `json:"status"`
		WorkedHours *float64 `json:"workedHours"`
	}{
		plain:       plain(r),
		CheckinDate: r.CheckinDate.Format(time.DateOnly),
		Status:      r.Status(),
		WorkedHours: r.WorkedHours(),
	})
}

// UnmarshalJSON reads the date-only checkinDate written by MarshalJSON.
// Derived fields are ignored.
func (r *AttendanceRecord) UnmarshalJSON(data []byte) error {
	type plain AttendanceRecord
	var aux struct {
		plain
		CheckinDate string `json:"checkinDate"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = AttendanceRecord(aux.plain)
	if aux.CheckinDate != "" {
		d, err := time.Parse(time.DateOnly, aux.CheckinDate)
		if err != nil {
			return err
		}
		r.CheckinDate = d
	}
	return nil
}

// RoundHours converts d to hours rounded to 2 decimals.
func RoundHours(d time.Duration) float64 {
	return math.Round(d.Hours()*100) / 100
}

// ProviderStatistics is the read-only aggregate shown on a provider dashboard.
type ProviderStatistics struct {
	ProviderID            string `json:"providerId"`
	TotalJobs             int    `json:"totalJobs"`
	OpenJobs              int    `json:"openJobs"`
	ClosedJobs            int    `json:"closedJobs"`
	TotalApplications     int    `json:"totalApplications"`
	PendingApplications   int    `json:"pendingApplications"`
	TotalAssignedStudents int    `json:"totalAssignedStudents"`
}
