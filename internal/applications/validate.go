package applications

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"jobmate/workforce-service/internal/apperr"
	"jobmate/workforce-service/internal/domain"
)

var phonePattern = regexp.MustCompile(`^(0|\+84)[0-9]{9,10}$`)

var (
	studentYears = []string{"Year 1", "Year 2", "Year 3", "Year 4", "Graduate"}
	workTypes    = []string{"Full-time", "Part-time", "Internship"}
)

const maxNotes = 500

// validateMetadata trims md in place and returns a validation error listing
// every bad field. All fields are optional.
func validateMetadata(md *domain.Metadata) error {
	md.Phone = strings.TrimSpace(md.Phone)
	md.StudentYear = strings.TrimSpace(md.StudentYear)
	md.WorkType = strings.TrimSpace(md.WorkType)
	md.Notes = strings.TrimSpace(md.Notes)

	fields := map[string]string{}
	if md.Phone != "" && !phonePattern.MatchString(md.Phone) {
		fields["phone"] = "invalid phone number (e.g. 0123456789 or +84123456789)"
	}
	if md.StudentYear != "" && !oneOf(md.StudentYear, studentYears) {
		fields["studentYear"] = "must be one of: " + strings.Join(studentYears, ", ")
	}
	if md.WorkType != "" && !oneOf(md.WorkType, workTypes) {
		fields["workType"] = "must be one of: " + strings.Join(workTypes, ", ")
	}
	if utf8.RuneCountInString(md.Notes) > maxNotes {
		fields["notes"] = "must be at most 500 characters"
	}
	if len(fields) > 0 {
		return apperr.Validation("invalid application", fields)
	}
	return nil
}

func oneOf(s string, allowed []string) bool {
	for _, a := range allowed {
		if s == a {
			return true
		}
	}
	return false
}
