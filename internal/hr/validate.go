package hr

import (
	"errors"
	"fmt"
	"strings"
)

// ValidateEmployee checks an [Employee] for required fields.
//
// Rules:
//   - Name, Role and Department must be non-empty.
//   - Email, when set, must contain an "@".
//   - Performance scores must lie in [0, 100].
//   - Attendance counts must not be negative.
func ValidateEmployee(e Employee) error {
	var errs []error

	if strings.TrimSpace(e.Name) == "" {
		errs = append(errs, errors.New("name must not be empty"))
	}
	if strings.TrimSpace(e.Role) == "" {
		errs = append(errs, errors.New("role must not be empty"))
	}
	if strings.TrimSpace(e.Department) == "" {
		errs = append(errs, errors.New("department must not be empty"))
	}
	if e.Email != "" && !strings.Contains(e.Email, "@") {
		errs = append(errs, fmt.Errorf("email %q is not a valid address", e.Email))
	}
	for i, s := range e.Performance {
		if s < 0 || s > 100 {
			errs = append(errs, fmt.Errorf("performance[%d]: score %d out of range [0,100]", i, s))
		}
	}
	if e.Attendance.Present < 0 || e.Attendance.Absent < 0 || e.Attendance.Late < 0 {
		errs = append(errs, errors.New("attendance counts must not be negative"))
	}

	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}
