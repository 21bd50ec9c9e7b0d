// Package hr holds the human-resources domain model (employees, users, job
// openings, reviews) and the process-local store the dashboard, the voice
// assistant tools and the HTTP API share.
package hr

// Role is the dashboard role a user acts as.
type Role string

const (
	RoleAdmin    Role = "Admin"
	RoleManager  Role = "Manager"
	RoleHR       Role = "HR"
	RoleEmployee Role = "Employee"
)

// Roles lists every role in login-screen order.
var Roles = []Role{RoleAdmin, RoleManager, RoleHR, RoleEmployee}

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleHR, RoleEmployee:
		return true
	}
	return false
}

// Attendance counts days for the current period.
type Attendance struct {
	Present int `json:"present" yaml:"present"`
	Absent  int `json:"absent"  yaml:"absent"`
	Late    int `json:"late"    yaml:"late"`
}

// Employee is one staff record.
type Employee struct {
	ID         int    `json:"id"         yaml:"id"`
	Name       string `json:"name"       yaml:"name"`
	Role       string `json:"role"       yaml:"role"`
	Department string `json:"department" yaml:"department"`
	Email      string `json:"email"      yaml:"email"`
	Phone      string `json:"phone"      yaml:"phone"`
	HireDate   string `json:"hireDate"   yaml:"hire_date"`
	AvatarURL  string `json:"avatarUrl"  yaml:"avatar_url"`

	// Performance holds monthly scores, oldest first.
	Performance []int      `json:"performance" yaml:"performance"`
	Attendance  Attendance `json:"attendance"  yaml:"attendance"`
}

// LatestScore returns the most recent performance score, or 0.
func (e Employee) LatestScore() int {
	if len(e.Performance) == 0 {
		return 0
	}
	return e.Performance[len(e.Performance)-1]
}

// User is the signed-in identity. It always maps onto an employee record.
type User struct {
	Email      string `json:"email"`
	Role       Role   `json:"role"`
	Name       string `json:"name"`
	AvatarURL  string `json:"avatarUrl"`
	EmployeeID int    `json:"employeeId"`
}

// JobStatus is the hiring state of an opening.
type JobStatus string

const (
	JobOpen   JobStatus = "Open"
	JobClosed JobStatus = "Closed"
	JobOnHold JobStatus = "On Hold"
)

// JobOpening is one requisition on the recruitment board.
type JobOpening struct {
	ID            int       `json:"id"            yaml:"id"`
	Title         string    `json:"title"         yaml:"title"`
	Department    string    `json:"department"    yaml:"department"`
	Status        JobStatus `json:"status"        yaml:"status"`
	Applications  int       `json:"applications"  yaml:"applications"`
	Interviews    int       `json:"interviews"    yaml:"interviews"`
	Hired         int       `json:"hired"         yaml:"hired"`
	HiringManager string    `json:"hiringManager" yaml:"hiring_manager"`
}

// PerformanceReview is a dated review of one employee.
type PerformanceReview struct {
	ID         int    `json:"id"         yaml:"id"`
	EmployeeID int    `json:"employeeId" yaml:"employee_id"`
	Reviewer   string `json:"reviewer"   yaml:"reviewer"`
	Date       string `json:"date"       yaml:"date"`
	Score      int    `json:"score"      yaml:"score"`
	Comments   string `json:"comments"   yaml:"comments"`
}

// HiredCandidate is a recent hire shown on the recruitment board.
type HiredCandidate struct {
	ID        int      `json:"id"        yaml:"id"`
	Name      string   `json:"name"      yaml:"name"`
	JobTitle  string   `json:"jobTitle"  yaml:"job_title"`
	Expertise []string `json:"expertise" yaml:"expertise"`
	HireDate  string   `json:"hireDate"  yaml:"hire_date"`
	AvatarURL string   `json:"avatarUrl" yaml:"avatar_url"`
}
