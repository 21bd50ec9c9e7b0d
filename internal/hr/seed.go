package hr

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Dataset is the full set of records a store is seeded with.
//
// Example YAML:
//
//	employees:
//	  - id: 1
//	    name: "John Doe"
//	    role: "Software Engineer"
//	    department: "Technology"
//	    performance: [85, 88, 90]
//	jobs:
//	  - id: 1
//	    title: "Backend Engineer (Go)"
//	    status: "Open"
type Dataset struct {
	Employees       []Employee          `yaml:"employees"`
	Jobs            []JobOpening        `yaml:"jobs"`
	Reviews         []PerformanceReview `yaml:"reviews"`
	HiredCandidates []HiredCandidate    `yaml:"hired_candidates"`
}

// LoadDatasetFile reads and validates a dataset YAML file from disk.
func LoadDatasetFile(path string) (Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return Dataset{}, fmt.Errorf("hr: open dataset %q: %w", path, err)
	}
	defer f.Close()

	ds, err := LoadDatasetFromReader(f)
	if err != nil {
		return Dataset{}, fmt.Errorf("hr: dataset %q: %w", path, err)
	}
	return ds, nil
}

// LoadDatasetFromReader parses dataset YAML from an [io.Reader] and validates
// every employee record.
func LoadDatasetFromReader(r io.Reader) (Dataset, error) {
	var ds Dataset
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&ds); err != nil {
		return Dataset{}, fmt.Errorf("hr: decode dataset yaml: %w", err)
	}
	seen := make(map[int]bool, len(ds.Employees))
	for i, e := range ds.Employees {
		if err := ValidateEmployee(e); err != nil {
			return Dataset{}, fmt.Errorf("hr: employee[%d]: %w", i, err)
		}
		if seen[e.ID] {
			return Dataset{}, fmt.Errorf("hr: employee[%d]: duplicate id %d", i, e.ID)
		}
		seen[e.ID] = true
	}
	return ds, nil
}

// SeedDataset returns the built-in demo records. Each call returns fresh
// slices.
func SeedDataset() Dataset {
	return Dataset{
		Employees: []Employee{
			{ID: 1, Name: "John Doe", Role: "Software Engineer", Department: "Technology", Email: "john.doe@example.com", Phone: "123-456-7890", HireDate: "2022-01-15", AvatarURL: "https://i.pravatar.cc/150?u=1", Performance: []int{85, 88, 90, 86, 92, 95}, Attendance: Attendance{Present: 120, Absent: 5, Late: 2}},
			{ID: 2, Name: "Jane Smith", Role: "Product Manager", Department: "Product", Email: "jane.smith@example.com", Phone: "123-456-7891", HireDate: "2021-11-20", AvatarURL: "https://i.pravatar.cc/150?u=2", Performance: []int{90, 91, 89, 93, 94, 96}, Attendance: Attendance{Present: 122, Absent: 3, Late: 0}},
			{ID: 3, Name: "Peter Jones", Role: "UX Designer", Department: "Design", Email: "peter.jones@example.com", Phone: "123-456-7892", HireDate: "2022-03-10", AvatarURL: "https://i.pravatar.cc/150?u=3", Performance: []int{88, 85, 87, 90, 89, 91}, Attendance: Attendance{Present: 118, Absent: 6, Late: 4}},
			{ID: 4, Name: "Mary Garcia", Role: "HR Specialist", Department: "Human Resources", Email: "mary.garcia@example.com", Phone: "123-456-7893", HireDate: "2020-05-25", AvatarURL: "https://i.pravatar.cc/150?u=4", Performance: []int{92, 93, 95, 94, 96, 97}, Attendance: Attendance{Present: 124, Absent: 1, Late: 1}},
			{ID: 5, Name: "James Brown", Role: "Marketing Manager", Department: "Marketing", Email: "james.brown@example.com", Phone: "123-456-7894", HireDate: "2019-08-01", AvatarURL: "https://i.pravatar.cc/150?u=5", Performance: []int{80, 82, 85, 84, 86, 88}, Attendance: Attendance{Present: 121, Absent: 4, Late: 3}},
		},
		Reviews: []PerformanceReview{
			{ID: 1, EmployeeID: 1, Reviewer: "Jane Smith", Date: "2023-06-30", Score: 95, Comments: "Excellent work this quarter. Consistently delivers high-quality code."},
			{ID: 2, EmployeeID: 2, Reviewer: "Admin", Date: "2023-06-30", Score: 96, Comments: "Great leadership and product vision. The team is well-aligned."},
			{ID: 3, EmployeeID: 3, Reviewer: "Jane Smith", Date: "2023-06-30", Score: 91, Comments: "Creative designs and strong user-centric focus."},
			{ID: 4, EmployeeID: 4, Reviewer: "Admin", Date: "2023-06-30", Score: 97, Comments: "Proactive and highly efficient. A valuable asset to the HR team."},
			{ID: 5, EmployeeID: 5, Reviewer: "Admin", Date: "2023-06-30", Score: 88, Comments: "Successful campaign launch. Look for more data-driven insights next quarter."},
		},
		Jobs: []JobOpening{
			{ID: 1, Title: "Senior Frontend Engineer", Department: "Technology", Status: JobOpen, Applications: 78, Interviews: 12, Hired: 1, HiringManager: "Jane Smith"},
			{ID: 2, Title: "UX/UI Designer", Department: "Design", Status: JobOpen, Applications: 120, Interviews: 15, Hired: 0, HiringManager: "Peter Jones"},
			{ID: 3, Title: "Digital Marketing Specialist", Department: "Marketing", Status: JobClosed, Applications: 95, Interviews: 10, Hired: 1, HiringManager: "James Brown"},
			{ID: 4, Title: "Backend Engineer (Go)", Department: "Technology", Status: JobOnHold, Applications: 55, Interviews: 8, Hired: 0, HiringManager: "Jane Smith"},
		},
		HiredCandidates: []HiredCandidate{
			{ID: 1, Name: "Alice Johnson", JobTitle: "Senior Frontend Engineer", Expertise: []string{"React", "TypeScript", "GraphQL"}, HireDate: "2024-07-15", AvatarURL: "https://i.pravatar.cc/150?u=6"},
			{ID: 2, Name: "Bob Williams", JobTitle: "Digital Marketing Specialist", Expertise: []string{"SEO", "Content Marketing", "Google Analytics"}, HireDate: "2024-06-20", AvatarURL: "https://i.pravatar.cc/150?u=7"},
		},
	}
}
