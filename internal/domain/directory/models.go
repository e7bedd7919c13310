package directory

import "time"

type Employee struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId,omitempty"`
	FirstName  string    `json:"firstName"`
	LastName   string    `json:"lastName"`
	Company    string    `json:"company"`
	Department string    `json:"department"`
	JobTitle   string    `json:"jobTitle,omitempty"`
	ManagerID  string    `json:"managerId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ChainLink routes an employee's approvals to a manager at a given level.
type ChainLink struct {
	ID            string    `json:"id"`
	EmployeeID    string    `json:"employeeId"`
	ManagerID     string    `json:"managerId"`
	Department    string    `json:"department"`
	SequenceLevel int       `json:"sequenceLevel"`
	CreatedAt     time.Time `json:"createdAt"`
}
