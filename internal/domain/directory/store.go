package directory

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

func (s *Store) CreateEmployee(ctx context.Context, e Employee) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO employees (user_id, first_name, last_name, company, department, job_title, manager_id)
    VALUES (NULLIF($1,'')::uuid, $2, $3, $4, $5, NULLIF($6,''), NULLIF($7,'')::uuid)
    RETURNING id
  `, e.UserID, e.FirstName, e.LastName, e.Company, e.Department, e.JobTitle, e.ManagerID).Scan(&id)
	return id, err
}

func (s *Store) GetEmployee(ctx context.Context, employeeID string) (Employee, error) {
	var e Employee
	err := s.DB.QueryRow(ctx, `
    SELECT id,
           COALESCE(user_id::text, ''),
           first_name, last_name, company, department,
           COALESCE(job_title, ''),
           COALESCE(manager_id::text, ''),
           created_at
    FROM employees
    WHERE id = $1
  `, employeeID).Scan(&e.ID, &e.UserID, &e.FirstName, &e.LastName, &e.Company, &e.Department, &e.JobTitle, &e.ManagerID, &e.CreatedAt)
	return e, err
}

func (s *Store) ListEmployees(ctx context.Context, department string, limit, offset int) ([]Employee, error) {
	query := `
    SELECT id,
           COALESCE(user_id::text, ''),
           first_name, last_name, company, department,
           COALESCE(job_title, ''),
           COALESCE(manager_id::text, ''),
           created_at
    FROM employees
  `
	args := []any{}
	if department != "" {
		query += " WHERE department = $1"
		args = append(args, department)
	}
	query += fmt.Sprintf(" ORDER BY last_name, first_name LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Employee
	for rows.Next() {
		var e Employee
		if err := rows.Scan(&e.ID, &e.UserID, &e.FirstName, &e.LastName, &e.Company, &e.Department, &e.JobTitle, &e.ManagerID, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// EmployeeEmail resolves the login email of the employee's linked user, if
// any.
func (s *Store) EmployeeEmail(ctx context.Context, employeeID string) (string, error) {
	var email string
	err := s.DB.QueryRow(ctx, `
    SELECT u.email
    FROM employees e
    JOIN users u ON e.user_id = u.id
    WHERE e.id = $1
  `, employeeID).Scan(&email)
	return email, err
}

func (s *Store) IsManagerOf(ctx context.Context, managerEmployeeID, employeeID string) (bool, error) {
	var count int
	err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1) FROM employees WHERE id = $1 AND manager_id = $2
  `, employeeID, managerEmployeeID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// IsApproverFor reports whether the approver is the employee's direct manager
// or appears at any level of the employee's approval chain.
func (s *Store) IsApproverFor(ctx context.Context, approverEmployeeID, employeeID string) (bool, error) {
	direct, err := s.IsManagerOf(ctx, approverEmployeeID, employeeID)
	if err != nil {
		return false, err
	}
	if direct {
		return true, nil
	}

	var count int
	err = s.DB.QueryRow(ctx, `
    SELECT COUNT(1) FROM approval_chain WHERE employee_id = $1 AND manager_id = $2
  `, employeeID, approverEmployeeID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Store) ListChain(ctx context.Context, employeeID string) ([]ChainLink, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, employee_id, manager_id, department, sequence_level, created_at
    FROM approval_chain
    WHERE employee_id = $1
    ORDER BY sequence_level
  `, employeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ChainLink
	for rows.Next() {
		var link ChainLink
		if err := rows.Scan(&link.ID, &link.EmployeeID, &link.ManagerID, &link.Department, &link.SequenceLevel, &link.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, link)
	}
	return out, rows.Err()
}

func (s *Store) UpsertChainLink(ctx context.Context, link ChainLink) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO approval_chain (employee_id, manager_id, department, sequence_level)
    VALUES ($1, $2, $3, $4)
    ON CONFLICT (employee_id, sequence_level)
    DO UPDATE SET manager_id = EXCLUDED.manager_id, department = EXCLUDED.department
    RETURNING id
  `, link.EmployeeID, link.ManagerID, link.Department, link.SequenceLevel).Scan(&id)
	return id, err
}

func (s *Store) DeleteChainLink(ctx context.Context, linkID string) error {
	_, err := s.DB.Exec(ctx, "DELETE FROM approval_chain WHERE id = $1", linkID)
	return err
}
