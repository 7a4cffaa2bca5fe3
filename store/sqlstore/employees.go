package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/warp/attendance-engine/attendance"
)

// =============================================================================
// EMPLOYEE DIRECTORY (attendance.Directory interface)
// =============================================================================

const employeeColumns = `emp_id, name, location, cost_center, email, device, manager_emp_id`

// GetEmployee retrieves an employee by ID.
func (s *Store) GetEmployee(ctx context.Context, id attendance.EmployeeID) (*attendance.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.repo().GetEmployee(ctx, id)
}

// ListEmployees returns all employees ordered by ID.
func (s *Store) ListEmployees(ctx context.Context) ([]attendance.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.repo().ListEmployees(ctx)
}

// SaveEmployee inserts or replaces an employee.
func (s *Store) SaveEmployee(ctx context.Context, emp attendance.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo().SaveEmployee(ctx, emp)
}

func (s *Store) CountEmployees(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.repo().CountEmployees(ctx)
}

func (r repo) GetEmployee(ctx context.Context, id attendance.EmployeeID) (*attendance.Employee, error) {
	row := r.queryRow(ctx, "SELECT "+employeeColumns+" FROM employees WHERE emp_id = ?", string(id))
	emp, err := scanEmployee(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &emp, nil
}

func (r repo) ListEmployees(ctx context.Context) ([]attendance.Employee, error) {
	rows, err := r.query(ctx, "SELECT "+employeeColumns+" FROM employees ORDER BY emp_id")
	if err != nil {
		return nil, fmt.Errorf("failed to query employees: %w", err)
	}
	defer rows.Close()

	var employees []attendance.Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, emp)
	}
	return employees, rows.Err()
}

func (r repo) SaveEmployee(ctx context.Context, emp attendance.Employee) error {
	query := `
		INSERT INTO employees (` + employeeColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(emp_id) DO UPDATE SET
			name = excluded.name,
			location = excluded.location,
			cost_center = excluded.cost_center,
			email = excluded.email,
			device = excluded.device,
			manager_emp_id = excluded.manager_emp_id
	`
	_, err := r.exec(ctx, query,
		string(emp.ID), emp.Name,
		nullString(emp.Location), nullString(emp.CostCenter),
		nullString(emp.Email), nullString(emp.Device),
		nullEmployee(emp.ManagerID),
	)
	if err != nil {
		return fmt.Errorf("failed to save employee %s: %w", emp.ID, err)
	}
	return nil
}

func (r repo) CountEmployees(ctx context.Context) (int, error) {
	var n int
	err := r.queryRow(ctx, "SELECT COUNT(*) FROM employees").Scan(&n)
	return n, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEmployee(sc scanner) (attendance.Employee, error) {
	var (
		emp                                          attendance.Employee
		id                                           string
		location, costCenter, email, device, manager sql.NullString
	)
	if err := sc.Scan(&id, &emp.Name, &location, &costCenter, &email, &device, &manager); err != nil {
		return emp, err
	}
	emp.ID = attendance.EmployeeID(id)
	emp.Location = stringPtr(location)
	emp.CostCenter = stringPtr(costCenter)
	emp.Email = stringPtr(email)
	emp.Device = stringPtr(device)
	emp.ManagerID = employeePtr(manager)
	return emp, nil
}
