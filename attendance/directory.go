package attendance

import (
	"context"
	"fmt"
)

// LookupEmployee returns the employee or *NotFoundError.
func LookupEmployee(ctx context.Context, dir Directory, id EmployeeID) (*Employee, error) {
	emp, err := dir.GetEmployee(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load employee: %w", err)
	}
	if emp == nil {
		return nil, &NotFoundError{Resource: "Employee", ID: string(id)}
	}
	return emp, nil
}

// LookupManager resolves an employee's manager one hop up.
// Fails with *NotFoundError when the employee is unknown, has no manager
// configured, or names a manager that does not exist.
func LookupManager(ctx context.Context, dir Directory, id EmployeeID) (*Employee, error) {
	emp, err := LookupEmployee(ctx, dir, id)
	if err != nil {
		return nil, err
	}
	managerID := Deref(emp.ManagerID)
	if managerID == "" {
		return nil, &NotFoundError{Resource: "Manager", ID: string(id), Message: "Manager not configured for employee"}
	}
	mgr, err := dir.GetEmployee(ctx, managerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load manager: %w", err)
	}
	if mgr == nil {
		return nil, &NotFoundError{Resource: "Manager", ID: string(managerID), Message: "Manager record not found"}
	}
	return mgr, nil
}
