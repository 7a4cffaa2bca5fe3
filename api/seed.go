/*
seed.go - Demo data loader

PURPOSE:
  Populates an empty database with a realistic demo organisation so the
  mobile and admin pages have something to show.

WHAT GETS CREATED:
  - 3 managers (M2001-M2003) and 20 employees (E1001-E1020)
  - For the demo employee: 30 days of weekday history, with LEAVE
    yesterday, ABSENT 14 days ago, and today left unmarked
  - For everyone else: PRESENT today with 80% probability

IDEMPOTENCE:
  Seeding is skipped when any employee exists.

USAGE:
  result, err := api.Seed(ctx, store, api.SeedOptions{})
  // or: attendance-server seed

SEE ALSO:
  - cmd/server/main.go: Runs Seed on startup when seed.enabled is set
*/
package api

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/warp/attendance-engine/attendance"
	"go.uber.org/zap"
)

// =============================================================================
// DEMO ORGANISATION
// =============================================================================

type seedEmployee struct {
	id, name, location, manager string
	email, device               string
}

var seedEmployees = []seedEmployee{
	{id: "M2001", name: "Vivek Sharma", location: "Hyderabad"},
	{id: "M2002", name: "Sanjay Dutt", location: "Mumbai"},
	{id: "M2003", name: "Shah Rukh Khan", location: "Delhi"},
	{id: "E1001", name: "Ananya Gupta", location: "Hyderabad", manager: "M2001", email: "ananyagupta@atombanking.onmicrosoft.com", device: "OnePlus Pad"},
	{id: "E1002", name: "Rahul Sharma", location: "Bangalore", manager: "M2001"},
	{id: "E1003", name: "Priya Patel", location: "Mumbai", manager: "M2001"},
	{id: "E1004", name: "Amit Kumar", location: "Delhi", manager: "M2002"},
	{id: "E1005", name: "Sneha Reddy", location: "Hyderabad", manager: "M2001"},
	{id: "E1006", name: "Vikram Singh", location: "Pune", manager: "M2002"},
	{id: "E1007", name: "Neha Gupta", location: "Gurgaon", manager: "M2003"},
	{id: "E1008", name: "Rohan Das", location: "Kolkata", manager: "M2003"},
	{id: "E1009", name: "Kavita Rao", location: "Chennai", manager: "M2001"},
	{id: "E1010", name: "Arjun Nair", location: "Kochi", manager: "M2002"},
	{id: "E1011", name: "Meera Joshi", location: "Ahmedabad", manager: "M2003"},
	{id: "E1012", name: "Siddharth Malhotra", location: "Hyderabad", manager: "M2001"},
	{id: "E1013", name: "Ishaan Verma", location: "Bangalore", manager: "M2002"},
	{id: "E1014", name: "Zoya Khan", location: "Mumbai", manager: "M2003"},
	{id: "E1015", name: "Aditya Roy", location: "Delhi", manager: "M2001"},
	{id: "E1016", name: "Nisha Agarwal", location: "Jaipur", manager: "M2002"},
	{id: "E1017", name: "Varun Dhawan", location: "Indore", manager: "M2003"},
	{id: "E1018", name: "Pooja Hegde", location: "Hyderabad", manager: "M2001"},
	{id: "E1019", name: "Karan Johar", location: "Mumbai", manager: "M2002"},
	{id: "E1020", name: "Ranbir Kapoor", location: "Mumbai", manager: "M2003"},
}

var historySources = []string{"BIOMETRIC_GATE_1", "TEAMS_APP", "WIFI_LOGIN_FL3", "CARD_INT_05"}

const (
	defaultDevice     = "Samsung Galaxy S23"
	defaultCostCenter = "CC_FIELD"
	emailDomain       = "drreddys.com"
)

// SeedOptions controls the demo data. Zero values pick sensible defaults.
type SeedOptions struct {
	DemoEmployee attendance.EmployeeID // default E1001
	Today        attendance.Day        // default today in Location
	Location     *time.Location        // default UTC
	Rand         *rand.Rand            // default time-seeded
	Logger       *zap.Logger
}

// SeedResult reports what Seed wrote.
type SeedResult struct {
	Skipped   bool
	Employees int
	Records   int
}

// Seed loads the demo organisation into an empty store in one transaction.
func Seed(ctx context.Context, store attendance.TxStore, opts SeedOptions) (SeedResult, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	demo := opts.DemoEmployee
	if demo == "" {
		demo = "E1001"
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	today := opts.Today
	if today.IsZero() {
		today = attendance.Today(loc)
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	var result SeedResult
	err := store.WithTx(ctx, func(repo attendance.Repository) error {
		n, err := repo.CountEmployees(ctx)
		if err != nil {
			return fmt.Errorf("failed to count employees: %w", err)
		}
		if n > 0 {
			result.Skipped = true
			return nil
		}

		for _, e := range seedEmployees {
			if err := repo.SaveEmployee(ctx, e.employee()); err != nil {
				return err
			}
			result.Employees++
		}

		ledger := attendance.NewLedger(repo, time.Now)
		if isSeedEmployee(demo) {
			written, err := seedHistory(ctx, ledger, demo, today, loc, rng)
			if err != nil {
				return err
			}
			result.Records += written
		} else {
			logger.Warn("demo employee is not part of the seed data, skipping history",
				zap.String("demo_employee", string(demo)))
		}

		for _, e := range seedEmployees {
			if attendance.EmployeeID(e.id) == demo {
				continue
			}
			if rng.Float64() <= 0.2 {
				continue
			}
			if _, err := ledger.Upsert(ctx, attendance.UpsertCommand{
				EmployeeID: attendance.EmployeeID(e.id),
				Day:        today,
				Status:     attendance.StatusPresent,
				Source:     "BIOMETRIC_GATE_MAIN",
			}); err != nil {
				return err
			}
			result.Records++
		}
		return nil
	})
	if err != nil {
		return SeedResult{}, fmt.Errorf("failed to seed demo data: %w", err)
	}

	if result.Skipped {
		logger.Info("seed skipped, data already exists")
	} else {
		logger.Info("seed complete", zap.Int("employees", result.Employees), zap.Int("records", result.Records))
	}
	return result, nil
}

// seedHistory writes the demo employee's last 30 days, weekdays only.
// Today is left unmarked so the mobile check-in can be demonstrated.
func seedHistory(ctx context.Context, ledger *attendance.Ledger, emp attendance.EmployeeID, today attendance.Day, loc *time.Location, rng *rand.Rand) (int, error) {
	written := 0
	for i := 1; i < 30; i++ {
		d := today.AddDays(-i)
		if d.IsWeekend() {
			continue
		}

		status := attendance.StatusPresent
		source := historySources[rng.Intn(len(historySources))]
		switch i {
		case 1:
			status, source = attendance.StatusLeave, "HRMS_PORTAL"
		case 14:
			status, source = attendance.StatusAbsent, "SYSTEM_AUTO"
		}

		checkIn := time.Date(d.Year(), d.Month(), d.DayOfMonth(), 9, rng.Intn(31), 0, 0, loc)
		ledger.Now = func() time.Time { return checkIn }
		if _, err := ledger.Upsert(ctx, attendance.UpsertCommand{
			EmployeeID: emp,
			Day:        d,
			Status:     status,
			Source:     source,
		}); err != nil {
			return written, err
		}
		written++
	}
	ledger.Now = time.Now
	return written, nil
}

func isSeedEmployee(id attendance.EmployeeID) bool {
	for _, e := range seedEmployees {
		if attendance.EmployeeID(e.id) == id {
			return true
		}
	}
	return false
}

func (e seedEmployee) employee() attendance.Employee {
	email := e.email
	if email == "" {
		email = strings.ToLower(strings.Fields(e.name)[0]) + "@" + emailDomain
	}
	device := e.device
	if device == "" {
		device = defaultDevice
	}
	return attendance.Employee{
		ID:         attendance.EmployeeID(e.id),
		Name:       e.name,
		Location:   attendance.StringPtr(e.location),
		CostCenter: attendance.StringPtr(defaultCostCenter),
		Email:      attendance.StringPtr(email),
		Device:     attendance.StringPtr(device),
		ManagerID:  attendance.EmployeePtr(attendance.EmployeeID(e.manager)),
	}
}
