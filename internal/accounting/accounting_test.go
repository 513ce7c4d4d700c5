// FilePath: internal/accounting/accounting_test.go
package accounting_test

import (
	"context"
	"math"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabwatch/factoryhub/internal/accounting"
	"github.com/fabwatch/factoryhub/internal/database"
	"github.com/fabwatch/factoryhub/internal/errors"
	"github.com/fabwatch/factoryhub/internal/models"
	"github.com/fabwatch/factoryhub/internal/notify"
	"github.com/fabwatch/factoryhub/internal/shift"
)

// =============================================================================
// FAKES
// =============================================================================

type fakeMachineRepo struct {
	machines map[string]*models.Machine
}

func (f *fakeMachineRepo) BeginTx(ctx context.Context) (database.Transaction, error) {
	return nil, nil
}

func (f *fakeMachineRepo) Create(ctx context.Context, m *models.Machine) error {
	f.machines[m.ID] = m
	return nil
}

func (f *fakeMachineRepo) Get(ctx context.Context, id string) (*models.Machine, error) {
	m, ok := f.machines[id]
	if !ok {
		return nil, errors.NewNotFoundError("machine not found", nil)
	}
	return m, nil
}

func (f *fakeMachineRepo) Update(ctx context.Context, m *models.Machine) error {
	f.machines[m.ID] = m
	return nil
}

func (f *fakeMachineRepo) Delete(ctx context.Context, id string) error {
	delete(f.machines, id)
	return nil
}

func (f *fakeMachineRepo) List(ctx context.Context, filters models.MachineFilters, offset, limit int) ([]*models.Machine, error) {
	out := []*models.Machine{}
	for _, m := range f.machines {
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeMachineRepo) ListByType(ctx context.Context, t models.MachineType) ([]*models.Machine, error) {
	out := []*models.Machine{}
	for _, m := range f.machines {
		if m.Type == t {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeMachineRepo) UpdateLastSeen(ctx context.Context, id string, lastSeen time.Time) error {
	if m, ok := f.machines[id]; ok {
		m.LastSeen = lastSeen
	}
	return nil
}

func (f *fakeMachineRepo) DeleteWithLedgers(ctx context.Context, id string, tx database.Transaction) error {
	delete(f.machines, id)
	return nil
}

type fakeLedgerRepo struct {
	rows map[string]*models.DailyLedger // keyed by machineID+"|"+date

	// onGetLatest, when set, runs after the returned copy is taken and
	// before GetLatest returns. Tests use it to interleave a concurrent
	// writer between a caller's read and its conditional update.
	onGetLatest func()
}

func key(machineID, date string) string { return machineID + "|" + date }

func (f *fakeLedgerRepo) BeginTx(ctx context.Context) (database.Transaction, error) {
	return nil, nil
}

func (f *fakeLedgerRepo) Create(ctx context.Context, l *models.DailyLedger) error {
	k := key(l.MachineID, l.Date)
	if _, exists := f.rows[k]; exists {
		return errors.NewDatabaseError("duplicate ledger row", nil)
	}
	cp := *l
	f.rows[k] = &cp
	return nil
}

func (f *fakeLedgerRepo) Update(ctx context.Context, l *models.DailyLedger, expected time.Time) error {
	k := key(l.MachineID, l.Date)
	stored, ok := f.rows[k]
	if !ok {
		return errors.NewNotFoundError("no ledger row", nil)
	}
	if !stored.LastUpdate.Equal(expected) {
		return errors.NewConflictError("ledger row changed concurrently", nil)
	}
	cp := *l
	f.rows[k] = &cp
	return nil
}

func (f *fakeLedgerRepo) GetLatest(ctx context.Context, machineID string) (*models.DailyLedger, error) {
	var latest *models.DailyLedger
	for _, l := range f.rows {
		if l.MachineID != machineID {
			continue
		}
		if latest == nil || l.Date > latest.Date {
			latest = l
		}
	}
	if latest == nil {
		return nil, errors.NewNotFoundError("no ledger rows for machine", nil)
	}
	cp := *latest
	if f.onGetLatest != nil {
		f.onGetLatest()
	}
	return &cp, nil
}

func (f *fakeLedgerRepo) GetByDate(ctx context.Context, machineID, date string) (*models.DailyLedger, error) {
	l, ok := f.rows[key(machineID, date)]
	if !ok {
		return nil, errors.NewNotFoundError("no ledger row for date", nil)
	}
	cp := *l
	return &cp, nil
}

func (f *fakeLedgerRepo) History(ctx context.Context, machineID string, limitDays int) ([]*models.DailyLedger, error) {
	out := []*models.DailyLedger{}
	for _, l := range f.rows {
		if l.MachineID == machineID {
			cp := *l
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	if len(out) > limitDays {
		out = out[:limitDays]
	}
	return out, nil
}

func (f *fakeLedgerRepo) DeleteByMachine(ctx context.Context, machineID string, tx database.Transaction) error {
	for k, l := range f.rows {
		if l.MachineID == machineID {
			delete(f.rows, k)
		}
	}
	return nil
}

// =============================================================================
// TEST SETUP
// =============================================================================

type fixture struct {
	svc      *accounting.Service
	machines *fakeMachineRepo
	ledgers  *fakeLedgerRepo
	clock    *time.Time
	loc      *time.Location
}

// newFixture builds a service over fakes with a 06:00-18:00 UTC shift and
// a controllable clock starting at 08:00 on June 1.
func newFixture(t *testing.T) *fixture {
	window, err := shift.New("06:00", "18:00", "UTC")
	require.NoError(t, err)

	machines := &fakeMachineRepo{machines: map[string]*models.Machine{
		"sm-1": {ID: "sm-1", Name: "Spray line 1", Type: models.MachineTypeSpray},
		"sm-2": {ID: "sm-2", Name: "Spray line 2", Type: models.MachineTypeSpray},
		"cnc-1": {ID: "cnc-1", Name: "CNC mill", Type: models.MachineTypeCNC},
	}}
	ledgers := &fakeLedgerRepo{rows: map[string]*models.DailyLedger{}}

	now := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	clock := &now

	svc := accounting.New(machines, ledgers, window, notify.NopNotifier{}).
		WithClock(func() time.Time { return *clock })

	return &fixture{svc: svc, machines: machines, ledgers: ledgers, clock: clock, loc: time.UTC}
}

func (f *fixture) at(hour, min int) {
	*f.clock = time.Date(2024, 6, 1, hour, min, 0, 0, f.loc)
}

func (f *fixture) advance(d time.Duration) {
	*f.clock = f.clock.Add(d)
}

// =============================================================================
// ACCEPT TELEMETRY
// =============================================================================

func TestAcceptTelemetry_FirstMessageEstablishesBaseline(t *testing.T) {
	// GIVEN: a machine with no ledger history
	// WHEN: the first message ever arrives at 08:00 with counter 50.0
	// THEN: a row is created, baseline 50.0, zero consumption and time
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.AcceptTelemetry(ctx, "sm-1", models.StatusRunning, 50.0)
	require.NoError(t, err)
	require.True(t, res.Accepted)

	l := res.Ledger
	assert.Equal(t, "2024-06-01", l.Date)
	assert.Equal(t, models.StatusRunning, l.LastStatus)
	assert.Equal(t, 50.0, l.EnergyBaseline)
	assert.Equal(t, 50.0, l.CurrentEnergyCounter)
	assert.Equal(t, 0.0, l.TotalEnergyConsumed)
	assert.Equal(t, 0.0, l.ActiveTime)
	assert.Equal(t, 0.0, l.StopTime)
}

func TestAcceptTelemetry_StatusChangeCommitsElapsedTime(t *testing.T) {
	// GIVEN: running since 08:00 with counter 50.0
	// WHEN: a stop message with counter 62.0 arrives at 10:00
	// THEN: activeTime += 2h, consumption = 12.0, status flips
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AcceptTelemetry(ctx, "sm-1", models.StatusRunning, 50.0)
	require.NoError(t, err)

	f.at(10, 0)
	res, err := f.svc.AcceptTelemetry(ctx, "sm-1", models.StatusStopped, 62.0)
	require.NoError(t, err)

	l := res.Ledger
	assert.InDelta(t, 2.0, l.ActiveTime, 1e-9)
	assert.Equal(t, 0.0, l.StopTime)
	assert.InDelta(t, 12.0, l.TotalEnergyConsumed, 1e-9)
	assert.Equal(t, models.StatusStopped, l.LastStatus)
	assert.Equal(t, *f.clock, l.LastStatusChangeTime)
}

func TestAcceptTelemetry_OutsideShiftIgnored(t *testing.T) {
	// P3: a 19:00 message mutates nothing and returns accepted=false.
	f := newFixture(t)
	ctx := context.Background()

	f.at(19, 0)
	res, err := f.svc.AcceptTelemetry(ctx, "sm-1", models.StatusRunning, 50.0)
	require.NoError(t, err)
	assert.False(t, res.Accepted)
	assert.Nil(t, res.Ledger)
	assert.Empty(t, f.ledgers.rows)
}

func TestAcceptTelemetry_DebouncedFlip(t *testing.T) {
	// P4: two status changes 500ms apart record the last status but add
	// no elapsed time to either bucket.
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AcceptTelemetry(ctx, "sm-1", models.StatusRunning, 50.0)
	require.NoError(t, err)

	f.advance(500 * time.Millisecond)
	res, err := f.svc.AcceptTelemetry(ctx, "sm-1", models.StatusStopped, 50.1)
	require.NoError(t, err)

	l := res.Ledger
	assert.Equal(t, 0.0, l.ActiveTime)
	assert.Equal(t, 0.0, l.StopTime)
	assert.Equal(t, models.StatusStopped, l.LastStatus)
}

func TestAcceptTelemetry_SameStatusKeepalivePersistsNoTime(t *testing.T) {
	// The open interval is only captured at the next status change; a
	// keepalive refreshes the counter but commits no hours and keeps the
	// original change timestamp.
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.AcceptTelemetry(ctx, "sm-1", models.StatusRunning, 50.0)
	require.NoError(t, err)
	changeTime := first.Ledger.LastStatusChangeTime

	f.at(11, 0)
	res, err := f.svc.AcceptTelemetry(ctx, "sm-1", models.StatusRunning, 70.0)
	require.NoError(t, err)

	l := res.Ledger
	assert.Equal(t, 0.0, l.ActiveTime)
	assert.Equal(t, 0.0, l.StopTime)
	assert.Equal(t, changeTime, l.LastStatusChangeTime)
	assert.InDelta(t, 20.0, l.TotalEnergyConsumed, 1e-9)
}

func TestAcceptTelemetry_MeterGlitchClampsEnergy(t *testing.T) {
	// P2: a reading below the baseline clamps consumption at zero.
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AcceptTelemetry(ctx, "sm-1", models.StatusRunning, 100.0)
	require.NoError(t, err)

	f.advance(5 * time.Minute)
	res, err := f.svc.AcceptTelemetry(ctx, "sm-1", models.StatusRunning, 80.0)
	require.NoError(t, err)

	assert.Equal(t, 0.0, res.Ledger.TotalEnergyConsumed)
	assert.Equal(t, 80.0, res.Ledger.CurrentEnergyCounter)
}

func TestAcceptTelemetry_TimeClampedToShiftLength(t *testing.T) {
	// P1: committed hours never exceed the shift length even with clock
	// skew producing an oversized interval.
	f := newFixture(t)
	ctx := context.Background()

	f.at(6, 30)
	_, err := f.svc.AcceptTelemetry(ctx, "sm-1", models.StatusRunning, 10.0)
	require.NoError(t, err)

	// Simulate a skewed last-change timestamp far in the past.
	row := f.ledgers.rows[key("sm-1", "2024-06-01")]
	row.LastStatusChangeTime = row.LastStatusChangeTime.Add(-30 * time.Hour)

	f.at(17, 30)
	res, err := f.svc.AcceptTelemetry(ctx, "sm-1", models.StatusStopped, 20.0)
	require.NoError(t, err)

	assert.LessOrEqual(t, res.Ledger.ActiveTime, 12.0)
	assert.GreaterOrEqual(t, res.Ledger.ActiveTime, 0.0)
}

func TestAcceptTelemetry_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AcceptTelemetry(ctx, "sm-1", models.StatusRunning, -1.0)
	assert.True(t, errors.IsValidation(err))

	_, err = f.svc.AcceptTelemetry(ctx, "sm-1", models.StatusRunning, math.NaN())
	assert.True(t, errors.IsValidation(err))

	_, err = f.svc.AcceptTelemetry(ctx, "sm-1", models.MachineStatus(7), 10.0)
	assert.True(t, errors.IsValidation(err))
}

func TestAcceptTelemetry_ConcurrentWriteConflicts(t *testing.T) {
	// Two near-simultaneous messages for the same machine: a writer that
	// lands between this caller's read and its conditional update must
	// surface as a conflict, never a silent overwrite.
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AcceptTelemetry(ctx, "sm-1", models.StatusRunning, 50.0)
	require.NoError(t, err)

	f.advance(2 * time.Hour)
	f.ledgers.onGetLatest = func() {
		row := f.ledgers.rows[key("sm-1", "2024-06-01")]
		row.CurrentEnergyCounter = 55.0
		row.LastUpdate = row.LastUpdate.Add(time.Second)
	}

	_, err = f.svc.AcceptTelemetry(ctx, "sm-1", models.StatusStopped, 62.0)
	assert.True(t, errors.IsConflict(err))

	// The concurrent writer's state survived untouched.
	row := f.ledgers.rows[key("sm-1", "2024-06-01")]
	assert.Equal(t, 55.0, row.CurrentEnergyCounter)
	assert.Equal(t, models.StatusRunning, row.LastStatus)
	assert.Equal(t, 0.0, row.ActiveTime)
}

func TestAcceptTelemetry_WrongMachineType(t *testing.T) {
	// Telemetry for a machine not registered as spray fails before any
	// ledger mutation.
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AcceptTelemetry(ctx, "cnc-1", models.StatusRunning, 10.0)
	assert.True(t, errors.IsNotFound(err))
	assert.Empty(t, f.ledgers.rows)

	_, err = f.svc.AcceptTelemetry(ctx, "ghost", models.StatusRunning, 10.0)
	assert.True(t, errors.IsNotFound(err))
}

// =============================================================================
// RESOLVER / READ PATH
// =============================================================================

func TestResolver_StaleRowCarriesBaselineForward(t *testing.T) {
	// P6: day D ends with counter 120.5; the first message on day D+1
	// creates a row with baseline 120.5.
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AcceptTelemetry(ctx, "sm-1", models.StatusRunning, 120.5)
	require.NoError(t, err)

	// Next day, no rollover happened.
	*f.clock = time.Date(2024, 6, 2, 9, 0, 0, 0, time.UTC)
	res, err := f.svc.AcceptTelemetry(ctx, "sm-1", models.StatusRunning, 130.5)
	require.NoError(t, err)

	l := res.Ledger
	assert.Equal(t, "2024-06-02", l.Date)
	assert.Equal(t, 120.5, l.EnergyBaseline)
	assert.InDelta(t, 10.0, l.TotalEnergyConsumed, 1e-9)
	assert.Equal(t, 0.0, l.ActiveTime)
	assert.Equal(t, 0.0, l.StopTime)
}

func TestResolver_MultiDayGap(t *testing.T) {
	// A machine offline for several days still seeds from its most
	// recent row.
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AcceptTelemetry(ctx, "sm-1", models.StatusRunning, 200.0)
	require.NoError(t, err)

	*f.clock = time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)
	res, err := f.svc.AcceptTelemetry(ctx, "sm-1", models.StatusRunning, 260.0)
	require.NoError(t, err)

	assert.Equal(t, "2024-06-10", res.Ledger.Date)
	assert.Equal(t, 200.0, res.Ledger.EnergyBaseline)
	assert.InDelta(t, 60.0, res.Ledger.TotalEnergyConsumed, 1e-9)
}

func TestPeekLatestLedger_NeverCreates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.PeekLatestLedger(ctx, "sm-1")
	assert.True(t, errors.IsNotFound(err))
	assert.Empty(t, f.ledgers.rows)

	_, err = f.svc.AcceptTelemetry(ctx, "sm-1", models.StatusRunning, 10.0)
	require.NoError(t, err)

	l, err := f.svc.PeekLatestLedger(ctx, "sm-1")
	require.NoError(t, err)
	assert.Equal(t, "2024-06-01", l.Date)
}

// =============================================================================
// ROLLOVER
// =============================================================================

func TestRolloverAll_CarriesBaselineAndResets(t *testing.T) {
	// Scenario 5: latest counter 200.0 -> tomorrow's row starts at
	// baseline 200.0 with zeroed time/energy.
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AcceptTelemetry(ctx, "sm-1", models.StatusRunning, 200.0)
	require.NoError(t, err)

	report, err := f.svc.RolloverAll(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "2024-06-02", report.TargetDate)
	assert.Contains(t, report.Processed, "sm-1")
	assert.Contains(t, report.Processed, "sm-2")
	assert.NotContains(t, report.Processed, "cnc-1")
	assert.Empty(t, report.Failed)

	row, err := f.svc.PeekLatestLedger(ctx, "sm-1")
	require.NoError(t, err)
	assert.Equal(t, "2024-06-02", row.Date)
	assert.Equal(t, 200.0, row.EnergyBaseline)
	assert.Equal(t, 200.0, row.CurrentEnergyCounter)
	assert.Equal(t, 0.0, row.ActiveTime)
	assert.Equal(t, 0.0, row.StopTime)
	assert.Equal(t, 0.0, row.TotalEnergyConsumed)

	// sm-2 never reported: baseline 0.
	row2, err := f.svc.PeekLatestLedger(ctx, "sm-2")
	require.NoError(t, err)
	assert.Equal(t, 0.0, row2.EnergyBaseline)
}

func TestRolloverAll_Idempotent(t *testing.T) {
	// P5: running the rollover twice converges on the same row.
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AcceptTelemetry(ctx, "sm-1", models.StatusRunning, 150.0)
	require.NoError(t, err)

	_, err = f.svc.RolloverAll(ctx, 1)
	require.NoError(t, err)
	first, err := f.svc.PeekLatestLedger(ctx, "sm-1")
	require.NoError(t, err)

	report, err := f.svc.RolloverAll(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, report.Failed)

	second, err := f.svc.PeekLatestLedger(ctx, "sm-1")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.EnergyBaseline, second.EnergyBaseline)
	assert.Equal(t, first.ActiveTime, second.ActiveTime)
	assert.Equal(t, first.TotalEnergyConsumed, second.TotalEnergyConsumed)
}

// =============================================================================
// STATISTICS
// =============================================================================

func TestStatistics_SumsHistoryWindow(t *testing.T) {
	// Scenario 6: activeTime [4,5,6], stopTime [8,7,6] over three days.
	f := newFixture(t)
	ctx := context.Background()

	days := []struct {
		date   string
		active float64
		stop   float64
		energy float64
	}{
		{"2024-05-29", 4, 8, 10},
		{"2024-05-30", 5, 7, 12},
		{"2024-05-31", 6, 6, 14},
	}
	for _, d := range days {
		f.ledgers.rows[key("sm-1", d.date)] = &models.DailyLedger{
			ID: "dl-" + d.date, MachineID: "sm-1", Date: d.date,
			ActiveTime: d.active, StopTime: d.stop, TotalEnergyConsumed: d.energy,
		}
	}

	stats, err := f.svc.Statistics(ctx, "sm-1", 30)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.DaysCount)
	assert.InDelta(t, 15.0, stats.TotalActiveTime, 1e-9)
	assert.InDelta(t, 21.0, stats.TotalStopTime, 1e-9)
	assert.InDelta(t, 36.0, stats.TotalEnergyConsumed, 1e-9)
	assert.InDelta(t, 15.0/36.0*100, stats.AverageEfficiencyPct, 1e-6)
}

func TestStatistics_EmptyHistoryZeroEfficiency(t *testing.T) {
	f := newFixture(t)

	stats, err := f.svc.Statistics(context.Background(), "sm-1", 30)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.DaysCount)
	assert.Equal(t, 0.0, stats.AverageEfficiencyPct)
}
