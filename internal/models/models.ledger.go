// FilePath: internal/models/models.ledger.go
package models

import "time"

// MachineStatus is the run/stop flag reported by spray machine telemetry.
type MachineStatus int

const (
	StatusStopped MachineStatus = 0
	StatusRunning MachineStatus = 1
)

// DateKeyLayout is the calendar-date format used for ledger day keys.
const DateKeyLayout = "2006-01-02"

// DailyLedger is the accounting record for one spray machine on one
// operating day. Active/stop time are accumulated hours of closed
// run/stop intervals; energy figures derive from the machine's
// monotonically increasing kWh counter.
type DailyLedger struct {
	ID                   string        `json:"id" db:"id"`
	MachineID            string        `json:"machine_id" db:"machine_id"`
	Date                 string        `json:"date" db:"date"`
	ActiveTime           float64       `json:"active_time" db:"active_time"`
	StopTime             float64       `json:"stop_time" db:"stop_time"`
	TotalEnergyConsumed  float64       `json:"total_energy_consumed" db:"total_energy_consumed"`
	EnergyBaseline       float64       `json:"energy_baseline" db:"energy_baseline"`
	CurrentEnergyCounter float64       `json:"current_energy_counter" db:"current_energy_counter"`
	LastStatus           MachineStatus `json:"last_status" db:"last_status"`
	LastStatusChangeTime time.Time     `json:"last_status_change_time" db:"last_status_change_time"`
	LastUpdate           time.Time     `json:"last_update" db:"last_update"`
	CreatedAt            time.Time     `json:"created_at" db:"created_at"`
}

// TelemetryResult is the outcome of one accepted or ignored telemetry
// message. Accepted=false with a nil Ledger means the message fell
// outside the work shift; that is a defined no-op, not an error.
type TelemetryResult struct {
	Accepted bool         `json:"accepted"`
	Ledger   *DailyLedger `json:"ledger,omitempty"`
}

// LedgerStatistics aggregates a machine's ledger history window.
type LedgerStatistics struct {
	MachineID            string  `json:"machine_id"`
	TotalActiveTime      float64 `json:"total_active_time"`
	TotalStopTime        float64 `json:"total_stop_time"`
	TotalEnergyConsumed  float64 `json:"total_energy_consumed"`
	AverageEfficiencyPct float64 `json:"average_efficiency_pct"`
	DaysCount            int     `json:"days_count"`
}

// RolloverReport summarizes one day-rollover run across all spray machines.
type RolloverReport struct {
	TargetDate string            `json:"target_date"`
	Processed  []string          `json:"processed"`
	Failed     map[string]string `json:"failed,omitempty"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
}
