// FilePath: internal/models/models.machine.go
package models

import "time"

type MachineType string

const (
	MachineTypeSpray  MachineType = "spray"
	MachineTypeCNC    MachineType = "cnc"
	MachineTypePowder MachineType = "powder"
)

// Machine represents a physical machine registered with the hub
type Machine struct {
	ID          string      `json:"id" db:"id"`
	Name        string      `json:"name" db:"name"`
	Description string      `json:"description" db:"description"`
	Type        MachineType `json:"type" db:"type"`
	Location    string      `json:"location" db:"location"`
	IPAddress   string      `json:"ip_address" db:"ip_address" readxs:"system,superadmin,plantadmin" writexs:"system,superadmin,plantadmin"`
	MQTTTopic   string      `json:"mqtt_topic" db:"mqtt_topic" readxs:"system,superadmin,plantadmin" writexs:"system,superadmin,plantadmin"`
	Status      string      `json:"status" db:"status"`
	LastSeen    time.Time   `json:"last_seen" db:"last_seen"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at" db:"updated_at"`
}

// MachineFilters defines the available filter options for machines
type MachineFilters struct {
	Type     MachineType `json:"type" schema:"type"`
	Status   string      `json:"status" schema:"status"`
	Location string      `json:"location" schema:"location"`
}
