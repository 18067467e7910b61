package domain

import "time"

// Activation statuses.
const (
	ActivationPending   = "pending"
	ActivationSuccess   = "success"
	ActivationForbidden = "forbidden"
	ActivationNotFound  = "not_found"
	ActivationFailed    = "failed"
)

// Activation records one attempt to switch a group item into the live environment.
type Activation struct {
	ID           string     `json:"id" db:"id"`
	GroupName    string     `json:"groupName" db:"group_name"`
	ItemName     string     `json:"itemName" db:"item_name"`
	Status       string     `json:"status" db:"status"`
	Error        string     `json:"error,omitempty" db:"error"`
	AppliedCount int        `json:"appliedCount" db:"applied_count"`
	CreatedAt    time.Time  `json:"createdAt" db:"created_at"`
	FinishedAt   *time.Time `json:"finishedAt,omitempty" db:"finished_at"`
}

// Change kinds reported by an activation preview.
const (
	ChangeCreate    = "create"
	ChangeUpdate    = "update"
	ChangeUnchanged = "unchanged"
)

// PlannedChange is one line of an activation preview.
type PlannedChange struct {
	Name     string `json:"name"`
	Scope    Scope  `json:"source"`
	Value    string `json:"value"`
	Previous string `json:"previous,omitempty"`
	Change   string `json:"change"`
	Allowed  bool   `json:"allowed"`
}

// Plan previews an activation without writing anything.
type Plan struct {
	GroupName string          `json:"groupName"`
	ItemName  string          `json:"itemName"`
	Changes   []PlannedChange `json:"changes"`
	Forbidden bool            `json:"forbidden"`
}
