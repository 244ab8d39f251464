package model

import "time"

// ProjectStatus tracks an estimate's lifecycle.
type ProjectStatus string

const (
	ProjectStatusDraft     ProjectStatus = "draft"
	ProjectStatusEstimated ProjectStatus = "estimated"
	ProjectStatusFailed    ProjectStatus = "failed"
)

// Progress is the coarse job progress persisted on the project record so a
// polling client can render a progress bar during slow enrichment.
type Progress struct {
	Step            string `json:"step"`
	Percent         int    `json:"percent"`
	CurrentItem     int    `json:"current_item,omitempty"`
	TotalItems      int    `json:"total_items,omitempty"`
	CurrentMaterial string `json:"current_material,omitempty"`
	CurrentSource   string `json:"current_source,omitempty"`
}

// Project is one estimation job: the user's description plus the generated,
// price-enriched bill of materials and cost totals.
type Project struct {
	ID            string          `json:"id"`
	Status        ProjectStatus   `json:"status"`
	ProjectType   string          `json:"project_type"`
	Description   string          `json:"description"`
	Location      string          `json:"location,omitempty"`
	BOM           []PriceDecision `json:"bom"`
	MaterialTotal int64           `json:"material_total_idr"`
	LaborTotal    int64           `json:"labor_total_idr"`
	GrandTotal    int64           `json:"grand_total_idr"`
	Progress      *Progress       `json:"progress,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}
