package domain

import "time"

// ApprovalStatus is the human decision recorded on a concept or SVG version.
type ApprovalStatus string

const (
	ApprovalPending             ApprovalStatus = "pending"
	ApprovalApproved            ApprovalStatus = "approved"
	ApprovalApprovedWithChanges ApprovalStatus = "approved_with_changes"
	ApprovalRejected            ApprovalStatus = "rejected"
)

// IsValid reports whether s is a known status.
func (s ApprovalStatus) IsValid() bool {
	switch s {
	case ApprovalPending, ApprovalApproved, ApprovalApprovedWithChanges, ApprovalRejected:
		return true
	default:
		return false
	}
}

// IsDecision reports whether s is a status a reviewer can submit.
func (s ApprovalStatus) IsDecision() bool {
	return s == ApprovalApproved || s == ApprovalApprovedWithChanges || s == ApprovalRejected
}

// Accepts reports whether s lets the workflow move on.
func (s ApprovalStatus) Accepts() bool {
	return s == ApprovalApproved || s == ApprovalApprovedWithChanges
}

// ApprovalItemType tags what an approval item refers to.
type ApprovalItemType string

const (
	ApprovalItemConcept ApprovalItemType = "concept"
	ApprovalItemSVG     ApprovalItemType = "svg"
)

// ApprovalItem is one entity awaiting a decision.
type ApprovalItem struct {
	ID       string           `json:"id"`
	Type     ApprovalItemType `json:"type"`
	EntityID string           `json:"entity_id"`
	Status   ApprovalStatus   `json:"status"`
	Feedback string           `json:"feedback,omitempty"`
}

// ApprovalRequest is the single outstanding approval for a session.
type ApprovalRequest struct {
	Phase       Phase          `json:"phase"`
	Items       []ApprovalItem `json:"items"`
	RequestedAt time.Time      `json:"requested_at"`
}

// Item returns the item with the given id.
func (r *ApprovalRequest) Item(id string) (*ApprovalItem, bool) {
	for i := range r.Items {
		if r.Items[i].ID == id {
			return &r.Items[i], true
		}
	}
	return nil, false
}

// Resolved reports whether every item has been accepted.
func (r *ApprovalRequest) Resolved() bool {
	for _, item := range r.Items {
		if !item.Status.Accepts() {
			return false
		}
	}
	return true
}
