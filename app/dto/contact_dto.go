package dto

// ImportContactEntry represents one contact row in an import request
type ImportContactEntry struct {
	Phone string   `json:"phone" validate:"required,min=7,max=20"`
	Name  string   `json:"name,omitempty" validate:"omitempty,max=255"`
	Tags  []string `json:"tags,omitempty" validate:"omitempty,dive,max=64"`
}

// ImportContactsRequest represents a JSON contact import
type ImportContactsRequest struct {
	CustomerID uint                 `json:"-"`
	CampaignID uint                 `json:"-"`
	Contacts   []ImportContactEntry `json:"contacts" validate:"required,min=1,max=10000,dive"`
}

// ImportContactsResponse reports the outcome of one import batch. Every row
// of the input is accounted for in exactly one counter.
type ImportContactsResponse struct {
	Message          string   `json:"message"`
	Admitted         int      `json:"admitted"`
	SkippedDuplicate int      `json:"skipped_duplicate"`
	RejectedInvalid  int      `json:"rejected_invalid"`
	InvalidPhones    []string `json:"invalid_phones,omitempty"`
	TotalContacts    int      `json:"total_contacts"`
}
