package models

// RecipientError reports one address that could not be sent to
type RecipientError struct {
	To    string `json:"to"`
	Error string `json:"error"`
}

// DispatchResult summarises one run of the batch dispatcher
type DispatchResult struct {
	TotalSent   int              `json:"totalSent"`
	TotalFailed int              `json:"totalFailed"`
	Errors      []RecipientError `json:"errors"`
}

// SchedulerPass summarises one scheduler pass over due campaigns
type SchedulerPass struct {
	Due        int `json:"due"`
	Dispatched int `json:"dispatched"`
	Failed     int `json:"failed"`
}

// ImportSummary reports the outcome of a subscriber CSV import
type ImportSummary struct {
	TotalRows   int      `json:"totalRows"`
	Created     int      `json:"created"`
	Reactivated int      `json:"reactivated"`
	Skipped     int      `json:"skipped"`
	Errors      []string `json:"errors"`
}

// NewsletterOverview aggregates subscriber and campaign counts for the admin dashboard
type NewsletterOverview struct {
	TotalSubscribers    int64                    `json:"totalSubscribers"`
	ActiveSubscribers   int64                    `json:"activeSubscribers"`
	InactiveSubscribers int64                    `json:"inactiveSubscribers"`
	CampaignsByStatus   map[CampaignStatus]int64 `json:"campaignsByStatus"`
}

// Pagination describes a page of a listing
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int64 `json:"pages"`
}

// NewPagination computes the page count for total items.
func NewPagination(page, limit int, total int64) Pagination {
	pages := int64(0)
	if limit > 0 {
		pages = (total + int64(limit) - 1) / int64(limit)
	}
	return Pagination{Page: page, Limit: limit, Total: total, Pages: pages}
}
