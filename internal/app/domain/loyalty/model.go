package loyalty

import (
	"sort"
	"time"
)

// DefaultDisplayName is assigned to accounts created without a profile name.
const DefaultDisplayName = "unnamed user"

// ScanRecord is one credited store visit. Records are never mutated.
type ScanRecord struct {
	ID        string    `json:"id,omitempty"`
	UserID    string    `json:"userId"`
	StoreID   string    `json:"storeId"`
	Timestamp time.Time `json:"timestamp"`
	Points    int64     `json:"points"`
}

// User is the persisted ledger account without its history.
type User struct {
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	PictureURL  string    `json:"pictureUrl,omitempty"`
	TotalPoints int64     `json:"totalPoints"`
	CreatedAt   time.Time `json:"-"`
	UpdatedAt   time.Time `json:"-"`
}

// Profile carries the identity provider metadata supplied on a scan. Empty
// fields leave the stored value untouched.
type Profile struct {
	UserID      string
	DisplayName string
	PictureURL  string
}

// Summary is the public view of an account returned by the API.
type Summary struct {
	UserID      string       `json:"userId"`
	DisplayName string       `json:"displayName"`
	PictureURL  string       `json:"pictureUrl,omitempty"`
	TotalPoints int64        `json:"totalPoints"`
	ScanHistory []ScanRecord `json:"scanHistory"`
}

// NewSummary combines an account with (already loaded) history.
func NewSummary(u User, history []ScanRecord) Summary {
	if history == nil {
		history = []ScanRecord{}
	}
	return Summary{
		UserID:      u.UserID,
		DisplayName: u.DisplayName,
		PictureURL:  u.PictureURL,
		TotalPoints: u.TotalPoints,
		ScanHistory: history,
	}
}

// SortNewestFirst orders records by timestamp descending. Records with equal
// timestamps keep their insertion order.
func SortNewestFirst(records []ScanRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})
}

// SumPoints totals the points across records.
func SumPoints(records []ScanRecord) int64 {
	var total int64
	for _, r := range records {
		total += r.Points
	}
	return total
}
