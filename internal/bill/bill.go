package bill

import (
	"time"

	"github.com/zombor/billbuster/internal/ai"
)

// ScriptFormat is the channel a negotiation script is written for
type ScriptFormat string

const (
	ScriptPhone ScriptFormat = "phone"
	ScriptEmail ScriptFormat = "email"
	ScriptChat  ScriptFormat = "chat"
)

// Bill is an analysed bill photograph
type Bill struct {
	ID          string        `json:"id"`
	ImageFile   string        `json:"imageFile"`
	ContentType string        `json:"contentType"`
	Category    ai.Category   `json:"category"`
	Provider    string        `json:"provider"`
	TotalAmount int           `json:"totalAmount"` // cents
	BillDate    string        `json:"billDate"`
	LineItems   []ai.LineItem `json:"lineItems"`
	CreatedAt   time.Time     `json:"createdAt"`
}

// Analysis holds the findings for a bill
type Analysis struct {
	BillID                 string       `json:"billId"`
	Summary                string       `json:"summary"`
	OverallRiskScore       int          `json:"overallRiskScore"`
	TotalIdentifiedSavings int          `json:"totalIdentifiedSavings"` // cents
	Findings               []ai.Finding `json:"findings"`
	CreatedAt              time.Time    `json:"createdAt"`
}

// Script is a generated negotiation script for a bill
type Script struct {
	BillID    string             `json:"billId"`
	Format    ScriptFormat       `json:"format"`
	Sections  []ai.ScriptSection `json:"sections"`
	KeyPoints []string           `json:"keyPoints"`
	CreatedAt time.Time          `json:"createdAt"`
}

// Settings are the install-wide preferences
type Settings struct {
	AIProvider   ai.ProviderType `json:"aiProvider"`
	IsPro        bool            `json:"isPro"`
	ScansUsed    int             `json:"scansUsed"`
	MaxFreeScans int             `json:"maxFreeScans"`
}

// DefaultMaxFreeScans is the free allowance for non-pro installs
const DefaultMaxFreeScans = 3

// DefaultSettings is what GetSettings returns before anything is saved
func DefaultSettings() Settings {
	return Settings{
		AIProvider:   ai.ProviderOpenRouter,
		MaxFreeScans: DefaultMaxFreeScans,
	}
}
