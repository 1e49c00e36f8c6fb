package ai

import "context"

// Category is the kind of service a bill is for
type Category string

const (
	CategoryPhone        Category = "phone"
	CategoryInternet     Category = "internet"
	CategoryCable        Category = "cable"
	CategoryElectric     Category = "electric"
	CategoryGas          Category = "gas"
	CategoryWater        Category = "water"
	CategoryInsurance    Category = "insurance"
	CategoryMedical      Category = "medical"
	CategorySubscription Category = "subscription"
	CategoryOther        Category = "other"
)

// FindingType classifies a detected billing issue
type FindingType string

const (
	FindingOvercharge         FindingType = "overcharge"
	FindingHiddenFee          FindingType = "hidden_fee"
	FindingError              FindingType = "error"
	FindingRateIncrease       FindingType = "rate_increase"
	FindingUnnecessaryService FindingType = "unnecessary_service"
	FindingOptimization       FindingType = "optimization"
)

// Severity ranks how much a finding matters
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// LineItem is one charge row read off the bill. Amounts are in cents.
type LineItem struct {
	Description   string  `json:"description"`
	Amount        int     `json:"amount"`
	Flagged       bool    `json:"flagged"`
	FlagReason    string  `json:"flagReason,omitempty"`
	TypicalAmount *int    `json:"typicalAmount,omitempty"`
	Confidence    float64 `json:"confidence"` // 0-1
}

// Finding is a single detected billing issue
type Finding struct {
	Type             FindingType `json:"type"`
	Severity         Severity    `json:"severity"`
	Title            string      `json:"title"`
	Description      string      `json:"description"`
	EstimatedSavings int         `json:"estimatedSavings"` // cents
	Confidence       float64     `json:"confidence"`       // 0-1
}

// BillAnalysisResponse is what a provider returns for a bill photograph
type BillAnalysisResponse struct {
	Provider               string     `json:"provider"`
	Category               Category   `json:"category"`
	TotalAmount            int        `json:"totalAmount"` // cents
	BillDate               string     `json:"billDate"`    // YYYY-MM-DD
	LineItems              []LineItem `json:"lineItems"`
	Findings               []Finding  `json:"findings"`
	Summary                string     `json:"summary"`
	OverallRiskScore       int        `json:"overallRiskScore"`       // 0-100
	TotalIdentifiedSavings int        `json:"totalIdentifiedSavings"` // cents
}

// ScriptSection is one titled block of a negotiation script
type ScriptSection struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// ScriptGenerationResponse is what a provider returns for a negotiation script request
type ScriptGenerationResponse struct {
	Sections  []ScriptSection `json:"sections"`
	KeyPoints []string        `json:"keyPoints"`
}

// KeyCheck is the outcome of pinging a vendor with an API key
type KeyCheck struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// KeyStore looks up the API key for a provider. A missing key is "" with a nil error.
type KeyStore interface {
	ProviderKey(provider string) (string, error)
}

// Provider defines the operations every AI backend offers
type Provider interface {
	// Name returns the display name of the backend
	Name() string
	// AnalyzeBill sends a base64 JPEG of a bill and returns the parsed analysis
	AnalyzeBill(ctx context.Context, imageBase64 string) (*BillAnalysisResponse, error)
	// GenerateScript builds a phone negotiation script from previously found issues
	GenerateScript(ctx context.Context, providerName string, findings []Finding, totalSavings int) (*ScriptGenerationResponse, error)
	// ValidateKey checks a candidate API key against the vendor
	ValidateKey(ctx context.Context, apiKey string) KeyCheck
}
