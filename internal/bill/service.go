package bill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/billbuster/internal/ai"
)

// ErrScanLimitReached is returned when a non-pro install has used its free scans
var ErrScanLimitReached = errors.New("free scan limit reached")

// IDGenerator generates unique IDs for bills
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// ProviderFactory returns the AI backend for a provider type
type ProviderFactory interface {
	Provider(t ai.ProviderType) (ai.Provider, error)
}

// ImagePreparer turns an upload into the base64 JPEG the providers expect
type ImagePreparer interface {
	Prepare(data []byte, contentType string) (string, error)
}

// KeyManager stores vendor API keys
type KeyManager interface {
	ProviderKey(provider string) (string, error)
	SetProviderKey(provider, key string) error
	DeleteProviderKey(provider string) error
	DeleteAll() error
}

type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service runs bill analysis and script generation and persists the results
type Service struct {
	db          DB
	storage     Storage
	providers   ProviderFactory
	preparer    ImagePreparer
	keys        KeyManager
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with UUID bill IDs and the wall clock
func NewService(db DB, storage Storage, providers ProviderFactory, preparer ImagePreparer, keys KeyManager) *Service {
	return NewServiceWithDeps(db, storage, providers, preparer, keys, &uuidGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, storage Storage, providers ProviderFactory, preparer ImagePreparer, keys KeyManager, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		storage:     storage,
		providers:   providers,
		preparer:    preparer,
		keys:        keys,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

var (
	unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	repeatedSpaces      = regexp.MustCompile(`\s+`)
)

// sanitizeFilename strips special characters from phone-generated names and caps the length
func sanitizeFilename(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))

	base = unsafeFilenameChars.ReplaceAllString(base, "")
	base = repeatedSpaces.ReplaceAllString(base, " ")
	base = strings.TrimSpace(base)

	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "bill"
	}
	if ext != "" {
		ext = "." + unsafeFilenameChars.ReplaceAllString(ext[1:], "")
	}
	return base + ext
}

// AnalyzeBill stores the photo, has the configured provider analyse it and persists the result
func (s *Service) AnalyzeBill(ctx context.Context, filename string, data []byte, contentType string) (*Bill, *Analysis, error) {
	settings, err := s.db.ReserveScan()
	if errors.Is(err, ErrScanLimitReached) {
		return nil, nil, ErrScanLimitReached
	}
	if err != nil {
		return nil, nil, fmt.Errorf("reserving scan: %w", err)
	}

	// The reserved scan is given back unless the bill is persisted
	persisted := false
	defer func() {
		if persisted {
			return
		}
		if err := s.db.ReleaseScan(); err != nil {
			slog.Warn("Failed to release scan", "error", err)
		}
	}()

	provider, err := s.providers.Provider(settings.AIProvider)
	if err != nil {
		return nil, nil, fmt.Errorf("selecting provider: %w", err)
	}

	id := s.idGenerator.Generate()
	now := s.timeSource.Now()

	savedName, err := s.storage.Save(fmt.Sprintf("%s_%s", id, sanitizeFilename(filename)), data)
	if err != nil {
		return nil, nil, fmt.Errorf("saving file: %w", err)
	}

	cleanup := func() {
		if err := s.storage.Delete(savedName); err != nil {
			slog.Warn("Failed to delete file", "filename", savedName, "error", err)
		}
	}

	imageBase64, err := s.preparer.Prepare(data, contentType)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("preparing image: %w", err)
	}

	resp, err := provider.AnalyzeBill(ctx, imageBase64)
	if err != nil {
		slog.Error("Failed to analyze bill",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"provider", settings.AIProvider,
			"error", err,
		)
		cleanup()
		return nil, nil, fmt.Errorf("analyzing bill: %w", err)
	}

	bill := &Bill{
		ID:          id,
		ImageFile:   savedName,
		ContentType: contentType,
		Category:    resp.Category,
		Provider:    resp.Provider,
		TotalAmount: resp.TotalAmount,
		BillDate:    resp.BillDate,
		LineItems:   resp.LineItems,
		CreatedAt:   now,
	}
	analysis := &Analysis{
		BillID:                 id,
		Summary:                resp.Summary,
		OverallRiskScore:       resp.OverallRiskScore,
		TotalIdentifiedSavings: resp.TotalIdentifiedSavings,
		Findings:               resp.Findings,
		CreatedAt:              now,
	}

	if err := s.db.SaveBill(bill); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("saving bill: %w", err)
	}
	if err := s.db.SaveAnalysis(analysis); err != nil {
		if delErr := s.db.DeleteBill(id); delErr != nil {
			slog.Warn("Failed to roll back bill", "bill_id", id, "error", delErr)
		}
		cleanup()
		return nil, nil, fmt.Errorf("saving analysis: %w", err)
	}

	persisted = true

	slog.Info("Analyzed bill",
		"bill_id", id,
		"provider", settings.AIProvider,
		"findings", len(analysis.Findings),
		"savings", analysis.TotalIdentifiedSavings,
	)
	return bill, analysis, nil
}

// GenerateScript writes a phone negotiation script for a bill's findings and stores it
func (s *Service) GenerateScript(ctx context.Context, billID string) (*Script, error) {
	bill, err := s.db.GetBill(billID)
	if err != nil {
		return nil, fmt.Errorf("getting bill: %w", err)
	}
	analysis, err := s.db.GetAnalysis(billID)
	if err != nil {
		return nil, fmt.Errorf("getting analysis: %w", err)
	}
	settings, err := s.db.GetSettings()
	if err != nil {
		return nil, fmt.Errorf("reading settings: %w", err)
	}
	provider, err := s.providers.Provider(settings.AIProvider)
	if err != nil {
		return nil, fmt.Errorf("selecting provider: %w", err)
	}

	resp, err := provider.GenerateScript(ctx, bill.Provider, analysis.Findings, analysis.TotalIdentifiedSavings)
	if err != nil {
		slog.Error("Failed to generate script", "bill_id", billID, "provider", settings.AIProvider, "error", err)
		return nil, fmt.Errorf("generating script: %w", err)
	}

	script := &Script{
		BillID:    billID,
		Format:    ScriptPhone,
		Sections:  resp.Sections,
		KeyPoints: resp.KeyPoints,
		CreatedAt: s.timeSource.Now(),
	}
	if err := s.db.SaveScript(script); err != nil {
		return nil, fmt.Errorf("saving script: %w", err)
	}
	return script, nil
}

// BillDetail is a bill with everything derived from it
type BillDetail struct {
	Bill     *Bill     `json:"bill"`
	Analysis *Analysis `json:"analysis"`
	Script   *Script   `json:"script"`
}

// GetBill returns a bill, its analysis and its script if one was generated
func (s *Service) GetBill(id string) (*BillDetail, error) {
	bill, err := s.db.GetBill(id)
	if err != nil {
		return nil, fmt.Errorf("getting bill: %w", err)
	}
	detail := &BillDetail{Bill: bill}

	detail.Analysis, err = s.db.GetAnalysis(id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("getting analysis: %w", err)
	}
	detail.Script, err = s.db.GetScript(id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("getting script: %w", err)
	}
	return detail, nil
}

// GetScript returns the stored script of a bill
func (s *Service) GetScript(billID string) (*Script, error) {
	script, err := s.db.GetScript(billID)
	if err != nil {
		return nil, fmt.Errorf("getting script: %w", err)
	}
	return script, nil
}

// ListBills returns all bills, newest first
func (s *Service) ListBills() ([]*Bill, error) {
	bills, err := s.db.ListBills()
	if err != nil {
		return nil, fmt.Errorf("listing bills: %w", err)
	}
	return bills, nil
}

// DeleteBill removes a bill, its derived records and its photo
func (s *Service) DeleteBill(id string) error {
	bill, err := s.db.GetBill(id)
	if err != nil {
		return fmt.Errorf("getting bill for deletion: %w", err)
	}

	if err := s.storage.Delete(bill.ImageFile); err != nil {
		// Log error but continue with database deletion
		slog.Warn("Failed to delete file", "filename", bill.ImageFile, "error", err)
	}

	if err := s.db.DeleteBill(id); err != nil {
		return fmt.Errorf("deleting bill from database: %w", err)
	}
	return nil
}

// GetBillImage returns the stored photo and its content type
func (s *Service) GetBillImage(id string) ([]byte, string, error) {
	bill, err := s.db.GetBill(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting bill: %w", err)
	}
	data, err := s.storage.Get(bill.ImageFile)
	if err != nil {
		return nil, "", fmt.Errorf("getting bill image: %w", err)
	}
	return data, bill.ContentType, nil
}

// Savings is the running total across all bills
type Savings struct {
	TotalSavings int `json:"totalSavings"` // cents
	BillCount    int `json:"billCount"`
}

// Savings totals identified savings
func (s *Service) Savings() (Savings, error) {
	total, err := s.db.TotalSavings()
	if err != nil {
		return Savings{}, fmt.Errorf("totaling savings: %w", err)
	}
	count, err := s.db.BillCount()
	if err != nil {
		return Savings{}, fmt.Errorf("counting bills: %w", err)
	}
	return Savings{TotalSavings: total, BillCount: count}, nil
}

// Settings returns the current settings
func (s *Service) Settings() (Settings, error) {
	settings, err := s.db.GetSettings()
	if err != nil {
		return Settings{}, fmt.Errorf("reading settings: %w", err)
	}
	return settings, nil
}

// SetProvider switches the AI backend used for new analyses
func (s *Service) SetProvider(t ai.ProviderType) (Settings, error) {
	settings, err := s.db.UpdateSettings(func(settings *Settings) error {
		settings.AIProvider = t
		return nil
	})
	if err != nil {
		return Settings{}, fmt.Errorf("saving settings: %w", err)
	}
	return settings, nil
}

// KeyStatus reports which providers have a key configured
func (s *Service) KeyStatus() (map[ai.ProviderType]bool, error) {
	status := make(map[ai.ProviderType]bool, len(ai.ProviderTypes))
	for _, t := range ai.ProviderTypes {
		key, err := s.keys.ProviderKey(string(t))
		if err != nil {
			return nil, fmt.Errorf("reading %s key: %w", t, err)
		}
		status[t] = key != ""
	}
	return status, nil
}

// SetProviderKey stores a vendor key
func (s *Service) SetProviderKey(t ai.ProviderType, key string) error {
	if err := s.keys.SetProviderKey(string(t), key); err != nil {
		return fmt.Errorf("storing %s key: %w", t, err)
	}
	return nil
}

// DeleteProviderKey removes a stored vendor key
func (s *Service) DeleteProviderKey(t ai.ProviderType) error {
	if err := s.keys.DeleteProviderKey(string(t)); err != nil {
		return fmt.Errorf("deleting %s key: %w", t, err)
	}
	return nil
}

// ValidateProviderKey pings the vendor with candidate, or with the stored key when candidate is empty
func (s *Service) ValidateProviderKey(ctx context.Context, t ai.ProviderType, candidate string) (ai.KeyCheck, error) {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		key, err := s.keys.ProviderKey(string(t))
		if err != nil {
			return ai.KeyCheck{}, fmt.Errorf("reading %s key: %w", t, err)
		}
		candidate = key
	}
	provider, err := s.providers.Provider(t)
	if err != nil {
		return ai.KeyCheck{}, fmt.Errorf("selecting provider: %w", err)
	}
	return provider.ValidateKey(ctx, candidate), nil
}

// DeleteAllData removes every bill, photo and stored key. Settings and scan usage are kept.
func (s *Service) DeleteAllData() error {
	bills, err := s.db.ListBills()
	if err != nil {
		return fmt.Errorf("listing bills: %w", err)
	}
	for _, bill := range bills {
		if err := s.storage.Delete(bill.ImageFile); err != nil {
			slog.Warn("Failed to delete file", "filename", bill.ImageFile, "error", err)
		}
	}
	if err := s.db.DeleteAllData(); err != nil {
		return fmt.Errorf("deleting records: %w", err)
	}
	if err := s.keys.DeleteAll(); err != nil {
		return fmt.Errorf("deleting keys: %w", err)
	}
	slog.Info("Deleted all data", "bills", len(bills))
	return nil
}
