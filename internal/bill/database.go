package bill

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"
)

const (
	billsBucket    = "bills"
	analysesBucket = "analyses"
	scriptsBucket  = "scripts"
	settingsBucket = "settings"

	settingsKey = "settings"
)

var (
	allBuckets    = []string{billsBucket, analysesBucket, scriptsBucket, settingsBucket}
	recordBuckets = []string{billsBucket, analysesBucket, scriptsBucket}
)

// ErrNotFound is returned (wrapped) when a record does not exist
var ErrNotFound = errors.New("not found")

// DB defines the interface for database operations
type DB interface {
	// SaveBill saves a bill
	SaveBill(bill *Bill) error

	// GetBill retrieves a bill by ID
	GetBill(id string) (*Bill, error)

	// ListBills returns all bills, newest first
	ListBills() ([]*Bill, error)

	// DeleteBill removes a bill with its analysis and script
	DeleteBill(id string) error

	SaveAnalysis(analysis *Analysis) error
	GetAnalysis(billID string) (*Analysis, error)

	SaveScript(script *Script) error
	GetScript(billID string) (*Script, error)

	// TotalSavings sums the identified savings of every analysis, in cents
	TotalSavings() (int, error)

	BillCount() (int, error)

	// GetSettings returns DefaultSettings when nothing was saved
	GetSettings() (Settings, error)
	SaveSettings(settings Settings) error

	// UpdateSettings modifies the stored settings in one write transaction
	UpdateSettings(fn func(*Settings) error) (Settings, error)

	// ReserveScan checks the free-scan gate and counts one scan in a single
	// transaction. It returns ErrScanLimitReached when no scan is left.
	ReserveScan() (Settings, error)

	// ReleaseScan gives back a scan taken by ReserveScan
	ReleaseScan() error

	// DeleteAllData empties the bill, analysis and script buckets. Settings survive.
	DeleteAllData() error

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(createBuckets)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

func createBuckets(tx *bbolt.Tx) error {
	for _, name := range allBuckets {
		if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
			return err
		}
	}
	return nil
}

func (b *BoltDB) put(bucket, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", bucket, err)
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucket)).Put([]byte(key), data)
	})
}

func (b *BoltDB) get(bucket, key string, v any) error {
	return b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(bucket)).Get([]byte(key))
		if data == nil {
			return fmt.Errorf("%s %s: %w", bucket, key, ErrNotFound)
		}
		return json.Unmarshal(data, v)
	})
}

// SaveBill saves a bill to the database
func (b *BoltDB) SaveBill(bill *Bill) error {
	return b.put(billsBucket, bill.ID, bill)
}

// GetBill retrieves a bill by ID
func (b *BoltDB) GetBill(id string) (*Bill, error) {
	var bill Bill
	if err := b.get(billsBucket, id, &bill); err != nil {
		return nil, err
	}
	return &bill, nil
}

// ListBills returns all bills, newest first
func (b *BoltDB) ListBills() ([]*Bill, error) {
	bills := make([]*Bill, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(billsBucket)).ForEach(func(k, v []byte) error {
			var bill Bill
			if err := json.Unmarshal(v, &bill); err != nil {
				return fmt.Errorf("unmarshaling bill: %w", err)
			}
			bills = append(bills, &bill)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(bills, func(i, j int) bool {
		return bills[i].CreatedAt.After(bills[j].CreatedAt)
	})
	return bills, nil
}

// DeleteBill removes a bill and everything derived from it
func (b *BoltDB) DeleteBill(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket([]byte(billsBucket)).Get([]byte(id)) == nil {
			return fmt.Errorf("%s %s: %w", billsBucket, id, ErrNotFound)
		}
		for _, name := range recordBuckets {
			if err := tx.Bucket([]byte(name)).Delete([]byte(id)); err != nil {
				return err
			}
		}
		return nil
	})
}

// SaveAnalysis stores the analysis keyed by its bill
func (b *BoltDB) SaveAnalysis(analysis *Analysis) error {
	return b.put(analysesBucket, analysis.BillID, analysis)
}

// GetAnalysis retrieves the analysis of a bill
func (b *BoltDB) GetAnalysis(billID string) (*Analysis, error) {
	var analysis Analysis
	if err := b.get(analysesBucket, billID, &analysis); err != nil {
		return nil, err
	}
	return &analysis, nil
}

// SaveScript stores the script keyed by its bill, replacing an older one
func (b *BoltDB) SaveScript(script *Script) error {
	return b.put(scriptsBucket, script.BillID, script)
}

// GetScript retrieves the script of a bill
func (b *BoltDB) GetScript(billID string) (*Script, error) {
	var script Script
	if err := b.get(scriptsBucket, billID, &script); err != nil {
		return nil, err
	}
	return &script, nil
}

// TotalSavings sums totalIdentifiedSavings across analyses
func (b *BoltDB) TotalSavings() (int, error) {
	var total int
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(analysesBucket)).ForEach(func(k, v []byte) error {
			var analysis Analysis
			if err := json.Unmarshal(v, &analysis); err != nil {
				return fmt.Errorf("unmarshaling analysis: %w", err)
			}
			total += analysis.TotalIdentifiedSavings
			return nil
		})
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// BillCount returns the number of stored bills
func (b *BoltDB) BillCount() (int, error) {
	var count int
	err := b.db.View(func(tx *bbolt.Tx) error {
		count = tx.Bucket([]byte(billsBucket)).Stats().KeyN
		return nil
	})
	return count, err
}

// GetSettings returns the saved settings or the defaults
func (b *BoltDB) GetSettings() (Settings, error) {
	var settings Settings
	err := b.db.View(func(tx *bbolt.Tx) error {
		var err error
		settings, err = readSettings(tx)
		return err
	})
	if err != nil {
		return Settings{}, fmt.Errorf("reading settings: %w", err)
	}
	return settings, nil
}

// SaveSettings replaces the settings
func (b *BoltDB) SaveSettings(settings Settings) error {
	return b.put(settingsBucket, settingsKey, settings)
}

func readSettings(tx *bbolt.Tx) (Settings, error) {
	settings := DefaultSettings()
	data := tx.Bucket([]byte(settingsBucket)).Get([]byte(settingsKey))
	if data == nil {
		return settings, nil
	}
	if err := json.Unmarshal(data, &settings); err != nil {
		return Settings{}, fmt.Errorf("unmarshaling settings: %w", err)
	}
	return settings, nil
}

// UpdateSettings applies fn to the stored settings inside one write transaction.
// An error from fn aborts the update.
func (b *BoltDB) UpdateSettings(fn func(*Settings) error) (Settings, error) {
	var settings Settings
	err := b.db.Update(func(tx *bbolt.Tx) error {
		var err error
		settings, err = readSettings(tx)
		if err != nil {
			return err
		}
		if err := fn(&settings); err != nil {
			return err
		}
		data, err := json.Marshal(settings)
		if err != nil {
			return fmt.Errorf("marshaling settings: %w", err)
		}
		return tx.Bucket([]byte(settingsBucket)).Put([]byte(settingsKey), data)
	})
	if err != nil {
		return Settings{}, err
	}
	return settings, nil
}

// ReserveScan counts a scan if the gate allows one
func (b *BoltDB) ReserveScan() (Settings, error) {
	return b.UpdateSettings(func(s *Settings) error {
		if !CanScan(*s) {
			return ErrScanLimitReached
		}
		s.ScansUsed++
		return nil
	})
}

// ReleaseScan undoes one ReserveScan
func (b *BoltDB) ReleaseScan() error {
	_, err := b.UpdateSettings(func(s *Settings) error {
		if s.ScansUsed > 0 {
			s.ScansUsed--
		}
		return nil
	})
	return err
}

// DeleteAllData drops and recreates the record buckets
func (b *BoltDB) DeleteAllData() error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range recordBuckets {
			if err := tx.DeleteBucket([]byte(name)); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
				return err
			}
		}
		return createBuckets(tx)
	})
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
