package bill

import (
	"errors"
	"path/filepath"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/billbuster/internal/ai"
)

var _ = Describe("BoltDB", func() {
	var (
		dbPath string
		db     *BoltDB
		march  time.Time
	)

	BeforeEach(func() {
		dbPath = filepath.Join(GinkgoT().TempDir(), "test.db")
		var err error
		db, err = NewBoltDB(dbPath)
		Expect(err).NotTo(HaveOccurred())
		march = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	saveBill := func(id string, createdAt time.Time, savings int) {
		Expect(db.SaveBill(&Bill{
			ID:          id,
			ImageFile:   id + "_bill.jpg",
			ContentType: "image/jpeg",
			Category:    ai.CategoryInternet,
			Provider:    "Acme Fiber",
			TotalAmount: 8999,
			BillDate:    "2024-03-01",
			CreatedAt:   createdAt,
		})).To(Succeed())
		Expect(db.SaveAnalysis(&Analysis{
			BillID:                 id,
			TotalIdentifiedSavings: savings,
			Findings:               []ai.Finding{{Title: "Promo expired", EstimatedSavings: savings}},
			CreatedAt:              createdAt,
		})).To(Succeed())
	}

	Describe("GetBill", func() {
		When("the bill exists", func() {
			BeforeEach(func() {
				saveBill("bill-1", march, 1000)
			})

			It("round-trips the bill", func() {
				bill, err := db.GetBill("bill-1")
				Expect(err).NotTo(HaveOccurred())
				Expect(bill.Provider).To(Equal("Acme Fiber"))
				Expect(bill.Category).To(Equal(ai.CategoryInternet))
				Expect(bill.TotalAmount).To(Equal(8999))
				Expect(bill.CreatedAt.Equal(march)).To(BeTrue())
			})
		})

		When("the bill does not exist", func() {
			It("returns ErrNotFound", func() {
				_, err := db.GetBill("nonexistent")
				Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
			})
		})
	})

	Describe("ListBills", func() {
		When("bills exist", func() {
			BeforeEach(func() {
				saveBill("old", march, 100)
				saveBill("new", march.Add(48*time.Hour), 200)
				saveBill("mid", march.Add(24*time.Hour), 300)
			})

			It("returns them newest first", func() {
				bills, err := db.ListBills()
				Expect(err).NotTo(HaveOccurred())
				ids := make([]string, 0, len(bills))
				for _, b := range bills {
					ids = append(ids, b.ID)
				}
				Expect(ids).To(Equal([]string{"new", "mid", "old"}))
			})
		})

		When("no bills exist", func() {
			It("returns an empty slice", func() {
				bills, err := db.ListBills()
				Expect(err).NotTo(HaveOccurred())
				Expect(bills).NotTo(BeNil())
				Expect(bills).To(BeEmpty())
			})
		})
	})

	Describe("DeleteBill", func() {
		BeforeEach(func() {
			saveBill("bill-1", march, 1000)
			Expect(db.SaveScript(&Script{BillID: "bill-1", Format: ScriptPhone})).To(Succeed())
		})

		It("removes the bill, analysis and script", func() {
			Expect(db.DeleteBill("bill-1")).To(Succeed())

			_, err := db.GetBill("bill-1")
			Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
			_, err = db.GetAnalysis("bill-1")
			Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
			_, err = db.GetScript("bill-1")
			Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
		})

		It("returns ErrNotFound for an unknown bill", func() {
			Expect(errors.Is(db.DeleteBill("missing"), ErrNotFound)).To(BeTrue())
		})
	})

	Describe("SaveScript", func() {
		It("replaces an earlier script", func() {
			Expect(db.SaveScript(&Script{BillID: "bill-1", KeyPoints: []string{"first"}})).To(Succeed())
			Expect(db.SaveScript(&Script{BillID: "bill-1", KeyPoints: []string{"second"}})).To(Succeed())

			script, err := db.GetScript("bill-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(script.KeyPoints).To(Equal([]string{"second"}))
		})
	})

	Describe("TotalSavings and BillCount", func() {
		It("are zero on an empty database", func() {
			total, err := db.TotalSavings()
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(BeZero())
			count, err := db.BillCount()
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(BeZero())
		})

		It("sum analyses and count bills", func() {
			saveBill("a", march, 1500)
			saveBill("b", march, 2599)

			total, err := db.TotalSavings()
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(Equal(4099))
			count, err := db.BillCount()
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(2))
		})
	})

	Describe("Settings", func() {
		It("returns the defaults before anything is saved", func() {
			settings, err := db.GetSettings()
			Expect(err).NotTo(HaveOccurred())
			Expect(settings).To(Equal(Settings{AIProvider: ai.ProviderOpenRouter, MaxFreeScans: 3}))
		})

		It("round-trips saved settings", func() {
			want := Settings{AIProvider: ai.ProviderAnthropic, IsPro: true, ScansUsed: 7, MaxFreeScans: 5}
			Expect(db.SaveSettings(want)).To(Succeed())
			settings, err := db.GetSettings()
			Expect(err).NotTo(HaveOccurred())
			Expect(settings).To(Equal(want))
		})
	})

	Describe("ReserveScan", func() {
		It("counts a scan against the allowance", func() {
			settings, err := db.ReserveScan()
			Expect(err).NotTo(HaveOccurred())
			Expect(settings.ScansUsed).To(Equal(1))
			stored, err := db.GetSettings()
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.ScansUsed).To(Equal(1))
		})

		It("refuses once the allowance is used up", func() {
			Expect(db.SaveSettings(Settings{AIProvider: ai.ProviderOpenRouter, ScansUsed: 3, MaxFreeScans: 3})).To(Succeed())
			_, err := db.ReserveScan()
			Expect(err).To(MatchError(ErrScanLimitReached))
			stored, err := db.GetSettings()
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.ScansUsed).To(Equal(3))
		})

		It("admits only the remaining allowance under concurrency", func() {
			Expect(db.SaveSettings(Settings{AIProvider: ai.ProviderOpenRouter, ScansUsed: 2, MaxFreeScans: 3})).To(Succeed())

			results := make(chan error, 5)
			var wg sync.WaitGroup
			for range 5 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := db.ReserveScan()
					results <- err
				}()
			}
			wg.Wait()
			close(results)

			admitted := 0
			for err := range results {
				if err == nil {
					admitted++
				} else {
					Expect(err).To(MatchError(ErrScanLimitReached))
				}
			}
			Expect(admitted).To(Equal(1))
		})

		It("only changes the scan count", func() {
			Expect(db.SaveSettings(Settings{AIProvider: ai.ProviderGemini, ScansUsed: 0, MaxFreeScans: 3})).To(Succeed())
			settings, err := db.ReserveScan()
			Expect(err).NotTo(HaveOccurred())
			Expect(settings).To(Equal(Settings{AIProvider: ai.ProviderGemini, ScansUsed: 1, MaxFreeScans: 3}))
		})
	})

	Describe("ReleaseScan", func() {
		It("gives a scan back", func() {
			_, err := db.ReserveScan()
			Expect(err).NotTo(HaveOccurred())
			Expect(db.ReleaseScan()).To(Succeed())
			stored, err := db.GetSettings()
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.ScansUsed).To(BeZero())
		})

		It("never goes below zero", func() {
			Expect(db.ReleaseScan()).To(Succeed())
			stored, err := db.GetSettings()
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.ScansUsed).To(BeZero())
		})
	})

	Describe("UpdateSettings", func() {
		It("leaves the settings untouched when fn fails", func() {
			Expect(db.SaveSettings(Settings{AIProvider: ai.ProviderOpenAI, ScansUsed: 1, MaxFreeScans: 3})).To(Succeed())
			_, err := db.UpdateSettings(func(s *Settings) error {
				s.AIProvider = ai.ProviderAnthropic
				return errors.New("rejected")
			})
			Expect(err).To(MatchError("rejected"))
			stored, err := db.GetSettings()
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.AIProvider).To(Equal(ai.ProviderOpenAI))
		})
	})

	Describe("DeleteAllData", func() {
		BeforeEach(func() {
			saveBill("bill-1", march, 1000)
			Expect(db.SaveSettings(Settings{AIProvider: ai.ProviderOpenAI, ScansUsed: 2, MaxFreeScans: 3})).To(Succeed())
		})

		It("empties the records and keeps the settings", func() {
			Expect(db.DeleteAllData()).To(Succeed())

			bills, err := db.ListBills()
			Expect(err).NotTo(HaveOccurred())
			Expect(bills).To(BeEmpty())
			total, err := db.TotalSavings()
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(BeZero())
			settings, err := db.GetSettings()
			Expect(err).NotTo(HaveOccurred())
			Expect(settings).To(Equal(Settings{AIProvider: ai.ProviderOpenAI, ScansUsed: 2, MaxFreeScans: 3}))
		})

		It("does not reopen an exhausted free allowance", func() {
			Expect(db.SaveSettings(Settings{AIProvider: ai.ProviderOpenAI, ScansUsed: 3, MaxFreeScans: 3})).To(Succeed())
			Expect(db.DeleteAllData()).To(Succeed())

			_, err := db.ReserveScan()
			Expect(err).To(MatchError(ErrScanLimitReached))
		})

		It("leaves the database usable", func() {
			Expect(db.DeleteAllData()).To(Succeed())
			saveBill("bill-2", march, 10)
			count, err := db.BillCount()
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(1))
		})
	})

	Describe("persistence", func() {
		It("keeps records across reopen", func() {
			saveBill("bill-1", march, 1000)
			Expect(db.Close()).To(Succeed())

			var err error
			db, err = NewBoltDB(dbPath)
			Expect(err).NotTo(HaveOccurred())
			_, err = db.GetBill("bill-1")
			Expect(err).NotTo(HaveOccurred())
		})
	})
})
