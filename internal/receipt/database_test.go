package receipt

import (
	"encoding/json"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("BoltDB", func() {
	var db *BoltDB

	BeforeEach(func() {
		var err error
		db, err = NewBoltDB(filepath.Join(GinkgoT().TempDir(), "test.db"))
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(db.Close()).To(Succeed())
	})

	Describe("SaveReceipt and GetReceipt", func() {
		It("round-trips a record", func() {
			record := &Record{
				ID:       "1718000000000000000",
				FileName: "groceries.heic",
				Date:     time.Date(2024, time.June, 23, 0, 0, 0, 0, time.UTC),
				Total:    Amount(45),
				Items: ItemList{
					{Name: "Milk", Quantity: "1", Price: Amount(2.5), Category: "food"},
				},
				Insights:    []string{"A small grocery run."},
				RawAnalysis: json.RawMessage(`{"SummaryFields": []}`),
				CreatedAt:   time.Date(2024, time.June, 24, 12, 0, 0, 0, time.UTC),
			}

			Expect(db.SaveReceipt(record)).To(Succeed())

			loaded, err := db.GetReceipt("1718000000000000000")
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.FileName).To(Equal("groceries.heic"))
			Expect(loaded.Total).To(Equal(Amount(45)))
			Expect(loaded.Items).To(HaveLen(1))
			Expect(loaded.Items[0].Name).To(Equal("Milk"))
			Expect(loaded.Date.Equal(record.Date)).To(BeTrue())
			Expect(loaded.RawAnalysis).To(MatchJSON(`{"SummaryFields": []}`))
		})

		It("returns an error for an unknown ID", func() {
			_, err := db.GetReceipt("nope")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("ListReceipts", func() {
		It("returns an empty slice when nothing is stored", func() {
			records, err := db.ListReceipts()
			Expect(err).NotTo(HaveOccurred())
			Expect(records).NotTo(BeNil())
			Expect(records).To(BeEmpty())
		})

		It("returns every stored record", func() {
			Expect(db.SaveReceipt(&Record{ID: "1", FileName: "a.heic"})).To(Succeed())
			Expect(db.SaveReceipt(&Record{ID: "2", FileName: "b.jpg"})).To(Succeed())

			records, err := db.ListReceipts()
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(2))
		})
	})
})
