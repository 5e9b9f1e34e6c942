package receipt

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"snapspend/internal/errs"
	"snapspend/internal/extract"
)

// mockDB is a mock implementation of DB
type mockDB struct {
	saved   []*Record
	saveErr error
}

func (m *mockDB) SaveReceipt(record *Record) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, record)
	return nil
}

func (m *mockDB) GetReceipt(id string) (*Record, error) {
	for _, r := range m.saved {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, errors.New("not found")
}

func (m *mockDB) ListReceipts() ([]*Record, error) {
	return m.saved, nil
}

func (m *mockDB) Close() error { return nil }

// mockConverter writes a real file because the pipeline removes the
// converted image when it finishes.
type mockConverter struct {
	dir        string
	convertErr error
	converted  string
	inputPath  string
}

func (m *mockConverter) Convert(path string) (string, error) {
	m.inputPath = path
	if m.convertErr != nil {
		return "", m.convertErr
	}
	out := filepath.Join(m.dir, "converted.jpg")
	if err := os.WriteFile(out, []byte("jpeg bytes"), 0644); err != nil {
		return "", err
	}
	m.converted = out
	return out, nil
}

// mockStore is a mock implementation of analyzer.ObjectStore
type mockStore struct {
	putErr      error
	localPath   string
	key         string
	contentType string
}

func (m *mockStore) Put(_ context.Context, localPath, key, contentType string) error {
	m.localPath = localPath
	m.key = key
	m.contentType = contentType
	return m.putErr
}

// mockAnalyzer is a mock implementation of analyzer.Analyzer
type mockAnalyzer struct {
	raw        json.RawMessage
	analyzeErr error
	key        string
}

func (m *mockAnalyzer) Analyze(_ context.Context, key string) (json.RawMessage, error) {
	m.key = key
	if m.analyzeErr != nil {
		return nil, m.analyzeErr
	}
	return m.raw, nil
}

// mockExtractor is a mock implementation of extract.Extractor
type mockExtractor struct {
	candidate  *extract.CandidateInsight
	extractErr error
	raw        json.RawMessage
}

func (m *mockExtractor) ExtractInsights(_ context.Context, raw json.RawMessage) (*extract.CandidateInsight, error) {
	m.raw = raw
	if m.extractErr != nil {
		return nil, m.extractErr
	}
	return m.candidate, nil
}

func (m *mockExtractor) Close() error { return nil }

// mockIDGenerator is a mock implementation of IDGenerator
type mockIDGenerator struct {
	id string
}

func (m *mockIDGenerator) Generate() string { return m.id }

// mockTimeSource is a mock implementation of TimeSource
type mockTimeSource struct {
	now time.Time
}

func (m *mockTimeSource) Now() time.Time { return m.now }

var _ = Describe("Service", func() {
	var (
		db        *mockDB
		converter *mockConverter
		store     *mockStore
		an        *mockAnalyzer
		extractor *mockExtractor
		svc       *Service

		record *Record
		err    error
	)

	now := time.Date(2024, time.July, 1, 9, 30, 0, 0, time.UTC)

	BeforeEach(func() {
		db = &mockDB{}
		converter = &mockConverter{dir: GinkgoT().TempDir()}
		store = &mockStore{}
		an = &mockAnalyzer{raw: json.RawMessage(`{"SummaryFields": [{"Type": "TOTAL"}]}`)}
		extractor = &mockExtractor{
			candidate: &extract.CandidateInsight{
				Date:  "23-Jun-2024",
				Total: "£45.00",
				Items: []extract.CandidateItem{
					{Name: "Milk", Quantity: "1", Price: "£2.50", Category: "food"},
				},
				Insights: extract.Summary{"A small grocery run."},
			},
		}
		svc = NewServiceWithDeps(db, converter, store, an, extractor,
			&mockIDGenerator{id: "test-id-1"}, &mockTimeSource{now: now})
	})

	JustBeforeEach(func() {
		record, err = svc.ProcessFile(context.Background(), "/uploads/123_groceries.heic", "123_groceries.heic")
	})

	Describe("ProcessFile", func() {
		It("runs every stage in order and persists the result", func() {
			Expect(err).NotTo(HaveOccurred())

			Expect(converter.inputPath).To(Equal("/uploads/123_groceries.heic"))
			Expect(store.localPath).To(Equal(converter.converted))
			Expect(store.contentType).To(Equal("image/jpeg"))
			Expect(store.key).To(HavePrefix("receipts/"))
			Expect(store.key).To(HaveSuffix(".jpg"))
			Expect(an.key).To(Equal(store.key))
			Expect(extractor.raw).To(Equal(an.raw))

			Expect(db.saved).To(HaveLen(1))
			Expect(db.saved[0]).To(Equal(record))
		})

		It("normalizes the candidate fields", func() {
			Expect(err).NotTo(HaveOccurred())

			Expect(record.ID).To(Equal("test-id-1"))
			Expect(record.FileName).To(Equal("123_groceries.heic"))
			Expect(record.Date.Year()).To(Equal(2024))
			Expect(record.Date.Month()).To(Equal(time.June))
			Expect(record.Date.Day()).To(Equal(23))
			Expect(record.Total).To(Equal(Amount(45.00)))
			Expect(record.Items).To(HaveLen(1))
			Expect(record.Items[0].Name).To(Equal("Milk"))
			Expect(record.Items[0].Price).To(Equal(Amount(2.50)))
			Expect(record.Insights).To(Equal([]string{"A small grocery run."}))
			Expect(record.RawAnalysis).To(Equal(an.raw))
			Expect(record.CreatedAt).To(Equal(now))
		})

		It("removes the converted image after processing", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(converter.converted).NotTo(BeAnExistingFile())
		})

		When("the candidate date cannot be parsed", func() {
			BeforeEach(func() {
				extractor.candidate.Date = "sometime last week"
			})

			It("falls back to the current time", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(record.Date).To(Equal(now))
			})
		})

		When("an item quantity is missing", func() {
			BeforeEach(func() {
				extractor.candidate.Items[0].Quantity = ""
			})

			It("defaults the quantity to one", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(record.Items[0].Quantity).To(Equal("1"))
			})
		})

		When("the total cannot be parsed", func() {
			BeforeEach(func() {
				extractor.candidate.Total = "free"
			})

			It("fails without persisting anything", func() {
				Expect(err).To(HaveOccurred())
				Expect(db.saved).To(BeEmpty())
			})
		})

		When("conversion fails", func() {
			BeforeEach(func() {
				converter.convertErr = &errs.ConversionError{Path: "/uploads/123_groceries.heic", Err: errors.New("bad magic")}
			})

			It("propagates a non-retryable error", func() {
				Expect(err).To(HaveOccurred())
				Expect(errs.IsRetryable(err)).To(BeFalse())
				Expect(db.saved).To(BeEmpty())
			})

			It("never touches the later stages", func() {
				Expect(store.key).To(BeEmpty())
				Expect(an.key).To(BeEmpty())
			})
		})

		When("the object store upload fails", func() {
			BeforeEach(func() {
				store.putErr = &errs.StorageError{Key: "receipts/x.jpg", Err: errors.New("timeout")}
			})

			It("propagates a retryable error and persists nothing", func() {
				Expect(err).To(HaveOccurred())
				Expect(errs.IsRetryable(err)).To(BeTrue())
				Expect(db.saved).To(BeEmpty())
			})

			It("still removes the converted image", func() {
				Expect(converter.converted).NotTo(BeAnExistingFile())
			})
		})

		When("analysis fails", func() {
			BeforeEach(func() {
				an.analyzeErr = &errs.AnalysisError{Key: "receipts/x.jpg", Err: errors.New("throttled")}
			})

			It("persists nothing", func() {
				Expect(err).To(HaveOccurred())
				Expect(db.saved).To(BeEmpty())
			})
		})

		When("extraction fails", func() {
			BeforeEach(func() {
				extractor.extractErr = &errs.ExtractionError{Reason: errs.ReasonNoJSON}
			})

			It("persists nothing", func() {
				Expect(err).To(HaveOccurred())
				Expect(db.saved).To(BeEmpty())
			})
		})

		When("saving fails", func() {
			BeforeEach(func() {
				db.saveErr = &errs.PersistenceError{Err: errors.New("disk full")}
			})

			It("propagates a non-retryable error", func() {
				Expect(err).To(HaveOccurred())
				Expect(errs.IsRetryable(err)).To(BeFalse())
			})
		})

		When("the candidate has no line items", func() {
			BeforeEach(func() {
				extractor.candidate.Items = nil
			})

			It("still persists the record", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(db.saved).To(HaveLen(1))
				Expect(record.Items).To(BeEmpty())
			})
		})
	})
})
