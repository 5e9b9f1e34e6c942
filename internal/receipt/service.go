package receipt

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"snapspend/internal/analyzer"
	"snapspend/internal/convert"
	"snapspend/internal/extract"
	"snapspend/internal/fields"
)

// IDGenerator generates unique IDs for receipt records
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultIDGenerator generates IDs using UnixNano timestamp
type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service runs the per-receipt processing job: convert, upload, analyze,
// extract, normalize, persist. Stages are strictly sequential; each stage's
// output is the next stage's input.
type Service struct {
	db          DB
	converter   convert.Converter
	store       analyzer.ObjectStore
	analyzer    analyzer.Analyzer
	extractor   extract.Extractor
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with default ID generator and time source
func NewService(db DB, converter convert.Converter, store analyzer.ObjectStore, an analyzer.Analyzer, extractor extract.Extractor) *Service {
	return &Service{
		db:          db,
		converter:   converter,
		store:       store,
		analyzer:    an,
		extractor:   extractor,
		idGenerator: &defaultIDGenerator{},
		timeSource:  &defaultTimeSource{},
	}
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, converter convert.Converter, store analyzer.ObjectStore, an analyzer.Analyzer, extractor extract.Extractor, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		converter:   converter,
		store:       store,
		analyzer:    an,
		extractor:   extractor,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// ProcessFile runs the full pipeline for one uploaded file. On any stage's
// failure the error propagates to the queue, which owns retry policy;
// nothing is persisted until every stage has succeeded. The converted image
// is removed on every exit path; the source upload stays in place so a
// retry can redo the whole chain from the original bytes.
func (s *Service) ProcessFile(ctx context.Context, filePath, fileName string) (*Record, error) {
	slog.Info("Processing receipt", "file", fileName, "stage", "converting")
	converted, err := s.converter.Convert(filePath)
	if err != nil {
		return nil, fmt.Errorf("converting %s: %w", fileName, err)
	}
	defer func() {
		if err := os.Remove(converted); err != nil {
			slog.Warn("Failed to remove converted image", "path", converted, "error", err)
		}
	}()

	slog.Info("Processing receipt", "file", fileName, "stage", "uploading")
	key := fmt.Sprintf("receipts/%s.jpg", uuid.NewString())
	if err := s.store.Put(ctx, converted, key, "image/jpeg"); err != nil {
		return nil, fmt.Errorf("uploading %s: %w", fileName, err)
	}

	slog.Info("Processing receipt", "file", fileName, "stage", "analyzing", "key", key)
	raw, err := s.analyzer.Analyze(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("analyzing %s: %w", fileName, err)
	}

	slog.Info("Processing receipt", "file", fileName, "stage", "extracting")
	candidate, err := s.extractor.ExtractInsights(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("extracting %s: %w", fileName, err)
	}
	if len(candidate.Items) == 0 {
		slog.Warn("Receipt extracted with no line items", "file", fileName)
	}

	record, err := s.normalize(candidate, fileName, raw)
	if err != nil {
		return nil, fmt.Errorf("normalizing %s: %w", fileName, err)
	}

	slog.Info("Processing receipt", "file", fileName, "stage", "persisting")
	if err := s.db.SaveReceipt(record); err != nil {
		return nil, fmt.Errorf("saving %s: %w", fileName, err)
	}

	return record, nil
}

// normalize converts the candidate's free-text fields into canonical types.
// An unparseable date degrades to the current time with a warning; every
// other normalization failure fails the job.
func (s *Service) normalize(candidate *extract.CandidateInsight, fileName string, raw []byte) (*Record, error) {
	now := s.timeSource.Now()

	date, ok := fields.ParseDate(string(candidate.Date))
	if !ok {
		slog.Warn("No valid date on receipt, falling back to processing time", "file", fileName, "date", string(candidate.Date))
		date = now
	}

	total, err := fields.ParseCurrency(string(candidate.Total))
	if err != nil {
		return nil, fmt.Errorf("total: %w", err)
	}

	items := make(ItemList, 0, len(candidate.Items))
	for _, it := range candidate.Items {
		price, err := fields.ParseCurrency(string(it.Price))
		if err != nil {
			return nil, fmt.Errorf("item %q price: %w", it.Name, err)
		}
		quantity := string(it.Quantity)
		if quantity == "" {
			quantity = "1"
		}
		items = append(items, Item{
			Name:     it.Name,
			Quantity: quantity,
			Price:    Amount(price),
			Category: it.Category,
		})
	}

	return &Record{
		ID:          s.idGenerator.Generate(),
		FileName:    fileName,
		Date:        date,
		Total:       Amount(total),
		Items:       items,
		Insights:    candidate.Insights,
		RawAnalysis: raw,
		CreatedAt:   now,
	}, nil
}
