package document

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/john2100013/kpi-review/internal/clock"
	"github.com/john2100013/kpi-review/internal/metrics"
	"github.com/john2100013/kpi-review/internal/repository"
	"github.com/john2100013/kpi-review/internal/service/rating"
	"github.com/john2100013/kpi-review/internal/storage"
	"github.com/john2100013/kpi-review/pkg/logger"
)

// Publisher generates a review's document, stores it and records the path.
type Publisher struct {
	reviews   *repository.ReviewRepository
	kpis      *repository.KPIRepository
	directory *repository.DirectoryRepository
	generator Generator
	store     storage.Store
	clock     clock.Clock
	log       *logger.Logger
}

// NewPublisher creates a new document publisher.
func NewPublisher(db *repository.DB, generator Generator, store storage.Store, clk clock.Clock, log *logger.Logger) *Publisher {
	return &Publisher{
		reviews:   repository.NewReviewRepository(db),
		kpis:      repository.NewKPIRepository(db),
		directory: repository.NewDirectoryRepository(db),
		generator: generator,
		store:     store,
		clock:     clk,
		log:       log.Component("documents"),
	}
}

// Publish renders and stores the document of a review.
func (p *Publisher) Publish(ctx context.Context, reviewID uint) (err error) {
	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "failed"
			p.log.Warn().Err(err).Uint("review_id", reviewID).Msg("Failed to publish review document")
		}
		metrics.RecordDocumentGenerated(status)
	}()

	doc, err := p.load(ctx, reviewID)
	if err != nil {
		return err
	}

	data, err := p.generator.Generate(ctx, doc)
	if err != nil {
		return err
	}

	key := fmt.Sprintf("company-%d/kpi-%d/review-%d-%s.pdf",
		doc.KPI.CompanyID, doc.KPI.ID, doc.Review.ID, uuid.NewString()[:8])
	ref, err := p.store.Put(ctx, key, "application/pdf", data)
	if err != nil {
		return err
	}

	if err := p.reviews.SetPDFPath(ctx, reviewID, ref); err != nil {
		return err
	}

	p.log.Info().
		Uint("review_id", reviewID).
		Uint("kpi_id", doc.KPI.ID).
		Str("path", ref).
		Dur("duration", time.Since(start)).
		Msg("Published review document")
	return nil
}

func (p *Publisher) load(ctx context.Context, reviewID uint) (*ReviewDocument, error) {
	review, err := p.reviews.GetByID(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	kpi, err := p.kpis.GetByID(ctx, review.KPIID)
	if err != nil {
		return nil, err
	}
	people, err := p.directory.UsersByID(ctx, []uint{kpi.EmployeeID, kpi.ManagerID})
	if err != nil {
		return nil, err
	}

	return &ReviewDocument{
		KPI:         *kpi,
		Review:      *review,
		Employee:    people[kpi.EmployeeID],
		Manager:     people[kpi.ManagerID],
		Score:       rating.ManagerScore(kpi.Items),
		GeneratedAt: p.clock.Now(),
	}, nil
}
