package knowledge

import (
	"context"
	"dotori/app/client/sheets"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/do"
)

// ErrSourceUnavailable reports a load that exhausted its retry
// budget. The previous tables stay in place, callers may keep
// serving from them.
var ErrSourceUnavailable = errors.New("knowledge source unavailable")

const maxLoadAttempts = 3

// Linear backoff between attempts: 5s, then 10s. Overridable in tests.
var retryBackoffStep = 5 * time.Second

// Fetcher supplies raw rows for a named sheet range.
type Fetcher interface {
	FetchRange(ctx context.Context, rangeName string) ([][]string, error)
}

// Service holds the three reference tables. Tables are replaced
// wholesale on load and never mutated in place, so readers may hold
// onto a returned slice across a reload.
type Service struct {
	fetcher Fetcher

	mu       sync.RWMutex
	products []Product
	sizes    []SizeEntry
	faqs     []FaqEntry
}

func New(di *do.Injector) (*Service, error) {
	return NewService(do.MustInvoke[*sheets.Client](di)), nil
}

func NewService(fetcher Fetcher) *Service {
	return &Service{
		fetcher: fetcher,
	}
}

// Load fetches all three tables with bounded retry and commits them
// in a single swap, a partial fetch never replaces anything.
func (s *Service) Load(ctx context.Context) error {
	var lastErr error

	for attempt := 1; attempt <= maxLoadAttempts; attempt++ {
		products, sizes, faqs, err := s.fetchAll(ctx)
		if err == nil {
			s.mu.Lock()
			s.products = products
			s.sizes = sizes
			s.faqs = faqs
			s.mu.Unlock()

			slog.Info("Knowledge tables loaded",
				"products", len(products),
				"sizes", len(sizes),
				"faqs", len(faqs))

			return nil
		}

		lastErr = err
		slog.Error("Knowledge load attempt failed", "attempt", attempt, "error", err)

		if attempt == maxLoadAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * retryBackoffStep):
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrSourceUnavailable, maxLoadAttempts, lastErr)
}

func (s *Service) fetchAll(ctx context.Context) ([]Product, []SizeEntry, []FaqEntry, error) {
	productRows, err := s.fetcher.FetchRange(ctx, productRange)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("product table: %w", err)
	}

	products := parseProducts(productRows)
	slog.Debug("Fetched product table", "rows", len(products))

	sizeRows, err := s.fetcher.FetchRange(ctx, sizeRange)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("size table: %w", err)
	}

	sizes := parseSizes(sizeRows)
	slog.Debug("Fetched size table", "rows", len(sizes))

	faqRows, err := s.fetcher.FetchRange(ctx, faqRange)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("faq table: %w", err)
	}

	faqs := parseFaqs(faqRows)
	slog.Debug("Fetched faq table", "rows", len(faqs))

	return products, sizes, faqs, nil
}

func (s *Service) Products() []Product {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.products
}

func (s *Service) Sizes() []SizeEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.sizes
}

func (s *Service) Faqs() []FaqEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.faqs
}

// Empty reports whether all three tables are unpopulated, the signal
// for the pipeline's lazy reload.
func (s *Service) Empty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.products) == 0 && len(s.sizes) == 0 && len(s.faqs) == 0
}
