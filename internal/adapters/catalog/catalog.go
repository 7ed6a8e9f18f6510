// Package catalog loads the product catalog from a flat CSV file. The
// catalog is read once at startup and immutable afterwards, so no lock
// guards it.
package catalog

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/apsara-ai/derma/internal/domain/model"
	"github.com/apsara-ai/derma/pkg/logger"
	"github.com/apsara-ai/derma/pkg/metrics"
)

// ErrBadHeader indicates the CSV header does not match the expected layout.
var ErrBadHeader = errors.New("catalog: unexpected csv header")

// expected column order.
var header = []string{"id", "name", "brand", "category", "concerns", "skin_types", "price", "url"}

// Option applies a configuration option to the Loader.
type Option func(*Loader)

// WithLogger sets the logger used by the loader.
func WithLogger(log logger.Logger) Option {
	return func(l *Loader) {
		if log != nil {
			l.log = log
		}
	}
}

// Loader reads product catalogs from CSV files.
type Loader struct {
	log logger.Logger
}

// New creates a Loader with configuration options.
func New(opts ...Option) *Loader {
	l := &Loader{log: logger.Named("catalog")}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Load reads the catalog at path. A missing file yields an empty catalog
// with a warning, not an error; the engine must keep serving without
// product data. Malformed rows are skipped individually.
func (l *Loader) Load(ctx context.Context, path string) ([]model.Product, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			l.log.Warn(ctx, "catalog file missing, starting with empty catalog",
				logger.String("path", path))
			metrics.UpdateCatalogProducts(0)
			return []model.Product{}, nil
		}
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()

	products, err := l.parse(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}

	l.log.Info(ctx, "catalog loaded",
		logger.String("path", path),
		logger.Int("products", len(products)))
	metrics.UpdateCatalogProducts(len(products))
	return products, nil
}

func (l *Loader) parse(ctx context.Context, r io.Reader) ([]model.Product, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	first, err := cr.Read()
	if err == io.EOF {
		return []model.Product{}, nil
	}
	if err != nil {
		return nil, err
	}
	if err := checkHeader(first); err != nil {
		return nil, err
	}

	products := make([]model.Product, 0, 64)
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		p, err := parseRow(record)
		if err != nil {
			l.log.Warn(ctx, "skipping malformed catalog row",
				logger.String("id", record[0]),
				logger.Error(err))
			continue
		}
		products = append(products, p)
	}
	return products, nil
}

func checkHeader(got []string) error {
	if len(got) != len(header) {
		return fmt.Errorf("%w: %d columns", ErrBadHeader, len(got))
	}
	for i, want := range header {
		if strings.TrimSpace(strings.ToLower(got[i])) != want {
			return fmt.Errorf("%w: column %d is %q, want %q", ErrBadHeader, i, got[i], want)
		}
	}
	return nil
}

func parseRow(record []string) (model.Product, error) {
	if record[0] == "" || record[1] == "" {
		return model.Product{}, errors.New("missing id or name")
	}

	price, err := decimal.NewFromString(record[6])
	if err != nil {
		return model.Product{}, fmt.Errorf("price: %w", err)
	}

	return model.Product{
		ID:                record[0],
		Name:              record[1],
		Brand:             record[2],
		Category:          record[3],
		ConcernsAddressed: splitList(record[4]),
		SkinTypes:         splitList(record[5]),
		Price:             price,
		URL:               record[7],
	}, nil
}

// splitList parses a pipe-separated list cell. Empty cells mean an empty
// list, which for skin types means suitable for all types.
func splitList(cell string) []string {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return nil
	}
	parts := strings.Split(cell, "|")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(strings.ToLower(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
