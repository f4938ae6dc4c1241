package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"storefront-checkout/internal/domain"
	productrepo "storefront-checkout/internal/repository/product"

	"github.com/shopspring/decimal"
)

type ProductWriter interface {
	Upsert(ctx context.Context, product productrepo.ProductRecord) (*domain.ProductSnapshot, error)
}

// CSVImporter reads catalog CSV exports and inserts or updates products.
//
// Expected headers: id, name, description, price, stock, sizes, colors,
// category, images. Prices are in major units; list columns are separated by
// "|". A row with an empty id and only an image continues the previous
// product.
type CSVImporter struct {
	reader      *csv.Reader
	productRepo ProductWriter
}

func NewCSVImporter(r io.Reader, repo ProductWriter) *CSVImporter {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // rows may have trailing commas
	return &CSVImporter{
		reader:      csvr,
		productRepo: repo,
	}
}

type csvRow struct {
	ID        string
	Name      string
	Desc      string
	Price     string
	Stock     string
	Sizes     []string
	Colors    []string
	Category  string
	ImageURLs []string
}

// Run parses CSV rows and upserts products grouped by id.
func (i *CSVImporter) Run(ctx context.Context) (int, error) {
	headers, err := i.reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)
	if _, ok := index["id"]; !ok {
		return 0, errors.New("missing id column")
	}

	var (
		current  *csvRow
		imported int
	)

	for {
		record, err := i.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return imported, fmt.Errorf("read row: %w", err)
		}

		row := parseRow(record, index)
		if row == nil {
			continue
		}

		if row.ID != "" {
			if current != nil {
				if err := i.save(ctx, current); err != nil {
					return imported, err
				}
				imported++
			}
			current = row
			continue
		}

		// Continuation rows (images) belong to the current product.
		if current != nil && len(row.ImageURLs) > 0 {
			current.ImageURLs = append(current.ImageURLs, row.ImageURLs...)
		}
	}

	if current != nil {
		if err := i.save(ctx, current); err != nil {
			return imported, err
		}
		imported++
	}

	return imported, nil
}

func (i *CSVImporter) save(ctx context.Context, row *csvRow) error {
	if row.Name == "" || row.Price == "" {
		return fmt.Errorf("invalid product row (missing required fields) for id %q", row.ID)
	}
	price, err := decimal.NewFromString(row.Price)
	if err != nil || price.IsNegative() {
		return fmt.Errorf("invalid price for id %q: %s", row.ID, row.Price)
	}
	stock := 0
	if row.Stock != "" {
		stock, err = strconv.Atoi(row.Stock)
		if err != nil || stock < 0 {
			return fmt.Errorf("invalid stock for id %q: %s", row.ID, row.Stock)
		}
	}

	attrs := map[string]interface{}{}
	if len(row.ImageURLs) > 0 {
		attrs["images"] = row.ImageURLs
	}
	if row.Category != "" {
		attrs["category"] = row.Category
	}

	p := productrepo.ProductRecord{
		ProductSnapshot: domain.ProductSnapshot{
			ID:         row.ID,
			Name:       row.Name,
			PriceCents: domain.ToMinorUnits(price),
			Stock:      stock,
			Sizes:      row.Sizes,
			Colors:     row.Colors,
		},
		Description: row.Desc,
		Attributes:  attrs,
	}

	if _, err := i.productRepo.Upsert(ctx, p); err != nil {
		return fmt.Errorf("upsert product %q: %w", row.ID, err)
	}
	return nil
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

func parseRow(record []string, index map[string]int) *csvRow {
	id := pick(record, index, "id")
	imageURLs := splitList(pick(record, index, "images"))

	if id == "" && len(imageURLs) == 0 {
		return nil
	}

	return &csvRow{
		ID:        id,
		Name:      pick(record, index, "name"),
		Desc:      pick(record, index, "description"),
		Price:     pick(record, index, "price"),
		Stock:     pick(record, index, "stock"),
		Sizes:     splitList(pick(record, index, "sizes")),
		Colors:    splitList(pick(record, index, "colors")),
		Category:  pick(record, index, "category"),
		ImageURLs: imageURLs,
	}
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, "|") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func pick(record []string, index map[string]int, key string) string {
	pos, ok := index[key]
	if !ok || pos >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[pos])
}
