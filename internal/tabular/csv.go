// Package tabular reads and writes the header-named CSV files stages exchange.
package tabular

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/cockroachdb/errors"

	"mlops-pipeline/internal/core/domain"
)

// Read parses a CSV document whose first record is the header. A document
// without data rows is ErrDataNotFound.
func Read(r io.Reader) (*domain.Dataset, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = false

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.Wrap(domain.ErrDataNotFound, "empty csv")
	}
	if err != nil {
		return nil, errors.Wrap(err, "read csv header")
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	ds := &domain.Dataset{Columns: header}
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(domain.ErrSchemaMismatch, "read csv row %d: %v", len(ds.Rows)+1, err)
		}
		ds.Rows = append(ds.Rows, rec)
	}
	if ds.Len() == 0 {
		return nil, errors.Wrap(domain.ErrDataNotFound, "csv has a header but no rows")
	}
	return ds, nil
}

// Append reads another CSV document into ds. Its header must match ds.
func Append(ds *domain.Dataset, r io.Reader) error {
	next, err := Read(r)
	if err != nil {
		return err
	}
	if len(next.Columns) != len(ds.Columns) {
		return errors.Wrapf(domain.ErrSchemaMismatch, "header has %d columns, want %d", len(next.Columns), len(ds.Columns))
	}
	for i, c := range next.Columns {
		if c != ds.Columns[i] {
			return errors.Wrapf(domain.ErrSchemaMismatch, "column %d is %q, want %q", i, c, ds.Columns[i])
		}
	}
	ds.Rows = append(ds.Rows, next.Rows...)
	return nil
}

// Write emits the header followed by every row.
func Write(w io.Writer, ds *domain.Dataset) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ds.Columns); err != nil {
		return errors.Wrap(err, "write csv header")
	}
	if err := cw.WriteAll(ds.Rows); err != nil {
		return errors.Wrap(err, "write csv rows")
	}
	return nil
}
