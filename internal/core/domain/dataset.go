package domain

import (
	"math"
	"math/rand/v2"
	"strconv"

	"github.com/cockroachdb/errors"
)

// LabelColumn holds the binary target.
const LabelColumn = "Diabetic"

// FeatureColumns is the exact column order the classifier is fitted and
// scored with.
var FeatureColumns = []string{
	"Pregnancies", "PlasmaGlucose", "DiastolicBloodPressure",
	"TricepsThickness", "SerumInsulin", "BMI", "DiabetesPedigree", "Age",
}

// RequiredColumns returns the feature columns followed by the label column.
func RequiredColumns() []string {
	cols := make([]string, 0, len(FeatureColumns)+1)
	cols = append(cols, FeatureColumns...)
	return append(cols, LabelColumn)
}

// Dataset is row-oriented tabular data with named columns. Cells are kept as
// the text they were read from so a partition writes rows back unchanged.
type Dataset struct {
	Columns []string
	Rows    [][]string
}

// DatasetArtifact references a dataset written by a stage.
type DatasetArtifact struct {
	Name    string   `json:"name"`
	URI     string   `json:"uri"`
	Columns []string `json:"columns"`
	Rows    int      `json:"rows"`
}

func (d *Dataset) Len() int {
	return len(d.Rows)
}

func (d *Dataset) ColumnIndex(name string) int {
	for i, c := range d.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// MissingColumns lists the names in required that the dataset lacks.
func (d *Dataset) MissingColumns(required []string) []string {
	var missing []string
	for _, name := range required {
		if d.ColumnIndex(name) < 0 {
			missing = append(missing, name)
		}
	}
	return missing
}

// Matrix extracts the named columns, in the given order, as floats.
func (d *Dataset) Matrix(columns []string) ([][]float64, error) {
	idx := make([]int, len(columns))
	for i, name := range columns {
		idx[i] = d.ColumnIndex(name)
		if idx[i] < 0 {
			return nil, errors.Wrapf(ErrSchemaMismatch, "column %q not present", name)
		}
	}

	out := make([][]float64, len(d.Rows))
	for r, row := range d.Rows {
		vals := make([]float64, len(columns))
		for i, c := range idx {
			if c >= len(row) {
				return nil, errors.Wrapf(ErrSchemaMismatch, "row %d is missing column %q", r+1, columns[i])
			}
			v, err := strconv.ParseFloat(row[c], 64)
			if err != nil {
				return nil, errors.Wrapf(ErrSchemaMismatch, "row %d column %q: %q is not numeric", r+1, columns[i], row[c])
			}
			vals[i] = v
		}
		out[r] = vals
	}
	return out, nil
}

// Labels extracts the label column as floats.
func (d *Dataset) Labels() ([]float64, error) {
	m, err := d.Matrix([]string{LabelColumn})
	if err != nil {
		return nil, err
	}
	labels := make([]float64, len(m))
	for i, row := range m {
		labels[i] = row[0]
	}
	return labels, nil
}

// Partition samples round(fraction*n) rows into train, in sampled order, and
// leaves the remaining rows in test in their original order. The sample is a
// pure function of the rows and seed.
func (d *Dataset) Partition(fraction float64, seed uint64) (train, test *Dataset) {
	n := len(d.Rows)
	k := int(math.Round(fraction * float64(n)))

	rng := rand.New(rand.NewPCG(seed, seed))
	perm := rng.Perm(n)

	picked := make([]bool, n)
	train = &Dataset{Columns: d.Columns, Rows: make([][]string, 0, k)}
	for _, i := range perm[:k] {
		picked[i] = true
		train.Rows = append(train.Rows, d.Rows[i])
	}

	test = &Dataset{Columns: d.Columns, Rows: make([][]string, 0, n-k)}
	for i, row := range d.Rows {
		if !picked[i] {
			test.Rows = append(test.Rows, row)
		}
	}
	return train, test
}

// SplitConfig configures the data split stage.
type SplitConfig struct {
	SourceURI     string  `json:"source_uri" yaml:"source_uri"`
	SplitFraction float64 `json:"split_fraction" yaml:"split_fraction"`
	Seed          uint64  `json:"seed" yaml:"seed"`
}

const (
	DefaultSplitFraction = 0.8
	DefaultSplitSeed     = 42
)

// DefaultSplitConfig returns the fixed 0.8 / 42 split over source.
func DefaultSplitConfig(source string) SplitConfig {
	return SplitConfig{SourceURI: source, SplitFraction: DefaultSplitFraction, Seed: DefaultSplitSeed}
}

func (c SplitConfig) Validate() error {
	if c.SourceURI == "" {
		return errors.Wrap(ErrInvalidParameter, "source uri is required")
	}
	if !(c.SplitFraction > 0 && c.SplitFraction < 1) {
		return errors.Wrapf(ErrInvalidParameter, "split fraction %v must be in (0, 1)", c.SplitFraction)
	}
	return nil
}
