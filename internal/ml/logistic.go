// Package ml holds the L2-regularized logistic regression used by the
// training and evaluation stages.
//
// The objective matches liblinear's primal L2 logistic regression:
//
//	min_w  0.5*w'w + C * sum_i log(1 + exp(-y_i * w'x_i))
//
// with y in {-1, +1} and a constant bias feature appended to every row, so the
// intercept is regularized together with the coefficients. It is minimized
// with Newton's method and a backtracking line search, which is deterministic
// for a fixed input.
package ml

import (
	"math"
	"sort"

	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrNotFitted       = errors.New("classifier is not fitted")
	ErrInvalidC        = errors.New("inverse regularization C must be positive and finite")
	ErrShapeMismatch   = errors.New("feature matrix and labels do not match")
	ErrNotBinary       = errors.New("labels must contain exactly two classes")
	ErrNotConverged    = errors.New("solver did not converge")
	ErrSingularHessian = errors.New("hessian is not positive definite")
)

const (
	defaultMaxIter      = 100
	defaultTolerance    = 1e-8
	armijo              = 1e-4
	maxLineSearchHalves = 60
)

// LogisticRegression is a binary classifier. The exported fields are its
// serialized form.
type LogisticRegression struct {
	C          float64    `json:"c"`
	MaxIter    int        `json:"max_iter"`
	Tol        float64    `json:"tol"`
	Coef       []float64  `json:"coef,omitempty"`
	Intercept  float64    `json:"intercept"`
	Classes    [2]float64 `json:"classes"`
	Iterations int        `json:"iterations"`
	Fitted     bool       `json:"fitted"`
}

// New returns an unfitted classifier with inverse regularization strength c.
func New(c float64) *LogisticRegression {
	return &LogisticRegression{C: c, MaxIter: defaultMaxIter, Tol: defaultTolerance}
}

// Fit estimates the coefficients from X (rows are samples) and y.
func (m *LogisticRegression) Fit(X mat.Matrix, y []float64) error {
	if !(m.C > 0) || math.IsInf(m.C, 1) {
		return errors.Wrapf(ErrInvalidC, "C=%v", m.C)
	}
	n, p := X.Dims()
	if n == 0 || n != len(y) {
		return errors.Wrapf(ErrShapeMismatch, "%d rows, %d labels", n, len(y))
	}

	classes, err := binaryClasses(y)
	if err != nil {
		return err
	}

	// Design matrix with the bias column and the signed targets.
	d := p + 1
	xb := mat.NewDense(n, d, nil)
	signs := make([]float64, n)
	for i := 0; i < n; i++ {
		for j := 0; j < p; j++ {
			xb.Set(i, j, X.At(i, j))
		}
		xb.Set(i, p, 1)
		if y[i] == classes[1] {
			signs[i] = 1
		} else {
			signs[i] = -1
		}
	}

	maxIter := m.MaxIter
	if maxIter <= 0 {
		maxIter = defaultMaxIter
	}
	tol := m.Tol
	if tol <= 0 {
		tol = defaultTolerance
	}

	w := mat.NewVecDense(d, nil)
	grad := mat.NewVecDense(d, nil)
	step := mat.NewVecDense(d, nil)
	trial := mat.NewVecDense(d, nil)

	loss := m.objective(xb, signs, w)
	m.gradient(xb, signs, w, grad)
	gnorm0 := math.Max(1, mat.Norm(grad, 2))

	iter := 0
	for ; iter < maxIter; iter++ {
		if mat.Norm(grad, 2) <= tol*gnorm0 {
			break
		}

		hess := m.hessian(xb, w)
		var chol mat.Cholesky
		if ok := chol.Factorize(hess); !ok {
			return ErrSingularHessian
		}
		if err := chol.SolveVecTo(step, grad); err != nil {
			return errors.Wrap(err, "solve newton system")
		}
		step.ScaleVec(-1, step)

		slope := mat.Dot(grad, step)
		t := 1.0
		accepted := false
		for h := 0; h < maxLineSearchHalves; h++ {
			trial.AddScaledVec(w, t, step)
			next := m.objective(xb, signs, trial)
			if next <= loss+armijo*t*slope {
				w.CopyVec(trial)
				loss = next
				accepted = true
				break
			}
			t /= 2
		}
		if !accepted {
			// No further decrease is representable; w is as good as it gets.
			break
		}
		m.gradient(xb, signs, w, grad)
	}
	if iter == maxIter && mat.Norm(grad, 2) > tol*gnorm0 {
		return errors.Wrapf(ErrNotConverged, "after %d iterations", maxIter)
	}

	m.Coef = make([]float64, p)
	for j := 0; j < p; j++ {
		m.Coef[j] = w.AtVec(j)
	}
	m.Intercept = w.AtVec(p)
	m.Classes = classes
	m.Iterations = iter
	m.Fitted = true
	return nil
}

// DecisionFunction returns w'x + b for every row of X.
func (m *LogisticRegression) DecisionFunction(X mat.Matrix) ([]float64, error) {
	if !m.Fitted {
		return nil, ErrNotFitted
	}
	n, p := X.Dims()
	if p != len(m.Coef) {
		return nil, errors.Wrapf(ErrShapeMismatch, "model has %d features, input has %d", len(m.Coef), p)
	}
	scores := make([]float64, n)
	row := make([]float64, p)
	for i := 0; i < n; i++ {
		mat.Row(row, i, X)
		scores[i] = floats.Dot(row, m.Coef) + m.Intercept
	}
	return scores, nil
}

// Predict returns the predicted class label for every row of X.
func (m *LogisticRegression) Predict(X mat.Matrix) ([]float64, error) {
	scores, err := m.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(scores))
	for i, s := range scores {
		if s > 0 {
			out[i] = m.Classes[1]
		} else {
			out[i] = m.Classes[0]
		}
	}
	return out, nil
}

func (m *LogisticRegression) objective(xb *mat.Dense, signs []float64, w *mat.VecDense) float64 {
	var z mat.VecDense
	z.MulVec(xb, w)
	total := 0.0
	for i, s := range signs {
		total += softplus(-s * z.AtVec(i))
	}
	return 0.5*mat.Dot(w, w) + m.C*total
}

func (m *LogisticRegression) gradient(xb *mat.Dense, signs []float64, w, dst *mat.VecDense) {
	var z mat.VecDense
	z.MulVec(xb, w)
	coeff := mat.NewVecDense(len(signs), nil)
	for i, s := range signs {
		coeff.SetVec(i, m.C*(sigmoid(s*z.AtVec(i))-1)*s)
	}
	dst.MulVec(xb.T(), coeff)
	dst.AddVec(dst, w)
}

func (m *LogisticRegression) hessian(xb *mat.Dense, w *mat.VecDense) *mat.SymDense {
	n, d := xb.Dims()
	h := mat.NewSymDense(d, nil)
	for j := 0; j < d; j++ {
		h.SetSym(j, j, 1)
	}
	var z mat.VecDense
	z.MulVec(xb, w)
	for i := 0; i < n; i++ {
		s := sigmoid(z.AtVec(i))
		weight := m.C * s * (1 - s)
		if weight == 0 {
			continue
		}
		h.SymRankOne(h, weight, xb.RowView(i))
	}
	return h
}

// DenseFromRows packs row-major samples into a matrix. It returns nil for
// an empty input since gonum has no zero-row matrices.
func DenseFromRows(rows [][]float64) *mat.Dense {
	if len(rows) == 0 {
		return nil
	}
	p := len(rows[0])
	data := make([]float64, 0, len(rows)*p)
	for _, r := range rows {
		data = append(data, r...)
	}
	return mat.NewDense(len(rows), p, data)
}

// Accuracy is the fraction of positions where predicted equals truth.
func Accuracy(truth, predicted []float64) (float64, error) {
	if len(truth) != len(predicted) {
		return 0, errors.Wrapf(ErrShapeMismatch, "%d labels, %d predictions", len(truth), len(predicted))
	}
	if len(truth) == 0 {
		return 0, errors.Wrap(ErrShapeMismatch, "no labels to score")
	}
	hits := 0
	for i := range truth {
		if truth[i] == predicted[i] {
			hits++
		}
	}
	return float64(hits) / float64(len(truth)), nil
}

func binaryClasses(y []float64) ([2]float64, error) {
	seen := map[float64]struct{}{}
	for _, v := range y {
		seen[v] = struct{}{}
	}
	if len(seen) != 2 {
		return [2]float64{}, errors.Wrapf(ErrNotBinary, "found %d distinct labels", len(seen))
	}
	vals := make([]float64, 0, 2)
	for v := range seen {
		vals = append(vals, v)
	}
	sort.Float64s(vals)
	return [2]float64{vals[0], vals[1]}, nil
}

func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

// softplus is log(1 + exp(x)) without overflow.
func softplus(x float64) float64 {
	if x > 0 {
		return x + math.Log1p(math.Exp(-x))
	}
	return math.Log1p(math.Exp(x))
}
