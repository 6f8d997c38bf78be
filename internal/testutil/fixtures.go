package testutil

import (
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// DiabetesHeader is the header of the synthetic diabetes data, including the
// PatientID column the stages ignore.
const DiabetesHeader = "PatientID,Pregnancies,PlasmaGlucose,DiastolicBloodPressure,TricepsThickness,SerumInsulin,BMI,DiabetesPedigree,Age,Diabetic"

// DiabetesCSV returns n rows of synthetic patient data. The label is a linear
// function of PlasmaGlucose and BMI, so a fitted classifier scores well on it.
func DiabetesCSV(n int, seed uint64) string {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	var b strings.Builder
	b.WriteString(DiabetesHeader)
	b.WriteByte('\n')
	for i := 0; i < n; i++ {
		glucose := 60 + rng.IntN(121)
		bmi := 18 + rng.Float64()*32
		diabetic := 0
		if float64(glucose)+2*bmi > 170 {
			diabetic = 1
		}
		fmt.Fprintf(&b, "%d,%d,%d,%d,%d,%d,%.2f,%.3f,%d,%d\n",
			1000000+i,
			rng.IntN(12),
			glucose,
			50+rng.IntN(50),
			10+rng.IntN(40),
			15+rng.IntN(300),
			bmi,
			0.1+rng.Float64()*2,
			21+rng.IntN(50),
			diabetic,
		)
	}
	return b.String()
}

// WriteDiabetesCSV writes n synthetic rows to dir/name and returns the path.
func WriteDiabetesCSV(t *testing.T, dir, name string, n int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(DiabetesCSV(n, uint64(n))), 0o644))
	return path
}
