package model

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

// Bagging defaults mirroring the ensemble the service was tuned against:
// 100 estimators, fixed seed 42.
const (
	DefaultEstimators = 100
	DefaultSeed       = 42
	laplaceAlpha      = 1.0
)

var errNotTrained = errors.New("classifier is not trained")

// naiveBayes is one multinomial naive-Bayes estimator over non-negative
// feature weights (TF-IDF works as fractional counts).
type naiveBayes struct {
	ClassLogPrior  []float64   `msgpack:"class_log_prior"`
	FeatureLogProb [][]float64 `msgpack:"feature_log_prob"`
}

func (nb *naiveBayes) fit(x [][]float64, y []int, numClasses, numFeatures int) {
	counts := make([]float64, numClasses)
	sums := make([][]float64, numClasses)
	totals := make([]float64, numClasses)
	for c := range sums {
		sums[c] = make([]float64, numFeatures)
	}
	for i, row := range x {
		c := y[i]
		counts[c]++
		for j, val := range row {
			sums[c][j] += val
			totals[c] += val
		}
	}

	n := float64(len(x))
	nb.ClassLogPrior = make([]float64, numClasses)
	nb.FeatureLogProb = make([][]float64, numClasses)
	for c := range nb.FeatureLogProb {
		// Priors are smoothed so classes missing from a bootstrap sample
		// keep a tiny, finite probability.
		nb.ClassLogPrior[c] = math.Log((counts[c] + 1) / (n + float64(numClasses)))
		nb.FeatureLogProb[c] = make([]float64, numFeatures)
		denom := totals[c] + laplaceAlpha*float64(numFeatures)
		for j := range nb.FeatureLogProb[c] {
			nb.FeatureLogProb[c][j] = math.Log((sums[c][j] + laplaceAlpha) / denom)
		}
	}
}

// logJoint computes log P(class) + sum_j x_j * log P(feature_j | class).
func (nb *naiveBayes) logJoint(vec []float64) []float64 {
	joint := make([]float64, len(nb.ClassLogPrior))
	for c := range joint {
		s := nb.ClassLogPrior[c]
		flp := nb.FeatureLogProb[c]
		for j, val := range vec {
			if val != 0 {
				s += val * flp[j]
			}
		}
		joint[c] = s
	}
	return joint
}

func (nb *naiveBayes) proba(vec []float64) []float64 {
	joint := nb.logJoint(vec)
	// Softmax via log-sum-exp for numeric stability.
	maxLog := math.Inf(-1)
	for _, v := range joint {
		if v > maxLog {
			maxLog = v
		}
	}
	var sum float64
	probs := make([]float64, len(joint))
	for c, v := range joint {
		probs[c] = math.Exp(v - maxLog)
		sum += probs[c]
	}
	for c := range probs {
		probs[c] /= sum
	}
	return probs
}

// BaggedClassifier is an ensemble of naive-Bayes estimators fit on bootstrap
// samples of the training set. Class probability is the average over
// estimators, which spreads confidence the way vote fractions do.
type BaggedClassifier struct {
	Estimators int           `msgpack:"estimators"`
	Seed       int64         `msgpack:"seed"`
	NumClasses int           `msgpack:"num_classes"`
	Members    []*naiveBayes `msgpack:"members"`
}

// NewBaggedClassifier creates an untrained ensemble.
func NewBaggedClassifier(estimators int) *BaggedClassifier {
	if estimators <= 0 {
		estimators = DefaultEstimators
	}
	return &BaggedClassifier{
		Estimators: estimators,
		Seed:       DefaultSeed,
	}
}

// Fit trains all estimators. Deterministic for a fixed seed.
func (b *BaggedClassifier) Fit(x [][]float64, y []int, numClasses int) error {
	if len(x) == 0 || len(x) != len(y) {
		return fmt.Errorf("invalid training set: %d samples, %d labels", len(x), len(y))
	}
	numFeatures := len(x[0])

	rng := rand.New(rand.NewSource(b.Seed))
	n := len(x)
	b.NumClasses = numClasses
	b.Members = make([]*naiveBayes, b.Estimators)

	sampleX := make([][]float64, n)
	sampleY := make([]int, n)
	for m := range b.Members {
		for i := range sampleX {
			k := rng.Intn(n)
			sampleX[i] = x[k]
			sampleY[i] = y[k]
		}
		nb := &naiveBayes{}
		nb.fit(sampleX, sampleY, numClasses, numFeatures)
		b.Members[m] = nb
	}
	return nil
}

// PredictProba returns averaged class probabilities for one feature vector.
func (b *BaggedClassifier) PredictProba(vec []float64) ([]float64, error) {
	if len(b.Members) == 0 {
		return nil, errNotTrained
	}
	avg := make([]float64, b.NumClasses)
	for _, nb := range b.Members {
		for c, p := range nb.proba(vec) {
			avg[c] += p
		}
	}
	for c := range avg {
		avg[c] /= float64(len(b.Members))
	}
	return avg, nil
}
