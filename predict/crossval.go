package predict

import (
	"fmt"
	"math/rand"
	"sort"
)

// Fold holds row indices for one train/test split.
type Fold struct {
	Train []int
	Test  []int
}

// Splitter produces cross-validation folds for n images. y and subjects
// may be consulted or ignored depending on the strategy; every strategy
// returns folds whose test sets partition [0, n).
type Splitter interface {
	Split(n int, y []float64, subjects []string) ([]Fold, error)
}

// KFold deals images round-robin into K folds, optionally shuffling the
// image order first.
type KFold struct {
	K       int
	Shuffle bool
	Seed    int64
}

func (k KFold) Split(n int, _ []float64, _ []string) ([]Fold, error) {
	if k.K < 2 {
		return nil, fmt.Errorf("crossval: need at least 2 folds, got %d", k.K)
	}
	if k.K > n {
		return nil, fmt.Errorf("crossval: %d folds for %d images", k.K, n)
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	if k.Shuffle {
		rng := rand.New(rand.NewSource(k.Seed))
		rng.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })
	}

	folds := make([]Fold, k.K)
	for pos, idx := range order {
		f := pos % k.K
		folds[f].Test = append(folds[f].Test, idx)
	}
	fillTrain(folds, n)
	return folds, nil
}

// StratifiedKFold assigns images round-robin within each label class so
// every fold sees roughly the class balance of the whole set.
type StratifiedKFold struct {
	K    int
	Seed int64
}

func (s StratifiedKFold) Split(n int, y []float64, _ []string) ([]Fold, error) {
	if s.K < 2 {
		return nil, fmt.Errorf("crossval: need at least 2 folds, got %d", s.K)
	}
	if len(y) != n {
		return nil, fmt.Errorf("crossval: %d labels for %d images", len(y), n)
	}

	byClass := map[float64][]int{}
	for i, v := range y {
		byClass[v] = append(byClass[v], i)
	}
	classes := make([]float64, 0, len(byClass))
	for v := range byClass {
		classes = append(classes, v)
	}
	sort.Float64s(classes)

	rng := rand.New(rand.NewSource(s.Seed))
	folds := make([]Fold, s.K)
	for _, v := range classes {
		idx := byClass[v]
		if len(idx) < s.K {
			return nil, fmt.Errorf("crossval: class %v has %d images, fewer than %d folds", v, len(idx), s.K)
		}
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		for pos, i := range idx {
			f := pos % s.K
			folds[f].Test = append(folds[f].Test, i)
		}
	}
	for f := range folds {
		sort.Ints(folds[f].Test)
	}
	fillTrain(folds, n)
	return folds, nil
}

// LOSO holds out one subject per fold. Every image carries a subject
// identifier; images sharing an identifier never straddle a split.
type LOSO struct{}

func (LOSO) Split(n int, _ []float64, subjects []string) ([]Fold, error) {
	if len(subjects) != n {
		return nil, fmt.Errorf("crossval: %d subject labels for %d images", len(subjects), n)
	}

	bySubject := map[string][]int{}
	for i, s := range subjects {
		bySubject[s] = append(bySubject[s], i)
	}
	if len(bySubject) < 2 {
		return nil, fmt.Errorf("crossval: leave-one-subject-out needs at least 2 subjects, got %d", len(bySubject))
	}
	names := make([]string, 0, len(bySubject))
	for s := range bySubject {
		names = append(names, s)
	}
	sort.Strings(names)

	folds := make([]Fold, len(names))
	for f, s := range names {
		folds[f].Test = bySubject[s]
	}
	fillTrain(folds, n)
	return folds, nil
}

func fillTrain(folds []Fold, n int) {
	for f := range folds {
		inTest := make([]bool, n)
		for _, i := range folds[f].Test {
			inTest[i] = true
		}
		for i := 0; i < n; i++ {
			if !inTest[i] {
				folds[f].Train = append(folds[f].Train, i)
			}
		}
	}
}
