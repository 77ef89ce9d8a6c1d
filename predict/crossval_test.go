package predict

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// requirePartition asserts the test sets cover [0, n) exactly once and no
// fold trains on its own test images.
func requirePartition(t *testing.T, folds []Fold, n int) {
	t.Helper()
	seen := make([]int, n)
	for _, f := range folds {
		inTest := map[int]bool{}
		for _, i := range f.Test {
			seen[i]++
			inTest[i] = true
		}
		for _, i := range f.Train {
			require.False(t, inTest[i], "index %d in both train and test", i)
		}
		require.Equal(t, n, len(f.Train)+len(f.Test))
	}
	for i, c := range seen {
		require.Equal(t, 1, c, "index %d appears in %d test sets", i, c)
	}
}

func TestKFoldPartition(t *testing.T) {
	for _, k := range []int{2, 3, 5} {
		folds, err := KFold{K: k}.Split(17, nil, nil)
		require.NoError(t, err)
		require.Len(t, folds, k)
		requirePartition(t, folds, 17)
	}
}

func TestKFoldShuffleIsDeterministic(t *testing.T) {
	a, err := KFold{K: 4, Shuffle: true, Seed: 42}.Split(20, nil, nil)
	require.NoError(t, err)
	b, err := KFold{K: 4, Shuffle: true, Seed: 42}.Split(20, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := KFold{K: 4, Shuffle: true, Seed: 7}.Split(20, nil, nil)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
	requirePartition(t, c, 20)
}

func TestKFoldErrors(t *testing.T) {
	_, err := KFold{K: 1}.Split(10, nil, nil)
	assert.Error(t, err)
	_, err = KFold{K: 11}.Split(10, nil, nil)
	assert.Error(t, err)
}

func TestStratifiedKFoldBalancesClasses(t *testing.T) {
	y := make([]float64, 30)
	for i := range y {
		y[i] = float64(i % 2)
	}
	folds, err := StratifiedKFold{K: 5, Seed: 1}.Split(30, y, nil)
	require.NoError(t, err)
	requirePartition(t, folds, 30)

	for f, fold := range folds {
		var pos int
		for _, i := range fold.Test {
			if y[i] == 1 {
				pos++
			}
		}
		assert.Equal(t, 3, pos, "fold %d should hold 3 of each class", f)
	}
}

func TestStratifiedKFoldErrors(t *testing.T) {
	y := []float64{0, 0, 0, 0, 1} // one positive cannot spread over 2 folds
	_, err := StratifiedKFold{K: 2}.Split(5, y, nil)
	assert.Error(t, err)

	_, err = StratifiedKFold{K: 2}.Split(5, []float64{0, 1}, nil)
	assert.ErrorContains(t, err, "labels")
}

func TestLOSOHoldsOutWholeSubjects(t *testing.T) {
	subjects := []string{"s1", "s1", "s2", "s2", "s2", "s3", "s3"}
	folds, err := LOSO{}.Split(7, nil, subjects)
	require.NoError(t, err)
	require.Len(t, folds, 3)
	requirePartition(t, folds, 7)

	for _, f := range folds {
		held := map[string]bool{}
		for _, i := range f.Test {
			held[subjects[i]] = true
		}
		require.Len(t, held, 1, "a fold must hold out exactly one subject")
		sub := f.Test[0]
		for _, i := range f.Train {
			assert.NotEqual(t, subjects[sub], subjects[i])
		}
	}

	// Folds come out in sorted subject order.
	var order []string
	for _, f := range folds {
		order = append(order, subjects[f.Test[0]])
	}
	assert.True(t, sort.StringsAreSorted(order))
}

func TestLOSOErrors(t *testing.T) {
	_, err := LOSO{}.Split(3, nil, []string{"a", "a", "a"})
	assert.ErrorContains(t, err, "at least 2 subjects")

	_, err = LOSO{}.Split(3, nil, nil)
	assert.ErrorContains(t, err, "subject labels")
}
