package progress

import (
	"testing"

	"github.com/bitrise-io/go-uploadthing/upload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func files(n int) []*upload.File {
	var fs []*upload.File
	for i := 0; i < n; i++ {
		fs = append(fs, upload.NewFileFromBytes("f", "text/plain", []byte("x")))
	}
	return fs
}

func TestAggregator_Reset(t *testing.T) {
	for _, n := range []int{1, 2, 7} {
		a := NewAggregator()
		a.Reset(files(3))

		set := files(n)
		a.Reset(set)

		require.Equal(t, n, a.Len())
		for i, e := range a.Snapshot() {
			assert.Same(t, set[i], e.File)
			assert.Equal(t, float64(0), e.Percent)
		}
		assert.Equal(t, 0, a.Aggregate())
	}
}

func TestAggregator_ResetDeduplicatesHandles(t *testing.T) {
	f := files(1)[0]
	a := NewAggregator()

	a.Reset([]*upload.File{f, f})

	assert.Equal(t, 1, a.Len())
}

func TestAggregator_Aggregate(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   int
	}{
		{name: "two files", values: []float64{25, 35}, want: 30},
		{name: "floors to tens", values: []float64{19.9}, want: 10},
		{name: "just below a step", values: []float64{100, 99}, want: 90},
		{name: "complete", values: []float64{100, 100, 100}, want: 100},
		{name: "uneven", values: []float64{0, 0, 100}, want: 30},
		{name: "no clamping", values: []float64{250}, want: 250},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := files(len(tt.values))
			a := NewAggregator()
			a.Reset(set)

			for i, v := range tt.values {
				require.True(t, a.Record(set[i], v))
			}

			assert.Equal(t, tt.want, a.Aggregate())
		})
	}
}

func TestAggregator_RecordUnknownFile(t *testing.T) {
	a := NewAggregator()
	a.Reset(files(2))

	ok := a.Record(files(1)[0], 100)

	assert.False(t, ok)
	assert.Equal(t, 2, a.Len())
	assert.Equal(t, 0, a.Aggregate())
}

func TestAggregator_RegressionIsAccepted(t *testing.T) {
	set := files(1)
	a := NewAggregator()
	a.Reset(set)

	a.Record(set[0], 60)
	assert.Equal(t, 60, a.Aggregate())

	a.Record(set[0], 40)
	assert.Equal(t, 40, a.Aggregate())
}

func TestAggregator_Clear(t *testing.T) {
	a := NewAggregator()
	a.Reset(files(4))

	a.Clear()

	assert.Equal(t, 0, a.Len())
	assert.Empty(t, a.Snapshot())
	assert.Equal(t, 0, a.Aggregate())
}
