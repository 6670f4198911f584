package stats

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"e2h/pkg/contract"
)

var m = contract.BaseStructureMarker()

func TestCount(t *testing.T) {
	rows := []contract.Row{
		{Record: contract.Record{Text: "a b c", Record: m.Empty()}},
		{Record: contract.Record{Text: "a", Record: "<extra_id_0> <extra_id_0> PER <extra_id_5> a <extra_id_1> <extra_id_1>"}},
	}
	cols, err := contract.ToColumns(rows)
	require.NoError(t, err)

	s := Count(m, contract.SplitTrain, cols)
	assert.Equal(t, contract.SplitTrain, s.Split)
	assert.Equal(t, 2, s.Count)
	assert.Equal(t, 1, s.Empty)
	assert.Equal(t, Length{Min: 1, Max: 3, Mean: 2}, s.Text)
	assert.Equal(t, Length{Min: 2, Max: 7, Mean: 4.5}, s.Record)
}

func TestCountEmpty(t *testing.T) {
	s := Count(m, contract.SplitTest, contract.Columns{})
	assert.Equal(t, 0, s.Count)
	assert.Equal(t, Length{}, s.Text)
	assert.Equal(t, Split{Split: contract.SplitTest}, CountRecords(m, contract.SplitTest, nil))
}

func TestCountRecords(t *testing.T) {
	s := CountRecords(m, contract.SplitValidation, []contract.Record{
		{Text: "x y", Record: m.Empty()},
		{Text: "x y z w", Record: m.Empty()},
	})
	assert.Equal(t, 2, s.Empty)
	assert.Equal(t, 3.0, s.Text.Mean)
}

func TestWriteTable(t *testing.T) {
	var sb strings.Builder
	require.NoError(t, WriteTable(&sb, []Split{{Split: contract.SplitTrain, Count: 3, Text: Length{1, 5, 2.5}}}))
	out := sb.String()
	assert.Contains(t, out, "split")
	assert.Contains(t, out, "1/5/2.50")
}
