package frame

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromCSVAndConvertNumeric(t *testing.T) {
	csvData := "id,length,rings,sex\n1,0.45,15,M\n2,0.35,7,F\n3,,9,I\n"

	f, err := FromCSV(strings.NewReader(csvData))
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "length", "rings", "sex"}, f.Columns)
	assert.Equal(t, 3, f.NumRows())

	f.ConvertNumeric()

	// Numeric columns become float64
	lengths, err := f.Float64Column("length")
	require.NoError(t, err)
	assert.Equal(t, 0.45, lengths[0])
	assert.True(t, math.IsNaN(lengths[2])) // empty cell → missing

	// Missing cell stored as nil, not empty string
	assert.Nil(t, f.Rows[2][1])

	// Mixed column stays string
	sex, err := f.StringColumn("sex")
	require.NoError(t, err)
	assert.Equal(t, []string{"M", "F", "I"}, sex)
}

func TestToCSVRoundTrip(t *testing.T) {
	f := New("a", "b")
	require.NoError(t, f.AppendRow([]any{1.5, "x"}))
	require.NoError(t, f.AppendRow([]any{nil, "y"}))

	var buf bytes.Buffer
	require.NoError(t, f.ToCSV(&buf))
	assert.Equal(t, "a,b\n1.5,x\n,y\n", buf.String())

	back, err := FromCSV(&buf)
	require.NoError(t, err)
	back.ConvertNumeric()
	assert.Equal(t, 1.5, back.Rows[0][0])
	assert.Nil(t, back.Rows[1][0])
}

func TestSliceAndAppend(t *testing.T) {
	f := New("x")
	for i := 0; i < 10; i++ {
		require.NoError(t, f.AppendRow([]any{float64(i)}))
	}

	head := f.Slice(0, 3)
	assert.Equal(t, 3, head.NumRows())

	// Out-of-range bounds are clamped
	tail := f.Slice(8, 500)
	assert.Equal(t, 2, tail.NumRows())
	assert.Equal(t, 0, f.Slice(7, 2).NumRows())

	combined := New("x")
	require.NoError(t, combined.Append(head))
	require.NoError(t, combined.Append(tail))
	assert.Equal(t, 5, combined.NumRows())

	other := New("y")
	assert.Error(t, combined.Append(other))
}

func TestSelectAndMissingColumns(t *testing.T) {
	f := New("a", "b", "c")
	require.NoError(t, f.AppendRow([]any{1.0, 2.0, 3.0}))

	sel, err := f.Select([]string{"c", "a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a"}, sel.Columns)
	assert.Equal(t, []any{3.0, 1.0}, sel.Rows[0])

	_, err = f.Select([]string{"nope"})
	assert.Error(t, err)

	assert.True(t, f.HasColumns([]string{"a", "c"}))
	assert.Equal(t, []string{"z"}, f.MissingColumns([]string{"a", "z"}))
}

func TestAddColumn(t *testing.T) {
	f := New("a")
	require.NoError(t, f.AppendRow([]any{1.0}))
	require.NoError(t, f.AppendRow([]any{2.0}))

	require.NoError(t, f.AddColumn("prediction", []any{10.0, 20.0}))
	assert.Equal(t, []string{"a", "prediction"}, f.Columns)
	assert.Equal(t, 20.0, f.Rows[1][1])

	assert.Error(t, f.AddColumn("bad", []any{1.0}))
}

func TestParquetRoundTrip(t *testing.T) {
	f := New("length", "rings", "sex")
	require.NoError(t, f.AppendRow([]any{0.45, 15.0, "M"}))
	require.NoError(t, f.AppendRow([]any{0.35, 7.0, "F"}))
	require.NoError(t, f.AppendRow([]any{nil, 9.0, "I"}))

	data, err := f.WriteParquet()
	require.NoError(t, err)
	require.NotEmpty(t, data)

	back, err := ReadParquet(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"length", "rings", "sex"}, back.Columns)
	require.Equal(t, 3, back.NumRows())
	assert.InDelta(t, 0.45, CellFloat(back.Rows[0][0]), 1e-9)
	assert.Nil(t, back.Rows[2][0])
	s, err := back.StringColumn("sex")
	require.NoError(t, err)
	assert.Equal(t, []string{"M", "F", "I"}, s)
}
