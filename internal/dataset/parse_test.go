package dataset

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/heartaudit/internal/model"
)

const header = "age,sex,cp,trestbps,chol,fbs,restecg,thalach,exang,oldpeak,slope,ca,thal,target\n"

func TestParseKeepsValidRows(t *testing.T) {
	csv := header +
		"63,1,3,145,233,1,0,150,0,2.3,0,0,1,1\n" +
		"\n" +
		"41,0,1,130,204,0,0,172,0,1.4,2,0,2,0\n"
	result, err := Parse(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, result.Records, 2)
	assert.Zero(t, result.Dropped)

	first := result.Records[0]
	assert.Equal(t, 63.0, first.Age)
	assert.Equal(t, 2.3, first.Oldpeak)
	label, ok := first.Label()
	require.True(t, ok)
	assert.Equal(t, 1, label)
	assert.Equal(t, 0.0, result.Records[1].Sex)
}

func TestParseDropsMalformedRows(t *testing.T) {
	csv := header +
		"63,1,3,145,233,1,0,150,0,2.3,0,0,1,1\n" +
		"63,1,3,145,233,1,0,150,0,2.3,0,0,1\n" + // short
		"63,1,3,145,abc,1,0,150,0,2.3,0,0,1,1\n" + // not numeric
		"63,1,3,145,NaN,1,0,150,0,2.3,0,0,1,1\n" + // not finite
		"63,1,3,145,233,1,0,150,0,2.3,0,0,1,2\n" + // bad label
		"63,1,3,145,233,1,0,150,0,2.3,0,0,1,1,9\n" // long
	result, err := Parse(strings.NewReader(csv))
	require.NoError(t, err)
	assert.Len(t, result.Records, 1)
	assert.Equal(t, 5, result.Dropped)
}

func TestParseKeepsOutOfRangeSex(t *testing.T) {
	csv := header + "50,2,0,120,200,0,0,160,0,0,1,0,2,1\n"
	result, err := Parse(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Equal(t, 2.0, result.Records[0].Sex)
}

func TestParseHeaderOrderAndOptionalTarget(t *testing.T) {
	csv := "thal,ca,slope,oldpeak,exang,thalach,restecg,fbs,chol,trestbps,cp,sex,age\n" +
		"2,0,1,1.0,0,150,1,0,240,130,1,1,55\n"
	result, err := Parse(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Equal(t, model.DefaultPatient(), result.Records[0])
	assert.False(t, result.Records[0].Labeled())
}

func TestParseEmptyTargetCellIsUnlabeled(t *testing.T) {
	csv := header + "55,1,1,130,240,0,1,150,0,1.0,1,0,2,\n"
	result, err := Parse(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.False(t, result.Records[0].Labeled())
}

func TestParseMissingColumns(t *testing.T) {
	_, err := Parse(strings.NewReader("age,sex,target\n50,1,1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cp")
}

func TestParseEmptyInput(t *testing.T) {
	_, err := Parse(strings.NewReader(""))
	assert.Error(t, err)
}

func TestParseHeaderWithBOM(t *testing.T) {
	result, err := Parse(strings.NewReader("\ufeff" + header + "55,1,1,130,240,0,1,150,0,1.0,1,0,2,0\n"))
	require.NoError(t, err)
	assert.Len(t, result.Records, 1)
}

func TestLabeled(t *testing.T) {
	records := []model.Record{
		model.DefaultPatient().WithLabel(1),
		model.DefaultPatient(),
		model.DefaultPatient().WithLabel(0),
	}
	labeled, skipped := Labeled(records)
	assert.Len(t, labeled, 2)
	assert.Equal(t, 1, skipped)
}
