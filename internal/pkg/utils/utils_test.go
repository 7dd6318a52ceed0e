package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "0", FormatNumber(0))
	assert.Equal(t, "950", FormatNumber(950))
	assert.Equal(t, "9.000", FormatNumber(9000))
	assert.Equal(t, "12.345.678", FormatNumber(12345678))
	assert.Equal(t, "-10.000", FormatNumber(-10000))
}

func TestParseAmount(t *testing.T) {
	n, err := ParseAmount("10000")
	require.NoError(t, err)
	assert.Equal(t, int64(10000), n)

	n, err = ParseAmount(" 10.000 ")
	require.NoError(t, err)
	assert.Equal(t, int64(10000), n)

	n, err = ParseAmount("10,000")
	require.NoError(t, err)
	assert.Equal(t, int64(10000), n)

	_, err = ParseAmount("sepuluh ribu")
	assert.Error(t, err)
}

func TestIsNumeric(t *testing.T) {
	assert.True(t, IsNumeric("081234567890"))
	assert.False(t, IsNumeric(""))
	assert.False(t, IsNumeric("0812-345"))
	assert.False(t, IsNumeric("abc"))
}

func TestGenerateRefIDUnique(t *testing.T) {
	a := GenerateRefID()
	b := GenerateRefID()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}
