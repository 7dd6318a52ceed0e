package webhook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulsabot/internal/models"
)

func TestParseSuccessLine(t *testing.T) {
	msg := "RC=4fb6c1de-9a21-4c5f-8f33-0a1b2c3d4e5f TrxID=8812345 bpal1.081234567890 sukses Transaksi sukses nomor serial 99887766"

	cb, err := Parse(msg)
	require.NoError(t, err)
	assert.Equal(t, "4fb6c1de-9a21-4c5f-8f33-0a1b2c3d4e5f", cb.RefID)
	assert.Equal(t, "8812345", cb.TrxID)
	assert.Equal(t, "bpal1", cb.ProductCode)
	assert.Equal(t, "081234567890", cb.Destination)
	assert.Equal(t, "sukses", cb.StatusWord)
	assert.Equal(t, "Transaksi sukses nomor serial 99887766", cb.Detail)
}

func TestParseStripsSaldoTail(t *testing.T) {
	msg := "RC=4fb6c1de-9a21-4c5f-8f33-0a1b2c3d4e5f TrxID=8812345 bpal1.081234567890 sukses Transaksi sukses Saldo 100.000 - 9.000 = 91.000"

	cb, err := Parse(msg)
	require.NoError(t, err)
	assert.Equal(t, "Transaksi sukses", cb.Detail)
	assert.NotContains(t, cb.Detail, "Saldo")
}

func TestParseCapturesResultCode(t *testing.T) {
	msg := "RC=4fb6c1de-9a21-4c5f-8f33-0a1b2c3d4e5f TrxID=8812345 XLA14.081234567890 gagal Nomor tujuan salah result=2"

	cb, err := Parse(msg)
	require.NoError(t, err)
	assert.Equal(t, "gagal", cb.StatusWord)
	assert.Equal(t, "Nomor tujuan salah", cb.Detail)
	assert.Equal(t, "2", cb.ResultCode)
}

func TestParseStatusWordLowercased(t *testing.T) {
	msg := "RC=abc123 TrxID=1 bpal1.081234567890 SUKSES Transaksi sukses"

	cb, err := Parse(msg)
	require.NoError(t, err)
	assert.Equal(t, "sukses", cb.StatusWord)
}

func TestParseTrimsSurroundingWhitespace(t *testing.T) {
	msg := "  RC=abc123 TrxID=1 bpal1.081234567890 sukses Transaksi sukses \n"

	cb, err := Parse(msg)
	require.NoError(t, err)
	assert.Equal(t, "abc123", cb.RefID)
}

func TestParseUnrecognized(t *testing.T) {
	cases := []string{
		"",
		"halo dunia",
		"Saldo anda 100.000",
		"RC= TrxID=1 bpal1.081234567890 sukses ok",
		"RC=abc123 TrxID=xx bpal1.081234567890 sukses ok",
		"RC=abc123 TrxID=1 bpal1 sukses ok",
	}
	for _, msg := range cases {
		_, err := Parse(msg)
		assert.ErrorIs(t, err, ErrUnrecognized, "input: %q", msg)
	}
}

func TestMapStatus(t *testing.T) {
	status, ok := MapStatus("sukses")
	assert.True(t, ok)
	assert.Equal(t, models.StatusSuccess, status)

	status, ok = MapStatus("gagal")
	assert.True(t, ok)
	assert.Equal(t, models.StatusCancelled, status)

	status, ok = MapStatus("batal")
	assert.True(t, ok)
	assert.Equal(t, models.StatusCancelled, status)

	// Non-terminal or unknown words must be ignored, not failed.
	for _, word := range []string{"proses", "pending", "menunggu", ""} {
		_, ok := MapStatus(word)
		assert.False(t, ok, "word: %q", word)
	}
}
