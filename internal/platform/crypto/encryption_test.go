package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func TestSealRoundTripWithDerivedKey(t *testing.T) {
	master, err := New(testKey)
	require.NoError(t, err)
	require.True(t, master.Configured())

	docs, err := master.ForPurpose(PurposePayslipDocument)
	require.NoError(t, err)

	sealed, err := docs.Encrypt([]byte("%PDF-1.3 payslip"))
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "payslip")

	opened, err := docs.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.3 payslip", string(opened))

	_, err = master.Decrypt(sealed)
	assert.Error(t, err, "master key must not open documents sealed with the derived key")
}

func TestUnconfiguredPassesThrough(t *testing.T) {
	svc, err := New("")
	require.NoError(t, err)
	assert.False(t, svc.Configured())

	docs, err := svc.ForPurpose(PurposePayslipDocument)
	require.NoError(t, err)
	out, err := docs.Encrypt([]byte("plain"))
	require.NoError(t, err)
	assert.Equal(t, "plain", string(out))
}

func TestRejectsShortKey(t *testing.T) {
	_, err := New(strings.Repeat("a", 10))
	assert.Error(t, err)
}

func TestDecryptRejectsTruncatedCiphertext(t *testing.T) {
	svc, err := New(testKey)
	require.NoError(t, err)
	_, err = svc.Decrypt([]byte("short"))
	assert.ErrorIs(t, err, ErrCiphertextTooShort)
}
