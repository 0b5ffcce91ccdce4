package certid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    uint64
		wantErr bool
	}{
		{name: "plain number", in: "15", want: 15},
		{name: "display form", in: "CERT-2025-0015", want: 15},
		{name: "lowercase display form", in: "cert-2024-0014", want: 14},
		{name: "surrounding spaces", in: "  7 ", want: 7},
		{name: "wide counter", in: "CERT-2026-12345", want: 12345},
		{name: "empty", in: "", wantErr: true},
		{name: "garbage", in: "abc", wantErr: true},
		{name: "bad prefix", in: "CERT-25-0015", wantErr: true},
		{name: "negative", in: "-3", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidID)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeSameKey(t *testing.T) {
	a, err := Normalize("15")
	require.NoError(t, err)
	b, err := Normalize("CERT-2025-0015")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "CERT-2025-0015", Format(2025, 15))
	assert.Equal(t, "CERT-2025-12345", Format(2025, 12345))
}

func TestURLs(t *testing.T) {
	assert.Equal(t, "https://app.example?verify=CERT-2025-0001", VerifyURL("https://app.example/", "CERT-2025-0001"))
	assert.Equal(t, "https://app.example/verify/0001", QRTargetURL("https://app.example", "CERT-2025-0001"))
	assert.Equal(t, "42", NumericPart("42"))
	assert.Equal(t, "https://sepolia.etherscan.io/tx/0xabc", ExplorerTxURL("https://sepolia.etherscan.io", "0xabc"))
	assert.Empty(t, ExplorerTxURL("", "0xabc"))
	assert.Empty(t, ExplorerAddressURL("https://sepolia.etherscan.io", ""))
}
