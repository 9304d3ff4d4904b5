package units

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinarySizeConstants(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1024, KiB)
	assert.Equal(t, 1024*KiB, MiB)
	assert.Equal(t, 1024*MiB, GiB)
}

func TestParseSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  int
	}{
		{input: "", want: 0},
		{input: "0", want: 0},
		{input: "512KiB", want: 512 * KiB},
		{input: " 4 MiB ", want: 4 * MiB},
		{input: "1MB", want: 1_000_000},
		{input: "2048", want: 2048},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			got, err := ParseSize(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSize_Invalid(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"lots", "-1KiB", "3GiB"} {
		_, err := ParseSize(input)
		require.ErrorIs(t, err, ErrInvalidSize, input)
	}
}
