package promo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCode(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "already canonical",
			input: "LT-7K9M2XQ4",
			want:  "LT-7K9M2XQ4",
		},
		{
			name:  "lowercase with surrounding whitespace",
			input: "  lt-7k9m2xq4  ",
			want:  "LT-7K9M2XQ4",
		},
		{
			name:  "internal spaces stripped",
			input: "lt 7k9m 2xq4",
			want:  "LT-7K9M2XQ4",
		},
		{
			name:  "missing dash re-inserted",
			input: "LT7K9M2XQ4",
			want:  "LT-7K9M2XQ4",
		},
		{
			name:  "monthly lowercase no dash",
			input: "mo7k9m2xq4",
			want:  "MO-7K9M2XQ4",
		},
		{
			name:  "garbage passes through for validation to reject",
			input: "hello",
			want:  "HELLO",
		},
		{
			name:  "empty",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeCode(tt.input))
		})
	}
}

func TestValidateCodeFormat(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantErr bool
	}{
		{name: "valid lifetime", code: "LT-7K9M2XQ4", wantErr: false},
		{name: "valid monthly", code: "MO-ABCDEFGH", wantErr: false},
		{name: "too short", code: "LT-7K9M", wantErr: true},
		{name: "too long", code: "LT-7K9M2XQ4X", wantErr: true},
		{name: "missing dash", code: "LT07K9M2XQ4", wantErr: true},
		{name: "unknown type tag", code: "XX-7K9M2XQ4", wantErr: true},
		{name: "excluded character zero", code: "LT-7K9M2XQ0", wantErr: true},
		{name: "excluded character O", code: "LT-7K9M2XQO", wantErr: true},
		{name: "excluded character I", code: "LT-7K9M2XQI", wantErr: true},
		{name: "excluded character one", code: "LT-7K9M2XQ1", wantErr: true},
		{name: "empty", code: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCodeFormat(tt.code)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidFormat)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestCodeTypeOf(t *testing.T) {
	codeType, ok := CodeTypeOf("LT-7K9M2XQ4")
	require.True(t, ok)
	assert.Equal(t, CodeTypeLifetime, codeType)

	codeType, ok = CodeTypeOf("MO-7K9M2XQ4")
	require.True(t, ok)
	assert.Equal(t, CodeTypeMonthly, codeType)

	_, ok = CodeTypeOf("XX-7K9M2XQ4")
	assert.False(t, ok)

	_, ok = CodeTypeOf("L")
	assert.False(t, ok)
}

func TestMaskCode(t *testing.T) {
	assert.Equal(t, "LT-7K****", maskCode("LT-7K9M2XQ4"))
	assert.Equal(t, "****", maskCode("LT-7"))
	assert.Equal(t, "****", maskCode(""))
}

func TestCodeTypeValid(t *testing.T) {
	assert.True(t, CodeTypeLifetime.Valid())
	assert.True(t, CodeTypeMonthly.Valid())
	assert.False(t, CodeType("weekly").Valid())
	assert.False(t, CodeType("").Valid())
}
