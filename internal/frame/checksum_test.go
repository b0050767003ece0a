package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateCRC(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		data []byte
		want uint16
	}{
		{
			name: "empty data",
			data: []byte{},
			want: 0xFFFF,
		},
		{
			name: "check string",
			data: []byte("123456789"),
			want: 0x29B1,
		},
		{
			name: "single zero byte",
			data: []byte{0x00},
			want: 0xE1F0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, CalculateCRC(tt.data))
		})
	}
}

func TestAppendCRC(t *testing.T) {
	t.Parallel()

	out := AppendCRC([]byte("123456789"))
	assert.Len(t, out, 11)
	assert.Equal(t, []byte{0x29, 0xB1}, out[9:])
}
