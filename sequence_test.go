package lampnet

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequenceGuard_Admit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		seqs []byte
		want []bool
	}{
		{
			name: "reset honoured once",
			seqs: []byte{5, 6, 0, 0},
			want: []bool{true, true, true, false},
		},
		{
			name: "first frame always admitted",
			seqs: []byte{0, 0, 1},
			want: []bool{true, false, true},
		},
		{
			name: "older values suppressed",
			seqs: []byte{10, 9, 10, 11},
			want: []bool{true, false, false, true},
		},
		{
			name: "late start",
			seqs: []byte{24, 0, 1, 2},
			want: []bool{true, true, true, true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var g SequenceGuard
			got := make([]bool, 0, len(tt.seqs))
			for _, s := range tt.seqs {
				got = append(got, g.Admit(s))
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSequenceGuard_Reply(t *testing.T) {
	t.Parallel()

	var g SequenceGuard
	_, seen := g.LastSeen()
	assert.False(t, seen)

	assert.True(t, g.Admit(4))
	assert.Equal(t, byte(5), g.Reply())

	// the retransmitted request carries the same value and stays suppressed
	assert.False(t, g.Admit(4))
	assert.True(t, g.Admit(6))

	g.Prime(20)
	last, seen := g.LastSeen()
	assert.True(t, seen)
	assert.Equal(t, byte(20), last)
}

func TestSendCounter_Next(t *testing.T) {
	t.Parallel()

	c := NewSendCounter()
	seq, reset := c.Next(true)
	assert.Equal(t, byte(0), seq)
	assert.False(t, reset)

	var got []byte
	for range 11 {
		seq, reset = c.Next(false)
		assert.False(t, reset)
		got = append(got, seq)
	}
	assert.Equal(t, []byte{2, 4, 6, 8, 10, 12, 14, 16, 18, 20, 22}, got)
	assert.Equal(t, 22, c.Current())
}

func TestSendCounter_WrapsAtCeiling(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		broadcast bool
		wantSeq   byte
		wantReset bool
	}{
		{name: "broadcast goes out as zero", broadcast: true, wantSeq: 0},
		{name: "unicast needs a reset first", broadcast: false, wantSeq: 1, wantReset: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := &SendCounter{last: 24}
			seq, reset := c.Next(tt.broadcast)
			assert.Equal(t, tt.wantSeq, seq)
			assert.Equal(t, tt.wantReset, reset)
			assert.Less(t, c.Current(), SequenceCeiling)
		})
	}
}

func TestSendCounter_WrapStaysPendingUntilResetSent(t *testing.T) {
	t.Parallel()

	c := &SendCounter{last: 24}
	seq, reset := c.Next(false)
	assert.Equal(t, byte(1), seq)
	assert.True(t, reset)
	assert.True(t, c.ResetPending())

	// the reset never went out, so the retry asks for it again
	seq, reset = c.Next(false)
	assert.Equal(t, byte(1), seq)
	assert.True(t, reset)

	// a broadcast in between goes out as zero and leaves the reset pending
	seq, reset = c.Next(true)
	assert.Equal(t, byte(0), seq)
	assert.False(t, reset)
	assert.True(t, c.ResetPending())

	_, _ = c.Next(false)
	c.ResetSent()
	assert.False(t, c.ResetPending())
	seq, reset = c.Next(false)
	assert.Equal(t, byte(3), seq)
	assert.False(t, reset)
}

func TestSendCounter_Accept(t *testing.T) {
	t.Parallel()

	c := NewSendCounter()
	seq, _ := c.Next(false)
	assert.Equal(t, byte(0), seq)

	assert.False(t, c.Accept(0), "echo of the request")
	assert.True(t, c.Accept(1))
	assert.False(t, c.Accept(1), "relayed copy of the reply")

	seq, _ = c.Next(false)
	assert.Equal(t, byte(3), seq)
}
