package lampnet

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func traceFrame(seq byte, tag Tag) Frame {
	return Frame{Src: testRC, Dest: testStation, Seq: seq, Tag: tag}
}

func TestTraceBuffer_RecordsInOrder(t *testing.T) {
	t.Parallel()

	tb := NewTraceBuffer("uart", testRC.String(), 8)
	tb.RecordTX(traceFrame(2, TagPoll))
	tb.RecordRX(traceFrame(3, TagPollAck))
	tb.RecordTimeout("Power1Ack from 000000000002 after 4s")

	entries := tb.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, []TraceDirection{TraceTX, TraceRX, TraceTimeout},
		[]TraceDirection{entries[0].Direction, entries[1].Direction, entries[2].Direction})
	assert.Equal(t, byte(3), entries[1].Frame.Seq)
	assert.False(t, entries[0].Timestamp.IsZero())
}

func TestTraceBuffer_RingKeepsNewest(t *testing.T) {
	t.Parallel()

	tb := NewTraceBuffer("uart", "rc", 3)
	for seq := byte(0); seq < 5; seq++ {
		tb.RecordTX(traceFrame(seq, TagLampCtrl))
	}

	entries := tb.Entries()
	require.Len(t, entries, 3)
	for i, want := range []byte{2, 3, 4} {
		assert.Equal(t, want, entries[i].Frame.Seq)
	}
}

func TestTraceBuffer_ClearAndDefaults(t *testing.T) {
	t.Parallel()

	tb := NewTraceBuffer("mock", "rc", 0)
	assert.Len(t, tb.ring, 16)

	tb.RecordTX(traceFrame(1, TagLampCtrl))
	tb.Clear()
	assert.Empty(t, tb.Entries())

	tb.RecordTX(traceFrame(4, TagLampCtrl))
	assert.Len(t, tb.Entries(), 1)
}

func TestTraceBuffer_WrapError(t *testing.T) {
	t.Parallel()

	tb := NewTraceBuffer("uart", "000000000001", 4)
	assert.NoError(t, tb.WrapError(nil))

	tb.RecordTX(traceFrame(2, TagLampCtrl))
	err := tb.WrapError(ErrResponseNack)
	require.ErrorIs(t, err, ErrResponseNack)
	assert.Equal(t, ErrResponseNack.Error(), err.Error())

	require.True(t, HasTrace(err))
	te := GetTrace(err)
	require.NotNil(t, te)
	assert.Equal(t, "uart", te.Transport)
	assert.Equal(t, "000000000001", te.Node)
	assert.Len(t, te.Trace, 1)

	// the wrapped history does not change with later recordings
	tb.RecordRX(traceFrame(3, TagNack))
	assert.Len(t, te.Trace, 1)

	assert.False(t, HasTrace(errors.New("plain")))
	assert.Nil(t, GetTrace(nil))
}

func TestTraceableError_FormatTrace(t *testing.T) {
	t.Parallel()

	empty := NewTraceBuffer("uart", "rc", 4).WrapError(ErrResponseTimeout)
	assert.Equal(t, "[uart node rc] no frames recorded", GetTrace(empty).FormatTrace())

	tb := NewTraceBuffer("uart", "rc", 4)
	tb.RecordTX(traceFrame(2, TagLampCtrl))
	tb.RecordTimeout("LampCtrlAck after 4s")
	out := GetTrace(tb.WrapError(ErrResponseTimeout)).FormatTrace()

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "[uart node rc] 2 entries:", lines[0])
	assert.Contains(t, lines[1], "TX "+traceFrame(2, TagLampCtrl).String())
	assert.Contains(t, lines[2], "timeout: LampCtrlAck after 4s")
}
