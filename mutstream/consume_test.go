package mutstream_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mutstream/mutstream-go/internal/types"
	"github.com/mutstream/mutstream-go/mutstream"
)

// recordingConsumer folds the stream into a trace of callback invocations.
// bodyBudget and closeBudget count down on body and end-of-partition
// callbacks; when one hits zero the callback returns Stop. A negative
// budget never stops. With stopOnce set, the body budget lifts after the
// first Stop, so only one partition is truncated.
type recordingConsumer struct {
	trace       []string
	bodyBudget  int
	closeBudget int
	stopOnce    bool
	streamEnds  int
}

func newRecordingConsumer() *recordingConsumer {
	return &recordingConsumer{bodyBudget: -1, closeBudget: -1}
}

func (c *recordingConsumer) ConsumeNewPartition(key []byte) {
	c.trace = append(c.trace, fmt.Sprintf("new(%s)", key))
}

func (c *recordingConsumer) ConsumePartitionTombstone(t types.Tombstone) {
	c.trace = append(c.trace, fmt.Sprintf("tombstone(%d)", t.Timestamp))
}

func (c *recordingConsumer) bodySignal() mutstream.Signal {
	if c.bodyBudget == 0 {
		if c.stopOnce {
			c.bodyBudget = -1
		}
		return mutstream.SignalStop
	}
	if c.bodyBudget > 0 {
		c.bodyBudget--
	}
	return mutstream.SignalContinue
}

func (c *recordingConsumer) ConsumeStaticRow(types.StaticRow) mutstream.Signal {
	c.trace = append(c.trace, "static")
	return c.bodySignal()
}

func (c *recordingConsumer) ConsumeClusteringRow(cr types.ClusteringRow) mutstream.Signal {
	c.trace = append(c.trace, fmt.Sprintf("row(%s)", cr.Key))
	return c.bodySignal()
}

func (c *recordingConsumer) ConsumeRangeTombstone(rt types.RangeTombstone) mutstream.Signal {
	c.trace = append(c.trace, fmt.Sprintf("rt(%s,%s)", rt.Start, rt.End))
	return c.bodySignal()
}

func (c *recordingConsumer) ConsumeEndOfPartition() mutstream.Signal {
	c.trace = append(c.trace, "end")
	if c.closeBudget == 0 {
		return mutstream.SignalStop
	}
	if c.closeBudget > 0 {
		c.closeBudget--
	}
	return mutstream.SignalContinue
}

func (c *recordingConsumer) ConsumeEndOfStream() []string {
	c.streamEnds++
	c.trace = append(c.trace, "eos")
	return c.trace
}

func TestConsumeFullStream(t *testing.T) {
	r := mutstream.FromPartitions(testSchema(), twoPartitions(), mutstream.ForwardingDisabled)
	consumer := newRecordingConsumer()

	trace, err := mutstream.Consume[[]string](context.Background(), r, consumer)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"new(aaaa)",
		"static",
		"row(ck1)",
		"row(ck3)",
		"rt(ck4,ck9)",
		"end",
		"new(bbbb)",
		"tombstone(5)",
		"row(ck1)",
		"row(ck2)",
		"end",
		"eos",
	}, trace)
	assert.Equal(t, 1, consumer.streamEnds)
}

func TestConsumeEmptyStream(t *testing.T) {
	r := mutstream.FromPartitions(testSchema(), nil, mutstream.ForwardingDisabled)
	consumer := newRecordingConsumer()

	trace, err := mutstream.Consume[[]string](context.Background(), r, consumer)
	require.NoError(t, err)
	assert.Equal(t, []string{"eos"}, trace)
}

func TestConsumeBodyStopTruncatesPartition(t *testing.T) {
	r := mutstream.FromPartitions(testSchema(), twoPartitions(), mutstream.ForwardingDisabled)
	consumer := newRecordingConsumer()
	consumer.bodyBudget = 1 // the second body fragment of A returns Stop

	trace, err := mutstream.Consume[[]string](context.Background(), r, consumer)
	require.NoError(t, err)

	// ck3 and the range tombstone of A are skipped, but the partition is
	// still closed and the fold moves on to B.
	assert.Equal(t, []string{
		"new(aaaa)",
		"static",
		"row(ck1)",
		"end",
		"new(bbbb)",
		"tombstone(5)",
		"row(ck1)",
		"end",
		"eos",
	}, trace)
}

func TestConsumeBodyStopInFirstPartitionOnly(t *testing.T) {
	r := mutstream.FromPartitions(testSchema(), twoPartitions(), mutstream.ForwardingDisabled)
	consumer := newRecordingConsumer()
	consumer.bodyBudget = 1
	consumer.stopOnce = true

	trace, err := mutstream.Consume[[]string](context.Background(), r, consumer)
	require.NoError(t, err)

	// A is truncated after two body fragments; B is delivered in full.
	assert.Equal(t, []string{
		"new(aaaa)",
		"static",
		"row(ck1)",
		"end",
		"new(bbbb)",
		"tombstone(5)",
		"row(ck1)",
		"row(ck2)",
		"end",
		"eos",
	}, trace)
}

func TestConsumeCloseStopEndsFold(t *testing.T) {
	r := mutstream.FromPartitions(testSchema(), twoPartitions(), mutstream.ForwardingDisabled)
	consumer := newRecordingConsumer()
	consumer.closeBudget = 0 // stop after the first partition closes

	trace, err := mutstream.Consume[[]string](context.Background(), r, consumer)
	require.NoError(t, err)

	// B is never opened, yet ConsumeEndOfStream still runs.
	assert.Equal(t, []string{
		"new(aaaa)",
		"static",
		"row(ck1)",
		"row(ck3)",
		"rt(ck4,ck9)",
		"end",
		"eos",
	}, trace)
	assert.Equal(t, 1, consumer.streamEnds)
}

func TestConsumeBodyStopThenCloseStop(t *testing.T) {
	r := mutstream.FromPartitions(testSchema(), twoPartitions(), mutstream.ForwardingDisabled)
	consumer := newRecordingConsumer()
	consumer.bodyBudget = 0
	consumer.closeBudget = 0

	trace, err := mutstream.Consume[[]string](context.Background(), r, consumer)
	require.NoError(t, err)
	assert.Equal(t, []string{"new(aaaa)", "static", "end", "eos"}, trace)
}

func TestConsumeTombstoneOnlyPartitions(t *testing.T) {
	partitions := []*mutstream.Partition{
		mutstream.NewPartition([]byte("aaaa")).SetTombstone(tomb(1)),
		mutstream.NewPartition([]byte("bbbb")).SetTombstone(tomb(2)),
	}
	r := mutstream.FromPartitions(testSchema(), partitions, mutstream.ForwardingDisabled)
	consumer := newRecordingConsumer()

	trace, err := mutstream.Consume[[]string](context.Background(), r, consumer)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"new(aaaa)", "tombstone(1)", "end",
		"new(bbbb)", "tombstone(2)", "end",
		"eos",
	}, trace)
}

func TestConsumeReaderErrorPropagates(t *testing.T) {
	partitions := []*mutstream.Partition{
		mutstream.NewPartition([]byte("bbbb")),
		mutstream.NewPartition([]byte("aaaa")),
	}
	r := mutstream.FromPartitions(testSchema(), partitions, mutstream.ForwardingDisabled)
	consumer := newRecordingConsumer()

	_, err := mutstream.Consume[[]string](context.Background(), r, consumer)
	require.Error(t, err)
	assert.True(t, errors.Is(err, mutstream.ErrCorruption))

	// the fold failed, so ConsumeEndOfStream must not have run
	assert.Equal(t, 0, consumer.streamEnds)
	assert.Equal(t, []string{"new(bbbb)", "end"}, consumer.trace)
}

func TestConsumeTruncatedStream(t *testing.T) {
	r := &sliceReader{schema: testSchema(), fragments: []types.Fragment{
		types.NewPartitionStart([]byte("pk"), mo.None[types.Tombstone]()),
		types.NewClusteringRow([]byte("ck1"), marker(1)),
	}}
	consumer := newRecordingConsumer()

	_, err := mutstream.Consume[[]string](context.Background(), r, consumer)
	require.Error(t, err)

	var details *mutstream.CorruptionError
	require.True(t, errors.As(err, &details))
	assert.Equal(t, types.KindTruncatedPartition, details.Kind)
	assert.Equal(t, 0, consumer.streamEnds)
}

func TestConsumeMissingPartitionStart(t *testing.T) {
	r := &sliceReader{schema: testSchema(), fragments: []types.Fragment{
		types.NewClusteringRow([]byte("ck1"), marker(1)),
	}}
	consumer := newRecordingConsumer()

	_, err := mutstream.Consume[[]string](context.Background(), r, consumer)
	require.Error(t, err)

	var details *mutstream.CorruptionError
	require.True(t, errors.As(err, &details))
	assert.Equal(t, types.KindMissingPartitionStart, details.Kind)
}

func TestConsumeCanceledContext(t *testing.T) {
	r := mutstream.FromPartitions(testSchema(), twoPartitions(), mutstream.ForwardingDisabled)
	consumer := newRecordingConsumer()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := mutstream.Consume[[]string](ctx, r, consumer)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, consumer.streamEnds)
}

func TestSignalString(t *testing.T) {
	assert.Equal(t, "Continue", mutstream.SignalContinue.String())
	assert.Equal(t, "Stop", mutstream.SignalStop.String())
	assert.Equal(t, "Unknown", mutstream.Signal(7).String())
}
