package mutstream

import (
	"context"

	"github.com/mutstream/mutstream-go/internal/types"
)

// Signal is returned by consumer callbacks to steer the fold.
type Signal int8

const (
	SignalContinue Signal = iota
	SignalStop
)

// String returns the signal as a string
func (s Signal) String() string {
	switch s {
	case SignalContinue:
		return "Continue"
	case SignalStop:
		return "Stop"
	default:
		return "Unknown"
	}
}

// FragmentConsumer folds a fragment stream into a final result R.
//
// For every partition opened, ConsumeNewPartition is followed by exactly one
// ConsumeEndOfPartition, whether the partition completed naturally or was
// truncated by a Stop signal. ConsumeEndOfStream runs exactly once as the
// terminal step of every fold that does not fail.
type FragmentConsumer[R any] interface {
	// ConsumeNewPartition opens a partition.
	ConsumeNewPartition(key []byte)

	// ConsumePartitionTombstone is called right after ConsumeNewPartition
	// when the partition carries a partition-level tombstone.
	ConsumePartitionTombstone(t types.Tombstone)

	// Body callbacks. Returning SignalStop truncates the current
	// partition: no further body fragments of it are delivered.
	ConsumeStaticRow(sr types.StaticRow) Signal
	ConsumeClusteringRow(cr types.ClusteringRow) Signal
	ConsumeRangeTombstone(rt types.RangeTombstone) Signal

	// ConsumeEndOfPartition closes the partition. SignalStop ends the
	// whole fold without opening further partitions.
	ConsumeEndOfPartition() Signal

	// ConsumeEndOfStream yields the fold's final result.
	ConsumeEndOfStream() R
}

// The fold is an explicit state machine driven from outside both reader and
// consumer, so readers stay free of any notion of limits and the
// skip-to-end-of-partition behavior is not hidden inside them.
type foldState int8

const (
	stateOpening foldState = iota
	stateInPartition
	stateClosing
	stateExhausted
)

// Consume folds the reader's fragment stream into the consumer and returns
// the consumer's final result. A body callback returning SignalStop stops
// body delivery for the current partition; the engine still drains the
// reader through the partition's real EndOfPartition, since the reader's
// position is authoritative. The signal from ConsumeEndOfPartition then
// decides whether the fold proceeds to the next partition or ends.
//
// Reader errors propagate unchanged; no consumer callback runs after one.
func Consume[R any](ctx context.Context, reader FragmentReader, consumer FragmentConsumer[R]) (R, error) {
	var zero R
	state := stateOpening

	for {
		switch state {
		case stateOpening:
			opt, err := reader.Next(ctx)
			if err != nil {
				return zero, err
			}
			f, ok := opt.Get()
			if !ok {
				state = stateExhausted
				continue
			}
			if !f.IsPartitionStart() {
				return zero, types.Corruptf(types.KindMissingPartitionStart,
					"expected PartitionStart, got %s", f.Kind)
			}
			consumer.ConsumeNewPartition(f.PartitionStart.Key)
			if t, ok := f.PartitionStart.Tombstone.Get(); ok {
				consumer.ConsumePartitionTombstone(t)
			}
			state = stateInPartition

		case stateInPartition:
			opt, err := reader.Next(ctx)
			if err != nil {
				return zero, err
			}
			f, ok := opt.Get()
			if !ok {
				return zero, types.Corruptf(types.KindTruncatedPartition,
					"stream ended inside a partition")
			}

			var signal Signal
			switch f.Kind {
			case types.KindStaticRow:
				signal = consumer.ConsumeStaticRow(*f.StaticRow)
			case types.KindClusteringRow:
				signal = consumer.ConsumeClusteringRow(*f.ClusteringRow)
			case types.KindRangeTombstone:
				signal = consumer.ConsumeRangeTombstone(*f.RangeTombstone)
			case types.KindEndOfPartition:
				state = stateClosing
				continue
			case types.KindPartitionStart:
				return zero, types.Corruptf(types.KindDuplicatePartitionStart,
					"PartitionStart inside an open partition")
			}

			if signal == SignalStop {
				if err := drainPartition(ctx, reader); err != nil {
					return zero, err
				}
				state = stateClosing
			}

		case stateClosing:
			if consumer.ConsumeEndOfPartition() == SignalStop {
				state = stateExhausted
				continue
			}
			state = stateOpening

		case stateExhausted:
			return consumer.ConsumeEndOfStream(), nil
		}
	}
}

// drainPartition pulls and discards fragments up to and including the
// current partition's EndOfPartition.
func drainPartition(ctx context.Context, reader FragmentReader) error {
	for {
		opt, err := reader.Next(ctx)
		if err != nil {
			return err
		}
		f, ok := opt.Get()
		if !ok {
			return types.Corruptf(types.KindTruncatedPartition,
				"stream ended inside a partition")
		}
		switch f.Kind {
		case types.KindEndOfPartition:
			return nil
		case types.KindPartitionStart:
			return types.Corruptf(types.KindDuplicatePartitionStart,
				"PartitionStart inside an open partition")
		}
	}
}
