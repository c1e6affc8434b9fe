package assert

import (
	"context"
	"fmt"
	"testing"

	assert2 "github.com/stretchr/testify/assert"

	"github.com/mutstream/mutstream-go/internal/types"
	"github.com/mutstream/mutstream-go/mutstream"
)

func True(condition bool, errMsg string, arg ...any) {
	if !condition {
		panic(fmt.Sprintf("Assertion Failed: %s\n", fmt.Sprintf(errMsg, arg...)))
	}
}

// NextFragment is a test helper to verify the reader's next fragment is
// structurally equal to want
func NextFragment(t *testing.T, r mutstream.FragmentReader, want types.Fragment) {
	t.Helper()
	opt, err := r.Next(context.Background())
	assert2.NoError(t, err)
	got, ok := opt.Get()
	if !assert2.True(t, ok, "expected fragment %s, got end of stream", want) {
		return
	}
	assert2.True(t, want.Equal(got), "expected fragment %s, got %s", want, got)
}

// Exhausted is a test helper to assert the reader is at end of stream
func Exhausted(t *testing.T, r mutstream.FragmentReader) {
	t.Helper()
	opt, err := r.Next(context.Background())
	assert2.NoError(t, err)
	assert2.True(t, opt.IsAbsent(), "expected end of stream, got %v", opt.OrEmpty())
}

// Drain pulls the reader to exhaustion and returns every fragment
func Drain(t *testing.T, r mutstream.FragmentReader) []types.Fragment {
	t.Helper()
	var out []types.Fragment
	for {
		opt, err := r.Next(context.Background())
		assert2.NoError(t, err)
		f, ok := opt.Get()
		if !ok {
			return out
		}
		out = append(out, f)
	}
}
