package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeExpirer struct {
	got time.Duration
	n   int64
	err error
}

func (f *fakeExpirer) ExpireRequests(ctx context.Context, olderThan time.Duration) (int64, error) {
	f.got = olderThan
	return f.n, f.err
}

func TestRunRequestExpiry(t *testing.T) {
	t.Run("Passes Retention", func(t *testing.T) {
		f := &fakeExpirer{n: 3}
		err := RunRequestExpiry(context.Background(), f, 48*time.Hour)
		assert.NoError(t, err)
		assert.Equal(t, 48*time.Hour, f.got)
	})

	t.Run("Returns Store Error", func(t *testing.T) {
		f := &fakeExpirer{err: errors.New("store down")}
		err := RunRequestExpiry(context.Background(), f, time.Hour)
		assert.EqualError(t, err, "store down")
	})
}
