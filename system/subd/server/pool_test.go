package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/saulx/selva/go-selva/ir"
	"github.com/saulx/selva/go-selva/libdiff"
)

func TestPoolDiffApply(t *testing.T) {
	m := NewMetrics(nil)
	p := NewPool(3, m)
	defer p.Close()

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Go(func() {
			from := parse(t, fmt.Sprintf(`{"i": %d, "l": [1, 2, 3]}`, i))
			to := parse(t, fmt.Sprintf(`{"i": %d, "l": [1, %d]}`, i+1, i))
			d, err := p.Diff(ctx, from, to)
			if err != nil {
				t.Error(err)
				return
			}
			got, err := p.Apply(ctx, from, d)
			if err != nil {
				t.Error(err)
				return
			}
			if !ir.Equal(got, to) {
				t.Errorf("%d: got %s, want %s", i, got.MustJSON(), to.MustJSON())
			}
		})
	}
	wg.Wait()
	if n := testutil.CollectAndCount(m.DiffDuration); n != 1 {
		t.Errorf("expected one histogram, got %d", n)
	}
}

func TestPoolApplyShapeError(t *testing.T) {
	p := NewPool(1, nil)
	defer p.Close()
	_, err := p.Apply(context.Background(), ir.FromInt(1), &libdiff.ObjectPatch{})
	if !errors.Is(err, libdiff.ErrShapeMismatch) {
		t.Errorf("expected shape mismatch, got %v", err)
	}
}

func TestPoolCanceled(t *testing.T) {
	p := NewPool(1, nil)
	defer p.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Diff(ctx, ir.Null(), ir.Null()); !errors.Is(err, context.Canceled) {
		// the job may have been picked up before the cancellation was
		// seen, in which case it completes normally
		if err != nil {
			t.Errorf("expected cancellation or success, got %v", err)
		}
	}
}

func TestPoolClosed(t *testing.T) {
	p := NewPool(2, nil)
	p.Close()
	p.Close()
	if _, err := p.Diff(context.Background(), ir.Null(), ir.Null()); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("expected closed pool, got %v", err)
	}
}
