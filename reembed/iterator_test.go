package reembed

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/poiesic/servicefinder/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeRecords(n int) []*core.Record {
	records := make([]*core.Record, n)
	for i := range records {
		id := fmt.Sprintf("S%03d", i+1)
		records[i] = &core.Record{ID: id, Name: "Service " + id, Description: "Description of " + id}
	}
	return records
}

func TestRecordIterator_ForEach(t *testing.T) {
	tests := []struct {
		name      string
		records   int
		batchSize int
		wantSizes []int
	}{
		{"empty", 0, 10, nil},
		{"single partial batch", 3, 10, []int{3}},
		{"exact multiple", 20, 10, []int{10, 10}},
		{"remainder", 23, 10, []int{10, 10, 3}},
		{"default batch size", 12, 0, []int{10, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it := NewRecordIterator(makeRecords(tt.records), tt.batchSize)
			assert.Equal(t, len(tt.wantSizes), it.Batches())

			var sizes, indices []int
			err := it.ForEach(context.Background(), func(index int, batch []*core.Record) error {
				sizes = append(sizes, len(batch))
				indices = append(indices, index)
				return nil
			})
			require.NoError(t, err)
			assert.Equal(t, tt.wantSizes, sizes)
			for i, idx := range indices {
				assert.Equal(t, i, idx)
			}
		})
	}
}

func TestRecordIterator_StopsOnError(t *testing.T) {
	it := NewRecordIterator(makeRecords(30), 10)
	stop := errors.New("stop")

	calls := 0
	err := it.ForEach(context.Background(), func(index int, batch []*core.Record) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestRecordIterator_ContextCanceled(t *testing.T) {
	it := NewRecordIterator(makeRecords(30), 10)
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := it.ForEach(ctx, func(index int, batch []*core.Record) error {
		calls++
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestLedger(t *testing.T) {
	ledger := &Ledger{}
	ledger.Add(&core.Record{ID: "S2", Name: "Two"}, errors.New("boom"))
	ledger.Add(&core.Record{ID: "S1", Name: "One"}, errors.New("bang"))

	assert.Equal(t, 2, ledger.Len())
	assert.Equal(t, []core.Failure{
		{ID: "S1", Name: "One", Error: "bang"},
		{ID: "S2", Name: "Two", Error: "boom"},
	}, ledger.Failures())
}
