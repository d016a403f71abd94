package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_ClearNeverFiredIsIdempotent(t *testing.T) {
	r := NewRecorder("A")

	r.Clear()
	r.Clear()

	assert.Equal(t, NeverFired, r.LastRecordTime)
	assert.Nil(t, r.LastValue)
}

func TestRecorder_ClearFired(t *testing.T) {
	r := NewRecorder("A")
	r.Update(NewRecord("A", 12.5, WithValue(3)))

	r.Clear()
	assert.Equal(t, Cleared, r.LastRecordTime)
	assert.Nil(t, r.LastValue)

	// A cleared recorder still counts as existing; clearing again keeps it at 0.
	r.Clear()
	assert.Equal(t, Cleared, r.LastRecordTime)
	assert.Nil(t, r.LastValue)
}

func TestRecorder_TriggerTimeAddShiftsBack(t *testing.T) {
	r := NewRecorder("A")
	r.Update(NewRecord("A", 100))

	r.Update(NewRecord("A", 500, WithTriggerTimeAdd(5)))

	assert.Equal(t, 95.0, r.LastRecordTime)
}

func TestRecorder_TriggerTimeAddOnNeverFired(t *testing.T) {
	r := NewRecorder("A")

	r.Update(NewRecord("A", 500, WithTriggerTimeAdd(5)))

	assert.Equal(t, NeverFired, r.LastRecordTime)
}

func TestRecorder_TriggerTimeOverwrites(t *testing.T) {
	r := NewRecorder("A")
	r.Update(NewRecord("A", 100))
	r.Update(NewRecord("A", 42))

	assert.Equal(t, 42.0, r.LastRecordTime)
}

func TestRecorder_ValueResolution(t *testing.T) {
	tests := []struct {
		name  string
		prior *float64
		rec   Record
		want  *float64
	}{
		{
			name:  "explicit value overrides prior",
			prior: f(7),
			rec:   NewRecord("A", 1, WithValue(2)),
			want:  f(2),
		},
		{
			name:  "explicit value wins over value add",
			prior: f(7),
			rec:   NewRecord("A", 1, WithValue(2), WithValueAdd(10)),
			want:  f(2),
		},
		{
			name:  "value add accumulates",
			prior: f(7),
			rec:   NewRecord("A", 1, WithValueAdd(3)),
			want:  f(10),
		},
		{
			name:  "value add on absent treats prior as zero",
			prior: nil,
			rec:   NewRecord("A", 1, WithValueAdd(3)),
			want:  f(3),
		},
		{
			name:  "no value sets zero when absent",
			prior: nil,
			rec:   NewRecord("A", 1),
			want:  f(0),
		},
		{
			name:  "no value keeps prior",
			prior: f(7),
			rec:   NewRecord("A", 1),
			want:  f(7),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRecorder("A")
			r.LastValue = tt.prior

			r.Update(tt.rec)

			require.NotNil(t, r.LastValue)
			assert.Equal(t, *tt.want, *r.LastValue)
		})
	}
}

func TestRecorder_AddMutexIgnoresSelf(t *testing.T) {
	r := NewRecorder("A", "A", "B")

	assert.Equal(t, []string{"B"}, r.Mutexes())
}

func TestRecorder_CopyIsDeep(t *testing.T) {
	r := NewRecorder("A", "B")
	r.Update(NewRecord("A", 1, WithValue(5)))

	c := r.Copy()
	*c.LastValue = 99
	c.MutexList["C"] = struct{}{}

	assert.Equal(t, 5.0, *r.LastValue)
	assert.Equal(t, []string{"B"}, r.Mutexes())
}

func TestNormalizeName(t *testing.T) {
	// "é" composed vs "e" + combining acute accent.
	composed := "caf\u00e9"
	decomposed := "cafe\u0301"

	assert.Equal(t, NormalizeName(composed), NormalizeName(decomposed))
}

func TestNames_DistinctInOrder(t *testing.T) {
	records := []Record{
		NewRecord("B", 1),
		NewRecord("A", 1),
		NewRecord("B", 2),
	}

	assert.Equal(t, []string{"B", "A"}, Names(records))
}

func f(v float64) *float64 {
	return &v
}
