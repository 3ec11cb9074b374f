package testutil

import (
	"errors"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flux/internal/effect"
)

func newGoldie(t *testing.T) *goldie.Goldie {
	t.Helper()
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestRecorder_ReceiveOnFinished(t *testing.T) {
	s := NewTestScheduler()

	r := RecordEffect(s, effect.ReceiveOn(effect.FromSlice(1, 2, 3, 4), s))
	assert.Empty(t, r.Records())

	require.NoError(t, s.Drain())

	assert.Equal(t, []Record[int]{
		Next(1, 0),
		Next(2, 0),
		Next(3, 0),
		Next(4, 0),
		Finished[int](0),
	}, r.Records())
}

func TestRecorder_ReceiveOnFailure(t *testing.T) {
	boom := errors.New("boom")
	s := NewTestScheduler()

	r := RecordEffect(s, effect.ReceiveOn(effect.Concat(effect.FromSlice(1, 2, 3, 4), effect.Fail[int](boom)), s))
	assert.Empty(t, r.Records())

	require.NoError(t, s.Drain())

	assert.Equal(t, []Record[int]{
		Next(1, 0),
		Next(2, 0),
		Next(3, 0),
		Next(4, 0),
		Failed[int](boom, 0),
	}, r.Records())
}

func TestRecorder_MergedDelays(t *testing.T) {
	s := NewTestScheduler()

	r := RecordEffect(s, effect.Merge(
		effect.Delay(effect.Just(1), 1*time.Second, s),
		effect.Delay(effect.Just(2), 2*time.Second, s),
		effect.Delay(effect.Just(3), 3*time.Second, s),
		effect.Delay(effect.Just(4), 4*time.Second, s),
	))
	assert.Empty(t, r.Records())

	require.NoError(t, s.AdvanceBy(time.Second))
	assert.Equal(t, []Record[int]{Next(1, time.Second)}, r.Records())

	require.NoError(t, s.AdvanceBy(2*time.Second))
	assert.Equal(t, []Record[int]{
		Next(1, time.Second),
		Next(2, 2*time.Second),
		Next(3, 3*time.Second),
	}, r.Records())

	require.NoError(t, s.AdvanceBy(time.Second))
	assert.Equal(t, []Record[int]{
		Next(1, time.Second),
		Next(2, 2*time.Second),
		Next(3, 3*time.Second),
		Next(4, 4*time.Second),
		Finished[int](4 * time.Second),
	}, r.Records())
	assert.Equal(t, []int{1, 2, 3, 4}, r.Values())

	newGoldie(t).Assert(t, "recorder_merged_delays", []byte(r.String()))
}

func TestRecorder_TimeIsRelativeToCreation(t *testing.T) {
	s := NewTestScheduler()
	require.NoError(t, s.AdvanceBy(time.Hour))

	r := RecordEffect(s, effect.Delay(effect.Just("x"), time.Second, s))
	require.NoError(t, s.Drain())

	assert.Equal(t, []Record[string]{
		Next("x", time.Second),
		Finished[string](time.Second),
	}, r.Records())
}

func TestRecorder_CancelStopsRecording(t *testing.T) {
	s := NewTestScheduler()

	r := RecordEffect(s, effect.Every(time.Second, time.Second, s))
	require.NoError(t, s.AdvanceBy(2*time.Second))
	require.Len(t, r.Records(), 2)

	r.Cancel()
	assert.Zero(t, s.Pending(), "cancelling the recorder cancels the timer")

	require.NoError(t, s.AdvanceBy(5*time.Second))
	assert.Len(t, r.Records(), 2)
}

func TestRecorder_SynchronousCompletion(t *testing.T) {
	s := NewTestScheduler()

	r := RecordEffect(s, effect.Just(7))

	assert.Equal(t, []Record[int]{Next(7, 0), Finished[int](0)}, r.Records())
}

func TestFormatRecords(t *testing.T) {
	assert.Equal(t, "(empty)\n", FormatRecords[int](nil))

	g := newGoldie(t)
	g.Assert(t, "recorder_failure", []byte(FormatRecords([]Record[string]{
		Next("a", 0),
		Next("b", 1500*time.Millisecond),
		Failed[string](errors.New("timeout"), 2*time.Second),
	})))
}
