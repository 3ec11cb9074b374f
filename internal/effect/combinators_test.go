package effect_test

import (
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flux/internal/effect"
	"github.com/roach88/flux/internal/testutil"
)

func TestMerge_InterleavesByArrival(t *testing.T) {
	s := testutil.NewTestScheduler()

	r := testutil.RecordEffect(s, effect.Merge(
		effect.Delay(effect.Just("slow"), 2*time.Second, s),
		effect.Just("now"),
		effect.Delay(effect.Just("fast"), time.Second, s),
	))
	require.NoError(t, s.Drain())

	assert.Equal(t, []testutil.Record[string]{
		testutil.Next("now", 0),
		testutil.Next("fast", time.Second),
		testutil.Next("slow", 2*time.Second),
		testutil.Finished[string](2 * time.Second),
	}, r.Records())
}

func TestMerge_Empty(t *testing.T) {
	c := subscribe(effect.Merge[int]())
	assert.Equal(t, 1, c.completed)
}

func TestMerge_FailureCancelsSiblings(t *testing.T) {
	s := testutil.NewTestScheduler()
	boom := errors.New("boom")

	disposed := false
	sibling := effect.New(func(em *effect.Emitter[int]) {
		em.OnDispose(func() { disposed = true })
	})

	r := testutil.RecordEffect(s, effect.Merge(
		sibling,
		effect.Delay(effect.Fail[int](boom), time.Second, s),
		effect.Delay(effect.Just(9), 5*time.Second, s),
	))
	require.NoError(t, s.Drain())

	assert.True(t, disposed)
	assert.Equal(t, []testutil.Record[int]{testutil.Failed[int](boom, time.Second)}, r.Records())
}

func TestConcat_RunsSequentially(t *testing.T) {
	s := testutil.NewTestScheduler()

	started := 0
	second := effect.Deferred(func() effect.Effect[int] {
		started++
		return effect.Just(2)
	})

	r := testutil.RecordEffect(s, effect.Concat(
		effect.Delay(effect.Just(1), time.Second, s),
		second,
		effect.Delay(effect.Just(3), time.Second, s),
	))
	assert.Zero(t, started, "second waits for the first to finish")

	require.NoError(t, s.Drain())

	assert.Equal(t, 1, started)
	assert.Equal(t, []testutil.Record[int]{
		testutil.Next(1, time.Second),
		testutil.Next(2, time.Second),
		testutil.Next(3, 2*time.Second),
		testutil.Finished[int](2 * time.Second),
	}, r.Records())
}

func TestConcat_StopsOnFailure(t *testing.T) {
	boom := errors.New("boom")
	c := subscribe(effect.Concat(effect.Just(1), effect.Fail[int](boom), effect.Just(3)))

	assert.Equal(t, []int{1}, c.values)
	assert.ErrorIs(t, c.err, boom)
}

func TestMapFilter(t *testing.T) {
	e := effect.Map(
		effect.Filter(effect.FromSlice(1, 2, 3, 4, 5), func(v int) bool { return v%2 == 1 }),
		strconv.Itoa,
	)

	c := subscribe(e)
	assert.Equal(t, []string{"1", "3", "5"}, c.values)
	assert.Equal(t, 1, c.completed)
}

func TestCatch(t *testing.T) {
	boom := errors.New("boom")

	var caught error
	e := effect.Catch(effect.Concat(effect.Just(1), effect.Fail[int](boom)), func(err error) effect.Effect[int] {
		caught = err
		return effect.Just(-1)
	})

	c := subscribe(e)
	assert.ErrorIs(t, caught, boom)
	assert.Equal(t, []int{1, -1}, c.values)
	assert.NoError(t, c.err)
}

func TestFlatMap_WaitsForAllInner(t *testing.T) {
	s := testutil.NewTestScheduler()

	r := testutil.RecordEffect(s, effect.FlatMap(effect.FromSlice(3, 1, 2), func(v int) effect.Effect[int] {
		return effect.Delay(effect.Just(v), time.Duration(v)*time.Second, s)
	}))
	require.NoError(t, s.Drain())

	assert.Equal(t, []testutil.Record[int]{
		testutil.Next(1, time.Second),
		testutil.Next(2, 2*time.Second),
		testutil.Next(3, 3*time.Second),
		testutil.Finished[int](3 * time.Second),
	}, r.Records())
}

func TestFlatMap_CancelReachesInner(t *testing.T) {
	s := testutil.NewTestScheduler()
	source := effect.NewSubject[int]()

	r := testutil.RecordEffect(s, effect.FlatMap(source.Effect(), func(v int) effect.Effect[time.Time] {
		return effect.Every(time.Second, time.Second, s)
	}))
	source.Send(1)
	source.Send(2)
	require.Equal(t, 2, s.Pending())

	r.Cancel()

	assert.Zero(t, s.Pending())
	assert.Zero(t, source.Len())
}

func TestSwitchMap_CancelsPrevious(t *testing.T) {
	s := testutil.NewTestScheduler()
	source := effect.NewSubject[string]()

	r := testutil.RecordEffect(s, effect.SwitchMap(source.Effect(), func(v string) effect.Effect[string] {
		return effect.Delay(effect.Just(v), 10*time.Second, s)
	}))

	source.Send("a")
	require.NoError(t, s.AdvanceBy(5*time.Second))
	source.Send("b")
	require.NoError(t, s.AdvanceBy(20*time.Second))

	assert.Equal(t, []testutil.Record[string]{testutil.Next("b", 15*time.Second)}, r.Records())
}

func TestSwitchMap_FinishesAfterOuterAndLatestInner(t *testing.T) {
	s := testutil.NewTestScheduler()

	r := testutil.RecordEffect(s, effect.SwitchMap(effect.FromSlice(1, 2), func(v int) effect.Effect[int] {
		return effect.Delay(effect.Just(v*10), time.Second, s)
	}))
	require.NoError(t, s.Drain())

	assert.Equal(t, []testutil.Record[int]{
		testutil.Next(20, time.Second),
		testutil.Finished[int](time.Second),
	}, r.Records())
}

func TestDelay_Completion(t *testing.T) {
	s := testutil.NewTestScheduler()

	r := testutil.RecordEffect(s, effect.Delay(effect.None[int](), 3*time.Second, s))
	require.NoError(t, s.AdvanceBy(2*time.Second))
	assert.Empty(t, r.Records())

	require.NoError(t, s.AdvanceBy(time.Second))
	assert.Equal(t, []testutil.Record[int]{testutil.Finished[int](3 * time.Second)}, r.Records())
}

func TestEvery(t *testing.T) {
	s := testutil.NewTestScheduler()

	r := testutil.RecordEffect(s, effect.Map(effect.Every(time.Second, 2*time.Second, s), func(at time.Time) time.Duration {
		return at.Sub(testutil.Epoch)
	}))
	require.NoError(t, s.AdvanceBy(6*time.Second))

	assert.Equal(t, []time.Duration{time.Second, 3 * time.Second, 5 * time.Second}, r.Values())

	r.Cancel()
	assert.Zero(t, s.Pending())
}

func TestReceiveOn_HopsThroughScheduler(t *testing.T) {
	s := testutil.NewTestScheduler()

	r := testutil.RecordEffect(s, effect.ReceiveOn(effect.FromSlice(1, 2), s))
	assert.Empty(t, r.Records(), "nothing is delivered until the scheduler runs")

	require.NoError(t, s.AdvanceBy(0))
	assert.Equal(t, []testutil.Record[int]{
		testutil.Next(1, 0),
		testutil.Next(2, 0),
		testutil.Finished[int](0),
	}, r.Records())
}
