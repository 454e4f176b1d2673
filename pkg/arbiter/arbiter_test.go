package arbiter_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/parley/pkg/arbiter"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type submitted struct {
	future *arbiter.Future
	err    error
}

func submitAsync(a *arbiter.Arbiter, intent domain.Intent) <-chan submitted {
	ch := make(chan submitted, 1)
	go func() {
		f, err := a.SubmitUserInput(context.Background(), intent, true)
		ch <- submitted{f, err}
	}()
	return ch
}

type received struct {
	req *arbiter.Request
	err error
}

func nextAsync(fn func(context.Context) (*arbiter.Request, error)) <-chan received {
	ch := make(chan received, 1)
	go func() {
		req, err := fn(context.Background())
		ch <- received{req, err}
	}()
	return ch
}

func waitPhase(t *testing.T, a *arbiter.Arbiter, p arbiter.Phase) {
	t.Helper()
	require.Eventually(t, func() bool { return a.Phase() == p }, time.Second, time.Millisecond)
}

func TestArbiter_GateBlocksUntilLoopParks(t *testing.T) {
	a := arbiter.New()
	defer a.Close(nil)

	sub := submitAsync(a, domain.FailedIntent{Utterance: "hello"})
	select {
	case <-sub:
		t.Fatal("submission must wait for the loop to park")
	case <-time.After(50 * time.Millisecond):
	}

	got := nextAsync(a.NextQueueItem)
	s := <-sub
	require.NoError(t, s.err)

	r := <-got
	require.NoError(t, r.err)
	assert.Equal(t, domain.UserInput{Intent: domain.FailedIntent{Utterance: "hello"}, Confident: true}, r.req.Item)
	assert.Equal(t, arbiter.PhaseBusy, a.Phase())

	require.NoError(t, r.req.Resolve("ok"))
	v, err := s.future.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestArbiter_SecondProducerWaitsForNextPark(t *testing.T) {
	a := arbiter.New()
	defer a.Close(nil)

	got := nextAsync(a.NextQueueItem)
	waitPhase(t, a, arbiter.PhaseIdle)

	first := <-submitAsync(a, domain.FailedIntent{Utterance: "one"})
	require.NoError(t, first.err)
	r := <-got
	require.NoError(t, r.err)

	second := submitAsync(a, domain.FailedIntent{Utterance: "two"})
	select {
	case <-second:
		t.Fatal("a second producer must not get through while a turn is in flight")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, r.req.Resolve(nil))
	got = nextAsync(a.NextQueueItem)
	s := <-second
	require.NoError(t, s.err)
	r = <-got
	require.NoError(t, r.err)
	assert.Equal(t, domain.FailedIntent{Utterance: "two"}, r.req.Item.(domain.UserInput).Intent)
	require.NoError(t, r.req.Resolve(nil))
}

func TestArbiter_UserInputBypassesNotificationsInDialogue(t *testing.T) {
	a := arbiter.New()
	defer a.Close(nil)

	answer := nextAsync(a.NextIntent)
	waitPhase(t, a, arbiter.PhaseDialogue)

	// A background notification arriving mid-dialogue is queued, not delivered.
	f, err := a.DispatchNotify(context.Background(), "com.example", "", "", "tick")
	require.NoError(t, err)
	assert.Equal(t, arbiter.PhaseDialogue, a.Phase())
	n, _ := a.Pending()
	assert.Equal(t, 1, n)

	s := <-submitAsync(a, domain.Yes)
	require.NoError(t, s.err)

	r := <-answer
	require.NoError(t, r.err)
	assert.Equal(t, domain.Yes, r.req.Item.(domain.UserInput).Intent, "the answer must arrive before the notification")

	r2, err := a.NextQueueItem(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.KindNotification, domain.ItemKind(r2.Item))
	require.NoError(t, r2.Resolve(nil))

	_, err = f.Wait(context.Background())
	require.NoError(t, err)
}

func TestArbiter_IntentResolvedWhenLoopParks(t *testing.T) {
	a := arbiter.New()
	defer a.Close(nil)

	answer := nextAsync(a.NextIntent)
	waitPhase(t, a, arbiter.PhaseDialogue)

	s := <-submitAsync(a, domain.Yes)
	require.NoError(t, s.err)
	r := <-answer
	require.NoError(t, r.err)

	select {
	case <-s.future.Done():
		t.Fatal("the answer completes only when the loop parks again")
	default:
	}

	_ = nextAsync(a.NextQueueItem)
	select {
	case <-s.future.Done():
	case <-time.After(time.Second):
		t.Fatal("the answer should complete once the loop parks")
	}
}

func TestArbiter_Cancel(t *testing.T) {
	a := arbiter.New()
	defer a.Close(nil)

	assert.False(t, a.Cancel(), "nothing to cancel while busy")

	answer := nextAsync(a.NextIntent)
	waitPhase(t, a, arbiter.PhaseDialogue)

	assert.True(t, a.Cancel())
	r := <-answer
	assert.Nil(t, r.req)
	_, ok := domain.IsCancellation(r.err)
	assert.True(t, ok)
	assert.Equal(t, arbiter.PhaseBusy, a.Phase())

	idle := nextAsync(a.NextQueueItem)
	waitPhase(t, a, arbiter.PhaseIdle)
	assert.False(t, a.Cancel(), "an idle loop is not waiting for an answer")

	a.Close(nil)
	r = <-idle
	assert.ErrorIs(t, r.err, domain.ErrClosed)
}

func TestArbiter_Close(t *testing.T) {
	a := arbiter.New()

	answer := nextAsync(a.NextIntent)
	waitPhase(t, a, arbiter.PhaseDialogue)

	queued, err := a.DispatchNotifyError(context.Background(), "com.example", "", errors.New("boom"))
	require.NoError(t, err)

	s := <-submitAsync(a, domain.Yes)
	require.NoError(t, s.err)
	<-answer

	gated := submitAsync(a, domain.No)

	a.Close(errors.New("shutdown"))

	_, err = queued.Wait(context.Background())
	assert.ErrorIs(t, err, domain.ErrClosed)

	g := <-gated
	assert.ErrorIs(t, g.err, domain.ErrClosed)

	_, err = s.future.Wait(context.Background())
	assert.NoError(t, err, "consumed input is resolved, not rejected")

	_, err = a.NextQueueItem(context.Background())
	assert.ErrorIs(t, err, domain.ErrClosed)

	_, err = a.SubmitSystemWork(context.Background(), domain.InteractiveConfigure{})
	assert.ErrorIs(t, err, domain.ErrClosed)

	a.Close(nil)
}

func TestArbiter_ContextCancelsParkedLoop(t *testing.T) {
	a := arbiter.New()
	defer a.Close(nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := a.NextQueueItem(ctx)
		done <- err
	}()
	waitPhase(t, a, arbiter.PhaseIdle)
	cancel()

	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, arbiter.PhaseBusy, a.Phase())
}

func TestArbiter_SubmitContextCancelled(t *testing.T) {
	a := arbiter.New()
	defer a.Close(nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := a.SubmitUserInput(ctx, domain.Yes, false)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestArbiter_InvalidItems(t *testing.T) {
	a := arbiter.New()
	defer a.Close(nil)

	_, err := a.SubmitSystemWork(context.Background(), domain.UserInput{Intent: domain.Yes})
	assert.ErrorIs(t, err, domain.ErrInvalidItem)

	_, err = a.SubmitUserInput(context.Background(), nil, false)
	assert.ErrorIs(t, err, domain.ErrInvalidItem)
}

func TestArbiter_ConcurrentProducers(t *testing.T) {
	a := arbiter.New()
	const producers = 20

	var wg sync.WaitGroup
	futures := make(chan *arbiter.Future, producers)
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var f *arbiter.Future
			var err error
			if i%2 == 0 {
				f, err = a.SubmitUserInput(context.Background(), domain.ChoiceIntent{Index: i}, true)
			} else {
				f, err = a.DispatchNotify(context.Background(), "app", "", "", i)
			}
			if assert.NoError(t, err) {
				futures <- f
			}
		}(i)
	}

	for i := 0; i < producers; i++ {
		req, err := a.NextQueueItem(context.Background())
		require.NoError(t, err)
		require.NoError(t, req.Resolve(i))
		require.Error(t, req.Resolve(i), "second settle must be reported")
	}
	wg.Wait()
	close(futures)

	count := 0
	for f := range futures {
		_, err := f.Wait(context.Background())
		assert.NoError(t, err)
		count++
	}
	assert.Equal(t, producers, count)
	a.Close(nil)
}

func TestRequest_SettleOnce(t *testing.T) {
	req := arbiter.NewRequest(domain.InteractiveConfigure{Kind: "com.example"})
	assert.False(t, req.Settled())

	require.NoError(t, req.Reject(errors.New("first")))
	assert.True(t, req.Settled())

	err := req.Resolve("second")
	var inv *domain.InvariantError
	require.ErrorAs(t, err, &inv)

	_, err = req.Future().Wait(context.Background())
	assert.EqualError(t, err, "first")
}

func TestDispatchRunProgram_AssignsID(t *testing.T) {
	a := arbiter.New()
	defer a.Close(nil)

	got := nextAsync(a.NextQueueItem)
	waitPhase(t, a, arbiter.PhaseIdle)
	_, err := a.DispatchRunProgram(context.Background(), nil, "", "user@example")
	require.NoError(t, err)

	r := <-got
	require.NoError(t, r.err)
	run := r.req.Item.(domain.RunProgram)
	assert.NotEmpty(t, run.UniqueID)
	assert.Equal(t, "user@example", run.Identity)
	require.NoError(t, r.req.Resolve(nil))
}

func TestArbiter_AwaitDialogue(t *testing.T) {
	a := arbiter.New()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan struct{})
	close(done)
	waiting, err := a.AwaitDialogue(ctx, done)
	require.NoError(t, err)
	assert.False(t, waiting)

	idle := nextAsync(a.NextQueueItem)
	waitPhase(t, a, arbiter.PhaseIdle)
	s := <-submitAsync(a, domain.FailedIntent{Utterance: "hi"})
	require.NoError(t, s.err)
	r := <-idle
	require.NoError(t, r.err)

	answer := nextAsync(a.NextIntent)
	waiting, err = a.AwaitDialogue(ctx, s.future.Done())
	require.NoError(t, err)
	assert.True(t, waiting, "the loop parked for the user's answer")

	a.Close(nil)
	<-answer
	_, err = a.AwaitDialogue(ctx, nil)
	assert.ErrorIs(t, err, domain.ErrClosed)
}
