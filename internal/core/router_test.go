package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeEngine struct {
	mu     sync.Mutex
	output string
	err    error
	delay  time.Duration
	calls  int
}

func (f *fakeEngine) Run(_ context.Context, _, _ string) (string, error) {
	f.mu.Lock()
	f.calls++
	output, err, delay := f.output, f.err, f.delay
	f.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	return output, err
}

func (f *fakeEngine) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestRouter(engine *fakeEngine, cooldown time.Duration) (*Router, *RoomDirectory) {
	logger := zerolog.Nop()
	sessions := NewSessionRegistry()
	rooms := NewRoomDirectory(DirectoryOptions{
		RoomLimit:     5,
		RetireAfter:   10 * time.Minute,
		SweepInterval: time.Minute,
	}, &logger)
	return NewRouter(sessions, rooms, engine, nil, cooldown, &logger), rooms
}

func join(t *testing.T, rt *Router, id, room, name string) *Client {
	t.Helper()
	c := NewClient(id)
	rt.Join(c, room, name)
	ev := mustEvent(t, c, EventJoined)
	if ev.Member.Username != name {
		t.Fatalf("unexpected join event: %+v", ev)
	}
	return c
}

func TestJoinBroadcastsMembershipToEveryone(t *testing.T) {
	rt, _ := newTestRouter(&fakeEngine{}, time.Minute)

	alice := join(t, rt, "a", "R1", "alice")

	bob := NewClient("b")
	rt.Join(bob, "R1", "bob")

	// Both the existing member and the newcomer see the same event with
	// the full member list.
	for _, c := range []*Client{alice, bob} {
		ev := mustEvent(t, c, EventJoined)
		if ev.Member.Username != "bob" || len(ev.Members) != 2 {
			t.Fatalf("unexpected membership event for %s: %+v", c.ID, ev)
		}
		if ev.Members[0].Username != "alice" || ev.Members[1].Username != "bob" {
			t.Fatalf("unexpected member order: %+v", ev.Members)
		}
	}
}

func TestSixthJoinGetsRoomFull(t *testing.T) {
	rt, rooms := newTestRouter(&fakeEngine{}, time.Minute)

	for i := 0; i < 5; i++ {
		join(t, rt, fmt.Sprintf("c%d", i), "R1", fmt.Sprintf("user%d", i))
	}

	sixth := NewClient("c5")
	rt.Join(sixth, "R1", "user5")
	mustEvent(t, sixth, EventRoomFull)

	if sixth.Stage() != StageConnected {
		t.Fatal("rejected client must stay in Connected stage")
	}
	if got := len(rooms.Room("R1", false).Members()); got != 5 {
		t.Fatalf("membership changed on rejected join: %d", got)
	}
	// The rejected client's name binding must not linger.
	if _, err := rt.sessions.Lookup("c5"); !errors.Is(err, ErrNotBound) {
		t.Fatal("rejected join must unbind the name")
	}
}

func TestFragmentRelayedToOthersOnly(t *testing.T) {
	rt, _ := newTestRouter(&fakeEngine{}, time.Minute)

	alice := join(t, rt, "a", "R1", "alice")
	bob := NewClient("b")
	rt.Join(bob, "R1", "bob")
	mustEvent(t, alice, EventJoined)
	mustEvent(t, bob, EventJoined)
	rt.Replay(bob, "R1")

	rt.Fragment(alice, "R1", []byte("F1"))

	ev := mustEvent(t, bob, EventFragment)
	if string(ev.Update) != "F1" {
		t.Fatalf("unexpected fragment: %q", ev.Update)
	}
	noEvent(t, alice, EventFragment)
}

func TestFragmentBeforeJoinRejected(t *testing.T) {
	rt, _ := newTestRouter(&fakeEngine{}, time.Minute)

	c := NewClient("a")
	rt.Fragment(c, "R1", []byte("F1"))

	ev := mustEvent(t, c, EventError)
	if ev.Error == nil || ev.Error.Code != ErrCodeNotJoined {
		t.Fatalf("expected not_joined, got %+v", ev)
	}
}

func TestSecondJoinRejected(t *testing.T) {
	rt, _ := newTestRouter(&fakeEngine{}, time.Minute)

	alice := join(t, rt, "a", "R1", "alice")
	rt.Join(alice, "R2", "alice")

	ev := mustEvent(t, alice, EventError)
	if ev.Error == nil || ev.Error.Code != ErrCodeAlreadyJoined {
		t.Fatalf("expected already_joined, got %+v", ev)
	}
}

func TestReplayReturnsExactlyPreJoinFragments(t *testing.T) {
	rt, _ := newTestRouter(&fakeEngine{}, time.Minute)

	alice := join(t, rt, "a", "R1", "alice")
	rt.Fragment(alice, "R1", []byte("F1"))
	rt.Fragment(alice, "R1", []byte("F2"))

	carol := NewClient("c")
	rt.Join(carol, "R1", "carol")
	mustEvent(t, carol, EventJoined)

	rt.Replay(carol, "R1")

	// A fragment accepted after the replay reaches carol live, behind
	// the replayed prefix.
	rt.Fragment(alice, "R1", []byte("F3"))

	for _, expected := range []string{"F1", "F2", "F3"} {
		ev := mustEvent(t, carol, EventFragment)
		if string(ev.Update) != expected {
			t.Fatalf("expected %s, got %q", expected, ev.Update)
		}
	}
	noEvent(t, carol, EventFragment)
}

func TestReplayThenLiveConsistencyUnderConcurrency(t *testing.T) {
	rt, _ := newTestRouter(&fakeEngine{}, time.Minute)

	alice := join(t, rt, "a", "R1", "alice")

	const total = 200
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < total; i++ {
			rt.Fragment(alice, "R1", []byte(fmt.Sprintf("%03d", i)))
		}
	}()

	// Join and request replay while fragments are still being accepted.
	carol := NewClient("c")
	rt.Join(carol, "R1", "carol")
	rt.Replay(carol, "R1")
	<-done

	// Collect everything carol received: the joined event, then replayed
	// fragments interleaved with live ones. Replayed fragments cover the
	// journal prefix before her join; live ones cover the suffix. Together
	// they must be each accepted fragment exactly once, in order.
	deadline := time.After(2 * time.Second)
	var got []string
	for len(got) < total {
		select {
		case ev := <-carol.Events:
			if ev.Kind == EventFragment {
				got = append(got, string(ev.Update))
			}
		case <-deadline:
			t.Fatalf("timed out after %d of %d fragments", len(got), total)
		}
	}

	// The replay snapshot and the live subscription are one atomic step
	// under the room lock, so no matter how the join interleaved with the
	// appends, the stream is in strict acceptance order with no
	// duplicates and no omissions.
	for i, frag := range got {
		if frag != fmt.Sprintf("%03d", i) {
			t.Fatalf("fragment %d out of order: got %q", i, frag)
		}
	}
	noEvent(t, carol, EventFragment)
}

func TestJoinAfterSweepSharesOneFreshRoom(t *testing.T) {
	rt, rooms := newTestRouter(&fakeEngine{}, time.Minute)

	// Create a room, empty it, and retire it.
	ghost := join(t, rt, "g", "R1", "ghost")
	rt.Disconnect(ghost)
	if n := rooms.Sweep(time.Now().Add(time.Hour)); n != 1 {
		t.Fatalf("expected the emptied room to retire, got %d", n)
	}

	// Later joiners under the same key must land in one shared room and
	// see each other's fragments.
	alice := join(t, rt, "a", "R1", "alice")
	bob := NewClient("b")
	rt.Join(bob, "R1", "bob")
	mustEvent(t, bob, EventJoined)
	rt.Replay(bob, "R1")

	rt.Fragment(alice, "R1", []byte("F1"))
	ev := mustEvent(t, bob, EventFragment)
	if string(ev.Update) != "F1" {
		t.Fatalf("members split across room generations: %q", ev.Update)
	}
}

func TestJoinDisconnectRaceLeavesNoGhostMember(t *testing.T) {
	rt, rooms := newTestRouter(&fakeEngine{}, time.Minute)

	// Hammer the join/disconnect interleaving. Whatever order the two
	// land in, the connection must not stay in the member map after its
	// teardown ran.
	for i := 0; i < 200; i++ {
		c := NewClient(fmt.Sprintf("c%d", i))
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			rt.Join(c, "R1", fmt.Sprintf("user%d", i))
		}()
		go func() {
			defer wg.Done()
			rt.Disconnect(c)
		}()
		wg.Wait()
		rt.Disconnect(c)

		if _, err := rt.sessions.Lookup(c.ID); !errors.Is(err, ErrNotBound) {
			t.Fatalf("iteration %d: name binding leaked", i)
		}
	}

	if rm := rooms.Room("R1", false); rm != nil && len(rm.Members()) != 0 {
		t.Fatalf("ghost members left behind: %d", len(rm.Members()))
	}
}

func TestDisconnectNotifiesRemainingOnce(t *testing.T) {
	rt, rooms := newTestRouter(&fakeEngine{}, time.Minute)

	alice := join(t, rt, "a", "R1", "alice")
	bob := NewClient("b")
	rt.Join(bob, "R1", "bob")
	mustEvent(t, alice, EventJoined)
	mustEvent(t, bob, EventJoined)

	// Overlapping transport notifications collapse to one teardown.
	rt.Disconnect(alice)
	rt.Disconnect(alice)

	ev := mustEvent(t, bob, EventLeft)
	if ev.Member.ID != "a" || ev.Member.Username != "alice" {
		t.Fatalf("unexpected leave event: %+v", ev)
	}
	noEvent(t, bob, EventLeft)

	if got := len(rooms.Room("R1", false).Members()); got != 1 {
		t.Fatalf("expected 1 member after disconnect, got %d", got)
	}
	if _, err := rt.sessions.Lookup("a"); !errors.Is(err, ErrNotBound) {
		t.Fatal("disconnect must unbind the name")
	}
}

func TestDisconnectBeforeJoinIsQuiet(t *testing.T) {
	rt, _ := newTestRouter(&fakeEngine{}, time.Minute)

	c := NewClient("a")
	rt.Disconnect(c)
	rt.Disconnect(c)
}

func TestRunBroadcastsOutputToOthers(t *testing.T) {
	engine := &fakeEngine{output: "42\n"}
	rt, _ := newTestRouter(engine, time.Minute)

	alice := join(t, rt, "a", "R1", "alice")
	bob := NewClient("b")
	rt.Join(bob, "R1", "bob")
	mustEvent(t, alice, EventJoined)
	mustEvent(t, bob, EventJoined)

	rt.Run(alice, "R1", "print(42)", "python3")

	ev := mustEvent(t, bob, EventOutput)
	if ev.Output == nil || ev.Output.Output != "42\n" || ev.Output.TriggeredBy != "alice" {
		t.Fatalf("unexpected output event: %+v", ev.Output)
	}
	// The requester already holds its own authoritative copy.
	noEvent(t, alice, EventOutput)

	// A later joiner can fetch the cached panel state.
	carol := NewClient("c")
	rt.Join(carol, "R1", "carol")
	mustEvent(t, carol, EventJoined)
	rt.CachedOutput(carol, "R1")
	cached := mustEvent(t, carol, EventOutput)
	if cached.Output.Output != "42\n" || cached.Output.TriggeredBy != "alice" {
		t.Fatalf("unexpected cached output: %+v", cached.Output)
	}
}

func TestRunThrottledByCooldown(t *testing.T) {
	engine := &fakeEngine{output: "ok"}
	rt, _ := newTestRouter(engine, 30*time.Second)

	alice := join(t, rt, "a", "R1", "alice")

	rt.Run(alice, "R1", "code", "go")
	rt.Run(alice, "R1", "code", "go")

	ev := mustEvent(t, alice, EventError)
	if ev.Error == nil || ev.Error.Code != ErrCodeThrottled {
		t.Fatalf("expected throttled, got %+v", ev)
	}
	// Only the first attempt reached the backend.
	waitFor(t, func() bool { return engine.callCount() == 1 })
}

func TestRunFailureSurfacesAsOutput(t *testing.T) {
	engine := &fakeEngine{err: errors.New("backend exploded")}
	rt, _ := newTestRouter(engine, time.Minute)

	alice := join(t, rt, "a", "R1", "alice")
	bob := NewClient("b")
	rt.Join(bob, "R1", "bob")
	mustEvent(t, bob, EventJoined)

	rt.Run(alice, "R1", "code", "go")

	ev := mustEvent(t, bob, EventOutput)
	if ev.Output == nil || ev.Output.Output != "Error: backend exploded" {
		t.Fatalf("failure must populate the output panel, got %+v", ev.Output)
	}
}

func TestRunSurvivesRequesterDisconnect(t *testing.T) {
	engine := &fakeEngine{output: "late", delay: 100 * time.Millisecond}
	rt, _ := newTestRouter(engine, time.Minute)

	alice := join(t, rt, "a", "R1", "alice")
	bob := NewClient("b")
	rt.Join(bob, "R1", "bob")
	mustEvent(t, bob, EventJoined)

	rt.Run(alice, "R1", "code", "go")
	rt.Disconnect(alice)

	ev := mustEvent(t, bob, EventOutput)
	if ev.Output.Output != "late" || ev.Output.TriggeredBy != "alice" {
		t.Fatalf("result must still reach remaining members: %+v", ev.Output)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition never became true")
}
