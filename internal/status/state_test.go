package status

import (
	"testing"

	"github.com/matheus3301/inbox/internal/bus"
)

func TestInitialState(t *testing.T) {
	m := NewMachine(nil)
	if m.Current() != Booting {
		t.Errorf("initial state = %s, want BOOTING", m.Current())
	}
}

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		from State
		to   State
	}{
		{Booting, Hydrating},
		{Booting, Error},
		{Hydrating, Syncing},
		{Syncing, Ready},
		{Syncing, Degraded},
		{Ready, Degraded},
		{Degraded, Ready},
		{Ready, Error},
		{Error, Booting},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			m := NewMachine(nil)
			walkTo(t, m, tt.from)
			if err := m.Transition(tt.to); err != nil {
				t.Errorf("Transition(%s -> %s) error = %v", tt.from, tt.to, err)
			}
			if m.Current() != tt.to {
				t.Errorf("state = %s, want %s", m.Current(), tt.to)
			}
		})
	}
}

func TestInvalidTransition(t *testing.T) {
	m := NewMachine(nil)
	if err := m.Transition(Ready); err == nil {
		t.Error("Transition(BOOTING -> READY) should fail")
	}
	if m.Current() != Booting {
		t.Errorf("state = %s after rejected transition, want BOOTING", m.Current())
	}
}

func TestTransitionEmitsEvent(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("daemon.", 10)
	defer unsub()

	m := NewMachine(b)
	if err := m.Transition(Hydrating); err != nil {
		t.Fatal(err)
	}

	evt := <-ch
	if evt.Kind != bus.KindStatusChanged {
		t.Errorf("event kind = %q, want %s", evt.Kind, bus.KindStatusChanged)
	}
	change, ok := evt.Payload.(StatusChange)
	if !ok {
		t.Fatalf("payload type = %T, want StatusChange", evt.Payload)
	}
	if change.From != Booting || change.To != Hydrating {
		t.Errorf("change = %v -> %v, want BOOTING -> HYDRATING", change.From, change.To)
	}
}

// TestStartupLifecycle walks BOOTING → HYDRATING → SYNCING → READY.
func TestStartupLifecycle(t *testing.T) {
	m := NewMachine(nil)
	for _, s := range []State{Hydrating, Syncing, Ready} {
		if err := m.Transition(s); err != nil {
			t.Fatalf("Transition to %s: %v (current: %s)", s, err, m.Current())
		}
	}
	if m.Current() != Ready {
		t.Errorf("final state = %s, want READY", m.Current())
	}
}

func TestSettle(t *testing.T) {
	m := NewMachine(nil)
	if m.Settle(true) {
		t.Error("Settle moved a booting daemon")
	}

	walkTo(t, m, Syncing)
	if !m.Settle(false) || m.Current() != Degraded {
		t.Fatalf("Settle(false) from SYNCING -> %s, want DEGRADED", m.Current())
	}
	if m.Settle(false) {
		t.Error("Settle(false) reported a change while already DEGRADED")
	}
	if !m.Settle(true) || m.Current() != Ready {
		t.Fatalf("Settle(true) from DEGRADED -> %s, want READY", m.Current())
	}
	if !m.Settle(false) || m.Current() != Degraded {
		t.Errorf("Settle(false) from READY -> %s, want DEGRADED", m.Current())
	}
}

// walkTo is a helper that transitions the machine to a target state.
func walkTo(t *testing.T, m *Machine, target State) {
	t.Helper()
	paths := map[State][]State{
		Booting:   {},
		Hydrating: {Hydrating},
		Syncing:   {Hydrating, Syncing},
		Ready:     {Hydrating, Syncing, Ready},
		Degraded:  {Hydrating, Syncing, Degraded},
		Error:     {Error},
	}
	for _, s := range paths[target] {
		if err := m.Transition(s); err != nil {
			t.Fatalf("walkTo(%s): %v", target, err)
		}
	}
}
