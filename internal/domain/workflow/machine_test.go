package workflow

import (
	"context"
	"errors"
	"testing"
)

func TestState_IsTerminal(t *testing.T) {
	tests := []struct {
		state    State
		expected bool
	}{
		{StatePending, false},
		{StateApproved, true},
		{StateRejected, true},
		{StateArchived, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := tt.state.IsTerminal(); got != tt.expected {
				t.Errorf("State.IsTerminal() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestState_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		state    State
		expected bool
	}{
		{"pending", StatePending, true},
		{"archived", StateArchived, true},
		{"unknown", State("COMPLETED"), false},
		{"empty", State(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsValid(); got != tt.expected {
				t.Errorf("State.IsValid() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestBuilder_ConfigureReturnsSameConfig(t *testing.T) {
	builder := NewBuilder()

	config := builder.Configure(StatePending)
	if config == nil {
		t.Fatal("Configure() returned nil")
	}
	if config != builder.Configure(StatePending) {
		t.Error("Configure() should return same config for same state")
	}
}

func TestBuilder_PanicsOnInvalidStates(t *testing.T) {
	cases := map[string]func(){
		"configure": func() { NewBuilder().Configure(State("BOGUS")) },
		"build":     func() { NewBuilder().Build(State("BOGUS")) },
		"target":    func() { NewBuilder().Configure(StatePending).Permit(TriggerArchive, State("BOGUS")) },
	}

	for name, fn := range cases {
		t.Run(name, func(t *testing.T) {
			defer func() {
				if r := recover(); r == nil {
					t.Errorf("%s should panic on invalid state", name)
				}
			}()
			fn()
		})
	}
}

func TestMachine_FireUnconfiguredTrigger(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StatePending).Permit(TriggerRejectStep, StateRejected)
	machine := builder.Build(StatePending)

	if machine.CanFire(TriggerArchive) {
		t.Error("CanFire() should be false for unconfigured trigger")
	}

	err := machine.Fire(context.Background(), TriggerArchive)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Fire() error = %v, want %v", err, ErrInvalidTransition)
	}
	if machine.State() != StatePending {
		t.Errorf("State() = %v, want %v", machine.State(), StatePending)
	}
}

func TestMachine_GuardsEvaluatedInOrder(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StatePending).
		PermitIf(TriggerApproveStep, StateApproved, func(ctx context.Context) bool { return false }).
		PermitIf(TriggerApproveStep, StatePending, func(ctx context.Context) bool { return true })

	machine := builder.Build(StatePending)
	if err := machine.Fire(context.Background(), TriggerApproveStep); err != nil {
		t.Fatalf("Fire() failed: %v", err)
	}
	if machine.State() != StatePending {
		t.Errorf("State() = %v, want %v", machine.State(), StatePending)
	}
}

func TestMachine_AllGuardsFail(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StatePending).
		PermitIf(TriggerApproveStep, StateApproved, func(ctx context.Context) bool { return false })

	machine := builder.Build(StatePending)
	err := machine.Fire(context.Background(), TriggerApproveStep)
	if !errors.Is(err, ErrGuardFailed) {
		t.Errorf("Fire() error = %v, want %v", err, ErrGuardFailed)
	}
}

func TestMachine_BuildIsolatesMachines(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StatePending).Permit(TriggerRejectStep, StateRejected)

	first := builder.Build(StatePending)
	builder.Configure(StatePending).Permit(TriggerArchive, StateArchived)
	second := builder.Build(StatePending)

	if first.CanFire(TriggerArchive) {
		t.Error("machine built earlier should not see later configuration")
	}
	if !second.CanFire(TriggerArchive) {
		t.Error("machine built later should see new configuration")
	}
}

func TestRequestMachine_CanFireArchive(t *testing.T) {
	never := func(ctx context.Context) bool { return false }
	tests := []struct {
		state    State
		expected bool
	}{
		{StatePending, false},
		{StateApproved, true},
		{StateRejected, true},
		{StateArchived, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			machine := NewRequestMachine(tt.state, never)
			if got := machine.CanFire(TriggerArchive); got != tt.expected {
				t.Errorf("CanFire(TriggerArchive) from %s = %v, want %v", tt.state, got, tt.expected)
			}
		})
	}
}
