package scheduler

import (
	"fmt"

	"github.com/felixgeelhaar/statekit"
)

// Stage is a step of a scheduling run.
type Stage string

const (
	StageFetchTasks          Stage = "FetchTasks"
	StagePrioritize          Stage = "Prioritize"
	StageDeleteStaleBookings Stage = "DeleteStaleBookings"
	StageComputeFreeBusy     Stage = "ComputeFreeBusy"
	StageFetchProfile        Stage = "FetchProfile"
	StageBuildRequest        Stage = "BuildRequest"
	StageCallReasoning       Stage = "CallReasoningService"
	StageReconcilePlan       Stage = "ReconcilePlan"
	StageDone                Stage = "Done"
	StageFailed              Stage = "Failed"
)

const (
	eventNext   = "next"
	eventFinish = "finish"
	eventFail   = "fail"
)

// pipeline lists the working stages in order.
var pipeline = []Stage{
	StageFetchTasks,
	StagePrioritize,
	StageDeleteStaleBookings,
	StageComputeFreeBusy,
	StageFetchProfile,
	StageBuildRequest,
	StageCallReasoning,
	StageReconcilePlan,
}

type runContext struct {
	RunID string
}

// runMachine tracks one run. Each working stage can advance to the next one,
// short-circuit to Done (nothing to schedule) or fail.
type runMachine struct {
	interpreter *statekit.Interpreter[runContext]
}

func newRunMachine(runID string) (*runMachine, error) {
	builder := statekit.NewMachine[runContext]("scheduling-run").
		WithInitial(statekit.StateID(StageFetchTasks)).
		WithContext(runContext{RunID: runID})

	for i, stage := range pipeline {
		next := StageDone
		if i+1 < len(pipeline) {
			next = pipeline[i+1]
		}
		builder.State(statekit.StateID(stage)).
			On(eventNext).Target(statekit.StateID(next)).
			On(eventFinish).Target(statekit.StateID(StageDone)).
			On(eventFail).Target(statekit.StateID(StageFailed)).
			Done()
	}
	builder.State(statekit.StateID(StageDone)).Done()
	builder.State(statekit.StateID(StageFailed)).Done()

	machine, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build run state machine: %w", err)
	}
	interpreter := statekit.NewInterpreter(machine)
	interpreter.Start()
	return &runMachine{interpreter: interpreter}, nil
}

func (m *runMachine) Current() Stage {
	return Stage(m.interpreter.State().Value)
}

func (m *runMachine) send(event string) error {
	before := m.Current()
	m.interpreter.Send(statekit.Event{Type: statekit.EventType(event)})
	if m.Current() == before {
		return fmt.Errorf("event %q not allowed in stage %s", event, before)
	}
	return nil
}

// Advance moves to the next stage and returns it.
func (m *runMachine) Advance() (Stage, error) {
	if err := m.send(eventNext); err != nil {
		return m.Current(), err
	}
	return m.Current(), nil
}

func (m *runMachine) Finish() error { return m.send(eventFinish) }

func (m *runMachine) Fail() error { return m.send(eventFail) }
