package scripted_debugger

import (
	"context"
	"testing"

	"github.com/fansqz/midas-dap/constants"
	"github.com/fansqz/midas-dap/debugger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startDemo(t *testing.T) (*ScriptedDebugger, *[]interface{}) {
	events := &[]interface{}{}
	d := NewScriptedDebugger(DefaultScenario())
	err := d.Start(context.Background(), &debugger.StartOption{
		Program:  "/src/demo/demo",
		Callback: func(data interface{}) { *events = append(*events, data) },
	})
	require.Nil(t, err)
	return d, events
}

func drain(events *[]interface{}) []interface{} {
	out := *events
	*events = nil
	return out
}

func TestScenario_Validate(t *testing.T) {
	_, err := ParseScenario([]byte("threads: []"))
	assert.NotNil(t, err)

	_, err = ParseScenario([]byte(`
threads:
  - id: 1
    frames:
      - {id: a, function: main}
      - {id: a, function: main}
`))
	assert.ErrorContains(t, err, "duplicate frame id a")

	_, err = ParseScenario([]byte(`
threads:
  - id: 1
memory:
  - {address: 16, data: "zz"}
`))
	assert.NotNil(t, err)

	s := DefaultScenario()
	assert.Len(t, s.Threads, 2)
	assert.Equal(t, uint64(0x401156), s.Threads[0].Frames[0].PC)
}

func TestScriptedDebugger_Start(t *testing.T) {
	d, events := startDemo(t)
	assert.Equal(t, []interface{}{
		debugger.NewThreadEvent(constants.ThreadStarted, 1),
		debugger.NewThreadEvent(constants.ThreadStarted, 2),
	}, drain(events))

	err := d.Start(context.Background(), &debugger.StartOption{Program: "again"})
	assert.NotNil(t, err)

	threads, err := d.Threads()
	require.Nil(t, err)
	assert.Equal(t, []debugger.Thread{{ID: 1, Name: "demo"}, {ID: 2, Name: "worker"}}, threads)
}

func TestScriptedDebugger_StepAndContinue(t *testing.T) {
	d, events := startDemo(t)
	drain(events)

	bp, err := d.CreateSourceBreakpoint("/src/demo/main.cpp", 41)
	require.Nil(t, err)
	assert.False(t, bp.Pending())

	require.Nil(t, d.StepIn(1, false))
	assert.Equal(t, []interface{}{
		debugger.NewContinuedEvent(1, false),
		debugger.NewStoppedEvent(constants.StepStopped, 1),
	}, drain(events))
	f, err := d.NewestFrame(debugger.Thread{ID: 1})
	require.Nil(t, err)
	assert.Equal(t, "helper", f.Function())

	require.Nil(t, d.StepOut(1, false))
	drain(events)
	f, err = d.NewestFrame(debugger.Thread{ID: 1})
	require.Nil(t, err)
	assert.Equal(t, 23, f.Location().Line)

	require.Nil(t, d.Continue(1, false))
	assert.Equal(t, []interface{}{
		debugger.NewContinuedEvent(1, true),
		debugger.NewOutputEvent(constants.StdoutOutput, "compute done\n"),
		debugger.NewStoppedEvent(constants.BreakpointStopped, 1, bp.Number()),
	}, drain(events))
	assert.Equal(t, 1, bp.HitCount())

	require.Nil(t, d.Continue(1, false))
	assert.Equal(t, []interface{}{
		debugger.NewContinuedEvent(1, true),
		debugger.NewThreadEvent(constants.ThreadExited, 2),
		debugger.NewExitedEvent(0, "exited normally"),
	}, drain(events))
	assert.NotNil(t, d.Next(1, false))
}

func TestScriptedDebugger_ContinueSkipsUnmatchedStops(t *testing.T) {
	d, events := startDemo(t)
	require.Nil(t, d.RunToEvent(1))
	drain(events)

	// main.cpp:41没有断点，一直运行到退出
	require.Nil(t, d.Continue(1, false))
	got := drain(events)
	assert.Equal(t, debugger.NewExitedEvent(0, "exited normally"), got[len(got)-1])
}

func TestScriptedDebugger_Breakpoints(t *testing.T) {
	d, _ := startDemo(t)
	pending, err := d.CreateSourceBreakpoint("/src/other.cpp", 3)
	require.Nil(t, err)
	assert.True(t, pending.Pending())

	fn, err := d.CreateFunctionBreakpoint("helper")
	require.Nil(t, err)
	assert.False(t, fn.Pending())

	_, err = d.CreateAddressBreakpoint(0)
	assert.NotNil(t, err)
	_, err = d.CreateCatchpoint("unknown")
	assert.NotNil(t, err)
	_, err = d.CreateWatchpoint("nosuchvar", debugger.AccessWrite)
	assert.NotNil(t, err)
	wp, err := d.CreateWatchpoint("total", debugger.AccessWrite)
	require.Nil(t, err)

	assert.Equal(t, 3, d.Created())
	require.Nil(t, d.DeleteBreakpoint(wp))
	assert.NotNil(t, d.DeleteBreakpoint(wp))
	assert.Equal(t, 1, d.Deleted())
}

func TestScriptedDebugger_Evaluate(t *testing.T) {
	d, _ := startDemo(t)
	f, err := d.NewestFrame(debugger.Thread{ID: 1})
	require.Nil(t, err)

	cases := []struct {
		expression string
		want       string
	}{
		{"42", "42"},
		{"total", "42"},
		{"p.x", "1"},
		{"node.value", "5"},
		{"$rax", "42"},
	}
	for _, c := range cases {
		v, err := d.Evaluate(f, c.expression)
		require.Nil(t, err, c.expression)
		s, err := v.Format(false)
		require.Nil(t, err)
		assert.Equal(t, c.want, s, c.expression)
	}

	v, err := d.Evaluate(f, "*node")
	require.Nil(t, err)
	assert.Equal(t, "Node", v.Type().Name)

	_, err = d.Evaluate(f, "missing")
	assert.ErrorContains(t, err, "No symbol")
	_, err = d.Evaluate(f, "broken")
	assert.NotNil(t, err)
	_, err = d.Evaluate(f, "*empty")
	assert.NotNil(t, err)
}

func TestScriptedDebugger_ReadMemory(t *testing.T) {
	d, _ := startDemo(t)
	data, err := d.ReadMemory(0x7ffe2000, 5)
	require.Nil(t, err)
	assert.Equal(t, []byte("hello"), data)

	data, err = d.ReadMemory(0x7ffe2007, 100)
	require.Nil(t, err)
	assert.Equal(t, []byte("world\x00"), data)

	_, err = d.ReadMemory(0x10, 1)
	assert.NotNil(t, err)
}

func TestScriptedDebugger_FrameChain(t *testing.T) {
	d, _ := startDemo(t)
	f, err := d.NewestFrame(debugger.Thread{ID: 1})
	require.Nil(t, err)
	var names []string
	for f != nil {
		names = append(names, f.Function())
		f, err = f.Older()
		require.Nil(t, err)
	}
	assert.Equal(t, []string{"compute", "run", "main"}, names)
}

func TestScriptedDebugger_Checkpoints(t *testing.T) {
	d, events := startDemo(t)
	cp, err := d.SetCheckpoint()
	require.Nil(t, err)
	assert.Equal(t, 1, cp.ID)
	assert.Equal(t, 21, cp.Line)

	require.Nil(t, d.StepIn(1, false))
	drain(events)
	require.Nil(t, d.RestartCheckpoint(cp.ID))
	got := drain(events)
	require.Len(t, got, 1)
	stopped := got[0].(*debugger.StoppedEvent)
	assert.Equal(t, "restarted checkpoint 1", stopped.Description)

	f, err := d.NewestFrame(debugger.Thread{ID: 1})
	require.Nil(t, err)
	assert.Equal(t, "compute", f.Function())

	list, err := d.Checkpoints()
	require.Nil(t, err)
	assert.Len(t, list, 1)
	require.Nil(t, d.DeleteCheckpoint(cp.ID))
	assert.NotNil(t, d.RestartCheckpoint(cp.ID))
}

func TestScriptedDebugger_Interrupt(t *testing.T) {
	d, events := startDemo(t)
	drain(events)
	require.Nil(t, d.Interrupt())
	assert.Equal(t, []interface{}{debugger.NewStoppedEvent(constants.PauseStopped, 1)}, drain(events))
	assert.Equal(t, 1, d.Interrupts())
}
