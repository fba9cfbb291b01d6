package server

import (
	"encoding/base64"
	"errors"
	"testing"

	"github.com/fansqz/midas-dap/constants"
	"github.com/fansqz/midas-dap/debugger"
	"github.com/fansqz/midas-dap/debugger/scripted_debugger"
	"github.com/fansqz/midas-dap/debugger/variables"
	e "github.com/fansqz/midas-dap/error"
	"github.com/fansqz/midas-dap/protocol"
	"github.com/fansqz/midas-dap/utils"
	"github.com/google/go-dap"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newStoppedSession 启动演示场景并停在入口
func newStoppedSession(t *testing.T) (*Session, *scripted_debugger.ScriptedDebugger) {
	backend := scripted_debugger.NewScriptedDebugger(scripted_debugger.DefaultScenario())
	s := NewSession(backend, Options{StopOnEntry: true}, NewMetrics(prometheus.NewRegistry()))
	_, err := onLaunch(s, &protocol.LaunchArguments{Program: "demo"})
	require.Nil(t, err)
	_, err = onConfigurationDone(s, &struct{}{})
	require.Nil(t, err)
	require.Equal(t, utils.Stopped, s.Status())
	return s, backend
}

func drainEvents(s *Session) []*protocol.Event {
	var list []*protocol.Event
	for s.events.Queue().Len() > 0 {
		item, _ := s.events.Queue().Get()
		list = append(list, item.(*protocol.Event))
	}
	return list
}

func eventsNamed(list []*protocol.Event, name constants.DebugEventType) []*protocol.Event {
	var named []*protocol.Event
	for _, ev := range list {
		if ev.Name() == string(name) {
			named = append(named, ev)
		}
	}
	return named
}

func stackTrace(t *testing.T, s *Session, threadID int, levels int) dap.StackTraceResponseBody {
	body, err := onStackTrace(s, &dap.StackTraceArguments{ThreadId: threadID, Levels: levels})
	require.Nil(t, err)
	return body.(dap.StackTraceResponseBody)
}

func scopes(t *testing.T, s *Session, frameID int) []dap.Scope {
	body, err := onScopes(s, &dap.ScopesArguments{FrameId: frameID})
	require.Nil(t, err)
	return body.(dap.ScopesResponseBody).Scopes
}

func variablesOf(t *testing.T, s *Session, ref int) []dap.Variable {
	body, err := onVariables(s, &dap.VariablesArguments{VariablesReference: ref})
	require.Nil(t, err)
	return body.(dap.VariablesResponseBody).Variables
}

func variableNamed(t *testing.T, list []dap.Variable, name string) dap.Variable {
	for _, v := range list {
		if v.Name == name {
			return v
		}
	}
	t.Fatalf("no variable named %s", name)
	return dap.Variable{}
}

func frameIDs(body dap.StackTraceResponseBody) []int {
	ids := make([]int, 0, len(body.StackFrames))
	for _, f := range body.StackFrames {
		ids = append(ids, f.Id)
	}
	return ids
}

func TestHandler_StackScopesVariables(t *testing.T) {
	s, _ := newStoppedSession(t)

	st := stackTrace(t, s, 1, 2)
	require.Len(t, st.StackFrames, 2)
	assert.Equal(t, 3, st.TotalFrames)
	assert.Less(t, st.StackFrames[0].Id, st.StackFrames[1].Id)
	top := st.StackFrames[0]
	assert.Equal(t, "compute", top.Name)
	assert.Equal(t, "/src/demo/main.cpp", top.Source.Path)
	assert.Equal(t, "main.cpp", top.Source.Name)
	assert.Equal(t, 21, top.Line)
	assert.Equal(t, "0x401156", top.InstructionPointerReference)

	list := scopes(t, s, top.Id)
	require.Len(t, list, 5)
	assert.Equal(t, "Locals", list[0].Name)
	assert.Equal(t, "Args", list[1].Name)
	assert.Equal(t, "Register (general)", list[2].Name)
	assert.Equal(t, "Statics", list[4].Name)
	assert.True(t, list[4].Expensive)
	assert.Equal(t, top.Id, list[0].VariablesReference)
	assert.NotEqual(t, 0, list[1].VariablesReference)
	assert.NotEqual(t, list[0].VariablesReference, list[1].VariablesReference)

	locals := variablesOf(t, s, list[0].VariablesReference)
	i := variableNamed(t, locals, "i")
	assert.Equal(t, "2", i.Value)
	assert.Equal(t, 0, i.VariablesReference)
	p := variableNamed(t, locals, "p")
	require.NotEqual(t, 0, p.VariablesReference)
	assert.Equal(t, "0x7ffe1000", p.MemoryReference)
	fields := variablesOf(t, s, p.VariablesReference)
	require.Len(t, fields, 2)
	assert.Equal(t, "x", fields[0].Name)
	assert.Equal(t, "1", fields[0].Value)
	assert.Equal(t, "p.y", fields[1].EvaluateName)

	args := variablesOf(t, s, list[1].VariablesReference)
	assert.Equal(t, "4", variableNamed(t, args, "n").Value)
}

func TestHandler_StackTraceIdempotent(t *testing.T) {
	s, _ := newStoppedSession(t)
	first := stackTrace(t, s, 1, 0)
	live := s.registry.Len()
	second := stackTrace(t, s, 1, 0)
	assert.Equal(t, first, second)
	assert.Equal(t, live, s.registry.Len())
}

func TestHandler_StepKeepsFrameIDs(t *testing.T) {
	s, _ := newStoppedSession(t)
	before := frameIDs(stackTrace(t, s, 1, 0))
	require.Len(t, before, 3)

	// 第一个停止事件调用了helper
	_, err := onStepIn(s, &protocol.StepArguments{ThreadId: 1})
	require.Nil(t, err)
	called := stackTrace(t, s, 1, 0)
	ids := frameIDs(called)
	require.Len(t, ids, 4)
	assert.Equal(t, "helper", called.StackFrames[0].Name)
	assert.Equal(t, before, ids[1:])
	assert.Equal(t, 22, called.StackFrames[1].Line)

	// 第二个停止事件从helper返回
	_, err = onNext(s, &protocol.StepArguments{ThreadId: 1})
	require.Nil(t, err)
	assert.Equal(t, before, frameIDs(stackTrace(t, s, 1, 0)))

	_, err = onScopes(s, &dap.ScopesArguments{FrameId: ids[0]})
	assert.True(t, errors.Is(err, e.ErrInvalidReference))

	stopped := eventsNamed(drainEvents(s), constants.StoppedEvent)
	require.Len(t, stopped, 3)
	assert.Equal(t, "entry", stopped[0].Body.(dap.StoppedEventBody).Reason)
	assert.Equal(t, "step", stopped[2].Body.(dap.StoppedEventBody).Reason)
}

func TestHandler_ResetState(t *testing.T) {
	s, _ := newStoppedSession(t)
	st := stackTrace(t, s, 1, 1)
	locals := scopes(t, s, st.StackFrames[0].Id)[0].VariablesReference
	variablesOf(t, s, locals)

	_, err := onResetState(s, &struct{}{})
	require.Nil(t, err)
	assert.Equal(t, 0, s.registry.Len())
	_, err = onVariables(s, &dap.VariablesArguments{VariablesReference: locals})
	assert.True(t, errors.Is(err, e.ErrInvalidReference))

	again := stackTrace(t, s, 1, 1)
	assert.Greater(t, again.StackFrames[0].Id, st.StackFrames[0].Id)
}

func TestHandler_RereadLocalsKeepsHandles(t *testing.T) {
	s, _ := newStoppedSession(t)
	st := stackTrace(t, s, 1, 1)
	locals := scopes(t, s, st.StackFrames[0].Id)[0].VariablesReference
	p := variableNamed(t, variablesOf(t, s, locals), "p")
	live := s.registry.Len()

	for i := 0; i < 100; i++ {
		variablesOf(t, s, locals)
	}
	assert.Equal(t, live, s.registry.Len())
	assert.Equal(t, p.VariablesReference, variableNamed(t, variablesOf(t, s, locals), "p").VariablesReference)
}

func TestHandler_ThreadExitReleasesHandles(t *testing.T) {
	s, backend := newStoppedSession(t)
	st := stackTrace(t, s, 2, 0)
	require.Len(t, st.StackFrames, 2)
	assert.Equal(t, "worker_loop", st.StackFrames[0].Name)
	worker := st.StackFrames[0].Id
	stackTrace(t, s, 1, 0)
	live := s.registry.Len()

	backend.ExitThread(2)
	_, ok := s.contexts[2]
	assert.False(t, ok)
	assert.Less(t, s.registry.Len(), live)
	_, err := onScopes(s, &dap.ScopesArguments{FrameId: worker})
	assert.True(t, errors.Is(err, e.ErrInvalidReference))

	threads := eventsNamed(drainEvents(s), constants.ThreadEvent)
	last := threads[len(threads)-1].Body.(dap.ThreadEventBody)
	assert.Equal(t, "exited", last.Reason)
	assert.Equal(t, 2, last.ThreadId)
}

func TestHandler_StackTraceUnknownThread(t *testing.T) {
	s, _ := newStoppedSession(t)
	_, err := onStackTrace(s, &dap.StackTraceArguments{ThreadId: 99})
	assert.NotNil(t, err)
	_, ok := s.contexts[99]
	assert.False(t, ok)
}

func TestHandler_Evaluate(t *testing.T) {
	s, _ := newStoppedSession(t)

	body, err := onEvaluate(s, &dap.EvaluateArguments{Expression: "total", Context: "hover"})
	require.Nil(t, err)
	total := body.(dap.EvaluateResponseBody)
	assert.Equal(t, "42", total.Result)
	assert.Equal(t, "long", total.Type)
	assert.Equal(t, 0, total.VariablesReference)

	body, err = onEvaluate(s, &dap.EvaluateArguments{Expression: "p", Context: "watch"})
	require.Nil(t, err)
	watch := body.(dap.EvaluateResponseBody)
	require.NotEqual(t, 0, watch.VariablesReference)
	_, bound := s.registry.LookupKey(watch.VariablesReference)
	assert.False(t, bound)
	fields := variablesOf(t, s, watch.VariablesReference)
	assert.Equal(t, "p.x", fields[0].EvaluateName)

	// 同一个监视表达式复用引用
	body, err = onEvaluate(s, &dap.EvaluateArguments{Expression: "p", Context: "watch"})
	require.Nil(t, err)
	assert.Equal(t, watch.VariablesReference, body.(dap.EvaluateResponseBody).VariablesReference)

	frameID := stackTrace(t, s, 1, 1).StackFrames[0].Id
	body, err = onEvaluate(s, &dap.EvaluateArguments{Expression: "values[1:3]", FrameId: frameID, Context: "repl"})
	require.Nil(t, err)
	ranged := body.(dap.EvaluateResponseBody)
	key, bound := s.registry.LookupKey(ranged.VariablesReference)
	require.True(t, bound)
	assert.Equal(t, frameID, key.FrameID)
	elements := variablesOf(t, s, ranged.VariablesReference)
	require.Len(t, elements, 2)
	assert.Equal(t, "20", elements[0].Value)
	assert.Equal(t, "30", elements[1].Value)

	_, err = onEvaluate(s, &dap.EvaluateArguments{Expression: "nosuch", Context: "repl"})
	assert.True(t, errors.Is(err, e.ErrBackendRead))
}

func TestHandler_ToggleHex(t *testing.T) {
	s, _ := newStoppedSession(t)
	body, err := onToggleHex(s, &struct{}{})
	require.Nil(t, err)
	assert.True(t, body.(protocol.ToggleHexBody).Hex)

	locals := scopes(t, s, stackTrace(t, s, 1, 1).StackFrames[0].Id)[0].VariablesReference
	assert.Equal(t, "0x2a", variableNamed(t, variablesOf(t, s, locals), "total").Value)

	_, err = onToggleHex(s, &struct{}{})
	require.Nil(t, err)
	assert.Equal(t, "42", variableNamed(t, variablesOf(t, s, locals), "total").Value)
}

func TestHandler_ReadMemory(t *testing.T) {
	s, _ := newStoppedSession(t)

	body, err := onReadMemory(s, &dap.ReadMemoryArguments{MemoryReference: "0x7ffe2000", Count: 5})
	require.Nil(t, err)
	hello := body.(dap.ReadMemoryResponseBody)
	assert.Equal(t, "0x7ffe2000", hello.Address)
	data, err := base64.StdEncoding.DecodeString(hello.Data)
	require.Nil(t, err)
	assert.Equal(t, "hello", string(data))
	assert.Equal(t, 0, hello.UnreadableBytes)

	body, err = onReadMemory(s, &dap.ReadMemoryArguments{MemoryReference: "0x7ffe2000", Offset: 7, Count: 10})
	require.Nil(t, err)
	world := body.(dap.ReadMemoryResponseBody)
	assert.Equal(t, "0x7ffe2007", world.Address)
	data, err = base64.StdEncoding.DecodeString(world.Data)
	require.Nil(t, err)
	assert.Equal(t, "world\x00", string(data))
	assert.Equal(t, 4, world.UnreadableBytes)

	body, err = onReadMemory(s, &dap.ReadMemoryArguments{MemoryReference: "0x10", Count: 8})
	require.Nil(t, err)
	assert.Equal(t, 8, body.(dap.ReadMemoryResponseBody).UnreadableBytes)

	_, err = onReadMemory(s, &dap.ReadMemoryArguments{MemoryReference: "main", Count: 8})
	assert.True(t, errors.Is(err, e.ErrValidation))
}

func TestHandler_DataBreakpointInfo(t *testing.T) {
	s, _ := newStoppedSession(t)
	locals := scopes(t, s, stackTrace(t, s, 1, 1).StackFrames[0].Id)[0].VariablesReference
	p := variableNamed(t, variablesOf(t, s, locals), "p")

	body, err := onDataBreakpointInfo(s, &dap.DataBreakpointInfoArguments{VariablesReference: p.VariablesReference, Name: "x"})
	require.Nil(t, err)
	info := body.(protocol.DataBreakpointInfoBody)
	require.NotNil(t, info.DataId)
	assert.Equal(t, "p.x", *info.DataId)
	assert.Equal(t, []string{"read", "write", "readWrite"}, info.AccessTypes)

	body, err = onDataBreakpointInfo(s, &dap.DataBreakpointInfoArguments{Name: "total"})
	require.Nil(t, err)
	assert.Equal(t, "total", *body.(protocol.DataBreakpointInfoBody).DataId)

	_, err = onDataBreakpointInfo(s, &dap.DataBreakpointInfoArguments{VariablesReference: 999999, Name: "x"})
	assert.True(t, errors.Is(err, e.ErrInvalidReference))
}

func setSourceBreakpoints(t *testing.T, s *Session, path string, lines ...int) []dap.Breakpoint {
	args := &dap.SetBreakpointsArguments{Source: dap.Source{Path: path}}
	for _, line := range lines {
		args.Breakpoints = append(args.Breakpoints, dap.SourceBreakpoint{Line: line})
	}
	body, err := onSetBreakpoints(s, args)
	require.Nil(t, err)
	return body.(dap.SetBreakpointsResponseBody).Breakpoints
}

func TestHandler_SetBreakpointsDiff(t *testing.T) {
	s, backend := newStoppedSession(t)
	const path = "/src/demo/main.cpp"

	first := setSourceBreakpoints(t, s, path, 41, 52)
	require.Len(t, first, 2)
	assert.True(t, first[0].Verified)
	assert.Equal(t, 41, first[0].Line)
	assert.Equal(t, 2, backend.Created())

	second := setSourceBreakpoints(t, s, path, 52, 22)
	assert.Equal(t, first[1].Id, second[0].Id)
	assert.NotEqual(t, first[0].Id, second[1].Id)
	assert.Equal(t, 3, backend.Created())
	assert.Equal(t, 1, backend.Deleted())

	again := setSourceBreakpoints(t, s, path, 52, 22)
	assert.Equal(t, second, again)
	assert.Equal(t, 3, backend.Created())
	assert.Equal(t, 1, backend.Deleted())

	pending := setSourceBreakpoints(t, s, "/src/demo/missing.cpp", 3)
	assert.False(t, pending[0].Verified)
	assert.Equal(t, "breakpoint is pending", pending[0].Message)

	_, err := onSetBreakpoints(s, &dap.SetBreakpointsArguments{})
	assert.True(t, errors.Is(err, e.ErrValidation))
}

func TestHandler_OtherBreakpointKinds(t *testing.T) {
	s, _ := newStoppedSession(t)

	body, err := onSetFunctionBreakpoints(s, &dap.SetFunctionBreakpointsArguments{
		Breakpoints: []dap.FunctionBreakpoint{{Name: "helper"}, {Name: "nowhere"}},
	})
	require.Nil(t, err)
	functions := body.(dap.SetFunctionBreakpointsResponseBody).Breakpoints
	require.Len(t, functions, 2)
	assert.True(t, functions[0].Verified)
	assert.False(t, functions[1].Verified)

	body, err = onSetInstructionBreakpoints(s, &dap.SetInstructionBreakpointsArguments{
		Breakpoints: []dap.InstructionBreakpoint{{InstructionReference: "0x401150", Offset: 6}},
	})
	require.Nil(t, err)
	instructions := body.(dap.SetInstructionBreakpointsResponseBody).Breakpoints
	require.Len(t, instructions, 1)
	assert.True(t, instructions[0].Verified)
	assert.Equal(t, "0x401156", instructions[0].InstructionReference)

	_, err = onSetInstructionBreakpoints(s, &dap.SetInstructionBreakpointsArguments{
		Breakpoints: []dap.InstructionBreakpoint{{InstructionReference: "main"}},
	})
	assert.True(t, errors.Is(err, e.ErrValidation))

	body, err = onSetDataBreakpoints(s, &dap.SetDataBreakpointsArguments{
		Breakpoints: []dap.DataBreakpoint{{DataId: "total"}, {DataId: "nosuch", AccessType: "read"}},
	})
	require.Nil(t, err)
	data := body.(dap.SetDataBreakpointsResponseBody).Breakpoints
	require.Len(t, data, 2)
	assert.True(t, data[0].Verified)
	assert.False(t, data[1].Verified)
	assert.NotEmpty(t, data[1].Message)

	body, err = onSetExceptionBreakpoints(s, &dap.SetExceptionBreakpointsArguments{Filters: []string{"throw", "throw", "catch"}})
	require.Nil(t, err)
	assert.Len(t, body.(dap.SetExceptionBreakpointsResponseBody).Breakpoints, 2)
	assert.Equal(t, 6, s.breakpoints.Len())
}

func TestHandler_BreakpointStop(t *testing.T) {
	s, _ := newStoppedSession(t)
	bps := setSourceBreakpoints(t, s, "/src/demo/main.cpp", 41)
	drainEvents(s)

	// 前两个停止事件没有位置，continue也会停下
	for i := 0; i < 2; i++ {
		_, err := onContinue(s, &dap.ContinueArguments{ThreadId: 1})
		require.Nil(t, err)
	}
	body, err := onContinue(s, &dap.ContinueArguments{ThreadId: 1})
	require.Nil(t, err)
	assert.True(t, body.(dap.ContinueResponseBody).AllThreadsContinued)

	list := drainEvents(s)
	stopped := eventsNamed(list, constants.StoppedEvent)
	require.Len(t, stopped, 3)
	last := stopped[2].Body.(dap.StoppedEventBody)
	assert.Equal(t, "breakpoint", last.Reason)
	assert.Equal(t, []int{bps[0].Id}, last.HitBreakpointIds)
	output := eventsNamed(list, constants.OutputEvent)
	require.Len(t, output, 1)
	assert.Equal(t, "compute done\n", output[0].Body.(dap.OutputEventBody).Output)
	assert.Equal(t, utils.Stopped, s.Status())
}

func TestHandler_LogpointResumes(t *testing.T) {
	s, _ := newStoppedSession(t)
	_, err := onSetBreakpoints(s, &dap.SetBreakpointsArguments{
		Source:      dap.Source{Path: "/src/demo/main.cpp"},
		Breakpoints: []dap.SourceBreakpoint{{Line: 41, LogMessage: "reached {41}"}},
	})
	require.Nil(t, err)
	for i := 0; i < 3; i++ {
		_, err = onContinue(s, &dap.ContinueArguments{ThreadId: 1})
		require.Nil(t, err)
	}

	list := drainEvents(s)
	for _, ev := range eventsNamed(list, constants.StoppedEvent) {
		assert.NotEqual(t, "breakpoint", ev.Body.(dap.StoppedEventBody).Reason)
	}
	var outputs []string
	for _, ev := range eventsNamed(list, constants.OutputEvent) {
		outputs = append(outputs, ev.Body.(dap.OutputEventBody).Output)
	}
	assert.Contains(t, outputs, "reached 41\n")
	require.Len(t, eventsNamed(list, constants.ExitedEvent), 1)
	require.Len(t, eventsNamed(list, constants.TerminatedEvent), 1)
	assert.Equal(t, utils.Finish, s.Status())
}

func TestHandler_LogpointKeepsSingleThread(t *testing.T) {
	s, _ := newStoppedSession(t)
	_, err := onSetBreakpoints(s, &dap.SetBreakpointsArguments{
		Source:      dap.Source{Path: "/src/demo/main.cpp"},
		Breakpoints: []dap.SourceBreakpoint{{Line: 41, LogMessage: "reached"}},
	})
	require.Nil(t, err)
	drainEvents(s)
	for i := 0; i < 3; i++ {
		body, err := onContinue(s, &dap.ContinueArguments{ThreadId: 1, SingleThread: true})
		require.Nil(t, err)
		assert.False(t, body.(dap.ContinueResponseBody).AllThreadsContinued)
	}

	list := drainEvents(s)
	continued := eventsNamed(list, constants.ContinuedEvent)
	// 第三次继续停在日志断点上，静默恢复时仍然只运行该线程
	require.Len(t, continued, 4)
	for _, ev := range continued {
		assert.False(t, ev.Body.(dap.ContinuedEventBody).AllThreadsContinued)
	}
	assert.Len(t, eventsNamed(list, constants.ExitedEvent), 1)
}

func TestSession_ControlRepeatsCommandAfterSilentStop(t *testing.T) {
	s, _ := newStoppedSession(t)
	calls := 0
	err := s.control(func() error {
		calls++
		if calls < 3 {
			s.events.resume.Store(true)
		}
		return nil
	}, nil)
	require.Nil(t, err)
	assert.Equal(t, 3, calls)

	resumed := 0
	err = s.control(func() error {
		s.events.resume.Store(true)
		return nil
	}, func() error {
		resumed++
		return nil
	})
	require.Nil(t, err)
	assert.Equal(t, 1, resumed)
}

func TestHandler_HitCondition(t *testing.T) {
	s, _ := newStoppedSession(t)
	_, err := onSetBreakpoints(s, &dap.SetBreakpointsArguments{
		Source:      dap.Source{Path: "/src/demo/main.cpp"},
		Breakpoints: []dap.SourceBreakpoint{{Line: 41, HitCondition: ">= 2"}},
	})
	require.Nil(t, err)
	for i := 0; i < 3; i++ {
		_, err = onContinue(s, &dap.ContinueArguments{ThreadId: 1})
		require.Nil(t, err)
	}
	list := drainEvents(s)
	for _, ev := range eventsNamed(list, constants.StoppedEvent) {
		assert.NotEqual(t, "breakpoint", ev.Body.(dap.StoppedEventBody).Reason)
	}
	assert.Equal(t, utils.Finish, s.Status())
}

func TestHandler_Checkpoints(t *testing.T) {
	s, _ := newStoppedSession(t)
	drainEvents(s)

	for i := 1; i <= 2; i++ {
		body, err := onSetCheckpoint(s, &struct{}{})
		require.Nil(t, err)
		assert.Equal(t, i, body.(protocol.Checkpoint).ID)
	}
	body, err := onCheckpoints(s, &struct{}{})
	require.Nil(t, err)
	list := body.(protocol.CheckpointsBody).Checkpoints
	require.Len(t, list, 2)
	assert.Equal(t, 1, list[0].ID)
	assert.Equal(t, 2, list[1].ID)
	assert.Equal(t, "/src/demo/main.cpp", list[0].Path)

	_, err = onDeleteCheckpoint(s, &protocol.CheckpointArguments{ID: 1})
	require.Nil(t, err)
	body, err = onCheckpoints(s, &struct{}{})
	require.Nil(t, err)
	assert.Equal(t, 2, body.(protocol.CheckpointsBody).Checkpoints[0].ID)

	_, err = onDeleteCheckpoint(s, &protocol.CheckpointArguments{ID: 7})
	assert.NotNil(t, err)

	_, err = onRestartCheckpoint(s, &protocol.CheckpointArguments{ID: 2})
	require.Nil(t, err)

	_, err = onClearCheckpoints(s, &struct{}{})
	require.Nil(t, err)
	assert.Equal(t, 0, s.checkpoints.Size())

	updates := eventsNamed(drainEvents(s), constants.CheckpointsUpdatedEvent)
	require.Len(t, updates, 4)
	assert.Empty(t, updates[3].Body.(protocol.CheckpointsBody).Checkpoints)
}

func TestHandler_TimeTravelCommands(t *testing.T) {
	s, _ := newStoppedSession(t)

	_, err := onReverseFinish(s, &protocol.ThreadArguments{ThreadId: 1})
	require.Nil(t, err)
	assert.Len(t, stackTrace(t, s, 1, 0).StackFrames, 4)

	_, err = onRunToEvent(s, &protocol.RunToEventArguments{Event: 0})
	assert.NotNil(t, err)
	_, err = onRunToEvent(s, &protocol.RunToEventArguments{Event: 2})
	require.Nil(t, err)
	assert.Equal(t, 41, stackTrace(t, s, 1, 0).StackFrames[0].Line)
	assert.Equal(t, utils.Stopped, s.Status())

	drainEvents(s)
	body, err := onContinueAll(s, &struct{}{})
	require.Nil(t, err)
	assert.True(t, body.(dap.ContinueResponseBody).AllThreadsContinued)
	assert.Len(t, eventsNamed(drainEvents(s), constants.ExitedEvent), 1)
}

func TestHandler_LaunchTwice(t *testing.T) {
	s, _ := newStoppedSession(t)
	_, err := onLaunch(s, &protocol.LaunchArguments{Program: "demo"})
	assert.True(t, errors.Is(err, e.ErrSessionState))

	fresh := NewSession(scripted_debugger.NewScriptedDebugger(scripted_debugger.DefaultScenario()), Options{}, nil)
	_, err = onLaunch(fresh, &protocol.LaunchArguments{Program: " "})
	assert.True(t, errors.Is(err, e.ErrValidation))
	assert.Equal(t, utils.Init, fresh.Status())

	_, err = onAttach(fresh, &protocol.AttachArguments{})
	assert.True(t, errors.Is(err, e.ErrValidation))
	_, err = onAttach(fresh, &protocol.AttachArguments{Pid: 4242})
	require.Nil(t, err)
	assert.Equal(t, utils.Running, fresh.Status())
}

func TestHandler_Pause(t *testing.T) {
	backend := scripted_debugger.NewScriptedDebugger(scripted_debugger.DefaultScenario())
	s := NewSession(backend, Options{}, nil)
	_, err := onLaunch(s, &protocol.LaunchArguments{Program: "demo"})
	require.Nil(t, err)
	drainEvents(s)

	_, err = onPause(s, &dap.PauseArguments{ThreadId: 1})
	require.Nil(t, err)
	assert.EqualValues(t, 1, backend.Interrupts())
	stopped := eventsNamed(drainEvents(s), constants.StoppedEvent)
	require.Len(t, stopped, 1)
	assert.Equal(t, "pause", stopped[0].Body.(dap.StoppedEventBody).Reason)
	assert.Equal(t, utils.Stopped, s.Status())
}

func TestHandler_PauseStopIgnoresBreakpoints(t *testing.T) {
	s, _ := newStoppedSession(t)
	body, err := onSetBreakpoints(s, &dap.SetBreakpointsArguments{
		Source:      dap.Source{Path: "/src/demo/main.cpp"},
		Breakpoints: []dap.SourceBreakpoint{{Line: 41, LogMessage: "reached"}},
	})
	require.Nil(t, err)
	id := body.(dap.SetBreakpointsResponseBody).Breakpoints[0].Id
	drainEvents(s)

	s.events.Notify(debugger.NewStoppedEvent(constants.PauseStopped, 1, id))
	assert.False(t, s.events.takeResume())
	list := drainEvents(s)
	assert.Empty(t, eventsNamed(list, constants.OutputEvent))
	stopped := eventsNamed(list, constants.StoppedEvent)
	require.Len(t, stopped, 1)
	assert.Equal(t, "pause", stopped[0].Body.(dap.StoppedEventBody).Reason)
	assert.Empty(t, stopped[0].Body.(dap.StoppedEventBody).HitBreakpointIds)
}

func TestHandler_Terminate(t *testing.T) {
	s, _ := newStoppedSession(t)
	drainEvents(s)
	_, err := onTerminate(s, &dap.TerminateArguments{})
	require.Nil(t, err)
	assert.Equal(t, utils.Finish, s.Status())
	assert.Len(t, eventsNamed(drainEvents(s), constants.TerminatedEvent), 1)
}

func TestSplitRange(t *testing.T) {
	tests := []struct {
		expression string
		base       string
		rng        *variables.Range
	}{
		{"values", "values", nil},
		{"values[1:3]", "values", &variables.Range{Start: 1, End: 3}},
		{"values[2:]", "values", &variables.Range{Start: 2}},
		{" p.items[0:10] ", "p.items", &variables.Range{Start: 0, End: 10}},
		{"values[3:1]", "values[3:1]", nil},
		{"values[1]", "values[1]", nil},
		{"[1:2]", "[1:2]", nil},
	}
	for _, tt := range tests {
		t.Run(tt.expression, func(t *testing.T) {
			base, rng := splitRange(tt.expression)
			assert.Equal(t, tt.base, base)
			assert.Equal(t, tt.rng, rng)
		})
	}
}

func TestPageAndFilterRows(t *testing.T) {
	rows := []variables.Row{{Name: "0"}, {Name: "1"}, {Name: "[2]"}, {Name: "size"}}
	assert.Len(t, filterRows(rows, "indexed"), 3)
	assert.Equal(t, "size", filterRows(rows, "named")[0].Name)
	assert.Len(t, filterRows(rows, ""), 4)

	assert.Equal(t, rows[1:3], pageRows(rows, 1, 2))
	assert.Equal(t, rows[2:], pageRows(rows, 2, 0))
	assert.Empty(t, pageRows(rows, 9, 1))
}
