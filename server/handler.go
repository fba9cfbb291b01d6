package server

import (
	"context"
	"encoding/base64"
	"regexp"
	"strconv"
	"strings"

	"github.com/fansqz/midas-dap/constants"
	"github.com/fansqz/midas-dap/debugger"
	"github.com/fansqz/midas-dap/debugger/breakpoints"
	"github.com/fansqz/midas-dap/debugger/stack"
	"github.com/fansqz/midas-dap/debugger/variables"
	e "github.com/fansqz/midas-dap/error"
	"github.com/fansqz/midas-dap/protocol"
	"github.com/fansqz/midas-dap/utils"
	"github.com/google/go-dap"
	"github.com/sirupsen/logrus"
)

const internalConsole = "internalConsole"

var (
	// active 已经launch或者attach，程序还没有结束
	active = []string{utils.Running, utils.Stopped}
	// configurable 断点可以在launch之前设置
	configurable = []string{utils.Init, utils.Running, utils.Stopped}
)

// DefaultCommandTable 所有支持的命令
func DefaultCommandTable() *CommandTable {
	return NewCommandTable(
		command[dap.InitializeRequestArguments]("initialize", onInitialize).
			accept("clientID", "clientName", "adapterID", "locale", "linesStartAt1", "columnsStartAt1", "pathFormat"),
		command[protocol.LaunchArguments]("launch", onLaunch).
			require("program").accept("args", "cwd", "stopOnEntry", "singleThreadControl", "console").in(utils.Init),
		command[protocol.AttachArguments]("attach", onAttach).
			accept("pid", "target", "singleThreadControl").in(utils.Init),
		command[struct{}]("configurationDone", onConfigurationDone).in(active...),
		command[dap.DisconnectArguments]("disconnect", onDisconnect).
			accept("restart", "terminateDebuggee", "suspendDebuggee").ends(),
		command[dap.TerminateArguments]("terminate", onTerminate).accept("restart").ends(),
		command[struct{}]("threads", onThreads).in(active...),

		command[dap.StackTraceArguments]("stackTrace", onStackTrace).
			require("threadId").accept("startFrame", "levels", "format").in(active...),
		command[dap.ScopesArguments]("scopes", onScopes).require("frameId").in(active...),
		command[dap.VariablesArguments]("variables", onVariables).
			require("variablesReference").accept("filter", "start", "count", "format").in(active...),
		command[dap.EvaluateArguments]("evaluate", onEvaluate).
			require("expression").accept("frameId", "context", "format").in(active...),
		command[dap.ReadMemoryArguments]("readMemory", onReadMemory).
			require("memoryReference").accept("offset", "count").in(active...),
		command[dap.DataBreakpointInfoArguments]("dataBreakpointInfo", onDataBreakpointInfo).
			require("name").accept("variablesReference", "frameId").in(active...),

		command[dap.SetBreakpointsArguments]("setBreakpoints", onSetBreakpoints).
			require("source").accept("breakpoints", "lines", "sourceModified").in(configurable...),
		command[dap.SetFunctionBreakpointsArguments]("setFunctionBreakpoints", onSetFunctionBreakpoints).
			require("breakpoints").in(configurable...),
		command[dap.SetInstructionBreakpointsArguments]("setInstructionBreakpoints", onSetInstructionBreakpoints).
			require("breakpoints").in(configurable...),
		command[dap.SetDataBreakpointsArguments]("setDataBreakpoints", onSetDataBreakpoints).
			require("breakpoints").in(configurable...),
		command[dap.SetExceptionBreakpointsArguments]("setExceptionBreakpoints", onSetExceptionBreakpoints).
			require("filters").accept("filterOptions", "exceptionOptions").in(configurable...),

		command[dap.ContinueArguments]("continue", onContinue).
			require("threadId").accept("singleThread").in(active...),
		command[protocol.StepArguments]("next", onNext).
			require("threadId").accept("singleThread", "granularity").in(active...),
		command[protocol.StepArguments]("stepIn", onStepIn).
			require("threadId").accept("singleThread", "targetId", "granularity").in(active...),
		command[protocol.StepArguments]("stepOut", onStepOut).
			require("threadId").accept("singleThread", "granularity").in(active...),
		command[protocol.StepArguments]("stepBack", onStepBack).
			require("threadId").accept("singleThread", "granularity").in(active...),
		command[protocol.StepArguments]("reverseContinue", onReverseContinue).
			require("threadId").accept("singleThread").in(active...),
		command[dap.PauseArguments]("pause", onPause[dap.PauseArguments]).require("threadId").in(active...).now(),
		command[struct{}]("continue-all", onContinueAll).in(active...),
		command[struct{}]("pause-all", onPause[struct{}]).in(active...).now(),
		command[protocol.ThreadArguments]("reverse-finish", onReverseFinish).require("threadId").in(active...),
		command[protocol.RunToEventArguments]("run-to-event", onRunToEvent).require("event").in(active...),

		command[struct{}]("set-checkpoint", onSetCheckpoint).in(active...),
		command[protocol.CheckpointArguments]("restart-checkpoint", onRestartCheckpoint).require("id").in(active...),
		command[protocol.CheckpointArguments]("delete-checkpoint", onDeleteCheckpoint).require("id").in(active...),
		command[struct{}]("clear-checkpoints", onClearCheckpoints).in(active...),
		command[struct{}]("checkpoints", onCheckpoints).in(active...),

		command[struct{}]("reset-state", onResetState).in(active...),
		command[struct{}]("toggle-hex", onToggleHex).in(configurable...),
		command[dap.CancelArguments]("cancel", onCancel).accept("requestId", "progressId").now(),
	)
}

func capabilities() dap.Capabilities {
	return dap.Capabilities{
		SupportsConfigurationDoneRequest:  true,
		SupportsFunctionBreakpoints:       true,
		SupportsConditionalBreakpoints:    true,
		SupportsHitConditionalBreakpoints: true,
		SupportsEvaluateForHovers:         true,
		ExceptionBreakpointFilters: []dap.ExceptionBreakpointsFilter{
			{Filter: "throw", Label: "C++: on throw"},
			{Filter: "catch", Label: "C++: on catch"},
		},
		SupportsStepBack:               true,
		SupportsLogPoints:              true,
		SupportsTerminateRequest:       true,
		SupportTerminateDebuggee:       true,
		SupportsDataBreakpoints:        true,
		SupportsReadMemoryRequest:      true,
		SupportsCancelRequest:          true,
		SupportsInstructionBreakpoints: true,
	}
}

func onInitialize(s *Session, args *dap.InitializeRequestArguments) (interface{}, error) {
	logrus.Infof("[Session] %s initialize, adapter %s", s.ID, args.AdapterID)
	s.events.Emit(constants.InitializedEvent, nil)
	return capabilities(), nil
}

func onLaunch(s *Session, args *protocol.LaunchArguments) (interface{}, error) {
	if strings.TrimSpace(args.Program) == "" {
		return nil, e.NewValidationError("launch", "program", "must not be empty")
	}
	if !s.status.Transit(utils.Running, utils.Init) {
		return nil, e.NewSessionStateError("launch", s.status.Get())
	}
	s.options.StopOnEntry = boolOr(args.StopOnEntry, s.options.StopOnEntry)
	s.options.SingleThreadControl = boolOr(args.SingleThreadControl, s.options.SingleThreadControl)
	option := &debugger.StartOption{
		Program:             args.Program,
		Args:                args.Args,
		Cwd:                 args.Cwd,
		StopOnEntry:         s.options.StopOnEntry,
		SingleThreadControl: s.options.SingleThreadControl,
		Callback:            s.events.Notify,
	}
	if args.Console == internalConsole {
		console, err := OpenConsole()
		if err != nil {
			s.status.Set(utils.Init)
			return nil, err
		}
		s.console = console
		option.TTY = console.TTY()
		console.Pump(context.Background(), func(output string) {
			s.events.Output(constants.StdoutOutput, output)
		})
	}
	if err := s.backend.Start(context.Background(), option); err != nil {
		s.status.Set(utils.Init)
		if s.console != nil {
			s.console.Close()
			s.console = nil
		}
		return nil, err
	}
	logrus.Infof("[Session] %s launched %s", s.ID, args.Program)
	return nil, nil
}

func onAttach(s *Session, args *protocol.AttachArguments) (interface{}, error) {
	if args.Pid == 0 && args.Target == "" {
		return nil, e.NewValidationError("attach", "pid", "pid or target is required")
	}
	if !s.status.Transit(utils.Running, utils.Init) {
		return nil, e.NewSessionStateError("attach", s.status.Get())
	}
	s.options.SingleThreadControl = boolOr(args.SingleThreadControl, s.options.SingleThreadControl)
	// 附加的进程已经在运行，不会停在入口
	s.options.StopOnEntry = false
	err := s.backend.Attach(context.Background(), &debugger.AttachOption{
		Pid:      args.Pid,
		Target:   args.Target,
		Callback: s.events.Notify,
	})
	if err != nil {
		s.status.Set(utils.Init)
		return nil, err
	}
	return nil, nil
}

func onConfigurationDone(s *Session, _ *struct{}) (interface{}, error) {
	if s.options.StopOnEntry {
		threadID, err := s.threadOrCurrent(0)
		if err != nil {
			return nil, err
		}
		s.events.Notify(debugger.NewStoppedEvent(constants.EntryStopped, threadID))
		return nil, nil
	}
	return nil, s.control(func() error {
		return s.backend.Continue(0, false)
	}, nil)
}

func onDisconnect(s *Session, args *dap.DisconnectArguments) (interface{}, error) {
	if !s.status.Is(utils.Init, utils.Finish) {
		if err := s.backend.Terminate(context.Background()); err != nil {
			logrus.Warnf("[Session] %s terminate on disconnect fail, err = %v", s.ID, err)
		}
	}
	s.close()
	return nil, nil
}

func onTerminate(s *Session, _ *dap.TerminateArguments) (interface{}, error) {
	if !s.status.Is(utils.Init, utils.Finish) {
		if err := s.backend.Terminate(context.Background()); err != nil {
			return nil, err
		}
		s.events.Emit(constants.TerminatedEvent, dap.TerminatedEventBody{})
	}
	s.close()
	return nil, nil
}

func onThreads(s *Session, _ *struct{}) (interface{}, error) {
	threads, err := s.backend.Threads()
	if err != nil {
		return nil, err
	}
	body := dap.ThreadsResponseBody{Threads: make([]dap.Thread, 0, len(threads))}
	for _, t := range threads {
		body.Threads = append(body.Threads, dap.Thread{Id: t.ID, Name: t.Name})
	}
	return body, nil
}

func onStackTrace(s *Session, args *dap.StackTraceArguments) (interface{}, error) {
	ec := s.executionContext(args.ThreadId)
	descriptors, err := ec.GetFrames(args.StartFrame, args.Levels)
	if err != nil {
		if len(ec.Stack()) == 0 {
			s.dropContext(args.ThreadId)
		}
		return nil, err
	}
	total, err := ec.StackDepth()
	if err != nil {
		logrus.Debugf("[Session] stack depth of thread %d fail, err = %v", args.ThreadId, err)
		total = len(ec.Stack())
	}
	body := dap.StackTraceResponseBody{
		StackFrames: make([]dap.StackFrame, 0, len(descriptors)),
		TotalFrames: total,
	}
	for _, fd := range descriptors {
		body.StackFrames = append(body.StackFrames, dap.StackFrame{
			Id:                          fd.ID,
			Name:                        fd.Name,
			Source:                      sourceOf(fd.Path),
			Line:                        fd.Line,
			InstructionPointerReference: utils.FormatAddress(fd.PC),
		})
	}
	return body, nil
}

func onScopes(s *Session, args *dap.ScopesArguments) (interface{}, error) {
	sf, err := s.frame(args.FrameId)
	if err != nil {
		return nil, err
	}
	scopes := sf.Scopes()
	body := dap.ScopesResponseBody{Scopes: make([]dap.Scope, 0, len(scopes))}
	for _, scope := range scopes {
		body.Scopes = append(body.Scopes, dap.Scope{
			Name:               scope.Name,
			PresentationHint:   scope.PresentationHint,
			VariablesReference: scope.VariablesReference,
			Expensive:          scope.Expensive,
		})
	}
	return body, nil
}

func onVariables(s *Session, args *dap.VariablesArguments) (interface{}, error) {
	c, err := s.container(args.VariablesReference)
	if err != nil {
		return nil, err
	}
	rows := pageRows(filterRows(c.Contents(s.format), args.Filter), args.Start, args.Count)
	body := dap.VariablesResponseBody{Variables: make([]dap.Variable, 0, len(rows))}
	for _, row := range rows {
		body.Variables = append(body.Variables, dap.Variable{
			Name:               row.Name,
			Value:              row.Value,
			Type:               row.Type,
			EvaluateName:       row.EvaluateName,
			VariablesReference: row.Handle,
			MemoryReference:    row.MemoryReference,
		})
	}
	return body, nil
}

// filterRows indexed只保留数组元素，named只保留命名的成员
func filterRows(rows []variables.Row, filter string) []variables.Row {
	if filter != "indexed" && filter != "named" {
		return rows
	}
	filtered := make([]variables.Row, 0, len(rows))
	for _, row := range rows {
		if isIndexed(row.Name) == (filter == "indexed") {
			filtered = append(filtered, row)
		}
	}
	return filtered
}

// isIndexed 数组元素以下标命名，可视化器的元素以[i]命名
func isIndexed(name string) bool {
	if strings.HasPrefix(name, "[") {
		return true
	}
	_, err := strconv.Atoi(name)
	return err == nil
}

// pageRows count为0时返回start之后的所有行
func pageRows(rows []variables.Row, start int, count int) []variables.Row {
	if start < 0 {
		start = 0
	}
	if start >= len(rows) {
		return []variables.Row{}
	}
	end := len(rows)
	if count > 0 && start+count < end {
		end = start + count
	}
	return rows[start:end]
}

var rangeSuffix = regexp.MustCompile(`^(.+)\[(\d+):(\d*)\]$`)

// splitRange 解析表达式末尾的[start:end]，限制数组类型子节点的范围
func splitRange(expression string) (string, *variables.Range) {
	m := rangeSuffix.FindStringSubmatch(strings.TrimSpace(expression))
	if m == nil {
		return expression, nil
	}
	start, err := strconv.Atoi(m[2])
	if err != nil {
		return expression, nil
	}
	rng := &variables.Range{Start: start}
	if m[3] != "" {
		end, err := strconv.Atoi(m[3])
		if err != nil || end < start {
			return expression, nil
		}
		rng.End = end
	}
	return strings.TrimSpace(m[1]), rng
}

func onEvaluate(s *Session, args *dap.EvaluateArguments) (interface{}, error) {
	expression, rng := splitRange(args.Expression)
	sf, err := evaluationFrame(s, args)
	if err != nil {
		return nil, err
	}
	var frame debugger.Frame
	if sf != nil {
		frame = sf.Frame()
	}
	value, err := s.backend.Evaluate(frame, expression)
	if err != nil {
		return nil, e.NewBackendReadError(expression, err)
	}
	var c *variables.ValueContainer
	if sf != nil {
		c = sf.AddWatchedVariable(args.Expression, value, rng)
	} else {
		threadID, err := s.threadOrCurrent(0)
		if err != nil {
			return nil, err
		}
		c = s.executionContext(threadID).AddFreeFloatingWatchedVariable(args.Expression, value, rng)
	}
	row := variables.RowOf(args.Expression, expression, value, c, s.format)
	return dap.EvaluateResponseBody{
		Result:             row.Value,
		Type:               row.Type,
		VariablesReference: row.Handle,
		MemoryReference:    row.MemoryReference,
	}, nil
}

// evaluationFrame 监视表达式没有指定栈帧时挂在线程上，其他情况使用指定的栈帧或者最内层的栈帧
func evaluationFrame(s *Session, args *dap.EvaluateArguments) (*stack.StackFrame, error) {
	if args.FrameId != 0 {
		return s.frame(args.FrameId)
	}
	if args.Context == "watch" {
		return nil, nil
	}
	threadID, err := s.threadOrCurrent(0)
	if err != nil {
		return nil, err
	}
	ec := s.executionContext(threadID)
	descriptors, err := ec.GetFrames(0, 1)
	if err != nil {
		return nil, err
	}
	if len(descriptors) == 0 {
		return nil, e.ErrNoExecutionContext
	}
	return ec.StackFrame(descriptors[0].ID)
}

func onReadMemory(s *Session, args *dap.ReadMemoryArguments) (interface{}, error) {
	address, err := utils.ParseAddress(args.MemoryReference)
	if err != nil {
		return nil, e.NewValidationError("readMemory", "memoryReference", err.Error())
	}
	if address, err = utils.OffsetAddress(address, int64(args.Offset)); err != nil {
		return nil, e.NewValidationError("readMemory", "offset", err.Error())
	}
	if args.Count < 0 {
		return nil, e.NewValidationError("readMemory", "count", "must not be negative")
	}
	body := dap.ReadMemoryResponseBody{Address: utils.FormatAddress(address)}
	if args.Count == 0 {
		return body, nil
	}
	data, err := s.backend.ReadMemory(address, args.Count)
	if err != nil {
		logrus.Debugf("[Session] read %d bytes at 0x%x fail, err = %v", args.Count, address, err)
		body.UnreadableBytes = args.Count
		return body, nil
	}
	body.Data = base64.StdEncoding.EncodeToString(data)
	body.UnreadableBytes = args.Count - len(data)
	return body, nil
}

func onDataBreakpointInfo(s *Session, args *dap.DataBreakpointInfoArguments) (interface{}, error) {
	dataID := args.Name
	if args.VariablesReference != 0 {
		c, err := s.container(args.VariablesReference)
		if err != nil {
			return nil, err
		}
		dataID = c.ChildEvaluateName(args.Name)
	}
	return protocol.DataBreakpointInfoBody{
		DataId:      &dataID,
		Description: dataID,
		AccessTypes: []string{string(debugger.AccessRead), string(debugger.AccessWrite), string(debugger.AccessReadWrite)},
	}, nil
}

func onSetBreakpoints(s *Session, args *dap.SetBreakpointsArguments) (interface{}, error) {
	if args.Source.Path == "" {
		return nil, e.NewValidationError("setBreakpoints", "source", "path is required")
	}
	requests := make([]breakpoints.Request, 0, len(args.Breakpoints))
	for _, bp := range args.Breakpoints {
		requests = append(requests, breakpoints.Request{
			Line:         bp.Line,
			Condition:    bp.Condition,
			HitCondition: bp.HitCondition,
			LogMessage:   bp.LogMessage,
		})
	}
	results := s.breakpoints.SetSourceBreakpoints(args.Source.Path, requests)
	return dap.SetBreakpointsResponseBody{Breakpoints: toDapBreakpoints(results)}, nil
}

func onSetFunctionBreakpoints(s *Session, args *dap.SetFunctionBreakpointsArguments) (interface{}, error) {
	requests := make([]breakpoints.Request, 0, len(args.Breakpoints))
	for _, bp := range args.Breakpoints {
		requests = append(requests, breakpoints.Request{
			Function:     bp.Name,
			Condition:    bp.Condition,
			HitCondition: bp.HitCondition,
		})
	}
	results := s.breakpoints.SetFunctionBreakpoints(requests)
	return dap.SetFunctionBreakpointsResponseBody{Breakpoints: toDapBreakpoints(results)}, nil
}

func onSetInstructionBreakpoints(s *Session, args *dap.SetInstructionBreakpointsArguments) (interface{}, error) {
	requests := make([]breakpoints.Request, 0, len(args.Breakpoints))
	for _, bp := range args.Breakpoints {
		address, err := utils.ParseAddress(bp.InstructionReference)
		if err != nil {
			return nil, e.NewValidationError("setInstructionBreakpoints", "instructionReference", err.Error())
		}
		requests = append(requests, breakpoints.Request{
			Address:      address,
			Offset:       int64(bp.Offset),
			Condition:    bp.Condition,
			HitCondition: bp.HitCondition,
		})
	}
	results := s.breakpoints.SetInstructionBreakpoints(requests)
	return dap.SetInstructionBreakpointsResponseBody{Breakpoints: toDapBreakpoints(results)}, nil
}

func onSetDataBreakpoints(s *Session, args *dap.SetDataBreakpointsArguments) (interface{}, error) {
	requests := make([]breakpoints.Request, 0, len(args.Breakpoints))
	for _, bp := range args.Breakpoints {
		access := debugger.AccessType(bp.AccessType)
		if access == "" {
			access = debugger.AccessWrite
		}
		requests = append(requests, breakpoints.Request{
			DataID:       bp.DataId,
			AccessType:   access,
			Condition:    bp.Condition,
			HitCondition: bp.HitCondition,
		})
	}
	results := s.breakpoints.SetDataBreakpoints(requests)
	return dap.SetDataBreakpointsResponseBody{Breakpoints: toDapBreakpoints(results)}, nil
}

func onSetExceptionBreakpoints(s *Session, args *dap.SetExceptionBreakpointsArguments) (interface{}, error) {
	filters := utils.Distinct(args.Filters)
	requests := make([]breakpoints.Request, 0, len(filters))
	for _, filter := range filters {
		requests = append(requests, breakpoints.Request{Filter: filter})
	}
	results := s.breakpoints.SetExceptionBreakpoints(requests)
	return dap.SetExceptionBreakpointsResponseBody{Breakpoints: toDapBreakpoints(results)}, nil
}

func toDapBreakpoints(results []breakpoints.Result) []dap.Breakpoint {
	list := make([]dap.Breakpoint, 0, len(results))
	for _, result := range results {
		list = append(list, toDapBreakpoint(result))
	}
	return list
}

func onContinue(s *Session, args *dap.ContinueArguments) (interface{}, error) {
	single := s.singleThread(args.SingleThread)
	err := s.control(func() error {
		return s.backend.Continue(args.ThreadId, single)
	}, nil)
	if err != nil {
		return nil, err
	}
	return dap.ContinueResponseBody{AllThreadsContinued: !single}, nil
}

func onNext(s *Session, args *protocol.StepArguments) (interface{}, error) {
	return nil, s.control(func() error {
		return s.backend.Next(args.ThreadId, s.singleThread(args.SingleThread))
	}, nil)
}

func onStepIn(s *Session, args *protocol.StepArguments) (interface{}, error) {
	return nil, s.control(func() error {
		return s.backend.StepIn(args.ThreadId, s.singleThread(args.SingleThread))
	}, nil)
}

func onStepOut(s *Session, args *protocol.StepArguments) (interface{}, error) {
	return nil, s.control(func() error {
		return s.backend.StepOut(args.ThreadId, s.singleThread(args.SingleThread))
	}, nil)
}

func onStepBack(s *Session, args *protocol.StepArguments) (interface{}, error) {
	return nil, s.control(func() error {
		return s.backend.ReverseStep(args.ThreadId)
	}, nil)
}

func onReverseContinue(s *Session, args *protocol.StepArguments) (interface{}, error) {
	return nil, s.control(func() error {
		return s.backend.ReverseContinue(args.ThreadId)
	}, nil)
}

func onReverseFinish(s *Session, args *protocol.ThreadArguments) (interface{}, error) {
	return nil, s.control(func() error {
		return s.backend.ReverseFinish(args.ThreadId)
	}, nil)
}

func onRunToEvent(s *Session, args *protocol.RunToEventArguments) (interface{}, error) {
	return nil, s.control(func() error {
		return s.backend.RunToEvent(args.Event)
	}, s.resumeAll)
}

func onContinueAll(s *Session, _ *struct{}) (interface{}, error) {
	err := s.control(func() error {
		return s.backend.Continue(0, false)
	}, nil)
	if err != nil {
		return nil, err
	}
	return dap.ContinueResponseBody{AllThreadsContinued: true}, nil
}

// onPause 在读协程上执行，只调用后端线程安全的Interrupt
func onPause[T any](s *Session, _ *T) (interface{}, error) {
	return nil, s.backend.Interrupt()
}

func onSetCheckpoint(s *Session, _ *struct{}) (interface{}, error) {
	cp, err := s.backend.SetCheckpoint()
	if err != nil {
		return nil, err
	}
	s.checkpoints.Put(cp.ID, cp)
	emitCheckpoints(s)
	return toCheckpoint(cp), nil
}

func onRestartCheckpoint(s *Session, args *protocol.CheckpointArguments) (interface{}, error) {
	return nil, s.control(func() error {
		return s.backend.RestartCheckpoint(args.ID)
	}, s.resumeAll)
}

func onDeleteCheckpoint(s *Session, args *protocol.CheckpointArguments) (interface{}, error) {
	if err := s.backend.DeleteCheckpoint(args.ID); err != nil {
		return nil, err
	}
	s.checkpoints.Remove(args.ID)
	emitCheckpoints(s)
	return nil, nil
}

func onClearCheckpoints(s *Session, _ *struct{}) (interface{}, error) {
	if err := s.syncCheckpoints(); err != nil {
		return nil, err
	}
	for _, cp := range s.checkpointList() {
		if err := s.backend.DeleteCheckpoint(cp.ID); err != nil {
			return nil, err
		}
		s.checkpoints.Remove(cp.ID)
	}
	emitCheckpoints(s)
	return nil, nil
}

func onCheckpoints(s *Session, _ *struct{}) (interface{}, error) {
	if err := s.syncCheckpoints(); err != nil {
		return nil, err
	}
	return checkpointsBody(s), nil
}

func emitCheckpoints(s *Session) {
	s.events.Emit(constants.CheckpointsUpdatedEvent, checkpointsBody(s))
}

func checkpointsBody(s *Session) protocol.CheckpointsBody {
	list := s.checkpointList()
	body := protocol.CheckpointsBody{Checkpoints: make([]protocol.Checkpoint, 0, len(list))}
	for _, cp := range list {
		body.Checkpoints = append(body.Checkpoints, toCheckpoint(cp))
	}
	return body
}

func toCheckpoint(cp *debugger.Checkpoint) protocol.Checkpoint {
	return protocol.Checkpoint{ID: cp.ID, When: cp.When, Path: cp.Path, Line: cp.Line}
}

func onResetState(s *Session, _ *struct{}) (interface{}, error) {
	s.reset()
	return nil, nil
}

func onToggleHex(s *Session, _ *struct{}) (interface{}, error) {
	s.format.Hex = !s.format.Hex
	return protocol.ToggleHexBody{Hex: s.format.Hex}, nil
}

// onCancel 请求不在控制线程队列中等待时什么都不做
func onCancel(s *Session, args *dap.CancelArguments) (interface{}, error) {
	if args.RequestId == 0 || s.canceller == nil {
		return nil, nil
	}
	if !s.canceller.Cancel(args.RequestId) {
		logrus.Debugf("[Session] request %d is not waiting, cannot cancel", args.RequestId)
	}
	return nil, nil
}

func boolOr(value *bool, fallback bool) bool {
	if value == nil {
		return fallback
	}
	return *value
}
