package scripted_debugger

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fansqz/midas-dap/constants"
	"github.com/fansqz/midas-dap/debugger"
	"github.com/sirupsen/logrus"
)

var _ debugger.Debugger = (*ScriptedDebugger)(nil)

var (
	errNotRunning    = errors.New("The program is not being run.")
	errAlreadyActive = errors.New("The program being debugged has been started already.")
)

// ScriptedDebugger 由场景驱动的调试后端
// 执行控制命令依次消费场景中的停止事件，回调在调用执行控制命令的协程上同步触发
type ScriptedDebugger struct {
	mutex    sync.Mutex
	scenario *Scenario
	callback debugger.NotificationCallback

	threadNames map[int]string
	stacks      map[int][]*FrameSpec
	stops       []*StopSpec
	stopIndex   int

	breakpoints    map[int]*breakpoint
	nextBreakpoint int
	created        int
	deleted        int

	checkpoints    map[int]*checkpoint
	nextCheckpoint int

	selectedThread int
	selectedFrame  string
	started        bool
	exited         bool
	program        string

	visualizeCalls atomic.Int64
	registerReads  atomic.Int64
	interrupts     atomic.Int64
}

type checkpoint struct {
	info      *debugger.Checkpoint
	stacks    map[int][]*FrameSpec
	names     map[int]string
	stopIndex int
}

// NewScriptedDebugger 根据场景创建调试后端
func NewScriptedDebugger(scenario *Scenario) *ScriptedDebugger {
	d := &ScriptedDebugger{
		scenario:       scenario,
		threadNames:    map[int]string{},
		stacks:         map[int][]*FrameSpec{},
		stops:          scenario.Stops,
		breakpoints:    map[int]*breakpoint{},
		nextBreakpoint: 1,
		checkpoints:    map[int]*checkpoint{},
		nextCheckpoint: 1,
	}
	for _, t := range scenario.Threads {
		d.threadNames[t.ID] = t.Name
		d.stacks[t.ID] = t.Frames
	}
	if len(scenario.Threads) > 0 {
		d.selectedThread = scenario.Threads[0].ID
	}
	return d
}

// SetCallback 设置事件回调，Start和Attach也会设置
func (d *ScriptedDebugger) SetCallback(callback debugger.NotificationCallback) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.callback = callback
}

func (d *ScriptedDebugger) Start(ctx context.Context, option *debugger.StartOption) error {
	return d.begin(option.Program, option.Callback)
}

func (d *ScriptedDebugger) Attach(ctx context.Context, option *debugger.AttachOption) error {
	target := option.Target
	if target == "" {
		target = strconv.Itoa(option.Pid)
	}
	return d.begin(target, option.Callback)
}

func (d *ScriptedDebugger) begin(program string, callback debugger.NotificationCallback) error {
	d.mutex.Lock()
	if d.started {
		d.mutex.Unlock()
		return errAlreadyActive
	}
	d.started = true
	d.program = program
	if callback != nil {
		d.callback = callback
	}
	var events []interface{}
	for _, id := range d.sortedThreadIDs() {
		events = append(events, debugger.NewThreadEvent(constants.ThreadStarted, id))
	}
	d.mutex.Unlock()
	logrus.Infof("[ScriptedDebugger] started %s", program)
	d.emit(events...)
	return nil
}

func (d *ScriptedDebugger) Terminate(ctx context.Context) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.exited = true
	return nil
}

func (d *ScriptedDebugger) Threads() ([]debugger.Thread, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	threads := make([]debugger.Thread, 0, len(d.threadNames))
	for _, id := range d.sortedThreadIDs() {
		threads = append(threads, debugger.Thread{ID: id, Name: d.threadNames[id]})
	}
	return threads, nil
}

func (d *ScriptedDebugger) SelectThread(id int) (debugger.Thread, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	name, ok := d.threadNames[id]
	if !ok {
		return debugger.Thread{}, fmt.Errorf("Found no thread with id %d", id)
	}
	d.selectedThread = id
	return debugger.Thread{ID: id, Name: name}, nil
}

func (d *ScriptedDebugger) NewestFrame(thread debugger.Thread) (debugger.Frame, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	frames, ok := d.stacks[thread.ID]
	if !ok {
		return nil, fmt.Errorf("Found no thread with id %d", thread.ID)
	}
	if len(frames) == 0 {
		return nil, errors.New("No stack.")
	}
	return &frame{d: d, threadID: thread.ID, spec: frames[0]}, nil
}

func (d *ScriptedDebugger) ReadMemory(address uint64, count int) ([]byte, error) {
	for _, m := range d.scenario.Memory {
		data, _ := hex.DecodeString(m.Data)
		end := m.Address + uint64(len(data))
		if address >= m.Address && address < end {
			offset := address - m.Address
			n := uint64(count)
			if offset+n > uint64(len(data)) {
				n = uint64(len(data)) - offset
			}
			return data[offset : offset+n], nil
		}
	}
	return nil, fmt.Errorf("Cannot access memory at address 0x%x", address)
}

// Evaluate 支持符号、成员访问、解引用、寄存器和整数字面量
func (d *ScriptedDebugger) Evaluate(f debugger.Frame, expression string) (debugger.Value, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return nil, errors.New("Argument required (expression to compute).")
	}
	if _, err := strconv.ParseInt(expression, 0, 64); err == nil {
		return newValue(d, &ValueSpec{Name: expression, Type: "int", Kind: primitiveKind, Value: expression}), nil
	}
	sf, err := d.evaluationFrame(f)
	if err != nil {
		return nil, err
	}
	if strings.HasPrefix(expression, "$") {
		return sf.ReadRegister(strings.TrimPrefix(expression, "$"))
	}
	deref := strings.HasPrefix(expression, "*")
	parts := strings.Split(strings.TrimPrefix(expression, "*"), ".")
	spec := sf.lookup(parts[0])
	if spec == nil {
		return nil, fmt.Errorf("No symbol \"%s\" in current context.", parts[0])
	}
	if spec.Unreadable != "" {
		return nil, errors.New(spec.Unreadable)
	}
	var v debugger.Value = newValue(d, spec)
	for _, part := range parts[1:] {
		if v.Type().Kind == debugger.PointerKind {
			if v, err = v.Dereference(); err != nil {
				return nil, err
			}
		}
		if v, err = v.Field(debugger.Field{Name: part}); err != nil {
			return nil, err
		}
	}
	if deref {
		return v.Dereference()
	}
	return v, nil
}

func (d *ScriptedDebugger) evaluationFrame(f debugger.Frame) (*frame, error) {
	if f != nil {
		sf, ok := f.(*frame)
		if !ok {
			return nil, errors.New("frame does not belong to this backend")
		}
		return sf, nil
	}
	d.mutex.Lock()
	defer d.mutex.Unlock()
	frames := d.stacks[d.selectedThread]
	if len(frames) == 0 {
		return nil, errors.New("No frame selected.")
	}
	level := indexOf(frames, d.selectedFrame)
	if level < 0 {
		level = 0
	}
	return &frame{d: d, threadID: d.selectedThread, spec: frames[level]}, nil
}

func (d *ScriptedDebugger) Next(threadID int, singleThread bool) error {
	return d.step(threadID)
}

func (d *ScriptedDebugger) StepIn(threadID int, singleThread bool) error {
	return d.step(threadID)
}

func (d *ScriptedDebugger) StepOut(threadID int, singleThread bool) error {
	return d.step(threadID)
}

func (d *ScriptedDebugger) ReverseStep(threadID int) error {
	return d.step(threadID)
}

func (d *ScriptedDebugger) ReverseFinish(threadID int) error {
	return d.step(threadID)
}

func (d *ScriptedDebugger) Continue(threadID int, singleThread bool) error {
	return d.run(threadID, singleThread)
}

func (d *ScriptedDebugger) ReverseContinue(threadID int) error {
	return d.run(threadID, false)
}

// RunToEvent 事件编号对应场景中停止事件的下标
func (d *ScriptedDebugger) RunToEvent(event int) error {
	d.mutex.Lock()
	if !d.started || d.exited {
		d.mutex.Unlock()
		return errNotRunning
	}
	if event < d.stopIndex || event >= len(d.stops) {
		d.mutex.Unlock()
		return fmt.Errorf("no event %d in execution history", event)
	}
	var events []interface{}
	for d.stopIndex < event {
		events = append(events, d.apply(d.stops[d.stopIndex])...)
		d.stopIndex++
	}
	stop := d.stops[d.stopIndex]
	d.stopIndex++
	events = append(events, d.apply(stop)...)
	events = append(events, d.stoppedEvent(stop, stop.Thread, nil))
	d.mutex.Unlock()
	d.emit(events...)
	return nil
}

func (d *ScriptedDebugger) Interrupt() error {
	d.interrupts.Add(1)
	d.mutex.Lock()
	if !d.started || d.exited {
		d.mutex.Unlock()
		return errNotRunning
	}
	event := debugger.NewStoppedEvent(constants.PauseStopped, d.selectedThread)
	d.mutex.Unlock()
	d.emit(event)
	return nil
}

// step 单步命令总是停在下一个停止事件，没有停止事件时原地停止
func (d *ScriptedDebugger) step(threadID int) error {
	d.mutex.Lock()
	if !d.started || d.exited {
		d.mutex.Unlock()
		return errNotRunning
	}
	events := []interface{}{debugger.NewContinuedEvent(threadID, false)}
	if d.stopIndex >= len(d.stops) {
		events = append(events, debugger.NewStoppedEvent(constants.StepStopped, threadID))
		d.mutex.Unlock()
		d.emit(events...)
		return nil
	}
	stop := d.stops[d.stopIndex]
	d.stopIndex++
	events = append(events, d.apply(stop)...)
	if !stop.Exit {
		events = append(events, d.stoppedEvent(stop, threadID, nil))
	}
	d.mutex.Unlock()
	d.emit(events...)
	return nil
}

// run 跳过没有命中断点的位置，直到停止或者程序退出
func (d *ScriptedDebugger) run(threadID int, singleThread bool) error {
	d.mutex.Lock()
	if !d.started || d.exited {
		d.mutex.Unlock()
		return errNotRunning
	}
	events := []interface{}{debugger.NewContinuedEvent(threadID, !singleThread)}
	for d.stopIndex < len(d.stops) {
		stop := d.stops[d.stopIndex]
		d.stopIndex++
		events = append(events, d.apply(stop)...)
		if stop.Exit {
			d.mutex.Unlock()
			d.emit(events...)
			return nil
		}
		if stop.At == nil {
			events = append(events, d.stoppedEvent(stop, threadID, nil))
			d.mutex.Unlock()
			d.emit(events...)
			return nil
		}
		if bp := d.match(stop.At); bp != nil {
			bp.hits++
			events = append(events, d.stoppedEvent(stop, threadID, bp))
			d.mutex.Unlock()
			d.emit(events...)
			return nil
		}
	}
	d.exited = true
	events = append(events, debugger.NewExitedEvent(d.scenario.ExitCode, "exited normally"))
	d.mutex.Unlock()
	d.emit(events...)
	return nil
}

func (d *ScriptedDebugger) stoppedEvent(stop *StopSpec, threadID int, bp *breakpoint) *debugger.StoppedEvent {
	if stop.Thread != 0 {
		threadID = stop.Thread
	}
	if _, ok := d.stacks[threadID]; !ok || threadID == 0 {
		threadID = d.selectedThread
	}
	d.selectedThread = threadID
	d.selectedFrame = ""
	reason := constants.StoppedReasonType(stop.Reason)
	if bp != nil {
		event := debugger.NewStoppedEvent(bp.kind.stopReason(), threadID, bp.number)
		if stop.Reason != "" {
			event.Reason = reason
		}
		return event
	}
	if reason == "" {
		reason = constants.StepStopped
	}
	return debugger.NewStoppedEvent(reason, threadID)
}

// apply 应用停止事件对进程状态的修改，返回需要通知的事件
func (d *ScriptedDebugger) apply(stop *StopSpec) []interface{} {
	var events []interface{}
	for _, id := range stop.ExitedThreads {
		if _, ok := d.stacks[id]; !ok {
			continue
		}
		delete(d.stacks, id)
		delete(d.threadNames, id)
		events = append(events, debugger.NewThreadEvent(constants.ThreadExited, id))
	}
	for _, t := range stop.Threads {
		if _, ok := d.stacks[t.ID]; !ok {
			events = append(events, debugger.NewThreadEvent(constants.ThreadStarted, t.ID))
		}
		if t.Name != "" || d.threadNames[t.ID] == "" {
			d.threadNames[t.ID] = t.Name
		}
		d.stacks[t.ID] = t.Frames
	}
	if stop.Output != "" {
		events = append(events, debugger.NewOutputEvent(constants.StdoutOutput, stop.Output))
	}
	for _, number := range d.sortedBreakpointNumbers() {
		bp := d.breakpoints[number]
		if bp.pending && bp.kind == sourceBreakpoint && d.knownSource(bp.path) {
			bp.pending = false
			events = append(events, debugger.NewBreakpointEvent(constants.ChangeType, bp))
		}
	}
	if stop.Exit {
		d.exited = true
		events = append(events, debugger.NewExitedEvent(d.scenario.ExitCode, "exited normally"))
	}
	return events
}

func (d *ScriptedDebugger) match(at *LocationSpec) *breakpoint {
	for _, number := range d.sortedBreakpointNumbers() {
		bp := d.breakpoints[number]
		if !bp.enabled || bp.pending {
			continue
		}
		if bp.matches(at) {
			return bp
		}
	}
	return nil
}

func (d *ScriptedDebugger) emit(events ...interface{}) {
	d.mutex.Lock()
	callback := d.callback
	d.mutex.Unlock()
	if callback == nil {
		return
	}
	for _, event := range events {
		callback(event)
	}
}

func (d *ScriptedDebugger) SetCheckpoint() (*debugger.Checkpoint, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if !d.started || d.exited {
		return nil, errNotRunning
	}
	info := &debugger.Checkpoint{ID: d.nextCheckpoint, When: fmt.Sprintf("event %d", d.stopIndex)}
	if frames := d.stacks[d.selectedThread]; len(frames) > 0 {
		info.Path = frames[0].Path
		info.Line = frames[0].Line
	}
	cp := &checkpoint{
		info:      info,
		stacks:    map[int][]*FrameSpec{},
		names:     map[int]string{},
		stopIndex: d.stopIndex,
	}
	for id, frames := range d.stacks {
		cp.stacks[id] = frames
		cp.names[id] = d.threadNames[id]
	}
	d.checkpoints[info.ID] = cp
	d.nextCheckpoint++
	return info, nil
}

func (d *ScriptedDebugger) RestartCheckpoint(id int) error {
	d.mutex.Lock()
	cp, ok := d.checkpoints[id]
	if !ok {
		d.mutex.Unlock()
		return fmt.Errorf("No checkpoint number %d.", id)
	}
	d.stacks = map[int][]*FrameSpec{}
	d.threadNames = map[int]string{}
	for tid, frames := range cp.stacks {
		d.stacks[tid] = frames
		d.threadNames[tid] = cp.names[tid]
	}
	d.stopIndex = cp.stopIndex
	d.exited = false
	if _, ok := d.stacks[d.selectedThread]; !ok {
		if ids := d.sortedThreadIDs(); len(ids) > 0 {
			d.selectedThread = ids[0]
		}
	}
	event := debugger.NewStoppedEvent(constants.StepStopped, d.selectedThread)
	event.Description = fmt.Sprintf("restarted checkpoint %d", id)
	d.mutex.Unlock()
	d.emit(event)
	return nil
}

func (d *ScriptedDebugger) DeleteCheckpoint(id int) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if _, ok := d.checkpoints[id]; !ok {
		return fmt.Errorf("No checkpoint number %d.", id)
	}
	delete(d.checkpoints, id)
	return nil
}

func (d *ScriptedDebugger) Checkpoints() ([]*debugger.Checkpoint, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	list := make([]*debugger.Checkpoint, 0, len(d.checkpoints))
	for _, cp := range d.checkpoints {
		list = append(list, cp.info)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

// SetStack 替换线程的调用栈，线程不存在时创建
func (d *ScriptedDebugger) SetStack(threadID int, frames ...*FrameSpec) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if _, ok := d.threadNames[threadID]; !ok {
		d.threadNames[threadID] = fmt.Sprintf("thread %d", threadID)
	}
	d.stacks[threadID] = frames
}

// Stack 线程当前的调用栈
func (d *ScriptedDebugger) Stack(threadID int) []*FrameSpec {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.stacks[threadID]
}

// ExitThread 线程退出并通知
func (d *ScriptedDebugger) ExitThread(threadID int) {
	d.mutex.Lock()
	delete(d.stacks, threadID)
	delete(d.threadNames, threadID)
	d.mutex.Unlock()
	d.emit(debugger.NewThreadEvent(constants.ThreadExited, threadID))
}

// Created 创建断点的次数
func (d *ScriptedDebugger) Created() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.created
}

// Deleted 删除断点的次数
func (d *ScriptedDebugger) Deleted() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.deleted
}

// VisualizeCalls 可视化器被获取的次数
func (d *ScriptedDebugger) VisualizeCalls() int {
	return int(d.visualizeCalls.Load())
}

// RegisterReads 寄存器被读取的次数
func (d *ScriptedDebugger) RegisterReads() int {
	return int(d.registerReads.Load())
}

// Interrupts 中断的次数
func (d *ScriptedDebugger) Interrupts() int {
	return int(d.interrupts.Load())
}

func (d *ScriptedDebugger) sortedThreadIDs() []int {
	ids := make([]int, 0, len(d.threadNames))
	for id := range d.threadNames {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (d *ScriptedDebugger) sortedBreakpointNumbers() []int {
	numbers := make([]int, 0, len(d.breakpoints))
	for n := range d.breakpoints {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)
	return numbers
}

func (d *ScriptedDebugger) knownSource(path string) bool {
	for _, s := range d.scenario.Sources {
		if s == path {
			return true
		}
	}
	for _, frames := range d.stacks {
		for _, f := range frames {
			if f.Path == path {
				return true
			}
		}
	}
	return false
}

func (d *ScriptedDebugger) knownFunction(name string) bool {
	for _, s := range d.scenario.Functions {
		if s == name {
			return true
		}
	}
	for _, frames := range d.stacks {
		for _, f := range frames {
			if f.Function == name {
				return true
			}
		}
	}
	return false
}
