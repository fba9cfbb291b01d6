package breakpoints

import (
	"fmt"
	"sort"

	"github.com/fansqz/midas-dap/debugger"
	"github.com/fansqz/midas-dap/utils"
	"github.com/sirupsen/logrus"
)

// Kind 断点类型，每种类型独立维护
type Kind int

const (
	SourceKind Kind = iota
	FunctionKind
	AddressKind
	DataKind
	ExceptionKind
)

func (k Kind) String() string {
	switch k {
	case SourceKind:
		return "source"
	case FunctionKind:
		return "function"
	case AddressKind:
		return "instruction"
	case DataKind:
		return "data"
	case ExceptionKind:
		return "exception"
	}
	return "unknown"
}

// Request 客户端请求的一个断点
type Request struct {
	Path       string
	Line       int
	Function   string
	Address    uint64
	Offset     int64
	DataID     string
	AccessType debugger.AccessType
	Filter     string

	Condition    string
	HitCondition string
	LogMessage   string
}

// key 同一种类型中标识一个断点，条件不同的断点是不同的断点
func (r Request) key(kind Kind) string {
	switch kind {
	case SourceKind:
		return fmt.Sprintf("%s:%d|%q|%q|%q", r.Path, r.Line, r.Condition, r.HitCondition, r.LogMessage)
	case FunctionKind:
		return fmt.Sprintf("%s|%q|%q", r.Function, r.Condition, r.HitCondition)
	case AddressKind:
		return fmt.Sprintf("0x%x+%d|%q|%q", r.Address, r.Offset, r.Condition, r.HitCondition)
	case DataKind:
		return fmt.Sprintf("%s|%s|%q|%q", r.DataID, r.AccessType, r.Condition, r.HitCondition)
	case ExceptionKind:
		return fmt.Sprintf("%s|%q", r.Filter, r.Condition)
	}
	return ""
}

// Record 已经在后端创建的断点
type Record struct {
	kind    Kind
	key     string
	request Request
	backend debugger.Breakpoint
}

func (r *Record) Kind() Kind {
	return r.kind
}

func (r *Record) Request() Request {
	return r.request
}

func (r *Record) Backend() debugger.Breakpoint {
	return r.backend
}

// Result 返回给客户端的断点状态
type Result struct {
	ID       int
	Verified bool
	Message  string
	Path     string
	Line     int
	Address  uint64
}

// bucket 源码断点按文件分组，其他类型各一组
type bucket struct {
	kind Kind
	path string
}

// BreakpointSet 客户端每次发送某种类型的完整断点列表，与上一次的列表对比后只创建新增的、删除消失的
type BreakpointSet struct {
	backend debugger.Debugger
	hits    *HitConditionEvaluator

	buckets  map[bucket]map[string]*Record
	byNumber map[int]*Record
}

func NewBreakpointSet(backend debugger.Debugger) *BreakpointSet {
	return &BreakpointSet{
		backend:  backend,
		hits:     NewHitConditionEvaluator(),
		buckets:  map[bucket]map[string]*Record{},
		byNumber: map[int]*Record{},
	}
}

// SetSourceBreakpoints 设置一个文件的源码断点
func (s *BreakpointSet) SetSourceBreakpoints(path string, requests []Request) []Result {
	for i := range requests {
		requests[i].Path = path
	}
	return s.reconcile(bucket{kind: SourceKind, path: path}, requests)
}

func (s *BreakpointSet) SetFunctionBreakpoints(requests []Request) []Result {
	return s.reconcile(bucket{kind: FunctionKind}, requests)
}

func (s *BreakpointSet) SetInstructionBreakpoints(requests []Request) []Result {
	return s.reconcile(bucket{kind: AddressKind}, requests)
}

func (s *BreakpointSet) SetDataBreakpoints(requests []Request) []Result {
	return s.reconcile(bucket{kind: DataKind}, requests)
}

func (s *BreakpointSet) SetExceptionBreakpoints(requests []Request) []Result {
	return s.reconcile(bucket{kind: ExceptionKind}, requests)
}

// reconcile 保留键相同的断点，删除不再需要的，创建新的
// 结果和请求一一对应
func (s *BreakpointSet) reconcile(b bucket, requests []Request) []Result {
	previous := s.buckets[b]
	desired := make(map[string]bool, len(requests))
	for _, r := range requests {
		desired[r.key(b.kind)] = true
	}
	for _, key := range sortedKeys(previous) {
		if desired[key] {
			continue
		}
		s.remove(previous[key])
	}

	current := make(map[string]*Record, len(requests))
	results := make([]Result, 0, len(requests))
	for _, r := range requests {
		key := r.key(b.kind)
		record, ok := current[key]
		if !ok {
			record, ok = previous[key]
		}
		if !ok {
			var err error
			record, err = s.create(b.kind, key, r)
			if err != nil {
				logrus.Debugf("[BreakpointSet] create %s breakpoint %s fail, err = %v", b.kind, key, err)
				results = append(results, Result{Verified: false, Message: err.Error(), Path: r.Path, Line: r.Line})
				continue
			}
		}
		current[key] = record
		results = append(results, s.result(record))
	}
	if len(current) == 0 {
		delete(s.buckets, b)
	} else {
		s.buckets[b] = current
	}
	return results
}

func (s *BreakpointSet) create(kind Kind, key string, r Request) (*Record, error) {
	if err := s.hits.Validate(r.HitCondition); err != nil {
		return nil, err
	}
	var bp debugger.Breakpoint
	var err error
	switch kind {
	case SourceKind:
		bp, err = s.backend.CreateSourceBreakpoint(r.Path, r.Line)
	case FunctionKind:
		bp, err = s.backend.CreateFunctionBreakpoint(r.Function)
	case AddressKind:
		var address uint64
		if address, err = utils.OffsetAddress(r.Address, r.Offset); err == nil {
			bp, err = s.backend.CreateAddressBreakpoint(address)
		}
	case DataKind:
		bp, err = s.backend.CreateWatchpoint(r.DataID, r.AccessType)
	case ExceptionKind:
		bp, err = s.backend.CreateCatchpoint(r.Filter)
	default:
		err = fmt.Errorf("unknown breakpoint kind %d", kind)
	}
	if err != nil {
		return nil, err
	}
	if r.Condition != "" {
		if err = bp.SetCondition(r.Condition); err != nil {
			if derr := s.backend.DeleteBreakpoint(bp); derr != nil {
				logrus.Warnf("[BreakpointSet] delete breakpoint %d fail, err = %v", bp.Number(), derr)
			}
			return nil, err
		}
	}
	record := &Record{kind: kind, key: key, request: r, backend: bp}
	s.byNumber[bp.Number()] = record
	return record, nil
}

func (s *BreakpointSet) remove(record *Record) {
	delete(s.byNumber, record.backend.Number())
	if err := s.backend.DeleteBreakpoint(record.backend); err != nil {
		logrus.Warnf("[BreakpointSet] delete breakpoint %d fail, err = %v", record.backend.Number(), err)
	}
}

func (s *BreakpointSet) result(record *Record) Result {
	res := Result{
		ID:       record.backend.Number(),
		Verified: !record.backend.Pending(),
		Path:     record.request.Path,
		Line:     record.request.Line,
	}
	if loc, ok := record.backend.Location(); ok {
		if loc.Path != "" {
			res.Path = loc.Path
			res.Line = loc.Line
		}
		res.Address = loc.PC
	}
	if !res.Verified {
		res.Message = "breakpoint is pending"
	}
	return res
}

// Describe 后端通知断点变化时，获取客户端看到的断点状态
func (s *BreakpointSet) Describe(number int) (Result, bool) {
	record, ok := s.byNumber[number]
	if !ok {
		return Result{}, false
	}
	return s.result(record), true
}

// Lookup 根据后端的断点编号获取记录
func (s *BreakpointSet) Lookup(number int) (*Record, bool) {
	record, ok := s.byNumber[number]
	return record, ok
}

// Len 当前的断点数量
func (s *BreakpointSet) Len() int {
	return len(s.byNumber)
}

// Clear 删除所有断点
func (s *BreakpointSet) Clear() {
	for _, number := range sortedNumbers(s.byNumber) {
		s.remove(s.byNumber[number])
	}
	s.buckets = map[bucket]map[string]*Record{}
}

// Decision 程序停在断点时的处理结果
type Decision struct {
	// Resume 没有需要停下来的断点，继续运行
	Resume bool
	// Logs 日志断点输出的消息
	Logs []string
}

// OnStop 判断是否需要真正停止
// 只要有一个断点没有日志消息并且满足命中条件就停止；不是由客户端断点引起的停止总是停止
func (s *BreakpointSet) OnStop(frame debugger.Frame, numbers []int) Decision {
	if len(numbers) == 0 {
		return Decision{}
	}
	decision := Decision{Resume: true}
	for _, number := range numbers {
		record, ok := s.byNumber[number]
		if !ok {
			decision.Resume = false
			continue
		}
		ok, err := s.hits.Evaluate(record.request.HitCondition, record.backend.HitCount())
		if err != nil {
			logrus.Warnf("[BreakpointSet] breakpoint %d: %v", number, err)
			ok = true
		}
		if !ok {
			continue
		}
		if record.request.LogMessage != "" {
			decision.Logs = append(decision.Logs, Interpolate(s.backend, frame, record.request.LogMessage))
			continue
		}
		decision.Resume = false
	}
	return decision
}

func sortedKeys(m map[string]*Record) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedNumbers(m map[int]*Record) []int {
	numbers := make([]int, 0, len(m))
	for n := range m {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)
	return numbers
}
