package variables

import (
	"fmt"
	"strings"

	"github.com/fansqz/midas-dap/constants"
	"github.com/fansqz/midas-dap/debugger"
	e "github.com/fansqz/midas-dap/error"
	"github.com/sirupsen/logrus"
)

// Kind 容器类型
type Kind int

const (
	ScopeKind Kind = iota
	StructKind
	BaseClassKind
	StaticKind
	RegisterKind
)

func (k Kind) String() string {
	switch k {
	case ScopeKind:
		return "scope"
	case StructKind:
		return "struct"
	case BaseClassKind:
		return "baseclass"
	case StaticKind:
		return "static"
	case RegisterKind:
		return "register"
	}
	return "unknown"
}

const (
	optimizedOutDisplay = "<optimized out>"
	baseClassName       = "(base)"
)

// Owner 子容器的所属者，负责分配引用并登记
// 栈帧和执行上下文（自由监视表达式）都是Owner
type Owner interface {
	Adopt(c *ValueContainer) int
	// Disown 释放不再展示的子容器的引用
	Disown(c *ValueContainer)
}

// Format 值的显示格式
type Format struct {
	Hex bool
}

// Range 数组类型子节点的范围，End为0表示到末尾
type Range struct {
	Start int
	End   int
}

// Row 展示给客户端的一行变量
type Row struct {
	Name            string
	Value           string
	Type            string
	EvaluateName    string
	Handle          int
	MemoryReference string
}

// child 解析出的子节点，每次展示时再按当前格式渲染成Row
type child struct {
	name         string
	evaluateName string
	value        debugger.Value
	// display 固定的展示内容，不从value格式化
	display   string
	container *ValueContainer
	err       error
}

// ValueContainer 可展开的容器
// 作用域、结构体、基类、静态成员和寄存器组都用这一个类型表示，根据kind区分
type ValueContainer struct {
	kind         Kind
	name         string
	evaluateName string
	handle       int
	owner        Owner

	// ScopeKind / RegisterKind
	scope constants.ScopeName
	frame debugger.Frame
	group debugger.RegisterGroup

	// StructKind / BaseClassKind / StaticKind
	value debugger.Value
	field debugger.Field
	rng   *Range

	watched bool
	// resolved 为true时children是缓存的结果，可视化器最多只调用一次
	resolved bool
	children []child
	// kids 上一次展开时分配了引用的子容器，重新展开时按名字复用
	kids map[string]*ValueContainer
	next map[string]*ValueContainer
}

// NewScope 栈帧的变量作用域
func NewScope(owner Owner, scope constants.ScopeName, frame debugger.Frame) *ValueContainer {
	return &ValueContainer{
		kind:  ScopeKind,
		name:  string(scope),
		scope: scope,
		frame: frame,
		owner: owner,
	}
}

// NewRegisterGroup 栈帧的一个寄存器组
func NewRegisterGroup(owner Owner, frame debugger.Frame, group debugger.RegisterGroup) *ValueContainer {
	return &ValueContainer{
		kind:  RegisterKind,
		name:  group.Name,
		frame: frame,
		group: group,
		owner: owner,
	}
}

// NewStructValue 可展开的值
func NewStructValue(owner Owner, name string, evaluateName string, value debugger.Value) *ValueContainer {
	return &ValueContainer{
		kind:         StructKind,
		name:         name,
		evaluateName: evaluateName,
		value:        value,
		owner:        owner,
	}
}

// NewBaseClassValue 基类子对象，derived为派生类对象
func NewBaseClassValue(owner Owner, derived debugger.Value, field debugger.Field, evaluateName string) *ValueContainer {
	return &ValueContainer{
		kind:         BaseClassKind,
		name:         baseClassName,
		evaluateName: evaluateName,
		value:        derived,
		field:        field,
		owner:        owner,
	}
}

// NewStaticValue 静态成员，直到被展开才读取
func NewStaticValue(owner Owner, parent debugger.Value, field debugger.Field, evaluateName string) *ValueContainer {
	return &ValueContainer{
		kind:         StaticKind,
		name:         field.Name,
		evaluateName: evaluateName,
		value:        parent,
		field:        field,
		owner:        owner,
	}
}

func (c *ValueContainer) Kind() Kind {
	return c.kind
}

func (c *ValueContainer) Name() string {
	return c.name
}

func (c *ValueContainer) Handle() int {
	return c.handle
}

func (c *ValueContainer) EvaluateName() string {
	return c.evaluateName
}

func (c *ValueContainer) Value() debugger.Value {
	return c.value
}

func (c *ValueContainer) Watched() bool {
	return c.watched
}

// SetWatched 标记为监视表达式，子节点也会被标记
func (c *ValueContainer) SetWatched() {
	c.watched = true
}

// SetRange 限制数组子节点的范围
func (c *ValueContainer) SetRange(rng *Range) {
	c.rng = rng
	c.resolved = false
	c.children = nil
}

// Rebind 重新求值后替换值，清空缓存
// 子容器保留，下次展开时同名的子节点沿用原来的引用
func (c *ValueContainer) Rebind(value debugger.Value) {
	c.value = value
	c.resolved = false
	c.children = nil
}

// ChildEvaluateName 子节点的表达式
func (c *ValueContainer) ChildEvaluateName(name string) string {
	switch c.kind {
	case ScopeKind:
		return name
	case RegisterKind:
		return "$" + name
	}
	if c.evaluateName == "" {
		return name
	}
	if c.value != nil && c.value.Type().Kind == debugger.ArrayKind {
		return fmt.Sprintf("%s[%s]", c.evaluateName, name)
	}
	return fmt.Sprintf("%s.%s", c.evaluateName, name)
}

// Contents 展开容器
// 读取失败不会返回错误，而是返回一行描述失败原因的结果
func (c *ValueContainer) Contents(format Format) []Row {
	children, err := c.resolve()
	if err != nil {
		logrus.Debugf("[ValueContainer] resolve %s %s fail, err = %v", c.kind, c.name, err)
		return []Row{sentinelRow("error", err)}
	}
	rows := make([]Row, 0, len(children))
	for _, ch := range children {
		rows = append(rows, ch.row(format))
	}
	return rows
}

func (c *ValueContainer) resolve() ([]child, error) {
	// 作用域和寄存器每次都重新读取
	volatile := c.kind == ScopeKind || c.kind == RegisterKind
	if c.resolved && !volatile {
		return c.children, nil
	}
	c.next = map[string]*ValueContainer{}
	var children []child
	var err error
	switch c.kind {
	case ScopeKind:
		children, err = c.scopeChildren()
	case RegisterKind:
		children, err = c.registerChildren()
	case StructKind:
		children, err = c.resolveChildren(c.value)
	case BaseClassKind:
		var sub debugger.Value
		if sub, err = c.value.Field(c.field); err == nil {
			children, err = c.resolveChildren(sub)
		}
	case StaticKind:
		children, err = c.staticChildren()
	default:
		err = fmt.Errorf("unknown container kind %d", c.kind)
	}
	c.retire(err != nil)
	if err != nil {
		return nil, err
	}
	if !volatile {
		c.children = children
		c.resolved = true
	}
	return children, nil
}

// retire 上一次展开的子容器中没有被复用的交还给所属者，展开失败时保留
func (c *ValueContainer) retire(failed bool) {
	for key, old := range c.kids {
		cur, ok := c.next[key]
		switch {
		case ok && cur == old:
		case !ok && failed:
			c.next[key] = old
		default:
			old.disown()
		}
	}
	c.kids = c.next
	c.next = nil
}

// disown 释放容器和它的所有后代
func (c *ValueContainer) disown() {
	for _, kid := range c.kids {
		kid.disown()
	}
	c.kids = nil
	c.owner.Disown(c)
}

func (c *ValueContainer) staticChildren() ([]child, error) {
	v, err := c.value.Field(c.field)
	if err != nil {
		return nil, e.NewBackendReadError(c.evaluateName, err)
	}
	if !v.Type().Structured() {
		return []child{{name: "value", evaluateName: c.evaluateName, value: v}}, nil
	}
	return c.resolveChildren(v)
}

// resolveChildren 可视化器优先，否则按成员展开
func (c *ValueContainer) resolveChildren(value debugger.Value) ([]child, error) {
	if viz, ok := debugger.VisualizerOf(value); ok {
		if viz.HasChildren() {
			named, err := viz.Children()
			if err != nil {
				return nil, e.NewBackendReadError(c.evaluateName, err)
			}
			children := make([]child, 0, len(named))
			for _, nv := range named {
				children = append(children, c.valueChild(nv.Name, "", nv.Value))
			}
			return children, nil
		}
		s, err := viz.ToString()
		if err != nil {
			return nil, e.NewBackendReadError(c.evaluateName, err)
		}
		return []child{{name: "value", display: s}}, nil
	}

	if value.Type().Kind == debugger.PointerKind {
		target, err := value.Dereference()
		if err != nil {
			return []child{{name: "*" + c.name, err: e.NewBackendReadError("*"+c.evaluateName, err)}}, nil
		}
		evaluateName := ""
		if c.evaluateName != "" {
			evaluateName = "*" + c.evaluateName
		}
		return []child{c.valueChild("*"+c.name, evaluateName, target)}, nil
	}

	fields, err := value.Fields()
	if err != nil {
		return nil, e.NewBackendReadError(c.evaluateName, err)
	}
	if value.Type().Kind == debugger.ArrayKind && c.rng != nil {
		fields = applyRange(fields, c.rng)
	}
	children := make([]child, 0, len(fields))
	for _, f := range fields {
		switch {
		case f.BaseClass:
			// 基类子对象和派生类对象使用同一个表达式
			base := NewBaseClassValue(c.owner, value, f, c.evaluateName)
			children = append(children, c.attach(child{name: baseClassName, display: f.Type.Name, container: base}))
		case f.Static:
			st := NewStaticValue(c.owner, value, f, c.ChildEvaluateName(f.Name))
			children = append(children, c.attach(child{name: f.Name, display: "(static) " + f.Type.Name, container: st}))
		case isSynthesized(f.Name):
			continue
		default:
			fv, err := value.Field(f)
			if err != nil {
				children = append(children, child{name: f.Name, err: e.NewBackendReadError(c.ChildEvaluateName(f.Name), err)})
				continue
			}
			children = append(children, c.valueChild(f.Name, c.ChildEvaluateName(f.Name), fv))
		}
	}
	return children, nil
}

// valueChild 基础类型直接展示，可展开的类型分配一个子容器
func (c *ValueContainer) valueChild(name string, evaluateName string, value debugger.Value) child {
	ch := child{name: name, evaluateName: evaluateName, value: value}
	if !expandable(value) {
		return ch
	}
	ch.container = NewStructValue(c.owner, name, evaluateName, value)
	return c.attach(ch)
}

// attach 上一次展开时有同名同类型的子容器就沿用它的引用，只替换值
func (c *ValueContainer) attach(ch child) child {
	key := fmt.Sprintf("%s:%s", ch.container.kind, ch.name)
	for i := 1; c.next[key] != nil; i++ {
		key = fmt.Sprintf("%s:%s#%d", ch.container.kind, ch.name, i)
	}
	if old, ok := c.kids[key]; ok {
		old.evaluateName = ch.container.evaluateName
		old.field = ch.container.field
		old.Rebind(ch.container.value)
		ch.container = old
		c.next[key] = old
		return ch
	}
	c.next[key] = ch.container
	return c.adopt(ch)
}

func (c *ValueContainer) adopt(ch child) child {
	if c.watched {
		ch.container.watched = true
	}
	c.owner.Adopt(ch.container)
	return ch
}

func (ch child) row(format Format) Row {
	row := Row{Name: ch.name, EvaluateName: ch.evaluateName}
	if ch.err != nil {
		r := sentinelRow(ch.name, ch.err)
		r.EvaluateName = ch.evaluateName
		return r
	}
	if ch.container != nil {
		row.Handle = ch.container.handle
	}
	if ch.value == nil {
		row.Value = ch.display
		if ch.container != nil && ch.container.kind != StaticKind {
			row.Type = ch.display
		}
		return row
	}
	row.Type = ch.value.Type().Name
	if addr, ok := ch.value.Address(); ok {
		row.MemoryReference = fmt.Sprintf("0x%x", addr)
	}
	if ch.value.OptimizedOut() {
		row.Value = optimizedOutDisplay
		row.Handle = 0
		return row
	}
	if ch.container != nil && ch.value.Type().Kind != debugger.PointerKind {
		row.Value = ch.value.Type().Name
		return row
	}
	s, err := ch.value.Format(format.Hex)
	if err != nil {
		r := sentinelRow(ch.name, e.NewBackendReadError(ch.evaluateName, err))
		r.EvaluateName = ch.evaluateName
		return r
	}
	row.Value = s
	return row
}

func sentinelRow(name string, err error) Row {
	return Row{Name: name, Value: fmt.Sprintf("<%v>", err)}
}

func expandable(value debugger.Value) bool {
	t := value.Type()
	if !t.Structured() || value.OptimizedOut() {
		return false
	}
	if t.Kind == debugger.PointerKind && value.IsNull() {
		return false
	}
	return true
}

// isSynthesized 编译器生成的符号，例如虚表指针
func isSynthesized(name string) bool {
	return name == "" || strings.HasPrefix(name, "_vptr") || strings.HasPrefix(name, "__vtbl") ||
		strings.HasPrefix(name, "__vla_")
}

func applyRange(fields []debugger.Field, rng *Range) []debugger.Field {
	start := rng.Start
	end := rng.End
	if start < 0 {
		start = 0
	}
	if start > len(fields) {
		start = len(fields)
	}
	if end <= 0 || end > len(fields) {
		end = len(fields)
	}
	if end < start {
		end = start
	}
	return fields[start:end]
}
