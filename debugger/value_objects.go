package debugger

// Frame 后端的一个栈帧
type Frame interface {
	// Equal 判断两个栈帧是否指向同一个物理栈帧
	Equal(other Frame) bool
	// Older 调用者栈帧，最外层时返回nil
	Older() (Frame, error)
	// Select 切换后端焦点到该栈帧
	Select() error
	// Level 栈帧深度，0为最内层
	Level() int
	// Function 函数名称，没有符号信息时为空
	Function() string
	Location() Location
	// Blocks 词法块列表，从最内层到函数的顶层块
	Blocks() ([]Block, error)
	// StaticSymbols 文件级别的静态变量
	StaticSymbols() ([]Symbol, error)
	ReadVariable(symbol Symbol) (Value, error)
	// RegisterGroups 该栈帧架构下的寄存器组
	RegisterGroups() ([]RegisterGroup, error)
	ReadRegister(name string) (Value, error)
}

// TypeKind 类型分类
type TypeKind int

const (
	PrimitiveKind TypeKind = iota
	StructKind
	PointerKind
	ArrayKind
)

// Type 值的类型
type Type struct {
	Name string
	Kind TypeKind
}

// Structured 是否可以展开
func (t Type) Structured() bool {
	return t.Kind != PrimitiveKind
}

// Field 结构体的成员
type Field struct {
	Name string
	Type Type
	// BaseClass 基类子对象
	BaseClass bool
	// Static 静态成员，没有位偏移
	Static bool
	BitPos int
}

// Value 后端的一个有类型的值
type Value interface {
	Type() Type
	// Format 格式化显示，hex为true时整数以16进制显示
	Format(hex bool) (string, error)
	OptimizedOut() bool
	// IsNull 空指针
	IsNull() bool
	Fields() ([]Field, error)
	// Field 读取成员，基类成员返回转换后的子对象
	Field(field Field) (Value, error)
	Dereference() (Value, error)
	Address() (uint64, bool)
}

// Breakpoint 后端创建的断点、观察点或捕获点
type Breakpoint interface {
	// Number 稳定的断点编号
	Number() int
	// Pending 断点还没有解析到具体位置
	Pending() bool
	Location() (Location, bool)
	Condition() string
	SetCondition(condition string) error
	Enabled() bool
	SetEnabled(enabled bool) error
	HitCount() int
}
