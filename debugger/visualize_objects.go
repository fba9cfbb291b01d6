package debugger

// Formattable 可以提供可视化器的值
// 后端的值对象可以选择实现这个接口，用来改写子节点的展示
type Formattable interface {
	Visualize() (Visualizer, bool)
}

// Visualizer 后端提供的格式化器
// HasChildren为true时使用Children的结果，否则只展示ToString的结果
type Visualizer interface {
	HasChildren() bool
	Children() ([]NamedValue, error)
	ToString() (string, error)
}

// NamedValue 可视化器返回的一个子节点
type NamedValue struct {
	Name  string
	Value Value
}

// VisualizerOf 返回值的可视化器
func VisualizerOf(value Value) (Visualizer, bool) {
	f, ok := value.(Formattable)
	if !ok {
		return nil, false
	}
	return f.Visualize()
}
