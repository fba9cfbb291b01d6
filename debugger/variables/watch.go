package variables

import (
	"github.com/fansqz/midas-dap/debugger"
)

// Watch 为监视表达式创建容器，已经存在时复用它的引用，只替换值
// 值不可展开时返回nil，之前的容器被释放
func Watch(owner Owner, existing *ValueContainer, expression string, value debugger.Value, rng *Range) *ValueContainer {
	if !expandable(value) {
		if existing != nil {
			existing.disown()
		}
		return nil
	}
	if existing != nil {
		existing.Rebind(value)
		existing.SetRange(rng)
		return existing
	}
	c := NewStructValue(owner, expression, expression, value)
	c.SetWatched()
	c.rng = rng
	owner.Adopt(c)
	return c
}

// RowOf 单个值的展示
func RowOf(name string, evaluateName string, value debugger.Value, c *ValueContainer, format Format) Row {
	return child{name: name, evaluateName: evaluateName, value: value, container: c}.row(format)
}
