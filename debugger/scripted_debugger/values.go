package scripted_debugger

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/fansqz/midas-dap/debugger"
)

const (
	primitiveKind = "primitive"
	structKind    = "struct"
	pointerKind   = "pointer"
	arrayKind     = "array"
)

// value 场景中的值
type value struct {
	d    *ScriptedDebugger
	spec *ValueSpec
}

func newValue(d *ScriptedDebugger, spec *ValueSpec) *value {
	return &value{d: d, spec: spec}
}

func (v *value) Type() debugger.Type {
	return debugger.Type{Name: v.spec.Type, Kind: typeKind(v.spec.Kind)}
}

func typeKind(kind string) debugger.TypeKind {
	switch kind {
	case structKind:
		return debugger.StructKind
	case pointerKind:
		return debugger.PointerKind
	case arrayKind:
		return debugger.ArrayKind
	}
	return debugger.PrimitiveKind
}

func (v *value) Format(hex bool) (string, error) {
	if v.spec.Unreadable != "" {
		return "", errors.New(v.spec.Unreadable)
	}
	switch v.spec.Kind {
	case pointerKind:
		if v.spec.Target == nil {
			return "0x0", nil
		}
		return fmt.Sprintf("0x%x", v.spec.Target.Address), nil
	case structKind, arrayKind:
		return fmt.Sprintf("{%s}", v.spec.Type), nil
	}
	if hex {
		if n, err := strconv.ParseInt(v.spec.Value, 0, 64); err == nil {
			return fmt.Sprintf("0x%x", n), nil
		}
	}
	return v.spec.Value, nil
}

func (v *value) OptimizedOut() bool {
	return v.spec.OptimizedOut
}

func (v *value) IsNull() bool {
	return v.spec.Kind == pointerKind && v.spec.Target == nil
}

func (v *value) Fields() ([]debugger.Field, error) {
	if v.spec.Unreadable != "" {
		return nil, errors.New(v.spec.Unreadable)
	}
	fields := make([]debugger.Field, 0, len(v.spec.Fields))
	for i, fs := range v.spec.Fields {
		name := fs.Name
		if v.spec.Kind == arrayKind {
			name = strconv.Itoa(i)
		}
		fields = append(fields, debugger.Field{
			Name:      name,
			Type:      debugger.Type{Name: fs.Type, Kind: typeKind(fs.Kind)},
			BaseClass: fs.BaseClass,
			Static:    fs.Static,
			BitPos:    i * 32,
		})
	}
	return fields, nil
}

func (v *value) Field(field debugger.Field) (debugger.Value, error) {
	fs := v.findField(field.Name)
	if fs == nil {
		return nil, fmt.Errorf("There is no member named %s.", field.Name)
	}
	if fs.Unreadable != "" {
		return nil, errors.New(fs.Unreadable)
	}
	return newValue(v.d, fs), nil
}

func (v *value) findField(name string) *ValueSpec {
	if v.spec.Kind == arrayKind {
		i, err := strconv.Atoi(name)
		if err != nil || i < 0 || i >= len(v.spec.Fields) {
			return nil
		}
		return v.spec.Fields[i]
	}
	for _, fs := range v.spec.Fields {
		if fs.Name == name {
			return fs
		}
	}
	return nil
}

func (v *value) Dereference() (debugger.Value, error) {
	if v.spec.Kind != pointerKind {
		return nil, fmt.Errorf("Attempt to take contents of a non-pointer value.")
	}
	if v.spec.Target == nil {
		return nil, fmt.Errorf("Cannot access memory at address 0x0")
	}
	return newValue(v.d, v.spec.Target), nil
}

func (v *value) Address() (uint64, bool) {
	return v.spec.Address, v.spec.Address != 0
}

// Visualize 场景中声明了可视化器的值才有可视化器
func (v *value) Visualize() (debugger.Visualizer, bool) {
	if v.spec.Visualizer == nil {
		return nil, false
	}
	v.d.visualizeCalls.Add(1)
	return &visualizer{d: v.d, spec: v.spec.Visualizer}, true
}

type visualizer struct {
	d    *ScriptedDebugger
	spec *VisualizerSpec
}

func (z *visualizer) HasChildren() bool {
	return len(z.spec.Children) > 0
}

func (z *visualizer) Children() ([]debugger.NamedValue, error) {
	children := make([]debugger.NamedValue, 0, len(z.spec.Children))
	for _, c := range z.spec.Children {
		children = append(children, debugger.NamedValue{Name: c.Name, Value: newValue(z.d, c)})
	}
	return children, nil
}

func (z *visualizer) ToString() (string, error) {
	return z.spec.String, nil
}
