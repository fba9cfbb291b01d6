package breakpoints

import (
	"strings"

	"github.com/fansqz/midas-dap/debugger"
)

// Interpolate 把日志消息中的{expr}替换成表达式在frame上的值
// {{和}}输出字面的花括号，求值失败时输出<错误信息>
func Interpolate(backend debugger.Debugger, frame debugger.Frame, message string) string {
	var b strings.Builder
	for i := 0; i < len(message); i++ {
		ch := message[i]
		switch {
		case ch == '{' && i+1 < len(message) && message[i+1] == '{':
			b.WriteByte('{')
			i++
		case ch == '}' && i+1 < len(message) && message[i+1] == '}':
			b.WriteByte('}')
			i++
		case ch == '{':
			end := strings.IndexByte(message[i+1:], '}')
			if end < 0 {
				b.WriteString(message[i:])
				return b.String()
			}
			b.WriteString(evaluate(backend, frame, message[i+1:i+1+end]))
			i += end + 1
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}

func evaluate(backend debugger.Debugger, frame debugger.Frame, expression string) string {
	value, err := backend.Evaluate(frame, strings.TrimSpace(expression))
	if err != nil {
		return "<" + err.Error() + ">"
	}
	s, err := value.Format(false)
	if err != nil {
		return "<" + err.Error() + ">"
	}
	return s
}
