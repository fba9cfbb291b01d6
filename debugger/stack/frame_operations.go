package stack

import (
	"github.com/fansqz/midas-dap/debugger"
)

// takeNFrames 从frame开始向外取最多n个栈帧
func takeNFrames(frame debugger.Frame, n int) ([]debugger.Frame, error) {
	frames := make([]debugger.Frame, 0, n)
	for frame != nil && len(frames) < n {
		frames = append(frames, frame)
		older, err := frame.Older()
		if err != nil {
			return frames, err
		}
		frame = older
	}
	return frames, nil
}

// findFirstIdenticalFrames 在缓存的前bound个栈帧中查找第一个出现在采样中的栈帧
// 返回缓存中的下标x和采样中的下标y
func findFirstIdenticalFrames(cached []*StackFrame, sample []debugger.Frame, bound int) (int, int, bool) {
	for x := 0; x < len(cached) && x < bound; x++ {
		for y, f := range sample {
			if cached[x].IsSameFrame(f) {
				return x, y, true
			}
		}
	}
	return 0, 0, false
}

// countFrames 栈的深度，最多max层
func countFrames(frame debugger.Frame, max int) (int, error) {
	depth := 0
	for frame != nil && depth < max {
		depth++
		older, err := frame.Older()
		if err != nil {
			return depth, err
		}
		frame = older
	}
	return depth, nil
}
