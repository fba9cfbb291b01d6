package variables

import (
	"sync"

	e "github.com/fansqz/midas-dap/error"
)

// startReference 第一个分配出去的引用，0表示不可展开
const startReference = 1000

// ReferenceKey 引用所属的线程和栈帧
type ReferenceKey struct {
	ThreadID int
	FrameID  int
}

// ReferenceUtil 引用工具类
// 为可展开的容器分配引用，引用在一个会话内单调递增，不会复用
type ReferenceUtil struct {
	mutex      sync.RWMutex
	nextRef    int
	containers map[int]*ValueContainer
	keys       map[int]ReferenceKey
}

func NewReferenceUtil() *ReferenceUtil {
	return &ReferenceUtil{
		nextRef:    startReference,
		containers: map[int]*ValueContainer{},
		keys:       map[int]ReferenceKey{},
	}
}

// Allocate 为容器分配一个新的引用
func (r *ReferenceUtil) Allocate(c *ValueContainer) int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	ref := r.nextRef
	r.nextRef++
	r.containers[ref] = c
	c.handle = ref
	return ref
}

// Resolve 根据引用获取容器
func (r *ReferenceUtil) Resolve(ref int) (*ValueContainer, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	c, ok := r.containers[ref]
	if !ok {
		return nil, e.NewInvalidReferenceError(ref)
	}
	return c, nil
}

// Bind 记录引用所属的线程和栈帧
func (r *ReferenceUtil) Bind(ref int, threadID int, frameID int) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if _, ok := r.containers[ref]; !ok {
		return
	}
	r.keys[ref] = ReferenceKey{ThreadID: threadID, FrameID: frameID}
}

// LookupKey 获取引用所属的线程和栈帧，自由监视表达式没有所属栈帧
func (r *ReferenceUtil) LookupKey(ref int) (ReferenceKey, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	key, ok := r.keys[ref]
	return key, ok
}

// Release 释放引用，之后Resolve会返回InvalidReference
func (r *ReferenceUtil) Release(refs ...int) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	for _, ref := range refs {
		delete(r.containers, ref)
		delete(r.keys, ref)
	}
}

// Reset 清空所有引用，只在会话完全重置时调用
// nextRef不会回退，客户端手里的旧引用不会和新引用冲突
func (r *ReferenceUtil) Reset() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.containers = map[int]*ValueContainer{}
	r.keys = map[int]ReferenceKey{}
}

// Len 当前存活的引用数量
func (r *ReferenceUtil) Len() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.containers)
}
