package breakpoints

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// hitEnv 命中条件的求值环境
type hitEnv struct {
	Hits int `expr:"hits"`
}

// HitConditionEvaluator 命中条件求值，编译结果按表达式缓存
//
// 支持的写法：
//
//	3        命中次数达到3次之后每次都停止
//	== 3     只在第3次命中时停止
//	> 3      比较运算符，省略左边的hits
//	% 2      每命中2次停止一次
//	hits > 1 && hits < 5
type HitConditionEvaluator struct {
	mutex sync.RWMutex
	cache map[string]*vm.Program
}

func NewHitConditionEvaluator() *HitConditionEvaluator {
	return &HitConditionEvaluator{cache: map[string]*vm.Program{}}
}

// Evaluate 命中次数是否满足条件，空条件总是满足
func (h *HitConditionEvaluator) Evaluate(condition string, hits int) (bool, error) {
	if strings.TrimSpace(condition) == "" {
		return true, nil
	}
	program, err := h.compile(condition)
	if err != nil {
		return false, err
	}
	out, err := expr.Run(program, hitEnv{Hits: hits})
	if err != nil {
		return false, fmt.Errorf("evaluate hit condition %q: %w", condition, err)
	}
	result, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("hit condition %q must be boolean, got %T", condition, out)
	}
	return result, nil
}

// Validate 在设置断点时检查条件能否编译
func (h *HitConditionEvaluator) Validate(condition string) error {
	if strings.TrimSpace(condition) == "" {
		return nil
	}
	_, err := h.compile(condition)
	return err
}

func (h *HitConditionEvaluator) compile(condition string) (*vm.Program, error) {
	h.mutex.RLock()
	program, ok := h.cache[condition]
	h.mutex.RUnlock()
	if ok {
		return program, nil
	}
	program, err := expr.Compile(normalizeHitCondition(condition), expr.Env(hitEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile hit condition %q: %w", condition, err)
	}
	h.mutex.Lock()
	h.cache[condition] = program
	h.mutex.Unlock()
	return program, nil
}

// CacheSize 缓存的表达式数量
func (h *HitConditionEvaluator) CacheSize() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.cache)
}

func normalizeHitCondition(condition string) string {
	c := strings.TrimSpace(condition)
	if _, err := strconv.Atoi(c); err == nil {
		return "hits >= " + c
	}
	switch {
	case strings.HasPrefix(c, "%"):
		return fmt.Sprintf("hits %% %s == 0", strings.TrimSpace(c[1:]))
	case strings.HasPrefix(c, "=") && !strings.HasPrefix(c, "=="):
		return "hits =" + c
	case strings.HasPrefix(c, ">"), strings.HasPrefix(c, "<"), strings.HasPrefix(c, "=="), strings.HasPrefix(c, "!="):
		return "hits " + c
	}
	return c
}
