package constants

// BackendType 调试后端类型
type BackendType string

const (
	// ScriptedBackend 由场景文件驱动的进程内后端
	ScriptedBackend BackendType = "scripted"
)
