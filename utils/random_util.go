package utils

import (
	"fmt"
	"path"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

func GetUUID() string {
	u1, err := uuid.NewUUID()
	if err != nil {
		logrus.Warnf("[GetUUID] generate time based uuid fail, err = %v", err)
		return uuid.NewString()
	}
	return u1.String()
}

// GetSocketPaths 生成命令通道和事件通道的unix socket路径
func GetSocketPaths(dir string) (string, string) {
	id := GetUUID()
	return path.Join(dir, fmt.Sprintf("midas-%s-commands", id)), path.Join(dir, fmt.Sprintf("midas-%s-events", id))
}
