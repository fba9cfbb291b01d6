package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseAddress 解析内存引用，支持0x开头的16进制和10进制
func ParseAddress(reference string) (uint64, error) {
	s := strings.TrimSpace(reference)
	if s == "" {
		return 0, fmt.Errorf("empty memory reference")
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return strconv.ParseUint(s[2:], 16, 64)
	}
	return strconv.ParseUint(s, 10, 64)
}

// FormatAddress 内存地址的展示形式
func FormatAddress(address uint64) string {
	return fmt.Sprintf("0x%x", address)
}

// OffsetAddress 地址加上有符号的偏移，溢出时返回错误
func OffsetAddress(address uint64, offset int64) (uint64, error) {
	if offset < 0 && uint64(-offset) > address {
		return 0, fmt.Errorf("address 0x%x with offset %d underflows", address, offset)
	}
	return uint64(int64(address) + offset), nil
}
