// Package repository 提供数据访问层的实现
// 未找到记录时查询方法返回 (nil, nil)，由 service 层决定是否视为错误
package repository

import (
	"errors"

	"gorm.io/gorm"
)

// first 执行 First 查询，把 gorm.ErrRecordNotFound 转换为 nil 结果
func first[T any](q *gorm.DB) (*T, error) {
	var out T
	if err := q.First(&out).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}
