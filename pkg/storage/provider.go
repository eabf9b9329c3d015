package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// ErrKind 存储错误分类
type ErrKind int

const (
	ErrTransient  ErrKind = iota // 网络/IO 故障，调用方可重试
	ErrNotFound                  // 对象不存在
	ErrPermission                // 凭证或权限问题，重试无意义
	ErrCorrupt                   // 旁路记录损坏，数据完整性事件，重试无意义
)

// Error 统一的存储层错误
type Error struct {
	Kind ErrKind
	Op   string // 操作名 (put/get/list...)
	Path string
	Raw  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Path, e.Raw)
}

func (e *Error) Unwrap() error {
	return e.Raw
}

// NewError 构造存储错误
func NewError(kind ErrKind, op, path string, raw error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Raw: raw}
}

// IsNotFound 判断是否为对象不存在
func IsNotFound(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == ErrNotFound
}

// IsTransient 判断是否为可重试错误
func IsTransient(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == ErrTransient
}

// IsCorrupt 判断是否为数据完整性错误
func IsCorrupt(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == ErrCorrupt
}

// Metadata 制品的旁路元数据 (签名/发布时间/更新说明)
// Notes 在读路径上始终是解码后的 UTF-8 文本
type Metadata struct {
	Signature   string    `json:"signature"`
	PublishDate time.Time `json:"publishDate"`
	Notes       string    `json:"notes"`
}

// Backend 统一的存储后端契约
// 启动时按配置二选一 (Local / MinIO)，运行期不混用
type Backend interface {
	// Put 写入内容并关联元数据
	// 对调用方而言内容与元数据是一个整体：元数据写失败时内容必须回退
	// 覆盖已存在的 path 不报错 (版本唯一性由 Key 方案保证，不在这一层)
	Put(ctx context.Context, path string, data io.Reader, size int64, meta *Metadata) error

	// Get 获取文件流，对象不存在返回 ErrNotFound
	Get(ctx context.Context, path string) (io.ReadCloser, error)

	// Exists 判断对象是否存在，"不存在"不是错误
	Exists(ctx context.Context, path string) (bool, error)

	// GetMetadata 读取旁路元数据，不存在时返回 (nil, nil)
	GetMetadata(ctx context.Context, path string) (*Metadata, error)

	// ListChildren 返回 prefix 下一层的子名称 (目录式列举，非递归)
	// 无重复；空结果不是错误
	ListChildren(ctx context.Context, prefix string) ([]string, error)

	// Delete 删除内容及其元数据旁路记录
	Delete(ctx context.Context, path string) error
}
