package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const metaSuffix = ".meta.json"

// Local 本地文件系统后端
// 元数据以 <file>.meta.json 旁路文件形式存储
type Local struct {
	BaseDir   string
	opTimeout time.Duration
}

func NewLocal(baseDir string, opTimeout time.Duration) (*Local, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, NewError(ErrPermission, "init", baseDir, err)
	}
	return &Local{BaseDir: baseDir, opTimeout: opTimeout}, nil
}

func (l *Local) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.opTimeout > 0 {
		return context.WithTimeout(ctx, l.opTimeout)
	}
	return context.WithCancel(ctx)
}

// ctxReader 在每次 Read 前检查 ctx，让写入循环能响应取消和超时
// 文件系统调用本身不感知 ctx，只能在块间打断
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// resolve 拼接并校验绝对路径，拒绝越出 BaseDir 的 key
func (l *Local) resolve(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("unsafe key: %q", key)
	}
	return filepath.Join(l.BaseDir, clean), nil
}

func (l *Local) Put(ctx context.Context, path string, data io.Reader, size int64, meta *Metadata) error {
	ctx, cancel := l.withTimeout(ctx)
	defer cancel()
	if err := ctx.Err(); err != nil {
		return NewError(ErrTransient, "put", path, err)
	}

	fullPath, err := l.resolve(path)
	if err != nil {
		return NewError(ErrPermission, "put", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return mapFSErr("put", path, err)
	}

	// 1. 内容先写临时文件再 rename，读者不会看到半个文件
	tmp, err := os.CreateTemp(filepath.Dir(fullPath), ".upload-*")
	if err != nil {
		return mapFSErr("put", path, err)
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: data}); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return mapFSErr("put", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return mapFSErr("put", path, err)
	}
	if err := os.Rename(tmpName, fullPath); err != nil {
		os.Remove(tmpName)
		return mapFSErr("put", path, err)
	}

	// 2. 元数据写失败时补偿删除内容，避免"有内容无元数据"的残留
	metaBytes, err := json.Marshal(meta)
	if err == nil {
		err = os.WriteFile(fullPath+metaSuffix, metaBytes, 0644)
	}
	if err != nil {
		os.Remove(fullPath)
		return mapFSErr("put", path, err)
	}
	return nil
}

func (l *Local) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewError(ErrTransient, "get", path, err)
	}
	fullPath, err := l.resolve(path)
	if err != nil {
		return nil, NewError(ErrPermission, "get", path, err)
	}
	f, err := os.Open(fullPath)
	if err != nil {
		return nil, mapFSErr("get", path, err)
	}
	return f, nil
}

func (l *Local) Exists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, NewError(ErrTransient, "exists", path, err)
	}
	fullPath, err := l.resolve(path)
	if err != nil {
		return false, NewError(ErrPermission, "exists", path, err)
	}
	stat, err := os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, mapFSErr("exists", path, err)
	}
	return !stat.IsDir(), nil
}

func (l *Local) GetMetadata(ctx context.Context, path string) (*Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewError(ErrTransient, "get_meta", path, err)
	}
	fullPath, err := l.resolve(path)
	if err != nil {
		return nil, NewError(ErrPermission, "get_meta", path, err)
	}
	raw, err := os.ReadFile(fullPath + metaSuffix)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, mapFSErr("get_meta", path, err)
	}
	var m Metadata
	if err := json.Unmarshal(raw, &m); err != nil {
		// 旁路记录存在但解析不了：数据损坏，不能当"缺失"悄悄降级
		return nil, NewError(ErrCorrupt, "get_meta", path, err)
	}
	return &m, nil
}

func (l *Local) ListChildren(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewError(ErrTransient, "list", prefix, err)
	}
	fullPath, err := l.resolve(prefix)
	if err != nil {
		return nil, NewError(ErrPermission, "list", prefix, err)
	}
	entries, err := os.ReadDir(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // 空前缀不是错误
		}
		return nil, mapFSErr("list", prefix, err)
	}
	var names []string
	for _, entry := range entries {
		name := entry.Name()
		// 旁路元数据文件不属于目录结构
		if strings.HasSuffix(name, metaSuffix) {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

func (l *Local) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return NewError(ErrTransient, "delete", path, err)
	}
	fullPath, err := l.resolve(path)
	if err != nil {
		return NewError(ErrPermission, "delete", path, err)
	}
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return mapFSErr("delete", path, err)
	}
	// 内容删掉后元数据必须跟着删，避免孤儿旁路记录
	if err := os.Remove(fullPath + metaSuffix); err != nil && !os.IsNotExist(err) {
		return mapFSErr("delete", path, err)
	}
	return nil
}

// mapFSErr 文件系统错误归类
func mapFSErr(op, path string, err error) *Error {
	switch {
	case os.IsNotExist(err):
		return NewError(ErrNotFound, op, path, err)
	case os.IsPermission(err):
		return NewError(ErrPermission, op, path, err)
	default:
		return NewError(ErrTransient, op, path, err)
	}
}
