package storage

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIO 对象用户元数据的 Key (S3 会自动加 x-amz-meta- 前缀)
const (
	metaKeySignature   = "signature"
	metaKeyPublishDate = "publishdate"
	metaKeyNotes       = "notes" // base64，Header 传输不允许裸 UTF-8
)

// Minio 对象存储后端
// 元数据作为对象 UserMetadata 随 PutObject 一次写入，天然与内容原子
type Minio struct {
	client    *minio.Client
	bucket    string
	opTimeout time.Duration
}

func NewMinio(endpoint, accessKey, secretKey, bucket string, useSSL bool, opTimeout time.Duration) (*Minio, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, NewError(ErrPermission, "init", endpoint, err)
	}

	// 自动建桶
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	exists, err := client.BucketExists(ctx, bucket)
	if err == nil && !exists {
		client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{})
	}

	return &Minio{client: client, bucket: bucket, opTimeout: opTimeout}, nil
}

func (m *Minio) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.opTimeout > 0 {
		return context.WithTimeout(ctx, m.opTimeout)
	}
	return context.WithCancel(ctx)
}

func (m *Minio) Put(ctx context.Context, path string, data io.Reader, size int64, meta *Metadata) error {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	userMeta := map[string]string{
		metaKeySignature:   meta.Signature,
		metaKeyPublishDate: meta.PublishDate.UTC().Format(time.RFC3339),
		metaKeyNotes:       base64.StdEncoding.EncodeToString([]byte(meta.Notes)),
	}
	_, err := m.client.PutObject(ctx, m.bucket, path, data, size, minio.PutObjectOptions{
		ContentType:  "application/octet-stream",
		UserMetadata: userMeta,
	})
	if err != nil {
		return m.translate("put", path, err)
	}
	return nil
}

// Get 返回对象流
// 流的生命周期由调用方控制，这里不套 opTimeout，否则大文件下载会被中途掐断；
// 取消传播依赖调用方的 ctx (客户端断开时请求 ctx 被取消，读取随之中止)
func (m *Minio) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, path, minio.GetObjectOptions{})
	if err != nil {
		return nil, m.translate("get", path, err)
	}
	// GetObject 是懒加载的，Stat 强制拿到 NotFound 等真实错误
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, m.translate("get", path, err)
	}
	return obj, nil
}

func (m *Minio) Exists(ctx context.Context, path string) (bool, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	_, err := m.client.StatObject(ctx, m.bucket, path, minio.StatObjectOptions{})
	if err != nil {
		se := m.translate("exists", path, err)
		if se.Kind == ErrNotFound {
			return false, nil
		}
		return false, se
	}
	return true, nil
}

func (m *Minio) GetMetadata(ctx context.Context, path string) (*Metadata, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	info, err := m.client.StatObject(ctx, m.bucket, path, minio.StatObjectOptions{})
	if err != nil {
		se := m.translate("get_meta", path, err)
		if se.Kind == ErrNotFound {
			return nil, nil
		}
		return nil, se
	}

	meta := &Metadata{}
	for k, v := range info.UserMetadata {
		switch strings.ToLower(k) {
		case metaKeySignature:
			meta.Signature = v
		case metaKeyPublishDate:
			if t, err := time.Parse(time.RFC3339, v); err == nil {
				meta.PublishDate = t
			}
		case metaKeyNotes:
			// 读路径必须交出解码后的 UTF-8；历史数据可能存过明文，解码失败时原样返回
			if decoded, err := base64.StdEncoding.DecodeString(v); err == nil {
				meta.Notes = string(decoded)
			} else {
				meta.Notes = v
			}
		}
	}
	return meta, nil
}

func (m *Minio) ListChildren(ctx context.Context, prefix string) ([]string, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	// Recursive=false 即目录式列举，子目录以 CommonPrefix 形式出现
	objectCh := m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: false,
	})

	seen := make(map[string]bool)
	var names []string
	for object := range objectCh {
		if object.Err != nil {
			return nil, m.translate("list", prefix, object.Err)
		}
		name := strings.TrimSuffix(strings.TrimPrefix(object.Key, prefix), "/")
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names, nil
}

func (m *Minio) Delete(ctx context.Context, path string) error {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	if err := m.client.RemoveObject(ctx, m.bucket, path, minio.RemoveObjectOptions{}); err != nil {
		se := m.translate("delete", path, err)
		if se.Kind == ErrNotFound {
			return nil
		}
		return se
	}
	return nil
}

// translate 归类 MinIO SDK 错误
func (m *Minio) translate(op, path string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewError(ErrTransient, op, path, err)
	}
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey", "NoSuchBucket":
		return NewError(ErrNotFound, op, path, err)
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return NewError(ErrPermission, op, path, err)
	default:
		return NewError(ErrTransient, op, path, err)
	}
}
