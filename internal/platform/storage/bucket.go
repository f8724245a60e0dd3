package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// ObjectStore 定义了核心流程对对象存储的全部需求：
// 在OCR之前写入手写图片作为存证，以及失败补偿时删除它。
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Delete(ctx context.Context, key string) error
}

// gcsStore 是ObjectStore的Google Cloud Storage实现。
type gcsStore struct {
	client *gcs.Client
	bucket string
}

// NewGCSStore 创建一个指向给定bucket的对象存储适配器。
// 凭证从默认的应用凭证链中获取。
func NewGCSStore(ctx context.Context, bucket string) (ObjectStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("对象存储bucket未配置")
	}
	client, err := gcs.NewClient(ctx, option.WithScopes(gcs.ScopeReadWrite))
	if err != nil {
		return nil, fmt.Errorf("创建存储客户端失败: %w", err)
	}
	return &gcsStore{client: client, bucket: bucket}, nil
}

func (s *gcsStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return fmt.Errorf("写入对象 %s 失败: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("关闭对象 %s 的写入失败: %w", key, err)
	}
	return nil
}

func (s *gcsStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := s.client.Bucket(s.bucket).Object(key).Delete(ctx); err != nil {
		return fmt.Errorf("删除对象 %s 失败: %w", key, err)
	}
	return nil
}
