// Package oss adapts Alibaba Cloud object storage to the object-store port.
package oss

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	aliyun "github.com/aliyun/aliyun-oss-go-sdk/oss"

	"github.com/PykeW/update-all/internal/domain"
	"github.com/PykeW/update-all/internal/ports"
)

type Config struct {
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	AccessKeySecret string `yaml:"access_key_secret"`
	Bucket          string `yaml:"bucket"`
}

type Store struct {
	bucket *aliyun.Bucket
}

var _ ports.ObjectStore = (*Store)(nil)

func New(cfg Config) (*Store, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, errors.New("oss endpoint and bucket are required")
	}
	client, err := aliyun.New(cfg.Endpoint, cfg.AccessKeyID, cfg.AccessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("oss client: %w", err)
	}
	bucket, err := client.Bucket(cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("oss bucket %s: %w", cfg.Bucket, err)
	}
	return &Store{bucket: bucket}, nil
}

// Put streams the payload into the bucket. The SDK does not accept a context;
// cancellation is checked before the transfer starts.
func (s *Store) Put(ctx context.Context, key string, payload io.Reader, contentType string) (ports.PutResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.PutResult{}, err
	}

	var respHeader http.Header
	opts := []aliyun.Option{aliyun.GetResponseHeader(&respHeader)}
	if contentType != "" {
		opts = append(opts, aliyun.ContentType(contentType))
	}
	if err := s.bucket.PutObject(key, payload, opts...); err != nil {
		return ports.PutResult{}, gatewayErr("put", key, err)
	}
	return ports.PutResult{
		Key:  key,
		ETag: strings.Trim(respHeader.Get("ETag"), `"`),
	}, nil
}

// SignURL issues a presigned GET valid for ttl. The expiry is baked into the
// URL signature; nothing can shorten it server-side afterwards.
func (s *Store) SignURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	seconds := int64(ttl / time.Second)
	if seconds <= 0 {
		seconds = 1
	}
	url, err := s.bucket.SignURL(key, aliyun.HTTPGet, seconds,
		aliyun.ResponseContentDisposition(attachmentDisposition(key)),
	)
	if err != nil {
		return "", gatewayErr("sign", key, err)
	}
	return url, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.bucket.DeleteObject(key); err != nil {
		return gatewayErr("delete", key, err)
	}
	return nil
}

// attachmentDisposition forces browsers to save instead of render, keeping
// the object basename as the suggested filename.
func attachmentDisposition(key string) string {
	name := key
	if idx := strings.LastIndex(key, "/"); idx >= 0 {
		name = key[idx+1:]
	}
	return fmt.Sprintf("attachment; filename=%q", name)
}

func gatewayErr(op, key string, err error) error {
	return fmt.Errorf("oss %s %s: %w", op, key, errors.Join(domain.ErrGateway, err))
}
