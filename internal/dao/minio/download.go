package minio

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/djeada/Testio/internal/constants"
	"github.com/djeada/Testio/pkg/errors"
	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

// Fetcher 从 MinIO 下载待评测的程序
type Fetcher struct {
	client *minio.Client
}

// NewFetcher 创建下载器
func NewFetcher(client *minio.Client) *Fetcher {
	return &Fetcher{client: client}
}

// ParseURI 解析 minio://bucket/prefix，prefix 可以为空、单个对象或一个"目录"
func ParseURI(uri string) (bucket, prefix string, err error) {
	rest, ok := strings.CutPrefix(uri, constants.MinIOScheme)
	if !ok {
		return "", "", errors.NewConfigError("path", "不是 "+constants.MinIOScheme+" 路径: "+uri)
	}
	bucket, prefix, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", errors.NewConfigError("path", "缺少 bucket: "+uri)
	}
	return bucket, prefix, nil
}

// Fetch 把 uri 指向的对象下载到 dir，返回按名称排序的本地文件路径
// prefix 指向单个对象时只下载该对象；否则下载该前缀下的直接子对象，不递归，跳过隐藏文件
func (f *Fetcher) Fetch(ctx context.Context, uri, dir string) ([]string, error) {
	// 1. 参数校验
	bucket, prefix, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, constants.TempDirPerm); err != nil {
		return nil, errors.NewStorageError("创建下载目录失败", err)
	}

	ctx, cancel := context.WithTimeout(ctx, constants.MinIODownloadTimeout)
	defer cancel()

	// 2. 单个对象
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		if _, err := f.client.StatObject(ctx, bucket, prefix, minio.StatObjectOptions{}); err == nil {
			local, err := f.download(ctx, bucket, prefix, dir)
			if err != nil {
				return nil, err
			}
			return []string{local}, nil
		}
		prefix += "/"
	}

	// 3. 列出前缀下的对象
	var paths []string
	for obj := range f.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: prefix}) {
		if obj.Err != nil {
			return nil, errors.NewStorageError("列出对象失败", obj.Err)
		}
		// 子目录以 / 结尾
		if strings.HasSuffix(obj.Key, "/") || strings.HasPrefix(path.Base(obj.Key), ".") {
			continue
		}
		local, err := f.download(ctx, bucket, obj.Key, dir)
		if err != nil {
			return nil, err
		}
		paths = append(paths, local)
	}
	sort.Strings(paths)

	zap.L().Info("程序下载完成",
		zap.String("bucket", bucket),
		zap.String("prefix", prefix),
		zap.Int("count", len(paths)))
	return paths, nil
}

// download 下载单个对象并设置可执行权限
func (f *Fetcher) download(ctx context.Context, bucket, object, dir string) (string, error) {
	local := filepath.Join(dir, path.Base(object))
	if err := f.client.FGetObject(ctx, bucket, object, local, minio.GetObjectOptions{}); err != nil {
		return "", errors.Wrap(errors.ErrCodeFileDownloadFailed, "下载对象失败: "+object, err)
	}
	if err := os.Chmod(local, constants.CodeFilePerm); err != nil {
		return "", errors.NewStorageError("设置文件权限失败", err)
	}
	zap.L().Debug("对象下载成功", zap.String("object", object), zap.String("save_path", local))
	return local, nil
}
