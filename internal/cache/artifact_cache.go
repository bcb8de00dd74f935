package cache

import (
	md5Package "crypto/md5"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/djeada/Testio/internal/conf"
	"github.com/djeada/Testio/internal/constants"
	file_util "github.com/djeada/Testio/internal/util/file"
	"go.uber.org/zap"
)

// ArtifactCache 编译产物缓存，键由编译命令和源文件内容决定
type ArtifactCache struct {
	cache        map[string]*cachedFile
	mutex        sync.RWMutex
	ttl          time.Duration
	cleanFreq    time.Duration
	cacheDir     string // 本地缓存目录
	maxDiskUsage int64  // 最大磁盘使用量（字节）
	currentUsage int64  // 当前磁盘使用量

	stop     chan struct{}
	stopOnce sync.Once
}

type cachedFile struct {
	key        string
	filePath   string    // 缓存文件的路径
	expireTime time.Time // 过期时间
	size       int64     // 文件大小
	accessTime time.Time // 最后访问时间
	MD5Hash    string    // 文件的MD5哈希值
}

// NewArtifactCache 创建缓存并启动过期清理协程，使用完毕需调用 Close
func NewArtifactCache(cfg conf.CacheConfig) (*ArtifactCache, error) {
	cacheDir := cfg.Dir
	if cacheDir == "" {
		cacheDir = filepath.Join(os.TempDir(), constants.CacheDirName)
	}
	if err := os.MkdirAll(cacheDir, constants.CacheDirPerm); err != nil {
		return nil, fmt.Errorf("创建缓存目录失败: %w", err)
	}

	def := conf.GetDefaultCacheConfig()
	c := &ArtifactCache{
		cache:        make(map[string]*cachedFile),
		ttl:          orDefault(cfg.TTL, def.TTL),
		cleanFreq:    orDefault(cfg.CleanFrequency, def.CleanFrequency),
		cacheDir:     cacheDir,
		maxDiskUsage: cfg.MaxDiskUsage,
		stop:         make(chan struct{}),
	}
	if c.maxDiskUsage <= 0 {
		c.maxDiskUsage = def.MaxDiskUsage
	}
	go c.startCleaner()
	return c, nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// Key 根据编译命令和源文件内容生成缓存键
func Key(command string, source []byte) string {
	h := md5Package.New()
	io.WriteString(h, command)
	h.Write([]byte{0})
	h.Write(source)
	return fmt.Sprintf("%x", h.Sum(nil))
}

// calculateMD5 计算文件的MD5哈希值
func calculateMD5(filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5Package.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// verifyFileIntegrity 验证文件完整性
func verifyFileIntegrity(filePath, expectedMD5 string) bool {
	calculatedMD5, err := calculateMD5(filePath)
	if err != nil {
		return false
	}
	return calculatedMD5 == expectedMD5
}

// GetFilePath 获取缓存文件路径，过期、丢失或损坏的条目会被移除
func (c *ArtifactCache) GetFilePath(key string) (string, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.lookupLocked(key)
}

func (c *ArtifactCache) lookupLocked(key string) (string, bool) {
	cached, exists := c.cache[key]
	if !exists {
		return "", false
	}

	// 检查是否过期
	if time.Now().After(cached.expireTime) {
		c.removeLocked(cached)
		return "", false
	}

	// 检查文件是否仍然存在且未被修改
	if !verifyFileIntegrity(cached.filePath, cached.MD5Hash) {
		c.removeLocked(cached)
		return "", false
	}

	cached.accessTime = time.Now()
	return cached.filePath, true
}

// Restore 命中时将缓存的产物复制到 dst
// 复制期间持有锁，同一键上并发的 Set 不会替换正在读取的文件
func (c *ArtifactCache) Restore(key, dst string) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	filePath, ok := c.lookupLocked(key)
	if !ok {
		return false
	}
	if err := file_util.CopyFile(filePath, dst, file_util.WithPreserveTime(false)); err != nil {
		zap.L().Warn("恢复编译缓存失败", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// Set 将编译产物复制进缓存
func (c *ArtifactCache) Set(key, artifactPath string) error {
	info, err := os.Stat(artifactPath)
	if err != nil {
		return err
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	// 如果已有缓存，先删除旧文件
	if old, exists := c.cache[key]; exists {
		c.removeLocked(old)
	}

	// 检查并释放空间
	if err := c.freeSpaceLocked(info.Size()); err != nil {
		return err
	}

	cacheFilePath := filepath.Join(c.cacheDir, key)
	if err := file_util.CopyFile(artifactPath, cacheFilePath, file_util.WithPreserveTime(false)); err != nil {
		return err
	}

	hash, err := calculateMD5(cacheFilePath)
	if err != nil {
		os.Remove(cacheFilePath)
		return err
	}

	now := time.Now()
	c.cache[key] = &cachedFile{
		key:        key,
		filePath:   cacheFilePath,
		expireTime: now.Add(c.ttl),
		size:       info.Size(),
		accessTime: now,
		MD5Hash:    hash,
	}
	c.currentUsage += info.Size()
	return nil
}

// freeSpaceLocked 按最近最少使用的顺序删除文件，直到能放下 newFileSize
func (c *ArtifactCache) freeSpaceLocked(newFileSize int64) error {
	if c.currentUsage+newFileSize > c.maxDiskUsage {
		files := make([]*cachedFile, 0, len(c.cache))
		for _, file := range c.cache {
			files = append(files, file)
		}
		sort.Slice(files, func(i, j int) bool {
			return files[i].accessTime.Before(files[j].accessTime)
		})

		for _, file := range files {
			if c.currentUsage+newFileSize <= c.maxDiskUsage {
				break
			}
			c.removeLocked(file)
		}
	}

	if c.currentUsage+newFileSize > c.maxDiskUsage {
		return fmt.Errorf("not enough disk space available")
	}
	return nil
}

func (c *ArtifactCache) removeLocked(file *cachedFile) {
	os.Remove(file.filePath)
	c.currentUsage -= file.size
	delete(c.cache, file.key)
}

// startCleaner 启动清理协程
func (c *ArtifactCache) startCleaner() {
	ticker := time.NewTicker(c.cleanFreq)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanExpired()
		case <-c.stop:
			return
		}
	}
}

// cleanExpired 清理过期的缓存项
func (c *ArtifactCache) cleanExpired() {
	now := time.Now()

	c.mutex.Lock()
	defer c.mutex.Unlock()

	for _, cached := range c.cache {
		if now.After(cached.expireTime) {
			c.removeLocked(cached)
		}
	}
}

// Close 停止清理协程，缓存文件保留在磁盘上
func (c *ArtifactCache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// Clear 清空所有缓存
func (c *ArtifactCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	for _, cached := range c.cache {
		os.Remove(cached.filePath)
	}
	c.cache = make(map[string]*cachedFile)
	c.currentUsage = 0
}

// GetCacheStats 获取缓存统计信息
func (c *ArtifactCache) GetCacheStats() map[string]interface{} {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return map[string]interface{}{
		"cache_size":    len(c.cache),
		"current_usage": c.currentUsage,
		"max_usage":     c.maxDiskUsage,
		"cache_dir":     c.cacheDir,
		"ttl":           c.ttl.String(),
		"clean_freq":    c.cleanFreq.String(),
		"usage_percent": float64(c.currentUsage) / float64(c.maxDiskUsage) * 100,
	}
}
