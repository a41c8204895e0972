// disk_usage.go — получение информации об ёмкости диска.
// Платформозависимый код для Unix-подобных систем.
package blobstore

import (
	"fmt"
	"syscall"
)

// DiskUsage возвращает информацию о дисковом пространстве раздела,
// на котором находится директория видео. total, used, available в байтах.
func (bs *BlobStore) DiskUsage() (total, used, available int64, err error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(bs.dataDir, &stat); err != nil {
		return 0, 0, 0, fmt.Errorf("ошибка statfs %s: %w", bs.dataDir, err)
	}

	total = int64(stat.Blocks) * int64(stat.Bsize)
	available = int64(stat.Bavail) * int64(stat.Bsize)
	used = total - available

	return total, used, available, nil
}
