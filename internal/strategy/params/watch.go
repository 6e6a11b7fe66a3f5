package params

import (
	"context"
	"path/filepath"

	"kairos/internal/logger"

	"github.com/fsnotify/fsnotify"
)

// Watch 监听参数文件变更并热重载表内容。
// 重载失败只记日志，不覆盖已有表；ctx 取消后退出。
func (t *Table) Watch(ctx context.Context, path string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// 监听目录而非文件本身：编辑器常用 rename+create 方式保存。
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return err
	}
	target := filepath.Clean(path)
	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(evt.Name) != target {
					continue
				}
				if !evt.Has(fsnotify.Write) && !evt.Has(fsnotify.Create) {
					continue
				}
				if err := t.LoadFile(target); err != nil {
					logger.Errorf("strategy params reload failed (%s): %v", evt.Name, err)
					continue
				}
				logger.Infof("strategy params reloaded: %s", target)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warnf("strategy params watcher error: %v", err)
			}
		}
	}()
	return nil
}
