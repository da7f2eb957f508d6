package config

import (
	"os"
	"path/filepath"

	"musedb/logger"

	"github.com/fsnotify/fsnotify"
)

// Watch 监听.env文件变更并在变更时重新加载配置
// onReload 在每次成功重载后被调用（例如用于运行时调整日志级别）
// 返回的函数用于停止监听
func Watch(onReload func(*Config)) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	envPath := ".env"
	// Watch the directory, not the file: editors replace .env atomically
	// and the watch on the old inode would be lost.
	dir := filepath.Dir(envPath)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != envPath {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if _, err := os.Stat(envPath); err != nil {
					continue
				}
				logger.Info("检测到.env变更，重新加载配置", logger.String("file", event.Name))
				cfg := Load()
				if onReload != nil {
					onReload(cfg)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("配置文件监听错误", logger.ErrorField(err))
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		watcher.Close()
	}, nil
}
