package library

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"LyraFM/logger"
	"LyraFM/model"
)

// Watcher 监听本地音乐目录，把出现的音频文件登记进本地注册表，
// 使前端拿到的本地曲目可以立即通过 Local ItemId 播放。
type Watcher struct {
	dir string
}

// NewWatcher 创建目录监听器
func NewWatcher(dir string) *Watcher {
	return &Watcher{dir: dir}
}

func isAudioFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3", ".ogg", ".oga":
		return true
	default:
		return false
	}
}

// Scan 全量扫描目录，返回登记的曲目 id
func (w *Watcher) Scan() ([]model.ItemId, error) {
	items, err := registerTree(w.dir)
	if err != nil {
		return nil, fmt.Errorf("扫描本地音乐目录失败: %w", err)
	}

	logger.Info("本地音乐目录扫描完成",
		logger.String("dir", w.dir),
		logger.Int("count", len(items)))
	return items, nil
}

// registerTree 递归登记 root 下的全部音频文件
func registerTree(root string) ([]model.ItemId, error) {
	var items []model.ItemId
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if isAudioFile(path) {
			items = append(items, model.FromLocal(path))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// watchTree 为 root 及其全部子目录添加监听。fsnotify 的监听不递归，
// 每一层目录都要单独注册。
func watchTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}

// Run 先全量扫描，再阻塞监听目录中的新文件，直到上下文取消。
// 新出现的音频文件被登记进本地注册表。
func (w *Watcher) Run(ctx context.Context) error {
	if _, err := w.Scan(); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("创建文件监听器失败: %w", err)
	}
	defer watcher.Close()

	if err := watchTree(watcher, w.dir); err != nil {
		return fmt.Errorf("监听目录失败: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Create != 0 {
				// 新建子目录也要纳入监听，目录里已有的文件顺带登记
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := watchTree(watcher, event.Name); err != nil {
						logger.Warn("监听新目录失败",
							logger.String("path", event.Name),
							logger.ErrorField(err))
					}
					if _, err := registerTree(event.Name); err != nil {
						logger.Warn("扫描新目录失败",
							logger.String("path", event.Name),
							logger.ErrorField(err))
					}
					continue
				}
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 && isAudioFile(event.Name) {
				id := model.FromLocal(event.Name)
				logger.Debug("登记本地曲目",
					logger.String("path", event.Name),
					logger.String("id", id.ToBase16()))
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("文件监听错误", logger.ErrorField(err))
		}
	}
}
