package cache

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"

	"LyraFM/logger"
	"LyraFM/model"
)

// Kind 区分同一个 ItemId 下缓存的内容种类
type Kind string

const (
	KindMetadata  Kind = "metadata"
	KindAudioFile Kind = "audio"
	KindAudioKey  Kind = "key"
)

var kinds = []Kind{KindMetadata, KindAudioFile, KindAudioKey}

// 缓存文件格式：8 字节大端长度 + 数据 + 8 字节 xxhash64 校验和
const (
	headerSize  = 8
	trailerSize = 8
)

// Store 基于文件系统的内容寻址缓存，按 (ItemId, Kind) 存取字节块。
// 缓存只是优化，读路径上的任何损坏都按未命中处理，不向调用方抛错。
type Store struct {
	root string
}

// NewStore 创建缓存存储并建立目录结构
func NewStore(root string) (*Store, error) {
	s := &Store{root: root}
	if err := s.ensureDirs(); err != nil {
		return nil, fmt.Errorf("创建缓存目录失败: %w", err)
	}
	return s, nil
}

// Root 返回缓存根目录
func (s *Store) Root() string {
	return s.root
}

func (s *Store) ensureDirs() error {
	for _, k := range kinds {
		if err := os.MkdirAll(filepath.Join(s.root, string(k)), 0755); err != nil {
			return err
		}
	}
	return nil
}

// entryPath 由 ItemId 确定性地推导文件路径，按十六进制前两位分片，
// 控制单目录下的文件数量。改变该映射会使既有缓存全部失效。
func (s *Store) entryPath(id model.ItemId, kind Kind) string {
	name := id.ToBase16()
	return filepath.Join(s.root, string(kind), name[:2], name)
}

// Get 读取缓存条目。未命中、截断或校验失败都返回 ok=false，
// 损坏的文件会被尽力删除，由调用方重新拉取即可恢复。
func (s *Store) Get(id model.ItemId, kind Kind) ([]byte, bool) {
	path := s.entryPath(id, kind)

	raw, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("读取缓存文件失败，按未命中处理",
				logger.String("path", path),
				logger.ErrorField(err))
		}
		return nil, false
	}

	data, ok := decodeBlob(raw)
	if !ok {
		logger.Warn("缓存文件损坏，删除后按未命中处理",
			logger.String("path", path),
			logger.Int("size", len(raw)))
		_ = os.Remove(path)
		return nil, false
	}

	return data, true
}

// Put 写入缓存条目。先写临时文件再原子重命名，部分写入永远不会
// 被 Get 观察到；对同一键的并发写入以最后一次重命名为准。
func (s *Store) Put(id model.ItemId, kind Kind, data []byte) error {
	path := s.entryPath(id, kind)
	dir := filepath.Dir(path)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("创建分片目录失败: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".put-*")
	if err != nil {
		return fmt.Errorf("创建临时文件失败: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(encodeBlob(data)); err != nil {
		tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("写入缓存数据失败: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("关闭临时文件失败: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("重命名缓存文件失败: %w", err)
	}

	logger.Debug("缓存条目写入成功",
		logger.String("id", id.ToBase16()),
		logger.String("kind", string(kind)),
		logger.Int("dataSize", len(data)))

	return nil
}

// Clear 整体清空缓存并重建目录结构
func (s *Store) Clear() error {
	for _, k := range kinds {
		if err := os.RemoveAll(filepath.Join(s.root, string(k))); err != nil {
			return fmt.Errorf("清空缓存目录失败: %w", err)
		}
	}
	if err := s.ensureDirs(); err != nil {
		return err
	}

	logger.Info("缓存已清空", logger.String("root", s.root))
	return nil
}

// KindStats 单个种类的缓存统计
type KindStats struct {
	Entries int
	Bytes   int64
}

// Stats 遍历缓存目录，统计各种类的条目数和占用字节数
func (s *Store) Stats() (map[Kind]KindStats, error) {
	stats := make(map[Kind]KindStats, len(kinds))
	for _, k := range kinds {
		var ks KindStats
		err := filepath.WalkDir(filepath.Join(s.root, string(k)), func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			info, err := d.Info()
			if err != nil {
				return nil
			}
			ks.Entries++
			ks.Bytes += info.Size()
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("统计缓存目录失败: %w", err)
		}
		stats[k] = ks
	}
	return stats, nil
}

func encodeBlob(data []byte) []byte {
	blob := make([]byte, headerSize+len(data)+trailerSize)
	binary.BigEndian.PutUint64(blob[:headerSize], uint64(len(data)))
	copy(blob[headerSize:], data)
	binary.BigEndian.PutUint64(blob[headerSize+len(data):], xxhash.Sum64(data))
	return blob
}

func decodeBlob(raw []byte) ([]byte, bool) {
	if len(raw) < headerSize+trailerSize {
		return nil, false
	}
	length := binary.BigEndian.Uint64(raw[:headerSize])
	if length != uint64(len(raw)-headerSize-trailerSize) {
		return nil, false
	}
	data := raw[headerSize : headerSize+length]
	sum := binary.BigEndian.Uint64(raw[headerSize+length:])
	if xxhash.Sum64(data) != sum {
		return nil, false
	}
	return data, true
}
