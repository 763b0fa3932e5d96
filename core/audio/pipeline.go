package audio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"

	"LyraFM/cache"
	"LyraFM/core/session"
	"LyraFM/logger"
	"LyraFM/model"
)

// ErrNoTrack 当前没有已装载的曲目
var ErrNoTrack = errors.New("没有正在解码的曲目")

// ErrMissingMetadata 目录曲目缺少元数据，无法定位音频文件
var ErrMissingMetadata = errors.New("缺少曲目元数据")

// 生产者单次解码的采样块大小
const decodeChunk = 512

// Pipeline 音频管线：按 ItemId 解析音频字节（缓存优先，未命中经会话
// 协商密钥后从 CDN 拉取）、解密、解码为交错 PCM、重采样到输出设备
// 采样率，并通过有界预读缓冲向消费方供帧。消费是推进解码的唯一途径，
// 有界通道是唯一的背压形式。
type Pipeline struct {
	sess       *session.Session
	store      *cache.Store
	fetcher    *Fetcher
	targetRate beep.SampleRate
	lookAhead  int

	mu      sync.Mutex
	current *trackStream
	source  *trackSource
}

// trackSource 保留重建解码器所需的一切，Seek 时从头重新解码
type trackSource struct {
	item      model.ItemId
	localPath string // 本地曲目的文件路径
	data      []byte // 目录曲目解密后的音频字节
	format    string
	srcRate   beep.SampleRate
}

// trackStream 一次解码运行：生产者协程填充有界采样通道，
// 消费方通过 NextFrame 抽取
type trackStream struct {
	samples chan [2]float64
	errCh   chan error
	cancel  context.CancelFunc
}

// NewPipeline 创建音频管线。sess 可以为 nil，此时只能播放本地曲目
// 和缓存命中的目录曲目。
func NewPipeline(sess *session.Session, store *cache.Store, fetcher *Fetcher, targetRate, lookAhead int) *Pipeline {
	if lookAhead <= 0 {
		lookAhead = 8192
	}
	return &Pipeline{
		sess:       sess,
		store:      store,
		fetcher:    fetcher,
		targetRate: beep.SampleRate(targetRate),
		lookAhead:  lookAhead,
	}
}

// Load 装载一首曲目并从头开始解码。之前装载的曲目（包括解码
// 出错的）会被直接替换，调用方无需手工复位管线状态。
func (p *Pipeline) Load(ctx context.Context, item model.ItemId, meta *model.TrackInfo) error {
	src, err := p.resolveSource(ctx, item, meta)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()
	p.source = src
	return p.startLocked(0)
}

// resolveSource 解析曲目的音频来源：本地路径，或缓存/CDN 的加密字节
func (p *Pipeline) resolveSource(ctx context.Context, item model.ItemId, meta *model.TrackInfo) (*trackSource, error) {
	if item.Type == model.ItemIdTypeLocal {
		path, err := model.ResolveLocal(item)
		if err != nil {
			return nil, err
		}
		return &trackSource{item: item, localPath: path}, nil
	}

	meta = p.resolveMetadata(item, meta)
	if meta == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingMetadata, item.ToBase16())
	}

	encrypted, hit := p.store.Get(item, cache.KindAudioFile)
	if !hit {
		if p.fetcher == nil {
			return nil, fmt.Errorf("缓存未命中且没有配置 CDN 拉取器")
		}
		var err error
		encrypted, err = p.fetcher.FetchEncrypted(ctx, meta.FileId)
		if err != nil {
			return nil, err
		}
		// 缓存原始加密字节而非解码后的 PCM，换采样率时还能重新解码。
		// 写入失败只降级为本次不缓存，不影响播放。
		if err := p.store.Put(item, cache.KindAudioFile, encrypted); err != nil {
			logger.Warn("音频缓存写入失败，本次不缓存",
				logger.String("id", item.ToBase16()),
				logger.ErrorField(err))
		}
	}

	key, err := p.resolveAudioKey(item, meta.FileId)
	if err != nil {
		return nil, err
	}

	data, err := decryptAudio(key, encrypted)
	if err != nil {
		return nil, err
	}

	return &trackSource{item: item, data: data, format: meta.Format}, nil
}

// resolveMetadata 元数据优先用调用方提供的，其次查缓存；
// 调用方提供的顺手写进缓存
func (p *Pipeline) resolveMetadata(item model.ItemId, meta *model.TrackInfo) *model.TrackInfo {
	if meta != nil {
		if blob, err := json.Marshal(meta); err == nil {
			if err := p.store.Put(item, cache.KindMetadata, blob); err != nil {
				logger.Warn("元数据缓存写入失败",
					logger.String("id", item.ToBase16()),
					logger.ErrorField(err))
			}
		}
		return meta
	}
	if blob, ok := p.store.Get(item, cache.KindMetadata); ok {
		var cached model.TrackInfo
		if err := json.Unmarshal(blob, &cached); err == nil {
			return &cached
		}
	}
	return nil
}

// resolveAudioKey 音频密钥缓存优先，未命中经会话协商并写回缓存
func (p *Pipeline) resolveAudioKey(item model.ItemId, file model.FileId) (session.AudioKey, error) {
	var key session.AudioKey

	if blob, ok := p.store.Get(item, cache.KindAudioKey); ok && len(blob) == len(key) {
		copy(key[:], blob)
		return key, nil
	}

	if p.sess == nil {
		return key, session.ErrSessionClosed
	}
	key, err := p.sess.RequestAudioKey(item, file)
	if err != nil {
		return key, err
	}
	if err := p.store.Put(item, cache.KindAudioKey, key[:]); err != nil {
		logger.Warn("音频密钥缓存写入失败",
			logger.String("id", item.ToBase16()),
			logger.ErrorField(err))
	}
	return key, nil
}

// startLocked 从指定采样偏移开始一次新的解码运行
func (p *Pipeline) startLocked(offset int) error {
	src := p.source

	var streamer beep.StreamSeekCloser
	var format beep.Format
	var err error
	if src.localPath != "" {
		streamer, format, err = decodeLocalFile(src.localPath)
	} else {
		streamer, format, err = decodeBytes(src.format, src.data)
	}
	if err != nil {
		return err
	}
	src.srcRate = format.SampleRate

	if offset > 0 {
		if err := streamer.Seek(offset); err != nil {
			streamer.Close()
			return fmt.Errorf("%w: 定位失败: %v", ErrDecode, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	ts := &trackStream{
		samples: make(chan [2]float64, p.lookAhead),
		errCh:   make(chan error, 1),
		cancel:  cancel,
	}
	p.current = ts

	out := resampleTo(streamer, format.SampleRate, p.targetRate)
	go produce(ctx, out, streamer, ts)

	logger.Debug("开始解码",
		logger.String("id", src.item.ToBase16()),
		logger.Int("srcRate", int(format.SampleRate)),
		logger.Int("targetRate", int(p.targetRate)),
		logger.Int("offset", offset))
	return nil
}

// produce 解码生产者：填满有界通道即阻塞，消费方抽取才继续，
// 预读之外不做任何后台解码
func produce(ctx context.Context, out beep.Streamer, src beep.StreamSeekCloser, ts *trackStream) {
	defer func() {
		src.Close()
		close(ts.samples)
	}()

	chunk := make([][2]float64, decodeChunk)
	for {
		n, ok := out.Stream(chunk)
		for i := 0; i < n; i++ {
			select {
			case <-ctx.Done():
				return
			case ts.samples <- chunk[i]:
			}
		}
		if !ok {
			if err := src.Err(); err != nil {
				ts.errCh <- fmt.Errorf("%w: %v", ErrDecode, err)
			}
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

// NextFrame 抽取最多 len(buf) 个解码后的立体声采样，至少阻塞等到
// 一个采样或序列结束。序列自然结束返回 io.EOF；解码中途出错返回
// 包装了 ErrDecode 的错误。
func (p *Pipeline) NextFrame(buf [][2]float64) (int, error) {
	p.mu.Lock()
	ts := p.current
	p.mu.Unlock()

	if ts == nil {
		return 0, ErrNoTrack
	}
	if len(buf) == 0 {
		return 0, nil
	}

	v, ok := <-ts.samples
	if !ok {
		return 0, ts.finishErr()
	}
	buf[0] = v
	n := 1

	for n < len(buf) {
		select {
		case v, ok := <-ts.samples:
			if !ok {
				return n, nil
			}
			buf[n] = v
			n++
		default:
			return n, nil
		}
	}
	return n, nil
}

func (ts *trackStream) finishErr() error {
	select {
	case err := <-ts.errCh:
		return err
	default:
		return io.EOF
	}
}

// Seek 丢弃全部预读，从最接近目标位置的偏移重新解码
func (p *Pipeline) Seek(pos time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.source == nil {
		return ErrNoTrack
	}
	p.stopLocked()

	offset := p.source.srcRate.N(pos)
	if offset < 0 {
		offset = 0
	}
	return p.startLocked(offset)
}

// Stop 停止当前解码并丢弃预读缓冲
func (p *Pipeline) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	p.source = nil
}

func (p *Pipeline) stopLocked() {
	if p.current != nil {
		p.current.cancel()
		p.current = nil
	}
}
