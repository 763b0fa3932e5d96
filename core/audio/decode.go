package audio

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
)

// ErrDecode 曲目本地的解码错误。出现后该曲目视为不可播放，
// 由播放队列前进到下一首，而不是反复重试。
var ErrDecode = errors.New("音频解码错误")

// ErrUnsupportedFormat 无法识别的音频格式
var ErrUnsupportedFormat = errors.New("不支持的音频格式")

// CDN 上的 vorbis 文件带 167 字节的目录头，解码前跳过
const cdnHeaderSize = 167

const (
	FormatVorbis = "vorbis"
	FormatMP3    = "mp3"
)

type nopReadSeekCloser struct {
	*bytes.Reader
}

func (nopReadSeekCloser) Close() error { return nil }

// decodeBytes 将解密后的音频字节解码为采样流
func decodeBytes(format string, data []byte) (beep.StreamSeekCloser, beep.Format, error) {
	switch format {
	case FormatVorbis:
		if len(data) > cdnHeaderSize {
			data = data[cdnHeaderSize:]
		}
		streamer, f, err := vorbis.Decode(nopReadSeekCloser{bytes.NewReader(data)})
		if err != nil {
			return nil, beep.Format{}, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return streamer, f, nil
	case FormatMP3:
		streamer, f, err := mp3.Decode(nopReadSeekCloser{bytes.NewReader(data)})
		if err != nil {
			return nil, beep.Format{}, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return streamer, f, nil
	default:
		return nil, beep.Format{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// decodeLocalFile 按扩展名解码本地文件
func decodeLocalFile(path string) (beep.StreamSeekCloser, beep.Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("打开本地文件失败: %w", err)
	}

	var streamer beep.StreamSeekCloser
	var format beep.Format
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ogg", ".oga":
		streamer, format, err = vorbis.Decode(f)
	case ".mp3":
		streamer, format, err = mp3.Decode(f)
	default:
		f.Close()
		return nil, beep.Format{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		f.Close()
		return nil, beep.Format{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return streamer, format, nil
}

// resampleTo 在源采样率与目标采样率不一致时插入重采样
func resampleTo(streamer beep.Streamer, from, to beep.SampleRate) beep.Streamer {
	if from == to {
		return streamer
	}
	return beep.Resample(4, from, to, streamer)
}
