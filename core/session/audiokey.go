package session

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"LyraFM/logger"
	"LyraFM/model"
)

// AudioKey 单个音频文件的对称解密密钥，经会话协商获得
type AudioKey [16]byte

const audioKeyTimeout = 5 * time.Second

// RequestAudioKey 发送密钥请求帧并按请求序号等待匹配的应答。
// 限定时间内没有匹配应答返回 ErrKeyTimeout，可由调用方退避重试。
// 等待期间收到的心跳帧会被就地应答。
func (s *Session) RequestAudioKey(track model.ItemId, file model.FileId) (AudioKey, error) {
	var key AudioKey

	if s.State() != StateEstablished {
		return key, ErrSessionClosed
	}

	seq := s.keySeq.Add(1)

	// 请求负载：[文件 id 20][曲目 id 16][序号 u32][u16 0]
	payload := make([]byte, 0, len(file)+16+4+2)
	payload = append(payload, file[:]...)
	payload = append(payload, track.ToRaw()...)
	payload = binary.BigEndian.AppendUint32(payload, seq)
	payload = binary.BigEndian.AppendUint16(payload, 0)

	if err := s.SendFrame(CmdRequestKey, payload); err != nil {
		return key, err
	}

	deadline := time.Now().Add(audioKeyTimeout)
	_ = s.conn.SetReadDeadline(deadline)
	defer s.conn.SetReadDeadline(time.Time{})

	for {
		cmd, resp, err := s.ReceiveFrame()
		if err != nil {
			if errors.Is(err, ErrTransport) && time.Now().After(deadline) && s.State() != StateDisconnected {
				return key, fmt.Errorf("%w: 序号 %d", ErrKeyTimeout, seq)
			}
			return key, err
		}

		switch cmd {
		case CmdPing:
			if err := s.SendFrame(CmdPong, resp); err != nil {
				return key, err
			}

		case CmdAesKey:
			if len(resp) != 4+len(key) {
				err := protocolError("密钥应答长度非法: %d", len(resp))
				s.teardown(err)
				return key, err
			}
			respSeq := binary.BigEndian.Uint32(resp[:4])
			if respSeq != seq {
				logger.Warn("收到序号不匹配的密钥应答，忽略",
					logger.Uint32("expected", seq),
					logger.Uint32("got", respSeq))
				continue
			}
			copy(key[:], resp[4:])
			logger.Debug("音频密钥协商成功",
				logger.String("track", track.ToBase16()),
				logger.String("file", file.ToBase16()))
			return key, nil

		case CmdAesKeyError:
			if len(resp) >= 4 && binary.BigEndian.Uint32(resp[:4]) != seq {
				continue
			}
			var code uint16
			if len(resp) >= 6 {
				code = binary.BigEndian.Uint16(resp[4:6])
			}
			return key, protocolError("密钥请求被拒绝，错误码 0x%04x", code)

		default:
			logger.Debug("等待密钥期间忽略帧", logger.Int("cmd", int(cmd)))
		}
	}
}
