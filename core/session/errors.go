package session

import (
	"errors"
	"fmt"
)

// 会话层错误分类。调用方通过 errors.Is 区分处理策略：
// 传输错误可重连重试，协议错误必须重新握手，凭证错误交给用户。
var (
	// ErrTransport 网络层错误，重连后可重试
	ErrTransport = errors.New("传输错误")
	// ErrProtocol 帧格式或顺序错误，需要重新握手
	ErrProtocol = errors.New("协议错误")
	// ErrCrypto 握手运算或密钥尺寸不满足约束，本次连接失败
	ErrCrypto = errors.New("加密错误")
	// ErrBadCredentials 用户名或密码错误，不自动重试
	ErrBadCredentials = errors.New("用户名或密码错误")
	// ErrKeyTimeout 音频密钥请求在限定时间内未收到应答，可退避重试
	ErrKeyTimeout = errors.New("音频密钥请求超时")
	// ErrSessionClosed 会话已断开
	ErrSessionClosed = errors.New("会话已断开")
)

func transportError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrTransport, op, err)
}

func protocolError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrProtocol, fmt.Sprintf(format, args...))
}

func cryptoError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrCrypto, fmt.Sprintf(format, args...))
}
