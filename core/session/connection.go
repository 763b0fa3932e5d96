package session

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"LyraFM/logger"
	"LyraFM/model"
)

// State 会话状态机：
// Disconnected -> Connecting -> KeyExchanging -> Authenticating -> Established
// 任何阶段失败都回到 Disconnected，调用方需要重新 Connect。
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateKeyExchanging
	StateAuthenticating
	StateEstablished
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateKeyExchanging:
		return "KEY_EXCHANGING"
	case StateAuthenticating:
		return "AUTHENTICATING"
	case StateEstablished:
		return "ESTABLISHED"
	default:
		return "DISCONNECTED"
	}
}

// 帧命令字节
const (
	CmdPing        byte = 0x04
	CmdPong        byte = 0x49
	CmdRequestKey  byte = 0x0c
	CmdAesKey      byte = 0x0d
	CmdAesKeyError byte = 0x0e
	CmdLogin       byte = 0xab
	CmdAPWelcome   byte = 0xac
	CmdAuthFailure byte = 0xad
)

// 认证失败错误码
const authErrBadCredentials = 0x0c

// 握手报文常量
const (
	helloMagic   = 0x4c59 // "LY"
	helloVersion = 1
	nonceSize    = 16
	challengeLen = 20
)

const handshakeTimeout = 10 * time.Second

// Session 与接入点之间的已认证加密连接。一个进程同一时刻只应持有
// 一个活跃实例，由音频管线的认证路径独占；出现不可恢复的协议错误时
// 整体销毁并重建。
type Session struct {
	conn     net.Conn
	deviceId string

	// 每个方向的流密码状态必须串行推进，发送与接收各用一把锁
	sendMu sync.Mutex
	recvMu sync.Mutex
	send   *frameCipher
	recv   *frameCipher

	state  atomic.Int32
	keySeq atomic.Uint32
}

// Connect 连接接入点并完成密钥交换。成功后会话处于 Authenticating
// 状态，等待调用 Authenticate 完成登录。
func Connect(ctx context.Context, accessPoint string) (*Session, error) {
	s := &Session{deviceId: uuid.New().String()}
	s.state.Store(int32(StateConnecting))

	logger.Info("正在连接接入点", logger.String("accessPoint", accessPoint))

	dialer := &net.Dialer{Timeout: handshakeTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", accessPoint)
	if err != nil {
		s.state.Store(int32(StateDisconnected))
		return nil, transportError("连接接入点", err)
	}
	s.conn = conn

	s.state.Store(int32(StateKeyExchanging))
	if err := s.handshake(ctx); err != nil {
		conn.Close()
		s.state.Store(int32(StateDisconnected))
		return nil, err
	}

	s.state.Store(int32(StateAuthenticating))
	logger.Info("密钥交换完成",
		logger.String("accessPoint", accessPoint),
		logger.String("deviceId", s.deviceId))
	return s, nil
}

// handshake 执行 Diffie-Hellman 交换并初始化两个方向的帧密码
func (s *Session) handshake(ctx context.Context) error {
	if deadline, ok := ctx.Deadline(); ok {
		_ = s.conn.SetDeadline(deadline)
	} else {
		_ = s.conn.SetDeadline(time.Now().Add(handshakeTimeout))
	}
	defer s.conn.SetDeadline(time.Time{})

	keys, err := GenerateDHKeys()
	if err != nil {
		return err
	}

	// ClientHello: [magic u16][len u32][version u16][公钥 96][nonce 16]
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return cryptoError("生成握手随机数失败: %v", err)
	}
	hello := make([]byte, 0, 2+4+2+dhKeySize+nonceSize)
	hello = binary.BigEndian.AppendUint16(hello, helloMagic)
	hello = binary.BigEndian.AppendUint32(hello, uint32(2+4+2+dhKeySize+nonceSize))
	hello = binary.BigEndian.AppendUint16(hello, helloVersion)
	hello = append(hello, keys.PublicKey()...)
	hello = append(hello, nonce[:]...)

	if _, err := s.conn.Write(hello); err != nil {
		return transportError("发送握手请求", err)
	}

	// APResponse: [len u32][公钥 96][nonce 16][challenge 20]
	var respLen [4]byte
	if _, err := io.ReadFull(s.conn, respLen[:]); err != nil {
		return transportError("读取握手应答", err)
	}
	bodyLen := int(binary.BigEndian.Uint32(respLen[:])) - 4
	if bodyLen != dhKeySize+nonceSize+challengeLen {
		return protocolError("握手应答长度非法: %d", bodyLen)
	}
	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(s.conn, body); err != nil {
		return transportError("读取握手应答", err)
	}

	remotePublic := body[:dhKeySize]
	exchange := body[:dhKeySize+nonceSize]
	remoteChallenge := body[dhKeySize+nonceSize:]

	shared := keys.SharedSecret(remotePublic)
	derived := deriveKeys(shared, hello, exchange)

	expected := challengeAnswer(derived.challengeKey, hello, exchange)
	if !hmac.Equal(remoteChallenge, expected) {
		return protocolError("握手校验值不匹配")
	}

	// ClientResponse: [len u32][answer 20]
	answer := challengeAnswer(derived.challengeKey, exchange, hello)
	resp := make([]byte, 0, 4+challengeLen)
	resp = binary.BigEndian.AppendUint32(resp, uint32(4+challengeLen))
	resp = append(resp, answer...)
	if _, err := s.conn.Write(resp); err != nil {
		return transportError("发送握手应答", err)
	}

	// 此后每一帧都经由这对全新的流密码状态
	if s.send, err = newFrameCipher(derived.sendKey, derived.sendMacKey); err != nil {
		return err
	}
	if s.recv, err = newFrameCipher(derived.recvKey, derived.recvMacKey); err != nil {
		return err
	}
	return nil
}

// State 返回当前会话状态
func (s *Session) State() State {
	return State(s.state.Load())
}

// DeviceId 返回本进程的设备标识
func (s *Session) DeviceId() string {
	return s.deviceId
}

// Close 关闭连接并使会话回到 Disconnected
func (s *Session) Close() error {
	s.state.Store(int32(StateDisconnected))
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// teardown 在不可恢复的错误后强制断开
func (s *Session) teardown(reason error) {
	logger.Warn("会话被强制断开", logger.ErrorField(reason))
	_ = s.Close()
}

// SendFrame 加密并发送一帧。同一方向的调用被内部互斥锁串行化。
func (s *Session) SendFrame(cmd byte, payload []byte) error {
	if len(payload) > maxPayloadSize {
		return protocolError("负载过长: %d", len(payload))
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	if s.State() == StateDisconnected || s.send == nil {
		return ErrSessionClosed
	}

	frame := s.send.sealFrame(cmd, payload)
	if _, err := s.conn.Write(frame); err != nil {
		err = transportError("发送帧", err)
		s.teardown(err)
		return err
	}
	return nil
}

// ReceiveFrame 阻塞读取并解密下一帧。MAC 校验失败视为协议错误，
// 会话直接断开，调用方必须重新连接。
func (s *Session) ReceiveFrame() (byte, []byte, error) {
	s.recvMu.Lock()
	defer s.recvMu.Unlock()
	return s.receiveFrameLocked()
}

func (s *Session) receiveFrameLocked() (byte, []byte, error) {
	if s.State() == StateDisconnected || s.recv == nil {
		return 0, nil, ErrSessionClosed
	}

	encHeader := make([]byte, frameHeaderSize)
	n, err := io.ReadFull(s.conn, encHeader)
	if err != nil {
		// 帧头一个字节都没读到的超时是干净的，密码状态未被推进
		if n == 0 && isTimeout(err) {
			return 0, nil, fmt.Errorf("%w: 等待帧超时", ErrTransport)
		}
		err = transportError("读取帧头", err)
		s.teardown(err)
		return 0, nil, err
	}

	cmd, payloadLen := s.recv.openHeader(encHeader)

	rest := make([]byte, payloadLen+frameMacSize)
	if _, err := io.ReadFull(s.conn, rest); err != nil {
		err = transportError("读取帧体", err)
		s.teardown(err)
		return 0, nil, err
	}

	payload, ok := s.recv.openPayload(encHeader, rest[:payloadLen], rest[payloadLen:])
	if !ok {
		err := protocolError("帧 MAC 校验失败")
		s.teardown(err)
		return 0, nil, err
	}
	return cmd, payload, nil
}

func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, os.ErrDeadlineExceeded)
}

// Authenticate 通过加密通道发送登录帧并等待应答。
// 成功后会话进入 Established。
func (s *Session) Authenticate(creds model.Credentials) (*model.UserInfo, error) {
	if s.State() != StateAuthenticating {
		return nil, protocolError("会话状态 %s 不允许登录", s.State())
	}

	payload := appendLenPrefixed(nil, []byte(creds.Username))
	payload = appendLenPrefixed(payload, []byte(creds.Password))
	payload = appendLenPrefixed(payload, []byte(s.deviceId))

	if err := s.SendFrame(CmdLogin, payload); err != nil {
		return nil, err
	}

	cmd, resp, err := s.ReceiveFrame()
	if err != nil {
		return nil, err
	}

	switch cmd {
	case CmdAPWelcome:
		username, rest, ok := readLenPrefixed(resp)
		if !ok {
			err := protocolError("登录应答格式非法")
			s.teardown(err)
			return nil, err
		}
		country, _, _ := readLenPrefixed(rest)
		s.state.Store(int32(StateEstablished))
		logger.Info("登录成功", logger.String("username", string(username)))
		return &model.UserInfo{
			Username:    string(username),
			CountryCode: string(country),
		}, nil

	case CmdAuthFailure:
		if len(resp) >= 2 && binary.BigEndian.Uint16(resp[:2]) == authErrBadCredentials {
			_ = s.Close()
			return nil, ErrBadCredentials
		}
		err := protocolError("登录失败，错误码 %x", resp)
		s.teardown(err)
		return nil, err

	default:
		err := protocolError("登录期间收到预期外的帧 0x%02x", cmd)
		s.teardown(err)
		return nil, err
	}
}

func appendLenPrefixed(buf, field []byte) []byte {
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(field)))
	return append(buf, field...)
}

func readLenPrefixed(buf []byte) (field, rest []byte, ok bool) {
	if len(buf) < 2 {
		return nil, nil, false
	}
	n := int(binary.BigEndian.Uint16(buf[:2]))
	if len(buf) < 2+n {
		return nil, nil, false
	}
	return buf[2 : 2+n], buf[2+n:], true
}
