package session

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/binary"

	"golang.org/x/crypto/chacha20"
)

// 帧布局：[加密 1 字节命令][加密 2 字节大端负载长度][加密负载][4 字节 MAC]
const (
	frameHeaderSize = 3
	frameMacSize    = 4
	maxPayloadSize  = 0xffff
)

// frameCipher 单方向的帧加密状态。流密码状态是顺序推进的，
// 同一方向的帧必须严格按序加解密，乱序会破坏之后所有帧。
// 每次握手都会创建一对全新的 frameCipher，旧状态绝不复用。
type frameCipher struct {
	stream *chacha20.Cipher
	macKey []byte
	seq    uint32
}

func newFrameCipher(key, macKey []byte) (*frameCipher, error) {
	if len(key) != chacha20.KeySize {
		return nil, cryptoError("流密码密钥长度应为 %d，实际 %d", chacha20.KeySize, len(key))
	}
	// 密钥每个方向每次会话都唯一，nonce 取全零即可
	nonce := make([]byte, chacha20.NonceSize)
	stream, err := chacha20.NewUnauthenticatedCipher(key, nonce)
	if err != nil {
		return nil, cryptoError("初始化流密码失败: %v", err)
	}
	return &frameCipher{stream: stream, macKey: macKey}, nil
}

// sealFrame 加密一帧并附加 MAC，推进发送方向状态
func (c *frameCipher) sealFrame(cmd byte, payload []byte) []byte {
	frame := make([]byte, frameHeaderSize+len(payload)+frameMacSize)
	frame[0] = cmd
	binary.BigEndian.PutUint16(frame[1:3], uint16(len(payload)))
	copy(frame[frameHeaderSize:], payload)

	body := frame[:frameHeaderSize+len(payload)]
	c.stream.XORKeyStream(body, body)

	copy(frame[frameHeaderSize+len(payload):], c.frameMac(body))
	c.seq++
	return frame
}

// openHeader 解密帧头，返回命令字节和负载长度
func (c *frameCipher) openHeader(encHeader []byte) (byte, int) {
	header := make([]byte, frameHeaderSize)
	c.stream.XORKeyStream(header, encHeader)
	return header[0], int(binary.BigEndian.Uint16(header[1:3]))
}

// openPayload 解密负载并校验整帧 MAC，校验通过才推进序号
func (c *frameCipher) openPayload(encHeader, encPayload, mac []byte) ([]byte, bool) {
	expected := c.frameMac(append(append([]byte{}, encHeader...), encPayload...))
	payload := make([]byte, len(encPayload))
	c.stream.XORKeyStream(payload, encPayload)
	if !hmac.Equal(mac, expected) {
		return nil, false
	}
	c.seq++
	return payload, true
}

// frameMac 对密文计算 MAC，序号参与运算防止重放
func (c *frameCipher) frameMac(ciphertext []byte) []byte {
	mac := hmac.New(sha1.New, c.macKey)
	var seq [4]byte
	binary.BigEndian.PutUint32(seq[:], c.seq)
	mac.Write(seq[:])
	mac.Write(ciphertext)
	return mac.Sum(nil)[:frameMacSize]
}
