package audio

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	"LyraFM/core/session"
)

// 所有文件共用的 CTR 初始向量；密钥按文件协商，因此密钥流不会重复
var audioIV = [16]byte{
	0x72, 0xe0, 0x67, 0xfb, 0xdd, 0xcb, 0xcf, 0x77,
	0xeb, 0xe8, 0xbc, 0x64, 0x3f, 0x63, 0x0d, 0x93,
}

// decryptAudio 以 AES-128-CTR 解密整个音频文件
func decryptAudio(key session.AudioKey, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("初始化音频解密失败: %w", err)
	}
	out := make([]byte, len(data))
	cipher.NewCTR(block, audioIV[:]).XORKeyStream(out, data)
	return out, nil
}
