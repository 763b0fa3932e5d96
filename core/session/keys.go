package session

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"math/big"
)

// 握手使用固定素数与生成元的有限域 Diffie-Hellman，
// 素数为 RFC 2409 定义的 768 位 MODP 群
const dhPrimeHex = "ffffffffffffffffc90fdaa22168c234c4c6628b80dc1cd129024e088a67cc74" +
	"020bbea63b139b22514a08798e3404ddef9519b3cd3a431b302b0a6df25f1437" +
	"4fe1356d6d51c245e485b576625e7ec6f44c42e9a63a3620ffffffffffffffff"

const dhKeySize = 96 // 素数长度，公钥与共享密钥都左补零到该长度

var (
	dhPrime, _  = new(big.Int).SetString(dhPrimeHex, 16)
	dhGenerator = big.NewInt(2)
)

// DHLocalKeys 持有一次握手的本端私钥指数和公钥值。
// 每次握手都必须重新生成，私钥永不复用。
type DHLocalKeys struct {
	private *big.Int
	public  *big.Int
}

// GenerateDHKeys 随机生成本端密钥对
func GenerateDHKeys() (*DHLocalKeys, error) {
	buf := make([]byte, dhKeySize-1)
	if _, err := rand.Read(buf); err != nil {
		return nil, cryptoError("生成私钥随机数失败: %v", err)
	}
	private := new(big.Int).SetBytes(buf)
	public := new(big.Int).Exp(dhGenerator, private, dhPrime)
	return &DHLocalKeys{private: private, public: public}, nil
}

// PublicKey 返回左补零到 96 字节的公钥值
func (k *DHLocalKeys) PublicKey() []byte {
	return leftPad(k.public.Bytes(), dhKeySize)
}

// SharedSecret 用对端公钥计算共享密钥（模幂运算），结果左补零到 96 字节
func (k *DHLocalKeys) SharedSecret(remotePublic []byte) []byte {
	remote := new(big.Int).SetBytes(remotePublic)
	shared := new(big.Int).Exp(remote, k.private, dhPrime)
	return leftPad(shared.Bytes(), dhKeySize)
}

func leftPad(b []byte, size int) []byte {
	if len(b) >= size {
		return b
	}
	padded := make([]byte, size)
	copy(padded[size-len(b):], b)
	return padded
}

// sessionKeys 由共享密钥派生出的全部会话密钥材料
type sessionKeys struct {
	challengeKey []byte // 20 字节，用于握手校验
	sendKey      []byte // 32 字节，发送方向流密码密钥
	recvKey      []byte // 32 字节，接收方向流密码密钥
	sendMacKey   []byte // 20 字节，发送方向帧 MAC 密钥
	recvMacKey   []byte // 20 字节，接收方向帧 MAC 密钥
}

// deriveKeys 以 HMAC-SHA1 从共享密钥和两个握手报文扩展出会话密钥。
// 共享密钥每次握手都不同，因此各方向密钥在会话间绝不重复。
func deriveKeys(shared, clientPacket, apPacket []byte) sessionKeys {
	data := make([]byte, 0, 7*sha1.Size)
	for i := byte(1); i <= 7; i++ {
		mac := hmac.New(sha1.New, shared)
		mac.Write(clientPacket)
		mac.Write(apPacket)
		mac.Write([]byte{i})
		data = mac.Sum(data)
	}
	return sessionKeys{
		challengeKey: data[0:20],
		sendKey:      data[20:52],
		recvKey:      data[52:84],
		sendMacKey:   data[84:104],
		recvMacKey:   data[104:124],
	}
}

// challengeAnswer 计算握手校验值
func challengeAnswer(challengeKey []byte, packets ...[]byte) []byte {
	mac := hmac.New(sha1.New, challengeKey)
	for _, p := range packets {
		mac.Write(p)
	}
	return mac.Sum(nil)
}
