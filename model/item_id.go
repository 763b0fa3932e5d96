package model

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/bits"
	"strings"
)

// URIScheme is the fixed scheme prefix for catalog item URIs.
const URIScheme = "lyra"

var (
	// ErrInvalidFormat 表示标识符文本格式非法
	ErrInvalidFormat = errors.New("invalid item id format")
	// ErrUnknownLocalId 表示本地注册表中不存在该条目
	ErrUnknownLocalId = errors.New("unknown local file id")
)

// ItemIdType is the discriminant tag of a catalog item.
type ItemIdType uint8

const (
	ItemIdTypeUnknown ItemIdType = iota
	ItemIdTypeTrack
	ItemIdTypeEpisode
	ItemIdTypePodcast
	ItemIdTypeLocal
)

// String returns the URI kind token for the type.
func (t ItemIdType) String() string {
	switch t {
	case ItemIdTypeTrack:
		return "track"
	case ItemIdTypeEpisode:
		return "episode"
	case ItemIdTypePodcast:
		return "show"
	case ItemIdTypeLocal:
		return "local"
	default:
		return "unknown"
	}
}

// itemIdTypeFromToken maps a URI kind token back to a type.
func itemIdTypeFromToken(token string) (ItemIdType, bool) {
	switch token {
	case "track":
		return ItemIdTypeTrack, true
	case "episode":
		return ItemIdTypeEpisode, true
	case "show":
		return ItemIdTypePodcast, true
	default:
		return ItemIdTypeUnknown, false
	}
}

// ItemId is a 128-bit catalog identifier plus a type tag. Two ItemIds are
// equal iff both the tag and the raw value are equal; the zero value is the
// invalid id.
type ItemId struct {
	Hi   uint64
	Lo   uint64
	Type ItemIdType
}

// InvalidItemId is the zero, untyped id.
var InvalidItemId = ItemId{}

// NewItemId builds an id from a low 64-bit value, mostly used in tests.
func NewItemId(lo uint64, t ItemIdType) ItemId {
	return ItemId{Lo: lo, Type: t}
}

// IsValid reports whether the id carries a known tag.
func (id ItemId) IsValid() bool {
	return id.Type != ItemIdTypeUnknown
}

const (
	base62Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	base62Length   = 22 // 固定长度：128 位值的 base62 编码恰好 22 个字符
	base16Length   = 32
	rawLength      = 16
)

var base62Index = func() [256]int8 {
	var idx [256]int8
	for i := range idx {
		idx[i] = -1
	}
	for i := 0; i < len(base62Alphabet); i++ {
		idx[base62Alphabet[i]] = int8(i)
	}
	return idx
}()

// divmod62 divides the 128-bit value by 62 and returns the remainder.
func divmod62(hi, lo uint64) (qhi, qlo, rem uint64) {
	qhi = hi / 62
	r := hi % 62
	qlo, rem = bits.Div64(r, lo, 62)
	return
}

// ToBase62 returns the fixed-length 22 character base62 form.
func (id ItemId) ToBase62() string {
	var buf [base62Length]byte
	hi, lo := id.Hi, id.Lo
	for i := base62Length - 1; i >= 0; i-- {
		var rem uint64
		hi, lo, rem = divmod62(hi, lo)
		buf[i] = base62Alphabet[rem]
	}
	return string(buf[:])
}

// FromBase62 parses a base62 string into an id with the given tag. Any
// character outside the alphabet fails; the empty string decodes to zero.
// 22 个字符最多可表示约 2^131，超出 128 位的值拒绝而不是截断。
func FromBase62(text string, t ItemIdType) (ItemId, error) {
	var hi, lo uint64
	for i := 0; i < len(text); i++ {
		v := base62Index[text[i]]
		if v < 0 {
			return InvalidItemId, fmt.Errorf("%w: 非法 base62 字符 %q", ErrInvalidFormat, text[i])
		}
		// 128 位乘加，按教科书方式拆分进位
		ph, pl := bits.Mul64(lo, 62)
		nl, carry := bits.Add64(pl, uint64(v), 0)
		hh, hl := bits.Mul64(hi, 62)
		nh, carry2 := bits.Add64(hl, ph+carry, 0)
		if hh != 0 || carry2 != 0 {
			return InvalidItemId, fmt.Errorf("%w: base62 值超出 128 位", ErrInvalidFormat)
		}
		hi, lo = nh, nl
	}
	return ItemId{Hi: hi, Lo: lo, Type: t}, nil
}

// ToBase16 returns the 32 character lowercase hex form.
func (id ItemId) ToBase16() string {
	return hex.EncodeToString(id.ToRaw())
}

// FromBase16 parses a hex string, case-insensitively, into an id with the
// given tag. Input longer than 32 characters cannot fit in 128 bits and fails.
func FromBase16(text string, t ItemIdType) (ItemId, error) {
	if len(text) > base16Length {
		return InvalidItemId, fmt.Errorf("%w: base16 长度应不超过 %d，实际 %d", ErrInvalidFormat, base16Length, len(text))
	}
	var hi, lo uint64
	for i := 0; i < len(text); i++ {
		c := text[i]
		var v uint64
		switch {
		case c >= '0' && c <= '9':
			v = uint64(c - '0')
		case c >= 'a' && c <= 'f':
			v = uint64(c-'a') + 10
		case c >= 'A' && c <= 'F':
			v = uint64(c-'A') + 10
		default:
			return InvalidItemId, fmt.Errorf("%w: 非法 base16 字符 %q", ErrInvalidFormat, c)
		}
		hi = hi<<4 | lo>>60
		lo = lo<<4 | v
	}
	return ItemId{Hi: hi, Lo: lo, Type: t}, nil
}

// ToRaw returns the 16-byte big-endian binary form.
func (id ItemId) ToRaw() []byte {
	raw := make([]byte, rawLength)
	for i := 0; i < 8; i++ {
		raw[i] = byte(id.Hi >> (56 - 8*i))
		raw[8+i] = byte(id.Lo >> (56 - 8*i))
	}
	return raw
}

// FromRaw parses the 16-byte binary form; any other length fails.
func FromRaw(raw []byte, t ItemIdType) (ItemId, error) {
	if len(raw) != rawLength {
		return InvalidItemId, fmt.Errorf("%w: 原始字节长度应为 %d，实际 %d", ErrInvalidFormat, rawLength, len(raw))
	}
	var hi, lo uint64
	for i := 0; i < 8; i++ {
		hi = hi<<8 | uint64(raw[i])
		lo = lo<<8 | uint64(raw[8+i])
	}
	return ItemId{Hi: hi, Lo: lo, Type: t}, nil
}

// ParseURI parses a `lyra:kind:base62id` URI. Unknown kind tokens and
// malformed or wrong-length id payloads fail with ErrInvalidFormat.
func ParseURI(uri string) (ItemId, error) {
	parts := strings.Split(uri, ":")
	if len(parts) != 3 {
		return InvalidItemId, fmt.Errorf("%w: URI 应为 scheme:kind:id 形式", ErrInvalidFormat)
	}
	if parts[0] != URIScheme {
		return InvalidItemId, fmt.Errorf("%w: 未知 scheme %q", ErrInvalidFormat, parts[0])
	}
	t, ok := itemIdTypeFromToken(parts[1])
	if !ok {
		return InvalidItemId, fmt.Errorf("%w: 未知类型 %q", ErrInvalidFormat, parts[1])
	}
	if len(parts[2]) != base62Length {
		return InvalidItemId, fmt.Errorf("%w: id 长度应为 %d，实际 %d", ErrInvalidFormat, base62Length, len(parts[2]))
	}
	return FromBase62(parts[2], t)
}

// ToURI returns the canonical URI. Local and untyped items are not globally
// addressable and return false.
func (id ItemId) ToURI() (string, bool) {
	switch id.Type {
	case ItemIdTypeTrack, ItemIdTypeEpisode, ItemIdTypePodcast:
		return fmt.Sprintf("%s:%s:%s", URIScheme, id.Type, id.ToBase62()), true
	default:
		return "", false
	}
}

// FileId is the 20-byte identifier of an encoded audio file on the CDN.
type FileId [20]byte

// FileIdFromRaw parses a 20-byte file id; any other length fails.
func FileIdFromRaw(raw []byte) (FileId, error) {
	var f FileId
	if len(raw) != len(f) {
		return f, fmt.Errorf("%w: 文件 id 长度应为 %d，实际 %d", ErrInvalidFormat, len(f), len(raw))
	}
	copy(f[:], raw)
	return f, nil
}

// ToBase16 returns the 40 character lowercase hex form of the file id.
func (f FileId) ToBase16() string {
	return hex.EncodeToString(f[:])
}
