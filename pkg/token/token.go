package token

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"time"
)

// NewSessionToken 生成一个32字节的高熵会话令牌。
// 它返回的是URL安全的Base64编码字符串，不带padding。
func NewSessionToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// NewSetID 生成一个16字节的随机题目集ID。
func NewSetID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// NewVersionToken 根据给定的时间生成一个16字节的、抗冲突的版本令牌。
// 结构: [ 8字节纳秒时间戳 (Big Endian) | 8字节随机数 ]
// 每次生成的令牌都不同，用于让旧的排行榜缓存键自然失效。
func NewVersionToken(t time.Time) (string, error) {
	b := make([]byte, 16)

	// 1. 写入8字节的纳秒时间戳
	binary.BigEndian.PutUint64(b[0:8], uint64(t.UnixNano()))

	// 2. 写入8字节的随机数
	if _, err := rand.Read(b[8:16]); err != nil {
		return "", err
	}

	// 3. 使用URL安全的Base64编码，没有padding，更紧凑
	return base64.RawURLEncoding.EncodeToString(b), nil
}
