package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"io"

	"github.com/lk2023060901/rmarshal-go/pkg/util/merr"
)

const aes256KeySizeBytes = 32

// AEADHMACCodec 使用 AES-256-GCM 加密，并对 nonce、密文与关联数据再做一层 HMAC-SHA256 签名。
//
// 报文格式：nonce || ciphertext || mac
type AEADHMACCodec struct {
	aead    cipher.AEAD
	hmacKey []byte
}

var _ Encryptor = (*AEADHMACCodec)(nil)

// NewAESGCMHMACCodec 创建编码器。encKey 必须为 32 字节，macKey 不能为空。
func NewAESGCMHMACCodec(encKey, macKey []byte) (*AEADHMACCodec, error) {
	if len(encKey) != aes256KeySizeBytes {
		return nil, merr.WrapErrParameterInvalid(aes256KeySizeBytes, len(encKey), "encryption key length")
	}
	if len(macKey) == 0 {
		return nil, merr.WrapErrParameterMissing("macKey")
	}
	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, merr.WrapErrStreamCrypto(err.Error())
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, merr.WrapErrStreamCrypto(err.Error())
	}
	return &AEADHMACCodec{
		aead:    aead,
		hmacKey: append([]byte(nil), macKey...),
	}, nil
}

func (c *AEADHMACCodec) Encrypt(plaintext, aad []byte) ([]byte, error) {
	nonceSize := c.aead.NonceSize()
	packet := make([]byte, nonceSize, nonceSize+len(plaintext)+c.aead.Overhead()+sha256.Size)
	if _, err := io.ReadFull(rand.Reader, packet); err != nil {
		return nil, merr.WrapErrStreamCrypto("nonce generation failed", err.Error())
	}
	packet = c.aead.Seal(packet, packet[:nonceSize], plaintext, aad)
	return c.sign(packet, packet, aad), nil
}

func (c *AEADHMACCodec) Decrypt(packet, aad []byte) ([]byte, error) {
	nonceSize := c.aead.NonceSize()
	if len(packet) < nonceSize+c.aead.Overhead()+sha256.Size {
		return nil, merr.WrapErrStreamCrypto("packet too short")
	}

	macOffset := len(packet) - sha256.Size
	body := packet[:macOffset]
	if !hmac.Equal(c.sign(nil, body, aad), packet[macOffset:]) {
		return nil, merr.WrapErrStreamCrypto("invalid mac")
	}

	plaintext, err := c.aead.Open(nil, body[:nonceSize], body[nonceSize:], aad)
	if err != nil {
		return nil, merr.WrapErrStreamCrypto("open failed", err.Error())
	}
	return plaintext, nil
}

// sign 计算 HMAC-SHA256(body || aad) 并追加到 dst。
func (c *AEADHMACCodec) sign(dst, body, aad []byte) []byte {
	m := hmac.New(sha256.New, c.hmacKey)
	_, _ = m.Write(body)
	_, _ = m.Write(aad)
	return m.Sum(dst)
}
