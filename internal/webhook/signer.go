package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignatureHeader 签名头：十六进制 HMAC-SHA256，对请求体精确字节计算
const SignatureHeader = "x-webhook-signature"

// Signer 基于预共享密钥的签名器，收发双方各持一份同样的密钥
type Signer struct {
	secret []byte
}

func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Sign 对 body 计算十六进制 HMAC-SHA256 签名
func (s *Signer) Sign(body []byte) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify 重新计算签名并做恒定时间比较
// body 任何一个字节被篡改都会导致校验失败
func (s *Signer) Verify(body []byte, signature string) bool {
	expected, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), expected)
}
