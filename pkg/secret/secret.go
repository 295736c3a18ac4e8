// Package secret はパスフレーズによる共通鍵暗号でユーザーのパスワードを保護する。
//
// 鍵はscryptでパスフレーズとソルトから導出し、NaCl secretboxで暗号化する。
// 暗号文は base64(salt ‖ nonce ‖ box) の形式で保存する。
package secret

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

const (
	saltLen  = 16
	nonceLen = 24
	keyLen   = 32

	// scryptのコストパラメータ。
	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

var (
	// ErrMalformed は暗号文の形式が不正であることを表す。
	ErrMalformed = errors.New("暗号文の形式が不正です")
	// ErrDecrypt は復号に失敗したことを表す（パスフレーズの不一致または改ざん）。
	ErrDecrypt = errors.New("暗号文の復号に失敗しました")
)

// Encrypt はplaintextをpassphraseで暗号化する。
// ソルトとノンスは毎回ランダムに生成するため、同じ入力でも結果は異なる。
func Encrypt(plaintext, passphrase string) (string, error) {
	var salt [saltLen]byte
	if _, err := rand.Read(salt[:]); err != nil {
		return "", fmt.Errorf("ソルトの生成に失敗: %w", err)
	}
	var nonce [nonceLen]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("ノンスの生成に失敗: %w", err)
	}

	key, err := deriveKey(passphrase, salt[:])
	if err != nil {
		return "", err
	}

	out := make([]byte, 0, saltLen+nonceLen+secretbox.Overhead+len(plaintext))
	out = append(out, salt[:]...)
	out = append(out, nonce[:]...)
	out = secretbox.Seal(out, []byte(plaintext), &nonce, key)

	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt はEncryptで生成した暗号文を復号する。
func Decrypt(ciphertext, passphrase string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(raw) < saltLen+nonceLen+secretbox.Overhead {
		return "", ErrMalformed
	}

	salt := raw[:saltLen]
	var nonce [nonceLen]byte
	copy(nonce[:], raw[saltLen:saltLen+nonceLen])
	box := raw[saltLen+nonceLen:]

	key, err := deriveKey(passphrase, salt)
	if err != nil {
		return "", err
	}

	plain, ok := secretbox.Open(nil, box, &nonce, key)
	if !ok {
		return "", ErrDecrypt
	}
	return string(plain), nil
}

// Matches は暗号文を復号した値がcandidateと一致するかを定数時間で比較する。
// 復号に失敗した場合はfalseを返す。
func Matches(ciphertext, passphrase, candidate string) bool {
	plain, err := Decrypt(ciphertext, passphrase)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(plain), []byte(candidate)) == 1
}

// deriveKey はパスフレーズとソルトからsecretbox用の鍵を導出する。
func deriveKey(passphrase string, salt []byte) (*[keyLen]byte, error) {
	derived, err := scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, keyLen)
	if err != nil {
		return nil, fmt.Errorf("鍵の導出に失敗: %w", err)
	}
	var key [keyLen]byte
	copy(key[:], derived)
	return &key, nil
}
