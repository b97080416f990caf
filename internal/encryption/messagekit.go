package encryption

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/fxamacker/cbor/v2"
)

const messageKitVersion = 1

// Authorization — подпись идентичности, разрешающая запрос на шифрование.
type Authorization struct {
	Signer    []byte `cbor:"signer"` // 20 байт адреса
	Signature []byte `cbor:"signature"`
}

// MessageKit — непрозрачный результат шифрования, который уходит в хранилище.
type MessageKit struct {
	Version    int            `cbor:"v"`
	Domain     string         `cbor:"domain"`
	RitualID   uint32         `cbor:"ritual"`
	Condition  []byte         `cbor:"condition"`
	Ciphertext []byte         `cbor:"ciphertext"`
	Auth       *Authorization `cbor:"auth,omitempty"`
}

// digest связывает шифртекст с условием.
func (k *MessageKit) digest() []byte {
	return crypto.Keccak256(k.Ciphertext, k.Condition)
}

// Marshal кодирует набор в CBOR.
func (k *MessageKit) Marshal() ([]byte, error) {
	return detEnc.Marshal(k)
}

// DecodeMessageKit разбирает результат Encrypt.
func DecodeMessageKit(data []byte) (*MessageKit, error) {
	var k MessageKit
	if err := cbor.Unmarshal(data, &k); err != nil {
		return nil, fmt.Errorf("decoding message kit: %w", err)
	}
	if k.Version != messageKitVersion {
		return nil, fmt.Errorf("unsupported message kit version %d", k.Version)
	}
	return &k, nil
}

// DecodedCondition возвращает условие, к которому привязан шифртекст.
func (k *MessageKit) DecodedCondition() (Condition, error) {
	var c Condition
	err := cbor.Unmarshal(k.Condition, &c)
	return c, err
}

// VerifyAuthorization проверяет подпись и возвращает адрес подписанта.
func (k *MessageKit) VerifyAuthorization() (common.Address, error) {
	if k.Auth == nil {
		return common.Address{}, errors.New("message kit is not signed")
	}
	pub, err := crypto.SigToPub(k.digest(), k.Auth.Signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("recovering signer: %w", err)
	}
	addr := crypto.PubkeyToAddress(*pub)
	if !bytes.Equal(addr.Bytes(), k.Auth.Signer) {
		return common.Address{}, errors.New("signature does not match signer")
	}
	return addr, nil
}
