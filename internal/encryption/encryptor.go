// Package encryption шифрует показания под on-chain условием доступа.
//
// Пороговая сеть здесь внешний участник. Её ритуал публикует общий ключ
// шифрования (age X25519), а условие и подпись запроса упаковываются рядом с
// шифртекстом в MessageKit. Расшифровать данные могут только узлы сети после
// проверки условия.
package encryption

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"filippo.io/age"

	"SensorHub/internal/keystore"
)

// ErrEncryption — сеть или пороговая сеть недоступна, либо шифрование не удалось.
var ErrEncryption = errors.New("encryption failed")

// ChainReader — минимальный RPC-контракт; *ethclient.Client ему удовлетворяет.
type ChainReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
}

// ThresholdEncryptor шифрует данные для пороговой сети домена.
type ThresholdEncryptor struct {
	domain  string
	chain   ChainReader
	rituals RitualSource

	mu        sync.Mutex
	ready     bool
	ritual    Ritual
	recipient *age.X25519Recipient
}

// NewThresholdEncryptor создаёт шифратор. Сетевых вызовов не делает.
func NewThresholdEncryptor(domain string, chain ChainReader, rituals RitualSource) *ThresholdEncryptor {
	return &ThresholdEncryptor{domain: domain, chain: chain, rituals: rituals}
}

// initialize один раз на процесс получает параметры ритуала и проверяет RPC.
// Неудача не кэшируется.
func (e *ThresholdEncryptor) initialize(ctx context.Context, cond Condition) (Ritual, *age.X25519Recipient, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ready {
		return e.ritual, e.recipient, nil
	}

	id, err := e.chain.ChainID(ctx)
	if err != nil {
		return Ritual{}, nil, fmt.Errorf("%w: rpc unavailable: %v", ErrEncryption, err)
	}
	if want := new(big.Int).SetUint64(cond.ChainID()); id.Cmp(want) != 0 {
		return Ritual{}, nil, fmt.Errorf("%w: rpc chain %s does not match condition chain %s", ErrEncryption, id, want)
	}

	r, err := e.rituals.Ritual(ctx, e.domain)
	if err != nil {
		return Ritual{}, nil, fmt.Errorf("%w: threshold network unavailable: %v", ErrEncryption, err)
	}
	rcp, err := age.ParseX25519Recipient(r.PublicKey)
	if err != nil {
		return Ritual{}, nil, fmt.Errorf("%w: ritual public key: %v", ErrEncryption, err)
	}

	e.ritual, e.recipient, e.ready = r, rcp, true
	return r, rcp, nil
}

// Encrypt шифрует plaintext под условием cond от имени id.
// Если условие требует подписанта, а id == nil, это ошибка конфигурации: паника.
func (e *ThresholdEncryptor) Encrypt(ctx context.Context, plaintext []byte, cond Condition, id *keystore.Identity) ([]byte, error) {
	if cond.RequiresSigner() && id == nil {
		panic("encryption: condition requires a signer but none was supplied")
	}
	if err := cond.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryption, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryption, err)
	}

	ritual, rcp, err := e.initialize(ctx, cond)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, rcp)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryption, err)
	}
	if _, err := w.Write(plaintext); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryption, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryption, err)
	}

	condBytes, err := cond.Bytes()
	if err != nil {
		return nil, fmt.Errorf("%w: encoding condition: %v", ErrEncryption, err)
	}
	kit := &MessageKit{
		Version:    messageKitVersion,
		Domain:     e.domain,
		RitualID:   ritual.ID,
		Condition:  condBytes,
		Ciphertext: buf.Bytes(),
	}
	if id != nil {
		sig, err := id.Sign(kit.digest())
		if err != nil {
			return nil, fmt.Errorf("%w: signing request: %v", ErrEncryption, err)
		}
		kit.Auth = &Authorization{Signer: id.Address().Bytes(), Signature: sig}
	}

	out, err := kit.Marshal()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryption, err)
	}
	return out, nil
}
