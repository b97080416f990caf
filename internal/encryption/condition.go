package encryption

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fxamacker/cbor/v2"
)

// UserAddressParam — контекстная переменная, которую подставляет расшифровывающая сторона.
// Условие с этим параметром требует подписанта.
const UserAddressParam = ":userAddress"

// Kind — тег варианта условия.
type Kind string

const (
	KindContract Kind = "contract"
	KindTime     Kind = "time"
)

var comparators = map[string]struct{}{
	"==": {}, "!=": {}, ">": {}, "<": {}, ">=": {}, "<=": {},
}

// ReturnValueTest сравнивает результат вызова с ожидаемым значением.
type ReturnValueTest struct {
	Comparator string `cbor:"comparator" json:"comparator"`
	Value      any    `cbor:"value" json:"value"`
}

// ContractCondition — view-вызов метода контракта.
type ContractCondition struct {
	ContractAddress string          `cbor:"contractAddress" json:"contractAddress"`
	Chain           uint64          `cbor:"chain" json:"chain"`
	Method          string          `cbor:"method" json:"method"`
	Parameters      []string        `cbor:"parameters" json:"parameters"`
	ReturnValueTest ReturnValueTest `cbor:"returnValueTest" json:"returnValueTest"`
}

// TimeCondition открывает доступ после заданного времени блока. Подписант не нужен.
type TimeCondition struct {
	Chain        uint64 `cbor:"chain" json:"chain"`
	MinTimestamp uint64 `cbor:"minTimestamp" json:"minTimestamp"`
}

// Condition — неизменяемый предикат, который проверяется сетью при расшифровке.
// Заполнено ровно одно поле варианта, соответствующее Kind.
type Condition struct {
	Kind     Kind               `cbor:"kind" json:"kind"`
	Contract *ContractCondition `cbor:"contract,omitempty" json:"contract,omitempty"`
	Time     *TimeCondition     `cbor:"time,omitempty" json:"time,omitempty"`
}

// IsSubscribed строит условие isSubscribed(:userAddress) == true.
func IsSubscribed(contractAddress string, chain uint64) Condition {
	return Condition{
		Kind: KindContract,
		Contract: &ContractCondition{
			ContractAddress: contractAddress,
			Chain:           chain,
			Method:          "isSubscribed",
			Parameters:      []string{UserAddressParam},
			ReturnValueTest: ReturnValueTest{Comparator: "==", Value: true},
		},
	}
}

// AfterTimestamp строит условие по времени блока.
func AfterTimestamp(chain, ts uint64) Condition {
	return Condition{Kind: KindTime, Time: &TimeCondition{Chain: chain, MinTimestamp: ts}}
}

// RequiresSigner сообщает, нужна ли подпись для запроса на шифрование.
func (c Condition) RequiresSigner() bool {
	switch c.Kind {
	case KindContract:
		if c.Contract == nil {
			return false
		}
		for _, p := range c.Contract.Parameters {
			if p == UserAddressParam {
				return true
			}
		}
	}
	return false
}

// ChainID возвращает сеть, в которой проверяется условие.
func (c Condition) ChainID() uint64 {
	switch c.Kind {
	case KindContract:
		if c.Contract != nil {
			return c.Contract.Chain
		}
	case KindTime:
		if c.Time != nil {
			return c.Time.Chain
		}
	}
	return 0
}

// Validate проверяет условие перед использованием.
func (c Condition) Validate() error {
	switch c.Kind {
	case KindContract:
		cc := c.Contract
		if cc == nil || c.Time != nil {
			return errors.New("contract condition: variant mismatch")
		}
		if !common.IsHexAddress(cc.ContractAddress) {
			return fmt.Errorf("contract condition: invalid contract address %q", cc.ContractAddress)
		}
		if cc.Chain == 0 {
			return errors.New("contract condition: chain is required")
		}
		if cc.Method == "" {
			return errors.New("contract condition: method is required")
		}
		if _, ok := comparators[cc.ReturnValueTest.Comparator]; !ok {
			return fmt.Errorf("contract condition: unknown comparator %q", cc.ReturnValueTest.Comparator)
		}
	case KindTime:
		if c.Time == nil || c.Contract != nil {
			return errors.New("time condition: variant mismatch")
		}
		if c.Time.Chain == 0 {
			return errors.New("time condition: chain is required")
		}
	default:
		return fmt.Errorf("unknown condition kind %q", c.Kind)
	}
	return nil
}

var detEnc = mustDetEncMode()

func mustDetEncMode() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}

// Bytes возвращает детерминированное CBOR-представление условия.
func (c Condition) Bytes() ([]byte, error) {
	return detEnc.Marshal(c)
}
