package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// decodeParams unmarshals the single parameter object every method takes.
// Unknown fields are rejected.
func decodeParams[T any](params []json.RawMessage) (T, error) {
	var out T
	if len(params) != 1 {
		return out, invalidParams("exactly one parameter object expected")
	}
	dec := json.NewDecoder(bytes.NewReader(params[0]))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return out, invalidParams("invalid parameter object: " + err.Error())
	}
	return out, nil
}

// parseAmount parses a positive base-10 amount.
func parseAmount(amount string) (*big.Int, error) {
	value, err := parseQuantity(amount)
	if err != nil {
		return nil, err
	}
	if value.Sign() <= 0 {
		return nil, invalidParams("amount must be positive")
	}
	return value, nil
}

// parseQuantity parses a non-negative base-10 integer.
func parseQuantity(amount string) (*big.Int, error) {
	trimmed := strings.TrimSpace(amount)
	if trimmed == "" {
		return nil, invalidParams("amount is required")
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, invalidParams(fmt.Sprintf("invalid amount %q", amount))
	}
	if value.Sign() < 0 {
		return nil, invalidParams("amount must not be negative")
	}
	return value, nil
}

func parseQuantities(values []string) ([]*big.Int, error) {
	out := make([]*big.Int, len(values))
	for i, v := range values {
		parsed, err := parseQuantity(v)
		if err != nil {
			return nil, err
		}
		out[i] = parsed
	}
	return out, nil
}

func parseAddress(field, value string) (common.Address, error) {
	trimmed := strings.TrimSpace(value)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, invalidParams(fmt.Sprintf("invalid %s address", field))
	}
	return common.HexToAddress(trimmed), nil
}

// parseOptionalAddress returns the zero address for an empty value.
func parseOptionalAddress(field, value string) (common.Address, error) {
	if strings.TrimSpace(value) == "" {
		return common.Address{}, nil
	}
	return parseAddress(field, value)
}

func parseAddresses(field string, values []string) ([]common.Address, error) {
	out := make([]common.Address, len(values))
	for i, v := range values {
		addr, err := parseAddress(field, v)
		if err != nil {
			return nil, err
		}
		out[i] = addr
	}
	return out, nil
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func formatAmounts(values []*big.Int) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = formatAmount(v)
	}
	return out
}
