package common

import (
	"fmt"
	"math/big"
	"strings"
)

// ParseBigOrHex converts a decimal or 0x-prefixed hex string into a non-negative big integer.
func ParseBigOrHex(val string) (*big.Int, error) {
	str := strings.TrimSpace(val)
	base := 10

	if strings.HasPrefix(str, "0x") || strings.HasPrefix(str, "0X") {
		str = str[2:]
		base = 16
	}

	n, ok := new(big.Int).SetString(str, base)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", val)
	}
	if n.Sign() < 0 {
		return nil, fmt.Errorf("negative integer %q", val)
	}

	return n, nil
}

const bytesInMB = 1024 * 1024

func BytesToMB(bytes uint64) uint64 {
	return bytes / bytesInMB
}

func ToLowerWithTrim(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
