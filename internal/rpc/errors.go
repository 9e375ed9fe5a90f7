package rpc

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/ethereum/go-ethereum/rpc"
	icommon "github.com/goran-ethernal/MarketIndexor/internal/common"
)

var (
	tooManyResultsRe = regexp.MustCompile(`(?i)(query returned more than \d+ results|too many results|block range (is )?too (large|wide))`)
	blockRangeRe     = regexp.MustCompile(`\[(0x[0-9a-fA-F]+),\s*(0x[0-9a-fA-F]+)\]`)
)

// IsTooManyResultsError reports whether err is a provider refusing an eth_getLogs range
// as too large. The provider message is returned alongside so a suggested range can be parsed.
func IsTooManyResultsError(err error) (bool, string) {
	if err == nil {
		return false, ""
	}

	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		errData := fmt.Sprintf("%v", dataErr.ErrorData())
		return tooManyResultsRe.MatchString(errData), errData
	}

	msg := err.Error()
	return tooManyResultsRe.MatchString(msg), msg
}

// ParseSuggestedBlockRange extracts the "[0xfrom, 0xto]" range some providers put in
// the too many results message.
func ParseSuggestedBlockRange(msg string) (fromBlock, toBlock uint64, ok bool) {
	matches := blockRangeRe.FindStringSubmatch(msg)

	const expectedMatches = 3 // full match + 2 groups
	if len(matches) != expectedMatches {
		return 0, 0, false
	}

	from, err := icommon.ParseBigOrHex(matches[1])
	if err != nil || !from.IsUint64() {
		return 0, 0, false
	}
	to, err := icommon.ParseBigOrHex(matches[2])
	if err != nil || !to.IsUint64() {
		return 0, 0, false
	}

	return from.Uint64(), to.Uint64(), true
}
