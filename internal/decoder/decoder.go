// Package decoder turns raw contract logs into typed domain events.
//
// Dispatch is a table lookup keyed by the emitting contract's role and the log's
// first topic. Logs that miss the table are reported as ErrUnrecognizedEvent.
package decoder

import (
	"fmt"
	"math/big"
	"slices"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/goran-ethernal/MarketIndexor/internal/logger"
	"github.com/goran-ethernal/MarketIndexor/pkg/config"
	"github.com/goran-ethernal/MarketIndexor/pkg/events"
)

type decodeFunc func(f *fields, meta events.Meta) events.Event

type handler struct {
	kind   events.Kind
	event  abi.Event
	decode decodeFunc
}

var decodeFuncs = map[events.Kind]decodeFunc{
	events.KindProposalCreated:     decodeProposalCreated,
	events.KindProposalCostCharged: decodeProposalCostCharged,
	events.KindBetPlaced:           decodeBetPlaced,
	events.KindMarketResolved:      decodeMarketResolved,
	events.KindClaimed:             decodeClaimed,
	events.KindAgentRegistered:     decodeAgentRegistered,
}

// Decoder maps raw logs of the configured contracts to domain events.
// It holds no mutable state after construction and is safe for concurrent use.
type Decoder struct {
	contracts map[events.Role]common.Address
	roles     map[common.Address]events.Role
	handlers  map[events.Role]map[common.Hash]handler
	log       *logger.Logger
}

// ContractsFromConfig maps the configured contract addresses to their roles.
func ContractsFromConfig(cfg config.ContractsConfig) map[events.Role]common.Address {
	return map[events.Role]common.Address{
		events.RoleGovernance:       common.HexToAddress(cfg.Governance),
		events.RolePredictionMarket: common.HexToAddress(cfg.PredictionMarket),
		events.RoleAgentRegistry:    common.HexToAddress(cfg.AgentRegistry),
	}
}

// New builds the dispatch table for the given contracts.
func New(contracts map[events.Role]common.Address, log *logger.Logger) (*Decoder, error) {
	abis, err := ContractABIs()
	if err != nil {
		return nil, err
	}

	d := &Decoder{
		contracts: make(map[events.Role]common.Address, len(contracts)),
		roles:     make(map[common.Address]events.Role, len(contracts)),
		handlers:  make(map[events.Role]map[common.Hash]handler, len(contracts)),
		log:       log,
	}

	for role, addr := range contracts {
		contractABI, ok := abis[role]
		if !ok {
			return nil, fmt.Errorf("unknown contract role %q", role)
		}
		if other, dup := d.roles[addr]; dup {
			return nil, fmt.Errorf("contract %s configured as both %s and %s", addr.Hex(), other, role)
		}

		table := make(map[common.Hash]handler, len(contractABI.Events))
		for name, ev := range contractABI.Events {
			kind := events.Kind(name)
			fn, ok := decodeFuncs[kind]
			if !ok {
				continue
			}
			table[ev.ID] = handler{kind: kind, event: ev, decode: fn}
		}

		d.contracts[role] = addr
		d.roles[addr] = role
		d.handlers[role] = table

		log.Debugf("registered %d events for %s contract %s", len(table), role, addr.Hex())
	}

	return d, nil
}

// Contract returns the address configured for role.
func (d *Decoder) Contract(role events.Role) (common.Address, bool) {
	addr, ok := d.contracts[role]
	return addr, ok
}

// Topics returns the event signature hashes indexed for role, sorted.
func (d *Decoder) Topics(role events.Role) []common.Hash {
	topics := make([]common.Hash, 0, len(d.handlers[role]))
	for topic := range d.handlers[role] {
		topics = append(topics, topic)
	}
	slices.SortFunc(topics, func(a, b common.Hash) int { return a.Cmp(b) })

	return topics
}

// Decode returns the domain event for raw. It fails with ErrUnrecognizedEvent for logs
// from unknown contracts or with unknown signatures, and with *MalformedLogError when a
// known signature does not decode.
func (d *Decoder) Decode(raw types.Log) (events.Event, error) {
	role, ok := d.roles[raw.Address]
	if !ok || len(raw.Topics) == 0 {
		unrecognizedInc(string(role))
		return nil, ErrUnrecognizedEvent
	}

	h, ok := d.handlers[role][raw.Topics[0]]
	if !ok {
		unrecognizedInc(string(role))
		return nil, ErrUnrecognizedEvent
	}

	meta := events.Meta{
		Role:        role,
		Contract:    raw.Address,
		BlockNumber: raw.BlockNumber,
		LogIndex:    raw.Index,
		TxHash:      raw.TxHash,
	}

	f, err := unpack(h.event, raw)
	var ev events.Event
	if err == nil {
		ev = h.decode(f, meta)
		err = f.err
	}
	if err != nil {
		malformedInc(string(h.kind))
		return nil, &MalformedLogError{
			Role:        role,
			Event:       h.kind,
			BlockNumber: raw.BlockNumber,
			LogIndex:    raw.Index,
			Err:         err,
		}
	}

	decodedInc(string(h.kind))
	return ev, nil
}

// fields holds the decoded arguments of one log by ABI name. The first lookup
// failure is kept in err and turns later lookups into no-ops.
type fields struct {
	values map[string]any
	err    error
}

func unpack(ev abi.Event, raw types.Log) (*fields, error) {
	var indexed abi.Arguments
	for _, arg := range ev.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}

	if len(raw.Topics) != len(indexed)+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", len(indexed)+1, len(raw.Topics))
	}

	values := make(map[string]any, len(ev.Inputs))
	if err := abi.ParseTopicsIntoMap(values, indexed, raw.Topics[1:]); err != nil {
		return nil, fmt.Errorf("parse topics: %w", err)
	}
	if err := ev.Inputs.NonIndexed().UnpackIntoMap(values, raw.Data); err != nil {
		return nil, fmt.Errorf("unpack data: %w", err)
	}

	return &fields{values: values}, nil
}

func field[T any](f *fields, name string) T {
	var zero T
	if f.err != nil {
		return zero
	}

	raw, ok := f.values[name]
	if !ok {
		f.err = fmt.Errorf("missing field %s", name)
		return zero
	}

	v, ok := raw.(T)
	if !ok {
		f.err = fmt.Errorf("field %s: unexpected type %T", name, raw)
		return zero
	}

	return v
}

func (f *fields) big(name string) *big.Int {
	return field[*big.Int](f, name)
}

func (f *fields) id(name string) string {
	if n := f.big(name); n != nil {
		return n.String()
	}
	return ""
}

func (f *fields) address(name string) string {
	return strings.ToLower(field[common.Address](f, name).Hex())
}

func (f *fields) flag(name string) bool {
	return field[bool](f, name)
}

func (f *fields) text(name string) string {
	return field[string](f, name)
}

func decodeProposalCreated(f *fields, meta events.Meta) events.Event {
	title, description := ParseDescription(f.text("description"))

	return &events.ProposalCreated{
		Meta:        meta,
		ProposalID:  f.id("proposalId"),
		Proposer:    f.address("proposer"),
		Title:       title,
		Description: description,
		VoteStart:   f.big("voteStart"),
		VoteEnd:     f.big("voteEnd"),
	}
}

func decodeProposalCostCharged(f *fields, meta events.Meta) events.Event {
	return &events.ProposalCostCharged{
		Meta:       meta,
		ProposalID: f.id("proposalId"),
		Proposer:   f.address("proposer"),
		CategoryID: f.big("categoryId"),
		Cost:       f.big("cost"),
	}
}

func decodeBetPlaced(f *fields, meta events.Meta) events.Event {
	return &events.BetPlaced{
		Meta:       meta,
		ProposalID: f.id("proposalId"),
		Bettor:     f.address("bettor"),
		Side:       f.flag("support"),
		Amount:     f.big("amount"),
	}
}

func decodeMarketResolved(f *fields, meta events.Meta) events.Event {
	return &events.MarketResolved{
		Meta:        meta,
		ProposalID:  f.id("proposalId"),
		Outcome:     f.flag("outcome"),
		TotalYes:    f.big("totalYes"),
		TotalNo:     f.big("totalNo"),
		PlatformFee: f.big("platformFee"),
	}
}

func decodeClaimed(f *fields, meta events.Meta) events.Event {
	return &events.Claimed{
		Meta:       meta,
		ProposalID: f.id("proposalId"),
		Bettor:     f.address("bettor"),
		Payout:     f.big("payout"),
	}
}

func decodeAgentRegistered(f *fields, meta events.Meta) events.Event {
	return &events.AgentRegistered{
		Meta:    meta,
		Address: f.address("agent"),
	}
}
