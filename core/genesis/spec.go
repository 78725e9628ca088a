package genesis

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"fortunex/crypto"
	"fortunex/native/lottery"
)

// Duration wraps time.Duration to support YAML unmarshalling.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses human readable duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be string")
	}
	raw := value.Value
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// GenesisSpec is the YAML bootstrap document of a fresh node.
type GenesisSpec struct {
	Registry RegistrySpec  `yaml:"registry"`
	Balances []BalanceSpec `yaml:"balances"`
	Pools    []PoolSpec    `yaml:"pools"`
}

type RegistrySpec struct {
	Authority       string   `yaml:"authority"`
	PlatformWallet  string   `yaml:"platform_wallet"`
	Unit            string   `yaml:"unit"`
	PlatformFeeBps  *uint32  `yaml:"platform_fee_bps"`
	BonusPoolFeeBps *uint32  `yaml:"bonus_pool_fee_bps"`
	Allowlist       []string `yaml:"allowlist"`
}

// BalanceSpec credits amount to the owner's payout address.
type BalanceSpec struct {
	Owner  string `yaml:"owner"`
	Amount uint64 `yaml:"amount"`
}

// PoolSpec opens a pool at genesis on behalf of an allow-listed creator.
type PoolSpec struct {
	Creator       string   `yaml:"creator"`
	TicketPrice   uint64   `yaml:"ticket_price"`
	MinTickets    uint64   `yaml:"min_tickets"`
	MaxTickets    uint64   `yaml:"max_tickets"`
	DrawInterval  Duration `yaml:"draw_interval"`
	CommissionBps uint32   `yaml:"commission_bps"`
}

// Resolved is the validated, address-decoded form of a GenesisSpec.
type Resolved struct {
	Authority       [20]byte
	PlatformWallet  [20]byte
	Unit            string
	PlatformFeeBps  uint32
	BonusPoolFeeBps uint32
	Allowlist       [][20]byte
	Balances        []ResolvedBalance
	Pools           []ResolvedPool
}

type ResolvedBalance struct {
	Owner  [20]byte
	Amount uint64
}

type ResolvedPool struct {
	Creator [20]byte
	Params  lottery.PoolParams
}

// LoadGenesisSpec reads and parses a YAML genesis file.
func LoadGenesisSpec(path string) (*GenesisSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis: %w", err)
	}
	return ParseGenesisSpec(data)
}

// ParseGenesisSpec decodes a YAML genesis document, rejecting unknown fields.
func ParseGenesisSpec(data []byte) (*GenesisSpec, error) {
	var spec GenesisSpec
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("decode genesis: %w", err)
	}
	return &spec, nil
}

// Resolve validates the spec and decodes every address.
func (s *GenesisSpec) Resolve() (*Resolved, error) {
	if s == nil {
		return nil, fmt.Errorf("genesis spec must not be nil")
	}
	authority, err := crypto.ParseAddress(s.Registry.Authority)
	if err != nil {
		return nil, fmt.Errorf("registry authority: %w", err)
	}
	wallet, err := crypto.ParseAddress(s.Registry.PlatformWallet)
	if err != nil {
		return nil, fmt.Errorf("registry platform_wallet: %w", err)
	}
	out := &Resolved{
		Authority:       authority,
		PlatformWallet:  wallet,
		Unit:            strings.ToUpper(strings.TrimSpace(s.Registry.Unit)),
		PlatformFeeBps:  lottery.DefaultPlatformFeeBps,
		BonusPoolFeeBps: lottery.DefaultPlatformFeeBps,
	}
	if s.Registry.PlatformFeeBps != nil {
		out.PlatformFeeBps = *s.Registry.PlatformFeeBps
	}
	if s.Registry.BonusPoolFeeBps != nil {
		out.BonusPoolFeeBps = *s.Registry.BonusPoolFeeBps
	}
	if _, err := lottery.NewRegistry(authority, wallet, out.Unit, out.PlatformFeeBps, out.BonusPoolFeeBps); err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	if len(s.Registry.Allowlist) > lottery.MaxAllowlistSize {
		return nil, fmt.Errorf("registry allowlist: %w", lottery.ErrWhitelistFull)
	}
	seen := make(map[[20]byte]struct{}, len(s.Registry.Allowlist))
	for i, raw := range s.Registry.Allowlist {
		addr, err := crypto.ParseAddress(raw)
		if err != nil {
			return nil, fmt.Errorf("registry allowlist[%d]: %w", i, err)
		}
		if _, dup := seen[addr]; dup {
			return nil, fmt.Errorf("registry allowlist[%d]: %w", i, lottery.ErrAlreadyWhitelisted)
		}
		seen[addr] = struct{}{}
		out.Allowlist = append(out.Allowlist, addr)
	}
	for i, bal := range s.Balances {
		owner, err := crypto.ParseAddress(bal.Owner)
		if err != nil {
			return nil, fmt.Errorf("balances[%d]: %w", i, err)
		}
		out.Balances = append(out.Balances, ResolvedBalance{Owner: owner, Amount: bal.Amount})
	}
	for i, pool := range s.Pools {
		creator, err := crypto.ParseAddress(pool.Creator)
		if err != nil {
			return nil, fmt.Errorf("pools[%d] creator: %w", i, err)
		}
		if _, ok := seen[creator]; !ok {
			return nil, fmt.Errorf("pools[%d]: %w", i, lottery.ErrCreatorNotAllowed)
		}
		if pool.DrawInterval.Duration%time.Second != 0 {
			return nil, fmt.Errorf("pools[%d]: draw_interval must be whole seconds", i)
		}
		out.Pools = append(out.Pools, ResolvedPool{
			Creator: creator,
			Params: lottery.PoolParams{
				TicketPrice:   pool.TicketPrice,
				MinTickets:    pool.MinTickets,
				MaxTickets:    pool.MaxTickets,
				DrawInterval:  int64(pool.DrawInterval.Duration / time.Second),
				CommissionBps: pool.CommissionBps,
			},
		})
	}
	return out, nil
}
