// internal/provider/onchain.go
package provider

import (
	"context"
	"fmt"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/token-scanner/internal/domain"
	"github.com/rovshanmuradov/token-scanner/internal/ratelimit"
)

const (
	OnChainName = "rpc"
	topHolders  = 10
)

// chainRPC is the part of *rpc.Client the security lookup needs.
type chainRPC interface {
	GetAccountDataInto(ctx context.Context, account solana.PublicKey, inVar interface{}) error
	GetTokenLargestAccounts(ctx context.Context, tokenMint solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetTokenLargestAccountsResult, error)
}

// OnChain reads mint authorities and the largest holders straight from a Solana RPC node.
type OnChain struct {
	*guard
	rpc chainRPC
}

// NewOnChain создает источник данных безопасности поверх RPC-клиента
func NewOnChain(client chainRPC, gate *ratelimit.Gate, cfg GuardConfig, rec Recorder, logger *zap.Logger) *OnChain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OnChain{
		guard: newGuard(OnChainName, gate, cfg, rec, logger.Named(OnChainName)),
		rpc:   client,
	}
}

// NewOnChainURL dials rpcURL with the stock solana-go client.
func NewOnChainURL(rpcURL string, gate *ratelimit.Gate, cfg GuardConfig, rec Recorder, logger *zap.Logger) *OnChain {
	return NewOnChain(rpc.New(rpcURL), gate, cfg, rec, logger)
}

// Security returns authority flags and the share of supply held by the top 10 accounts.
// Top10Pct stays nil when the holder query fails while the mint read succeeded.
func (o *OnChain) Security(ctx context.Context, mint string) (domain.Security, error) {
	key, err := domain.ParseMint(mint)
	if err != nil {
		return domain.Security{}, &Error{Provider: OnChainName, Op: "mint", Reason: ReasonDecode, Err: err}
	}

	var m token.Mint
	err = o.run(ctx, "mint", func(ctx context.Context) error {
		return o.rpc.GetAccountDataInto(ctx, key, &m)
	})
	if err != nil {
		return domain.Security{}, err
	}

	sec := domain.Security{
		MintAuthorityActive:   m.MintAuthority != nil,
		FreezeAuthorityActive: m.FreezeAuthority != nil,
	}

	var largest *rpc.GetTokenLargestAccountsResult
	err = o.run(ctx, "largest_accounts", func(ctx context.Context) error {
		var err error
		largest, err = o.rpc.GetTokenLargestAccounts(ctx, key, rpc.CommitmentConfirmed)
		return err
	})
	if err != nil {
		o.logger.Debug("top holders unavailable", zap.String("mint", mint), zap.Error(err))
		return sec, nil
	}

	pct, err := topShare(largest, m.Supply)
	if err != nil {
		o.logger.Debug("top holders not computable", zap.String("mint", mint), zap.Error(err))
		return sec, nil
	}
	sec.Top10Pct = pct
	return sec, nil
}

func topShare(res *rpc.GetTokenLargestAccountsResult, supply uint64) (*float64, error) {
	if supply == 0 {
		return nil, fmt.Errorf("zero supply")
	}
	if res == nil {
		return nil, fmt.Errorf("empty largest accounts result")
	}

	var sum float64
	for i, acc := range res.Value {
		if i >= topHolders {
			break
		}
		if acc == nil {
			continue
		}
		amount, err := strconv.ParseUint(acc.Amount, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse amount %q: %w", acc.Amount, err)
		}
		sum += float64(amount)
	}
	return domain.Percent(sum / float64(supply) * 100), nil
}
