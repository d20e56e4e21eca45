package account

import (
	"context"
	"fmt"
	"log/slog"

	"TradingPlatform/internal/domain/models"
	"TradingPlatform/internal/http_client"
)

type CredentialSource interface {
	GetUserCredentials(ctx context.Context, userId string) (models.EncryptedCredentials, error)
}

type Decrypter interface {
	Decrypt(ciphertext string) (string, error)
}

type Exchange interface {
	GetAccount(ctx context.Context, creds http_client.Credentials) (http_client.AccountInfo, error)
}

// Account reads the user's exchange account through the same signed
// client the engine submits with.
type Account struct {
	log      *slog.Logger
	store    CredentialSource
	vault    Decrypter
	exchange Exchange
}

func New(log *slog.Logger, store CredentialSource, vault Decrypter, exchange Exchange) *Account {
	return &Account{
		log:      log,
		store:    store,
		vault:    vault,
		exchange: exchange,
	}
}

// Balance returns the account snapshot with zero balances filtered out.
func (a *Account) Balance(ctx context.Context, userId string) (http_client.AccountInfo, error) {
	const op = "account.Balance"

	creds, err := a.store.GetUserCredentials(ctx, userId)
	if err != nil {
		a.log.Error("failed to load credentials", "user_id", userId, "err", err)
		return http_client.AccountInfo{}, fmt.Errorf("%s: %w", op, err)
	}

	apiKey, err := a.vault.Decrypt(creds.APIKey)
	if err != nil {
		a.log.Error("failed to decrypt api key", "user_id", userId, "err", err)
		return http_client.AccountInfo{}, fmt.Errorf("%s: %w", op, err)
	}
	secretKey, err := a.vault.Decrypt(creds.SecretKey)
	if err != nil {
		a.log.Error("failed to decrypt secret key", "user_id", userId, "err", err)
		return http_client.AccountInfo{}, fmt.Errorf("%s: %w", op, err)
	}

	info, err := a.exchange.GetAccount(ctx, http_client.Credentials{APIKey: apiKey, SecretKey: secretKey})
	if err != nil {
		a.log.Error("failed to fetch account", "user_id", userId, "err", err)
		return http_client.AccountInfo{}, fmt.Errorf("%s: %w", op, err)
	}

	filtered := info.Balances[:0]
	for _, b := range info.Balances {
		if b.Free.IsPositive() || b.Locked.IsPositive() {
			filtered = append(filtered, b)
		}
	}
	info.Balances = filtered

	return info, nil
}
