package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	appContext "github.com/alphabatem/common/context"
	log "github.com/sirupsen/logrus"
)

type walletCreditRequest struct {
	LearnerID      string `json:"learner_id"`
	Amount         int    `json:"amount"`
	Reason         string `json:"reason"`
	IdempotencyKey string `json:"idempotency_key"`
}

type walletCreditResponse struct {
	TotalXP int64 `json:"total_xp"`
}

// WalletService credits earned XP to the learner's wallet. With WALLET_URL
// set it talks to the external wallet API; without it the service keeps a
// plain redis ledger, which is what dev and single-node deployments run on.
type WalletService struct {
	appContext.DefaultService
	httpClient *http.Client
	baseURL    string
	apiKey     string
	redisSvc   *RedisService
}

const WALLET_SVC = "wallet_svc"

func (svc WalletService) Id() string {
	return WALLET_SVC
}

func (svc *WalletService) Configure(ctx *appContext.Context) error {
	svc.httpClient = &http.Client{
		Timeout: 10 * time.Second,
	}
	svc.baseURL = os.Getenv("WALLET_URL")
	svc.apiKey = os.Getenv("WALLET_API_KEY")
	return svc.DefaultService.Configure(ctx)
}

func (svc *WalletService) Start() error {
	svc.redisSvc = svc.Service(REDIS_SVC).(*RedisService)
	if svc.baseURL == "" {
		log.Println("WALLET_URL not set, using redis XP ledger")
	}
	return nil
}

func walletLedgerKey(learnerID string) string {
	return fmt.Sprintf("wallet:xp:%s", learnerID)
}

// Credit adds amount XP to the learner's wallet and returns the new total.
// The idempotency key lets the wallet side drop a replayed credit without
// double-counting.
func (svc *WalletService) Credit(ctx context.Context, learnerID string, amount int, reason, idempotencyKey string) (int64, error) {
	if amount <= 0 {
		return 0, nil
	}

	if svc.baseURL == "" {
		total, err := svc.redisSvc.IncrementBy(ctx, walletLedgerKey(learnerID), int64(amount))
		if err != nil {
			return 0, err
		}
		return total, nil
	}

	payload, err := json.Marshal(walletCreditRequest{
		LearnerID:      learnerID,
		Amount:         amount,
		Reason:         reason,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return 0, err
	}

	url := fmt.Sprintf("%s/api/v1/credits", svc.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if svc.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+svc.apiKey)
	}

	resp, err := svc.httpClient.Do(req)
	if err != nil {
		log.WithError(err).WithField("learner_id", learnerID).Error("Failed to reach wallet API")
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return 0, fmt.Errorf("wallet API returned status %d", resp.StatusCode)
	}

	var result walletCreditResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		log.WithError(err).WithField("learner_id", learnerID).Error("Failed to decode wallet response")
		return 0, err
	}

	return result.TotalXP, nil
}
