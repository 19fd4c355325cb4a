package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/wasm-oj/wark/internal/config"
	"github.com/wasm-oj/wark/internal/persistence"
)

// DeliverCallback POSTs results to callbackURL in a fire-and-forget
// goroutine, per §4.3: the judge HTTP response itself never waits on
// callback delivery. A non-2xx response or transport error is persisted
// for the retry sweep instead of being retried inline.
func DeliverCallback(store *persistence.Store, batchID, callbackURL string, results Results, maxAttempts int, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	payload, err := json.Marshal(results)
	if err != nil {
		logger.Error("judge: marshal callback payload", "batch_id", batchID, "error", err)
		return
	}

	go func() {
		if err := postCallback(context.Background(), callbackURL, payload); err != nil {
			logger.Warn("judge: callback delivery failed, queuing for retry", "batch_id", batchID, "url", callbackURL, "error", err)
			if _, enqueueErr := store.EnqueueCallback(context.Background(), batchID, callbackURL, string(payload), maxAttempts); enqueueErr != nil {
				logger.Error("judge: enqueue callback for retry", "batch_id", batchID, "error", enqueueErr)
			}
			return
		}
		logger.Info("judge: callback delivered", "batch_id", batchID, "url", callbackURL)
	}()
}

func postCallback(ctx context.Context, url string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build callback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("post callback: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("callback returned status %s", resp.Status)
	}
	return nil
}

// StartRetrySweep schedules a cron job that retries due callback
// deliveries every minute, per §4.3. It returns the running *cron.Cron
// so the caller can stop it on shutdown.
func StartRetrySweep(store *persistence.Store, cfg config.CallbackRetryConfig, logger *slog.Logger) *cron.Cron {
	if logger == nil {
		logger = slog.Default()
	}
	c := cron.New()
	_, err := c.AddFunc("@every 1m", func() {
		sweepDueCallbacks(store, cfg, logger)
	})
	if err != nil {
		logger.Error("judge: schedule callback retry sweep", "error", err)
		return c
	}
	c.Start()
	return c
}

func sweepDueCallbacks(store *persistence.Store, cfg config.CallbackRetryConfig, logger *slog.Logger) {
	ctx := context.Background()
	due, err := store.DueCallbacks(ctx, 50)
	if err != nil {
		logger.Error("judge: list due callbacks", "error", err)
		return
	}

	for _, d := range due {
		err := postCallback(ctx, d.CallbackURL, []byte(d.Payload))
		if err == nil {
			if markErr := store.MarkDelivered(ctx, d.ID); markErr != nil {
				logger.Error("judge: mark callback delivered", "id", d.ID, "error", markErr)
			}
			continue
		}
		if failErr := store.RecordFailure(ctx, d.ID, cfg.BaseBackoff(), err); failErr != nil {
			logger.Error("judge: record callback failure", "id", d.ID, "error", failErr)
		}
	}
}
