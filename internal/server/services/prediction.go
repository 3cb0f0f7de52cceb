package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/innocode-solutions/abp-5dsm-sub002/internal/common"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/logging"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/netx"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/retryx"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/config"
)

// PredictionService forwards prediction requests to the ML service.
type PredictionService struct {
	url     string
	client  *http.Client
	timeout time.Duration
	backoff time.Duration
	logger  logging.Logger
}

func NewPredictionService(cfg *config.Config, client *http.Client, logger logging.Logger) *PredictionService {
	if client == nil {
		client = &http.Client{}
	}
	return &PredictionService{
		url:     cfg.PredictionServiceURL,
		client:  client,
		timeout: cfg.PredictionTimeout,
		backoff: retryx.DefaultBackoff,
		logger:  logger.With("service", "predictions"),
	}
}

// Predict posts payload and returns the service response unchanged. An
// unconfigured, unreachable or failing service yields common.ErrTransient;
// a 4xx answer yields common.ErrValidation.
func (s *PredictionService) Predict(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	if s.url == "" {
		return nil, fmt.Errorf("%w: prediction service not configured", common.ErrTransient)
	}
	if !json.Valid(payload) {
		return nil, fmt.Errorf("%w: payload is not valid JSON", common.ErrValidation)
	}

	var out []byte
	err := retryx.Once(ctx, s.backoff, func(ctx context.Context) error {
		callCtx, cancel := withTimeout(ctx, s.timeout)
		defer cancel()

		body, err := netx.PostJSON(callCtx, s.client, s.url, payload)
		if err != nil {
			return s.classifyError(callCtx, err)
		}
		out = body
		return nil
	})
	if err != nil {
		if !errors.Is(err, common.ErrValidation) {
			logging.LogError(ctx, s.logger, "prediction request failed", err)
		}
		return nil, err
	}

	if !json.Valid(out) {
		return nil, fmt.Errorf("%w: prediction service returned invalid JSON", common.ErrTransient)
	}
	return out, nil
}

// maxLoggedBody bounds how much of a rejected response ends up in logs.
const maxLoggedBody = 512

// classifyError maps a downstream failure. A rejection is reported to the
// caller with its status only; the response body is logged, truncated.
func (s *PredictionService) classifyError(ctx context.Context, err error) error {
	var statusErr *netx.StatusError
	if errors.As(err, &statusErr) && !statusErr.Temporary() {
		body := statusErr.Body
		if len(body) > maxLoggedBody {
			body = body[:maxLoggedBody]
		}
		s.logger.Warn(ctx, "prediction request rejected", "status", statusErr.StatusCode, "body", body)
		return fmt.Errorf("%w: prediction service rejected the request (status %d)", common.ErrValidation, statusErr.StatusCode)
	}
	return fmt.Errorf("%w: %w", common.ErrTransient, err)
}
