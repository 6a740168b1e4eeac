package center

import (
	"context"
	"time"

	pkgerrors "github.com/helmdeck/notify-agent/pkg/errors"
)

// ExpiryJob sweeps the notification log on the scheduler cadence,
// marking stale unread records read.
type ExpiryJob struct {
	svc Service
	ttl time.Duration
}

// NewExpiryJob wires the expiry sweep against the center.
func NewExpiryJob(svc Service, ttl time.Duration) (*ExpiryJob, error) {
	if svc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "center service required")
	}
	if ttl <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "expiry ttl must be positive")
	}
	return &ExpiryJob{svc: svc, ttl: ttl}, nil
}

// Name identifies the job in logs and metrics.
func (j *ExpiryJob) Name() string {
	return "notification-expiry"
}

// Run performs one sweep.
func (j *ExpiryJob) Run(ctx context.Context) error {
	j.svc.AutoExpire(j.ttl)
	return nil
}
