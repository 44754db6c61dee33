package dispatch

import (
	"fmt"
	"time"

	"github.com/cuongbtq/catalog-bridge/internal/config"
	"github.com/google/uuid"
)

// IdentityPolicy decides the dedup key a job is submitted with
type IdentityPolicy int

const (
	// Unbounded submits without identity; every call is a new job
	Unbounded IdentityPolicy = iota
	// PerRequest derives a unique identity per call from a timestamp and nonce,
	// so repeated calls for one target never collapse
	PerRequest
	// PerTarget derives the identity from the target alone, allowing at most
	// one live job per target
	PerTarget
)

func (p IdentityPolicy) String() string {
	switch p {
	case PerRequest:
		return config.IdentityPerRequest
	case PerTarget:
		return config.IdentityPerTarget
	default:
		return "unbounded"
	}
}

// ParseIdentityPolicy maps a configuration value to a policy. Empty selects PerRequest.
func ParseIdentityPolicy(value string) (IdentityPolicy, error) {
	switch value {
	case "", config.IdentityPerRequest:
		return PerRequest, nil
	case config.IdentityPerTarget:
		return PerTarget, nil
	default:
		return Unbounded, fmt.Errorf("unknown identity policy %q", value)
	}
}

// Identity returns the dedup key for jobName on target at now
func (p IdentityPolicy) Identity(jobName, target string, now time.Time) string {
	switch p {
	case PerTarget:
		return jobName + ":" + target
	case PerRequest:
		return fmt.Sprintf("%s:%s:%d-%s", jobName, target, now.UnixNano(), uuid.NewString()[:8])
	default:
		return ""
	}
}
