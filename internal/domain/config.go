package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

type Config struct {
	FQDN string
	// ServiceAuthority reports publication outcomes (Approved → Published/Failed).
	ServiceAuthority common.Address
	ReplayWindow     time.Duration
	RateLimit        float64
	RateBurst        int
}
