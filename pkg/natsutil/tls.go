package natsutil

import (
	"crypto/tls"
	"errors"

	"github.com/carverauto/ewspoller/pkg/models"
)

// ErrTLSRequired is returned when the mTLS file set is incomplete.
var ErrTLSRequired = errors.New("tls configuration required")

// TLSConfig builds the mTLS client configuration for a NATS connection.
// Unlike models.TLSConfig.Load, all three files are mandatory.
func TLSConfig(files *models.TLSConfig) (*tls.Config, error) {
	if files == nil || files.CertFile == "" || files.KeyFile == "" || files.CAFile == "" {
		return nil, ErrTLSRequired
	}

	return files.Load(tls.VersionTLS13)
}
