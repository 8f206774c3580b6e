package credentials

import (
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

var (
	// ErrMissingServiceAccount means the service account secret is not configured.
	ErrMissingServiceAccount = errors.New("missing FIREBASE_SERVICE_ACCOUNT secret")
	// ErrInvalidServiceAccount means the secret is present but unusable.
	ErrInvalidServiceAccount = errors.New("invalid service account")
)

// ServiceAccount is the subset of a Google service account key file used to mint
// bearer tokens for the push gateway.
type ServiceAccount struct {
	ProjectID    string `json:"project_id"`
	ClientEmail  string `json:"client_email"`
	PrivateKey   string `json:"private_key"`
	PrivateKeyID string `json:"private_key_id"`
	TokenURI     string `json:"token_uri"`

	key *rsa.PrivateKey
}

// ParseServiceAccount decodes and validates a service account JSON bundle.
func ParseServiceAccount(raw []byte) (*ServiceAccount, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, ErrMissingServiceAccount
	}

	var sa ServiceAccount
	if err := json.Unmarshal(raw, &sa); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidServiceAccount, err)
	}

	var missing []string
	if sa.ProjectID == "" {
		missing = append(missing, "project_id")
	}
	if sa.ClientEmail == "" {
		missing = append(missing, "client_email")
	}
	if sa.PrivateKey == "" {
		missing = append(missing, "private_key")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidServiceAccount, strings.Join(missing, ", "))
	}

	// Secrets pasted through some dashboards keep the JSON escapes literally.
	pemKey := sa.PrivateKey
	if !strings.Contains(pemKey, "\n") {
		pemKey = strings.ReplaceAll(pemKey, `\n`, "\n")
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(pemKey))
	if err != nil {
		return nil, fmt.Errorf("%w: private_key: %v", ErrInvalidServiceAccount, err)
	}
	sa.key = key

	return &sa, nil
}
