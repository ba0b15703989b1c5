package ports

import (
	"context"
)

// SecretManager resolves named secrets (gateway credentials) from whatever
// backend the deployment uses: environment, AWS Secrets Manager, or Vault.
type SecretManager interface {
	GetSecret(ctx context.Context, name string) (string, error)
}
