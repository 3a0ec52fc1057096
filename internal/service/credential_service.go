package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"go.uber.org/zap"

	"rafl-be/internal/domain"
	"rafl-be/internal/repository"
	"rafl-be/pkg/database"
)

const (
	credentialSecretPrefix = "rafl_"
	credentialRandomLength = 32
	credentialCreateTries  = 3
	base62Alphabet         = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
)

// dummyKeyHash is compared against when the prefix is unknown so every
// failing path performs a hash and a constant time comparison.
var dummyKeyHash = HashSecret("rafl_unknown-credential-placeholder")

// CredentialService verifies and manages store API credentials
type CredentialService struct {
	repo   repository.CredentialRepository
	logger *zap.Logger
	now    func() time.Time
}

// NewCredentialService creates a new credential service
func NewCredentialService(repo repository.CredentialRepository, logger *zap.Logger) *CredentialService {
	return &CredentialService{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// HashSecret returns the lowercase hex SHA-256 of a presented secret
func HashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// Verify resolves a presented secret to its credential. Unknown prefix,
// inactive credential and hash mismatch all return domain.ErrCredentialInvalid.
func (s *CredentialService) Verify(ctx context.Context, secret string) (*domain.APICredential, error) {
	if len(secret) < domain.CredentialPrefixLength {
		return nil, domain.ErrCredentialInvalid
	}

	cred, err := s.repo.GetByPrefix(ctx, secret[:domain.CredentialPrefixLength])
	if err != nil {
		return nil, err
	}

	expected := dummyKeyHash
	if cred != nil {
		expected = cred.KeyHash
	}
	match := subtle.ConstantTimeCompare([]byte(HashSecret(secret)), []byte(expected)) == 1

	if cred == nil || !cred.IsActive || !match {
		return nil, domain.ErrCredentialInvalid
	}

	go s.touchLastUsed(cred.ID)

	return cred, nil
}

// touchLastUsed records usage with its own timeout; failures are only logged
func (s *CredentialService) touchLastUsed(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.repo.TouchLastUsed(ctx, id, s.now()); err != nil {
		s.logger.Warn("Failed to update credential last_used_at",
			zap.String("credential_id", id),
			zap.Error(err))
	}
}

// Create issues a new credential for storeID. The plaintext secret is only
// ever returned here.
func (s *CredentialService) Create(ctx context.Context, storeID, label string) (*domain.IssuedCredential, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, domain.ErrMissingFields
	}

	for attempt := 1; attempt <= credentialCreateTries; attempt++ {
		secret, err := generateSecret()
		if err != nil {
			return nil, fmt.Errorf("generate credential secret: %w", err)
		}

		cred := &domain.APICredential{
			StoreID:   storeID,
			Label:     label,
			KeyPrefix: secret[:domain.CredentialPrefixLength],
			KeyHash:   HashSecret(secret),
		}

		err = s.repo.Create(ctx, cred)
		if err == nil {
			s.logger.Info("Credential created",
				zap.String("store_id", storeID),
				zap.String("credential_id", cred.ID),
				zap.String("key_prefix", cred.KeyPrefix))
			return &domain.IssuedCredential{Credential: cred, Secret: secret}, nil
		}
		if !database.IsUniqueViolation(err) {
			return nil, domain.NewStorageError("create credential", err)
		}

		s.logger.Warn("Credential prefix collision, regenerating", zap.Int("attempt", attempt))
	}

	return nil, domain.NewStorageError("create credential", fmt.Errorf("prefix collision after %d attempts", credentialCreateTries))
}

// List returns the credentials of storeID without secrets
func (s *CredentialService) List(ctx context.Context, storeID string) ([]*domain.APICredential, error) {
	return s.repo.ListByStore(ctx, storeID)
}

// Revoke deactivates a credential owned by storeID
func (s *CredentialService) Revoke(ctx context.Context, storeID, id string) error {
	ok, err := s.repo.Deactivate(ctx, storeID, id)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrCredentialNotFound
	}

	s.logger.Info("Credential revoked",
		zap.String("store_id", storeID),
		zap.String("credential_id", id))
	return nil
}

// generateSecret returns "rafl_" followed by random base62 characters
func generateSecret() (string, error) {
	var b strings.Builder
	b.Grow(len(credentialSecretPrefix) + credentialRandomLength)
	b.WriteString(credentialSecretPrefix)

	max := big.NewInt(int64(len(base62Alphabet)))
	for i := 0; i < credentialRandomLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(base62Alphabet[n.Int64()])
	}
	return b.String(), nil
}
