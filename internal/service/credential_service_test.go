package service

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"rafl-be/internal/domain"
	"rafl-be/pkg/database"
)

func issueTestCredential(t *testing.T, repo *fakeCredentialRepo, svc *CredentialService) string {
	t.Helper()
	issued, err := svc.Create(context.Background(), testStoreID, "Klaviyo webhook")
	require.NoError(t, err)
	return issued.Secret
}

func TestCredentialService_Create(t *testing.T) {
	repo := newFakeCredentialRepo()
	svc := NewCredentialService(repo, zap.NewNop())

	issued, err := svc.Create(context.Background(), testStoreID, "  Klaviyo webhook ")
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^rafl_[0-9A-Za-z]{32}$`), issued.Secret)
	assert.Equal(t, issued.Secret[:12], issued.Credential.KeyPrefix)
	assert.Equal(t, HashSecret(issued.Secret), issued.Credential.KeyHash)
	assert.Equal(t, "Klaviyo webhook", issued.Credential.Label)
	assert.True(t, issued.Credential.IsActive)
	assert.Len(t, issued.Credential.KeyHash, 64)
}

func TestCredentialService_CreateRetriesPrefixCollision(t *testing.T) {
	repo := newFakeCredentialRepo()
	repo.createErrs = []error{&pgconn.PgError{Code: database.UniqueViolation}}
	svc := NewCredentialService(repo, zap.NewNop())

	issued, err := svc.Create(context.Background(), testStoreID, "label")
	require.NoError(t, err)
	assert.NotEmpty(t, issued.Secret)
}

func TestCredentialService_CreateFailures(t *testing.T) {
	repo := newFakeCredentialRepo()
	svc := NewCredentialService(repo, zap.NewNop())

	_, err := svc.Create(context.Background(), testStoreID, "   ")
	assert.ErrorIs(t, err, domain.ErrMissingFields)

	collision := &pgconn.PgError{Code: database.UniqueViolation}
	repo.createErrs = []error{collision, collision, collision}
	_, err = svc.Create(context.Background(), testStoreID, "label")
	assert.ErrorIs(t, err, domain.ErrStorage)

	repo.createErrs = []error{errors.New("connection refused")}
	_, err = svc.Create(context.Background(), testStoreID, "label")
	assert.ErrorIs(t, err, domain.ErrStorage)
}

func TestCredentialService_Verify(t *testing.T) {
	repo := newFakeCredentialRepo()
	svc := NewCredentialService(repo, zap.NewNop())
	secret := issueTestCredential(t, repo, svc)

	cred, err := svc.Verify(context.Background(), secret)
	require.NoError(t, err)
	assert.Equal(t, testStoreID, cred.StoreID)

	select {
	case id := <-repo.touched:
		assert.Equal(t, cred.ID, id)
	case <-time.After(time.Second):
		t.Fatal("last_used_at was not updated")
	}
}

// Wrong suffix, unknown prefix, too short and revoked all fail the same way.
func TestCredentialService_VerifyFailuresAreIdentical(t *testing.T) {
	repo := newFakeCredentialRepo()
	svc := NewCredentialService(repo, zap.NewNop())
	secret := issueTestCredential(t, repo, svc)

	wrongSuffix := secret[:12] + "XXXXXXXXXXXXXXXXXXXXXXXXX"
	unknownPrefix := "rafl_ZZZZZZZ" + secret[12:]

	var errs []error
	for _, presented := range []string{wrongSuffix, unknownPrefix, "rafl_short", ""} {
		cred, err := svc.Verify(context.Background(), presented)
		assert.Nil(t, cred)
		errs = append(errs, err)
	}

	revokedIssued, err := svc.Create(context.Background(), testStoreID, "old")
	require.NoError(t, err)
	require.NoError(t, svc.Revoke(context.Background(), testStoreID, revokedIssued.Credential.ID))
	_, err = svc.Verify(context.Background(), revokedIssued.Secret)
	errs = append(errs, err)

	for _, err := range errs {
		assert.Same(t, domain.ErrCredentialInvalid, err)
	}
}

func TestCredentialService_VerifyStorageError(t *testing.T) {
	repo := newFakeCredentialRepo()
	repo.err = domain.NewStorageError("get credential", errors.New("timeout"))
	svc := NewCredentialService(repo, zap.NewNop())

	_, err := svc.Verify(context.Background(), "rafl_0123456789abcdefghijklmnopqrstuv")
	assert.ErrorIs(t, err, domain.ErrStorage)
}

func TestCredentialService_ListAndRevoke(t *testing.T) {
	repo := newFakeCredentialRepo()
	svc := NewCredentialService(repo, zap.NewNop())
	issueTestCredential(t, repo, svc)
	issueTestCredential(t, repo, svc)

	creds, err := svc.List(context.Background(), testStoreID)
	require.NoError(t, err)
	assert.Len(t, creds, 2)

	others, err := svc.List(context.Background(), otherStoreID)
	require.NoError(t, err)
	assert.Empty(t, others)

	assert.ErrorIs(t, svc.Revoke(context.Background(), otherStoreID, creds[0].ID), domain.ErrCredentialNotFound)
	assert.ErrorIs(t, svc.Revoke(context.Background(), testStoreID, "missing"), domain.ErrCredentialNotFound)
	assert.NoError(t, svc.Revoke(context.Background(), testStoreID, creds[0].ID))
}

func TestGenerateSecret(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		s, err := generateSecret()
		require.NoError(t, err)
		assert.Len(t, s, 37)
		assert.False(t, seen[s])
		seen[s] = true
	}
}
