package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rafl-be/internal/service/auth"
	"rafl-be/pkg/logger"
)

const testStoreID = "3f1c2a7e-9d4b-4c1a-8f7e-2b6d5a9c0e11"

func TestTokenIssue(t *testing.T) {
	t.Setenv("OPERATOR_JWT_SECRET", "cli-secret")

	var out bytes.Buffer
	app := newApp(&out)
	err := app.Run([]string{"raflctl", "token", "issue", "--store", testStoreID, "--subject", "ops@example.com", "--ttl", "1h"})
	require.NoError(t, err)

	token := strings.TrimSpace(out.String())
	claims, err := auth.NewService("cli-secret", logger.NewNop()).ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, testStoreID, claims.StoreID)
	assert.Equal(t, "ops@example.com", claims.Subject)
}

func TestTokenIssueRequiresSecret(t *testing.T) {
	t.Setenv("OPERATOR_JWT_SECRET", "")

	app := newApp(&bytes.Buffer{})
	err := app.Run([]string{"raflctl", "token", "issue", "--store", testStoreID, "--subject", "ops@example.com"})
	assert.Error(t, err)
}

func TestTokenIssueRejectsBadStore(t *testing.T) {
	t.Setenv("OPERATOR_JWT_SECRET", "cli-secret")

	app := newApp(&bytes.Buffer{})
	err := app.Run([]string{"raflctl", "token", "issue", "--store", "not-a-uuid", "--subject", "ops@example.com"})
	assert.Error(t, err)
}

func TestStoreFlagIsRequired(t *testing.T) {
	t.Setenv("RAFL_STORE_ID", "")

	app := newApp(&bytes.Buffer{})
	err := app.Run([]string{"raflctl", "draw", "--promo", "8a6e0f2b-5c3d-4e7f-9a1b-c2d3e4f5a6b7"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store")
}
