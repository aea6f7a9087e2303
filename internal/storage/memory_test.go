package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/lumenmfb/backend/internal/domain/document"
	"github.com/lumenmfb/backend/internal/domain/staff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func TestMemoryStoreBacksDocumentService(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore("http://files.local/")
	svc := document.NewService(store, 10*time.Minute)

	stored, err := svc.Upload(ctx, "user-1", document.BucketSignatures, "signature", strings.NewReader(string(pngHeader)))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stored.Path, "user-1/signature/"))

	body, ct, ok := store.Get(document.BucketSignatures, stored.Path)
	require.True(t, ok)
	assert.Equal(t, "image/png", ct)
	assert.Equal(t, pngHeader, body)

	signed, err := svc.Sign(ctx, staff.Actor{UserID: "user-1", Role: staff.RoleCustomer}, document.BucketSignatures, stored.Path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(signed.URL, "http://files.local/signatures/user-1/signature/"))

	deleted, errs := svc.RemoveAll(ctx, "user-1")
	require.Empty(t, errs)
	assert.Equal(t, 1, deleted[document.BucketSignatures])

	keys, err := store.List(ctx, document.BucketSignatures, "user-1/")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestMemoryStorePresignMissingObject(t *testing.T) {
	store := NewMemoryStore("http://files.local")
	_, err := store.PresignGet(context.Background(), document.BucketDocuments, "nobody/x.pdf", time.Minute)
	require.Error(t, err)
}
