package vault

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/thunder/internal/common"
	"github.com/dmitrijs2005/thunder/internal/cryptox"
	"github.com/dmitrijs2005/thunder/internal/logging"
	"github.com/dmitrijs2005/thunder/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastKDF = WithKDFParams(cryptox.KDFParams{Time: 1, Memory: 8, Threads: 1})

func vaultPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "config.vault")
}

func mustCreate(t *testing.T, path, password string) *Handle {
	t.Helper()
	h, err := Create(context.Background(), path, []byte(password), fastKDF)
	require.NoError(t, err)
	t.Cleanup(h.Close)
	return h
}

func addAccount(t *testing.T, h *Handle, id string) {
	t.Helper()
	require.NoError(t, h.Update(func(doc *models.Document) error {
		doc.Accounts[id] = models.Account{ID64: id, AccountName: "user" + id}
		return nil
	}))
}

func TestCreateOpen_RoundTrip(t *testing.T) {
	path := vaultPath(t)
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	h, err := Create(context.Background(), path, []byte("pw1"), fastKDF, WithClock(func() time.Time { return fixed }))
	require.NoError(t, err)
	h.Close()

	assert.True(t, Exists(path))

	h2, err := Open(context.Background(), path, []byte("pw1"), fastKDF)
	require.NoError(t, err)
	defer h2.Close()

	require.NoError(t, h2.View(func(doc *models.Document) error {
		assert.True(t, doc.Initialized)
		assert.Empty(t, doc.Accounts)
		assert.NotNil(t, doc.Accounts)
		assert.True(t, fixed.Equal(doc.CreatedAt))
		return nil
	}))
	assert.True(t, fixed.Equal(h2.CreatedAt()))
}

func TestCreate_AlreadyExists(t *testing.T) {
	path := vaultPath(t)
	mustCreate(t, path, "pw")

	_, err := Create(context.Background(), path, []byte("other"), fastKDF)
	assert.ErrorIs(t, err, common.ErrAlreadyExists)
}

func TestCreate_FileIsOpaque(t *testing.T) {
	path := vaultPath(t)
	h := mustCreate(t, path, "pw")
	addAccount(t, h, "76561198000000001")

	raw, err := h.Raw()
	require.NoError(t, err)
	assert.False(t, bytes.Contains(raw, []byte("76561198000000001")))
	assert.False(t, bytes.Contains(raw, []byte("initialized")))
}

func TestOpen_WrongPasswordAndCorruptAreIndistinguishable(t *testing.T) {
	path := vaultPath(t)
	mustCreate(t, path, "pw1")

	_, wrongErr := Open(context.Background(), path, []byte("nope"), fastKDF)
	require.ErrorIs(t, wrongErr, common.ErrInvalidPasswordOrCorrupt)

	corrupt := vaultPath(t)
	require.NoError(t, os.WriteFile(corrupt, []byte("garbage garbage garbage garbage garbage garbage"), 0o600))
	_, corruptErr := Open(context.Background(), corrupt, []byte("pw1"), fastKDF)
	require.ErrorIs(t, corruptErr, common.ErrInvalidPasswordOrCorrupt)

	assert.Equal(t, wrongErr.Error(), corruptErr.Error())
}

func TestOpen_LogsInternalReason(t *testing.T) {
	path := vaultPath(t)
	mustCreate(t, path, "pw1")

	var buf bytes.Buffer
	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(&buf, nil)))

	_, err := Open(context.Background(), path, []byte("nope"), fastKDF, WithLogger(log))
	require.Error(t, err)
	assert.Contains(t, buf.String(), "reason=decrypt")
	assert.NotContains(t, buf.String(), "nope")
}

func TestOpen_NotInitializedIsRejected(t *testing.T) {
	path := vaultPath(t)
	blob, err := cryptox.Seal(models.Document{Initialized: false}, []byte("pw"), cryptox.KDFParams{Time: 1, Memory: 8, Threads: 1})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	_, err = Open(context.Background(), path, []byte("pw"), fastKDF)
	assert.ErrorIs(t, err, common.ErrInvalidPasswordOrCorrupt)
}

func TestOpen_Missing(t *testing.T) {
	_, err := Open(context.Background(), vaultPath(t), []byte("pw"), fastKDF)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdate_PersistsSynchronously(t *testing.T) {
	path := vaultPath(t)
	h := mustCreate(t, path, "pw")
	addAccount(t, h, "1")

	// a second, independent open sees the write immediately
	h2, err := Open(context.Background(), path, []byte("pw"), fastKDF)
	require.NoError(t, err)
	defer h2.Close()
	require.NoError(t, h2.View(func(doc *models.Document) error {
		assert.Contains(t, doc.Accounts, "1")
		return nil
	}))
}

func TestUpdate_ErrorLeavesDocumentUntouched(t *testing.T) {
	h := mustCreate(t, vaultPath(t), "pw")
	boom := errors.New("boom")

	err := h.Update(func(doc *models.Document) error {
		doc.Accounts["x"] = models.Account{ID64: "x"}
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.NoError(t, h.View(func(doc *models.Document) error {
		assert.NotContains(t, doc.Accounts, "x")
		return nil
	}))
}

func TestUpdate_ConcurrentWritersDoNotInterleave(t *testing.T) {
	path := vaultPath(t)
	h := mustCreate(t, path, "pw")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i))
			assert.NoError(t, h.Update(func(doc *models.Document) error {
				doc.Accounts[id] = models.Account{ID64: id}
				return nil
			}))
		}(i)
	}
	wg.Wait()

	h2, err := Open(context.Background(), path, []byte("pw"), fastKDF)
	require.NoError(t, err)
	defer h2.Close()
	require.NoError(t, h2.View(func(doc *models.Document) error {
		assert.Len(t, doc.Accounts, 20)
		return nil
	}))
}

func TestVerifyPassword(t *testing.T) {
	h := mustCreate(t, vaultPath(t), "pw")
	assert.True(t, h.VerifyPassword([]byte("pw")))
	assert.False(t, h.VerifyPassword([]byte("PW")))
}

func TestRekey_Success(t *testing.T) {
	path := vaultPath(t)
	h := mustCreate(t, path, "old")
	addAccount(t, h, "1")

	require.NoError(t, h.Rekey(context.Background(), []byte("new")))
	assert.False(t, fileExists(path+backupSuffix), "backup removed after verification")

	_, err := Open(context.Background(), path, []byte("old"), fastKDF)
	assert.ErrorIs(t, err, common.ErrInvalidPasswordOrCorrupt)

	h2, err := Open(context.Background(), path, []byte("new"), fastKDF)
	require.NoError(t, err)
	defer h2.Close()
	require.NoError(t, h2.View(func(doc *models.Document) error {
		assert.Contains(t, doc.Accounts, "1")
		return nil
	}))

	// the original handle keeps writing under the new key
	addAccount(t, h, "2")
	assert.True(t, h.VerifyPassword([]byte("new")))
}

func TestRekey_VerificationFailureRestoresOldVault(t *testing.T) {
	path := vaultPath(t)
	h := mustCreate(t, path, "old")
	addAccount(t, h, "1")

	orig := verifyRekey
	verifyRekey = func(string, []byte) error { return errors.New("simulated") }
	t.Cleanup(func() { verifyRekey = orig })

	err := h.Rekey(context.Background(), []byte("new"))
	require.ErrorIs(t, err, common.ErrRekeyVerificationFailed)
	assert.False(t, fileExists(path+backupSuffix))

	h2, err := Open(context.Background(), path, []byte("old"), fastKDF)
	require.NoError(t, err)
	h2.Close()

	// handle still writes under the old key
	addAccount(t, h, "2")
	assert.True(t, h.VerifyPassword([]byte("old")))
}

func TestRekey_UndeletableBackupBlocksWrites(t *testing.T) {
	path := vaultPath(t)
	h := mustCreate(t, path, "old")
	addAccount(t, h, "1")

	orig := removeFile
	removeFile = func(string) error { return errors.New("permission denied") }
	t.Cleanup(func() { removeFile = orig })

	require.NoError(t, h.Rekey(context.Background(), []byte("new")))
	require.True(t, fileExists(path+backupSuffix))

	err := h.Update(func(doc *models.Document) error {
		doc.Accounts["2"] = models.Account{AccountName: "late"}
		return nil
	})
	require.Error(t, err)
	require.NoError(t, h.View(func(doc *models.Document) error {
		assert.NotContains(t, doc.Accounts, "2")
		return nil
	}))

	removeFile = orig
	addAccount(t, h, "2")
	assert.False(t, fileExists(path+backupSuffix))

	// the old password can no longer roll the vault back over account 2
	_, err = Open(context.Background(), path, []byte("old"), fastKDF)
	assert.ErrorIs(t, err, common.ErrInvalidPasswordOrCorrupt)

	h2, err := Open(context.Background(), path, []byte("new"), fastKDF)
	require.NoError(t, err)
	defer h2.Close()
	require.NoError(t, h2.View(func(doc *models.Document) error {
		assert.Contains(t, doc.Accounts, "2")
		return nil
	}))
}

func TestRecovery_CrashAfterBackupBeforeDelete(t *testing.T) {
	path := vaultPath(t)
	h := mustCreate(t, path, "old")
	addAccount(t, h, "1")
	h.Close()

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path+backupSuffix, raw, 0o600))

	h2, err := Open(context.Background(), path, []byte("old"), fastKDF)
	require.NoError(t, err)
	defer h2.Close()
	assert.False(t, fileExists(path+backupSuffix), "stale backup cleaned up")
}

func TestRecovery_CrashAfterDeleteBeforeWrite(t *testing.T) {
	path := vaultPath(t)
	h := mustCreate(t, path, "old")
	addAccount(t, h, "1")
	h.Close()

	require.NoError(t, os.Rename(path, path+backupSuffix))
	assert.True(t, Exists(path), "a lone backup still counts as an existing vault")

	h2, err := Open(context.Background(), path, []byte("old"), fastKDF)
	require.NoError(t, err)
	defer h2.Close()
	assert.True(t, fileExists(path))
	require.NoError(t, h2.View(func(doc *models.Document) error {
		assert.Contains(t, doc.Accounts, "1")
		return nil
	}))
}

func TestRecovery_CrashAfterWriteBeforeVerify(t *testing.T) {
	path := vaultPath(t)
	h := mustCreate(t, path, "old")
	addAccount(t, h, "1")
	h.Close()

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path+backupSuffix, raw, 0o600))
	newBlob, err := cryptox.Seal(models.NewDocument(time.Now()), []byte("new"), cryptox.KDFParams{Time: 1, Memory: 8, Threads: 1})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, newBlob, 0o600))

	t.Run("old password rolls back", func(t *testing.T) {
		h2, err := Open(context.Background(), path, []byte("old"), fastKDF)
		require.NoError(t, err)
		defer h2.Close()
		assert.False(t, fileExists(path+backupSuffix))
		require.NoError(t, h2.View(func(doc *models.Document) error {
			assert.Contains(t, doc.Accounts, "1")
			return nil
		}))
	})
}

func TestRecovery_NewPasswordKeepsNewFile(t *testing.T) {
	path := vaultPath(t)
	h := mustCreate(t, path, "old")
	h.Close()

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path+backupSuffix, raw, 0o600))
	newBlob, err := cryptox.Seal(models.NewDocument(time.Now()), []byte("new"), cryptox.KDFParams{Time: 1, Memory: 8, Threads: 1})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, newBlob, 0o600))

	h2, err := Open(context.Background(), path, []byte("new"), fastKDF)
	require.NoError(t, err)
	defer h2.Close()
	assert.False(t, fileExists(path+backupSuffix))
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
