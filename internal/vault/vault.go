package vault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/thunder/internal/common"
	"github.com/dmitrijs2005/thunder/internal/cryptox"
	"github.com/dmitrijs2005/thunder/internal/filex"
	"github.com/dmitrijs2005/thunder/internal/logging"
	"github.com/dmitrijs2005/thunder/internal/models"
)

const (
	fileMode     = 0o600
	backupSuffix = ".bak"
)

// ErrNotFound is returned by Open when neither the vault nor its backup exist.
var ErrNotFound = errors.New("vault not found")

// removeFile is a test seam for deleting rekey backups.
var removeFile = os.Remove

// verifyRekey is a test seam; it re-opens the freshly written file.
var verifyRekey = func(path string, password []byte) error {
	var doc models.Document
	s, err := openFile(path, password, &doc)
	if err != nil {
		return err
	}
	s.Wipe()
	if !doc.Initialized {
		return common.ErrInvalidPasswordOrCorrupt
	}
	return nil
}

type options struct {
	params cryptox.KDFParams
	logger logging.Logger
	now    func() time.Time
}

type Option func(*options)

// WithKDFParams overrides the argon2id cost for newly sealed files.
func WithKDFParams(p cryptox.KDFParams) Option {
	return func(o *options) { o.params = p }
}

func WithLogger(l logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClock overrides time.Now for the document's createdAt stamp.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{
		params: cryptox.DefaultKDFParams(),
		logger: logging.Nop(),
		now:    time.Now,
	}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// Handle is an open vault. It is safe for concurrent use.
type Handle struct {
	mu     sync.RWMutex
	path   string
	doc    *models.Document
	sealer *cryptox.Sealer
	opts   options

	staleBackup bool
}

// Exists reports whether a vault, or a rekey backup of one, is at path.
func Exists(path string) bool {
	return filex.Exists(path) || filex.Exists(path+backupSuffix)
}

// Create seals a fresh document under password and writes it to path.
func Create(ctx context.Context, path string, password []byte, opts ...Option) (*Handle, error) {
	o := buildOptions(opts)

	if Exists(path) {
		return nil, fmt.Errorf("create vault: %w", common.ErrAlreadyExists)
	}

	h := &Handle{
		path:   path,
		doc:    models.NewDocument(o.now()),
		sealer: cryptox.NewSealer(password, o.params),
		opts:   o,
	}
	if err := h.persist(h.doc); err != nil {
		h.sealer.Wipe()
		return nil, fmt.Errorf("create vault: %w", err)
	}

	o.logger.Info(ctx, "vault created", "path", path)
	return h, nil
}

// Open decrypts the vault at path.
func Open(ctx context.Context, path string, password []byte, opts ...Option) (*Handle, error) {
	o := buildOptions(opts)
	backup := path + backupSuffix

	if !filex.Exists(path) {
		if !filex.Exists(backup) {
			return nil, fmt.Errorf("open %s: %w", path, ErrNotFound)
		}
		if err := os.Rename(backup, path); err != nil {
			return nil, fmt.Errorf("restore backup: %w", err)
		}
		o.logger.Warn(ctx, "vault restored from rekey backup", "path", path)
	}

	var doc models.Document
	sealer, err := openFile(path, password, &doc)
	if err == nil && !doc.Initialized {
		sealer.Wipe()
		err = errNotInitialized
	}

	if err != nil {
		if !filex.Exists(backup) {
			o.logger.Warn(ctx, "vault open failed", "reason", reason(err))
			return nil, common.ErrInvalidPasswordOrCorrupt
		}

		// An interrupted rekey may have left the old file behind.
		var old models.Document
		bs, berr := openFile(backup, password, &old)
		if berr != nil || !old.Initialized {
			o.logger.Warn(ctx, "vault open failed", "reason", reason(err), "backup_reason", reason(berr))
			return nil, common.ErrInvalidPasswordOrCorrupt
		}
		if rerr := os.Rename(backup, path); rerr != nil {
			bs.Wipe()
			return nil, fmt.Errorf("restore backup: %w", rerr)
		}
		o.logger.Warn(ctx, "interrupted rekey rolled back", "path", path)
		doc, sealer = old, bs
	} else if filex.Exists(backup) {
		// The primary opened, so the backup is stale.
		if rerr := os.Remove(backup); rerr != nil {
			o.logger.Warn(ctx, "could not remove stale rekey backup", "error", rerr)
		}
	}

	if doc.Accounts == nil {
		doc.Accounts = map[string]models.Account{}
	}

	o.logger.Debug(ctx, "vault opened", "path", path, "accounts", len(doc.Accounts))
	return &Handle{path: path, doc: &doc, sealer: sealer, opts: o}, nil
}

var errNotInitialized = errors.New("document not initialized")

func openFile(path string, password []byte, v *models.Document) (*cryptox.Sealer, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return cryptox.Open(blob, password, v)
}

// reason names the internal cause of an open failure for logs only.
func reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, cryptox.ErrDecrypt):
		return "decrypt"
	case errors.Is(err, cryptox.ErrMalformedEnvelope):
		return "malformed"
	case errors.Is(err, errNotInitialized):
		return "not initialized"
	case errors.Is(err, fs.ErrNotExist):
		return "missing"
	default:
		return "io"
	}
}

func (h *Handle) Path() string { return h.path }

// CreatedAt returns the document creation time.
func (h *Handle) CreatedAt() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.doc.CreatedAt
}

// View runs fn against the in-memory document under a read lock. fn must not
// mutate or retain doc.
func (h *Handle) View(fn func(doc *models.Document) error) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return fn(h.doc)
}

// Update runs fn against a copy of the document and, if fn succeeds, seals
// and writes the copy before making it current. If fn or the write fails the
// in-memory document is unchanged.
func (h *Handle) Update(fn func(doc *models.Document) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	next := h.doc.Clone()
	if err := fn(next); err != nil {
		return err
	}
	if err := h.persist(next); err != nil {
		return err
	}
	h.doc = next
	return nil
}

func (h *Handle) persist(doc *models.Document) error {
	if h.staleBackup {
		err := removeFile(h.path + backupSuffix)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove stale rekey backup: %w", err)
		}
		h.staleBackup = false
	}

	blob, err := h.sealer.Seal(doc)
	if err != nil {
		return fmt.Errorf("seal: %w", err)
	}
	if err := filex.WriteFileAtomic(h.path, blob, fileMode); err != nil {
		return fmt.Errorf("write vault: %w", err)
	}
	return nil
}

// VerifyPassword reports whether password opens the file on disk. It is used
// to gate sensitive operations such as secret export.
func (h *Handle) VerifyPassword(password []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var doc models.Document
	s, err := openFile(h.path, password, &doc)
	if err != nil {
		return false
	}
	s.Wipe()
	return doc.Initialized
}

// Rekey re-seals the document under newPassword.
//
// Sequence: back up the current file, remove it, write the new file, re-open
// it with newPassword. If verification fails the backup is restored and
// common.ErrRekeyVerificationFailed is returned; the handle keeps using the
// old key. On success the backup is deleted; if that fails, Update refuses
// to write until the backup can be removed.
func (h *Handle) Rekey(ctx context.Context, newPassword []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	backup := h.path + backupSuffix
	if err := filex.CopyFileAtomic(h.path, backup, fileMode); err != nil {
		return fmt.Errorf("rekey backup: %w", err)
	}
	if err := os.Remove(h.path); err != nil {
		return fmt.Errorf("rekey remove old: %w", err)
	}

	next := cryptox.NewSealer(newPassword, h.opts.params)
	blob, err := next.Seal(h.doc)
	if err == nil {
		err = filex.WriteFileAtomic(h.path, blob, fileMode)
	}
	if err == nil {
		err = verifyRekey(h.path, newPassword)
	}

	if err != nil {
		next.Wipe()
		h.opts.logger.Error(ctx, "rekey failed, restoring backup", "error", err)
		if rerr := os.Rename(backup, h.path); rerr != nil {
			return fmt.Errorf("%w: restore backup: %v", common.ErrRekeyVerificationFailed, rerr)
		}
		return common.ErrRekeyVerificationFailed
	}

	if err := removeFile(backup); err != nil {
		// The backup still opens with the old password; no write may land
		// under the new key until it is gone.
		h.staleBackup = true
		h.opts.logger.Warn(ctx, "could not remove rekey backup", "error", err)
	}

	h.sealer.Wipe()
	h.sealer = next
	h.opts.logger.Info(ctx, "vault rekeyed", "path", h.path)
	return nil
}

// Close wipes the key from memory. The handle must not be used afterwards.
func (h *Handle) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sealer.Wipe()
}

// Raw returns the sealed file contents, e.g. for an off-site copy.
func (h *Handle) Raw() ([]byte, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return os.ReadFile(h.path)
}

func toTree(doc *models.Document) (map[string]any, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var tree map[string]any
	if err := json.Unmarshal(b, &tree); err != nil {
		return nil, err
	}
	return tree, nil
}
