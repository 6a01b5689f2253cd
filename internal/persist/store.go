// Package persist stores the tab session snapshot encrypted at rest, so a
// restarted client resumes with the same open tabs and message filter.
package persist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"pkt.systems/kryptograf"
	"pkt.systems/kryptograf/keymgmt"
	"pkt.systems/pslog"

	"pkt.systems/fleetwatch/schema"
)

const (
	keyStoreFile   = "keys.store"
	sessionFile    = "session.enc"
	descriptorName = "fleetwatch:session"
)

// Store persists encrypted session snapshots under a state directory.
type Store struct {
	dir      string
	keyStore string
	log      pslog.Logger
}

// NewStore constructs a store rooted at dir, creating the directory and the
// key store (with root key) when missing.
func NewStore(dir string, logger pslog.Logger) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("state directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	s := &Store{
		dir:      dir,
		keyStore: filepath.Join(dir, keyStoreFile),
		log:      logger.With("state_dir", dir),
	}
	store, err := keymgmt.LoadProto(s.keyStore)
	if err != nil {
		s.log.Warn("key store load failed", "err", err)
		return nil, err
	}
	if _, err := store.EnsureRootKey(); err != nil {
		s.log.Warn("key store ensure failed", "err", err)
		return nil, err
	}
	if err := store.Commit(); err != nil {
		s.log.Warn("key store commit failed", "err", err)
		return nil, err
	}
	return s, nil
}

func (s *Store) material() (keymgmt.Material, keymgmt.RootKey, error) {
	store, err := keymgmt.LoadProto(s.keyStore)
	if err != nil {
		return keymgmt.Material{}, keymgmt.RootKey{}, err
	}
	root, err := store.EnsureRootKey()
	if err != nil {
		return keymgmt.Material{}, keymgmt.RootKey{}, err
	}
	material, err := store.EnsureDescriptor(descriptorName, root, []byte(descriptorName))
	if err != nil {
		return keymgmt.Material{}, keymgmt.RootKey{}, err
	}
	if err := store.Commit(); err != nil {
		return keymgmt.Material{}, keymgmt.RootKey{}, err
	}
	return material, root, nil
}

// Load reads the session snapshot. A missing file is not an error; callers
// start a fresh session.
func (s *Store) Load() (schema.SessionSnapshot, bool, error) {
	path := filepath.Join(s.dir, sessionFile)
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.log.Debug("session load miss")
			return schema.SessionSnapshot{}, false, nil
		}
		s.log.Warn("session load failed", "err", err)
		return schema.SessionSnapshot{}, false, err
	}
	defer func() { _ = file.Close() }()

	material, root, err := s.material()
	if err != nil {
		s.log.Warn("session load failed", "err", err)
		return schema.SessionSnapshot{}, false, err
	}
	kg := kryptograf.New(root)
	reader, err := kg.DecryptReader(file, material)
	if err != nil {
		s.log.Warn("session load failed", "err", err)
		return schema.SessionSnapshot{}, false, err
	}
	defer func() { _ = reader.Close() }()
	plain, err := io.ReadAll(reader)
	if err != nil {
		s.log.Warn("session load failed", "err", err)
		return schema.SessionSnapshot{}, false, err
	}
	var snapshot schema.SessionSnapshot
	if err := json.Unmarshal(plain, &snapshot); err != nil {
		s.log.Warn("session load failed", "err", err)
		return schema.SessionSnapshot{}, false, err
	}
	s.log.Debug("session load ok", "tabs", len(snapshot.Order))
	return snapshot, true, nil
}

// Save writes the session snapshot atomically.
func (s *Store) Save(snapshot schema.SessionSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		s.log.Warn("session save failed", "err", err)
		return err
	}
	material, root, err := s.material()
	if err != nil {
		s.log.Warn("session save failed", "err", err)
		return err
	}
	kg := kryptograf.New(root)

	tmp, err := os.CreateTemp(s.dir, "session-*.enc")
	if err != nil {
		s.log.Warn("session save failed", "err", err)
		return err
	}
	tmpPath := tmp.Name()
	fail := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		s.log.Warn("session save failed", "err", err)
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		return fail(err)
	}
	writer, err := kg.EncryptWriter(tmp, material)
	if err != nil {
		return fail(err)
	}
	if _, err := io.Copy(writer, bytes.NewReader(data)); err != nil {
		_ = writer.Close()
		return fail(err)
	}
	if err := writer.Close(); err != nil {
		return fail(err)
	}
	if err := tmp.Sync(); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		s.log.Warn("session save failed", "err", err)
		return err
	}
	if err := os.Rename(tmpPath, filepath.Join(s.dir, sessionFile)); err != nil {
		_ = os.Remove(tmpPath)
		s.log.Warn("session save failed", "err", err)
		return err
	}
	s.log.Debug("session save ok", "tabs", len(snapshot.Order))
	return nil
}
