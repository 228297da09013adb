package cognitocreds

import (
	"github.com/99designs/keyring"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// IdentityStore remembers the Cognito identity id handed out for a pool so
// that repeated exchanges reuse a single anonymous identity instead of
// minting a new one each time. Only identity ids are stored; credentials
// never are.
type IdentityStore interface {
	Get(identityPoolID string) (string, error)
	Put(identityPoolID, identityID string) error
	Delete(identityPoolID string) error
}

const (
	KeyringItemKey   = "identity-cache"
	KeyringItemLabel = "aws-cognito-flags identity cache"
)

type identityDb struct {
	Identities map[string]string
}

// KeyringIdentityStore stores all identities in a single keyring item, so
// the keychain only asks for access once.
type KeyringIdentityStore struct {
	Keyring keyring.Keyring

	// defaults to logrus.StandardLogger()
	Log logrus.FieldLogger
}

func (s *KeyringIdentityStore) log() logrus.FieldLogger {
	if s.Log == nil {
		return logrus.StandardLogger()
	}
	return s.Log
}

// getDb gets our item from the keyring and unmarshals it
//
// if the keyring item is not found, returns wrapped keyring.ErrKeyNotFound
func (s *KeyringIdentityStore) getDb() (*identityDb, error) {
	item, err := s.Keyring.Get(KeyringItemKey)
	if err != nil {
		return nil, xerrors.Errorf("failed Keyring.Get(%q): %w", KeyringItemKey, err)
	}

	var db identityDb
	if err := json.Unmarshal(item.Data, &db); err != nil {
		return nil, xerrors.Errorf("failed unmarshal for %q: %w", KeyringItemKey, err)
	}
	return &db, nil
}

func (s *KeyringIdentityStore) putDb(db *identityDb) error {
	bytes, err := json.Marshal(db)
	if err != nil {
		return xerrors.Errorf("marshalling %q: %w", KeyringItemKey, err)
	}
	item := keyring.Item{
		Key:                         KeyringItemKey,
		Label:                       KeyringItemLabel,
		Data:                        bytes,
		KeychainNotTrustApplication: false,
	}
	if err := s.Keyring.Set(item); err != nil {
		return xerrors.Errorf("writing %q: %w", KeyringItemKey, err)
	}
	return nil
}

// Get returns the identity remembered for a pool. If there is none, the
// returned error wraps keyring.ErrKeyNotFound.
func (s *KeyringIdentityStore) Get(identityPoolID string) (string, error) {
	db, err := s.getDb()
	if err != nil {
		s.log().Debugf("identity get `%s`: miss (read error): %s", identityPoolID, err)
		return "", xerrors.Errorf("failed loading identities for %q: %w", identityPoolID, err)
	}

	id, ok := db.Identities[identityPoolID]
	if !ok {
		s.log().Debugf("identity get `%s`: miss", identityPoolID)
		return "", xerrors.Errorf("no identity for %q: %w", identityPoolID, keyring.ErrKeyNotFound)
	}

	s.log().Debugf("identity get `%s`: hit", identityPoolID)
	return id, nil
}

func (s *KeyringIdentityStore) Put(identityPoolID, identityID string) error {
	db, err := s.getDb()
	if xerrors.Is(err, keyring.ErrKeyNotFound) || (db != nil && db.Identities == nil) {
		s.log().Debugf("identity put: new db")
		db = &identityDb{Identities: map[string]string{}}
	} else if err != nil {
		return xerrors.Errorf("loading identities for %q: %w", identityPoolID, err)
	}

	db.Identities[identityPoolID] = identityID
	if err := s.putDb(db); err != nil {
		s.log().Debugf("identity put `%s`: error: %s", identityPoolID, err)
		return err
	}
	s.log().Debugf("identity put `%s`: success", identityPoolID)
	return nil
}

// Delete forgets the identity for a pool. Deleting an unknown pool is not
// an error.
func (s *KeyringIdentityStore) Delete(identityPoolID string) error {
	db, err := s.getDb()
	if xerrors.Is(err, keyring.ErrKeyNotFound) {
		return nil
	} else if err != nil {
		return xerrors.Errorf("loading identities for %q: %w", identityPoolID, err)
	}

	if _, ok := db.Identities[identityPoolID]; !ok {
		return nil
	}
	delete(db.Identities, identityPoolID)
	return s.putDb(db)
}
