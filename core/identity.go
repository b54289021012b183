package core

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"
)

// IdentityKeyPair is the long-lived keypair an instance presents over
// HELLO. Its public half is transmitted only inside the encrypted HELLO
// payload, never over signaling (spec §3).
type IdentityKeyPair struct {
	Public [PublicKeyLength]byte
	Secret [SecretKeyLength]byte
}

func (kp *IdentityKeyPair) Zeroize() {
	for i := range kp.Secret {
		kp.Secret[i] = 0
	}
}

// IdentityPersistence loads and saves a single long-lived identity
// keypair. load returns ok=false when no identity has been persisted yet.
type IdentityPersistence interface {
	Load() (pair IdentityKeyPair, ok bool, err error)
	Save(pair IdentityKeyPair) error
}

// GetOrCreateIdentity returns the persisted identity keypair, generating,
// saving, and returning a new one if none exists yet.
func GetOrCreateIdentity(store IdentityPersistence) (IdentityKeyPair, error) {
	if pair, ok, err := store.Load(); err != nil {
		return IdentityKeyPair{}, err
	} else if ok {
		return pair, nil
	}

	kp, err := GenerateKeyPair()
	if err != nil {
		return IdentityKeyPair{}, err
	}
	pair := IdentityKeyPair{Public: kp.Public, Secret: kp.Secret}
	if err := store.Save(pair); err != nil {
		return IdentityKeyPair{}, err
	}
	return pair, nil
}

// MemoryIdentityStore is an in-memory IdentityPersistence, suitable for
// tests and ephemeral embedders that do not need identity to survive a
// process restart.
type MemoryIdentityStore struct {
	pair IdentityKeyPair
	set  bool
}

func NewMemoryIdentityStore() *MemoryIdentityStore {
	return &MemoryIdentityStore{}
}

func (s *MemoryIdentityStore) Load() (IdentityKeyPair, bool, error) {
	return s.pair, s.set, nil
}

func (s *MemoryIdentityStore) Save(pair IdentityKeyPair) error {
	s.pair = pair
	s.set = true
	return nil
}

// FileIdentityStore persists an identity keypair to disk, namespaced by
// an identifier under dir, mirroring the teacher's sanitizeIdentifier +
// per-context key-file layout. The secret key is wrapped at rest with a
// secretbox key derived via deriveStorageKey; the public key is stored in
// the clear since it is freely exchangeable.
type FileIdentityStore struct {
	dir   string
	id    string
	salt  [32]byte
	wrapK [32]byte // cached derived wrap key, computed lazily
	ready bool
}

// NewFileIdentityStore creates a file-backed identity store rooted at dir
// for the given identifier. salt is a caller-supplied 32-byte value used
// to derive the at-rest wrap key; callers typically persist this salt
// alongside the store directory (it is not secret, but MUST be stable
// across process restarts for Load to succeed).
func NewFileIdentityStore(dir, id string, salt [32]byte) *FileIdentityStore {
	return &FileIdentityStore{dir: dir, id: sanitizeIdentifier(id), salt: salt}
}

func (s *FileIdentityStore) publicKeyPath() string {
	return fmt.Sprintf("%s/%s_identity_public.key", s.dir, s.id)
}

func (s *FileIdentityStore) secretKeyPath() string {
	return fmt.Sprintf("%s/%s_identity_secret.key", s.dir, s.id)
}

func (s *FileIdentityStore) wrapKey() ([32]byte, error) {
	if s.ready {
		return s.wrapK, nil
	}
	masterKey, err := loadOrGenerateMasterKey(s.dir, s.id)
	if err != nil {
		return [32]byte{}, err
	}
	key, err := deriveStorageKey(masterKey, s.salt, "identity:"+s.id)
	if err != nil {
		return [32]byte{}, err
	}
	s.wrapK = key
	s.ready = true
	return s.wrapK, nil
}

func (s *FileIdentityStore) Load() (IdentityKeyPair, bool, error) {
	var pair IdentityKeyPair

	if !fileExists(s.publicKeyPath()) || !fileExists(s.secretKeyPath()) {
		return pair, false, nil
	}

	pubRaw, err := readFile(s.publicKeyPath())
	if err != nil {
		return pair, false, err
	}
	if len(pubRaw) != PublicKeyLength {
		return pair, false, NewEncryptionError("corrupt identity public key file")
	}
	copy(pair.Public[:], pubRaw)

	sealedSecret, err := readFile(s.secretKeyPath())
	if err != nil {
		return pair, false, err
	}
	secretRaw, err := s.unwrapSecret(sealedSecret)
	if err != nil {
		return pair, false, err
	}
	copy(pair.Secret[:], secretRaw)

	return pair, true, nil
}

func (s *FileIdentityStore) Save(pair IdentityKeyPair) error {
	if err := writeKeyFile(s.publicKeyPath(), pair.Public[:]); err != nil {
		return err
	}
	sealed, err := s.wrapSecret(pair.Secret[:])
	if err != nil {
		return err
	}
	if err := writeKeyFile(s.secretKeyPath(), sealed); err != nil {
		_ = deleteFile(s.publicKeyPath())
		return err
	}
	return nil
}

func (s *FileIdentityStore) wrapSecret(secret []byte) ([]byte, error) {
	key, err := s.wrapKey()
	if err != nil {
		return nil, err
	}
	var nonce [NonceLength]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, NewEncryptionError("could not generate nonce for at-rest wrap")
	}
	return secretbox.Seal(nonce[:], secret, &nonce, &key), nil
}

func (s *FileIdentityStore) unwrapSecret(sealed []byte) ([]byte, error) {
	if len(sealed) < NonceLength {
		return nil, NewEncryptionError("wrapped secret key too short")
	}
	key, err := s.wrapKey()
	if err != nil {
		return nil, err
	}
	var nonce [NonceLength]byte
	copy(nonce[:], sealed[:NonceLength])
	plain, ok := secretbox.Open(nil, sealed[NonceLength:], &nonce, &key)
	if !ok {
		return nil, NewEncryptionError("could not unwrap identity secret key")
	}
	return plain, nil
}

// loadOrGenerateMasterKey loads or creates the 32-byte master key this
// identifier's at-rest wrap key is derived from, following the teacher's
// load-or-generate-and-persist pattern from loadSecretKey/loadNonceKey.
func loadOrGenerateMasterKey(dir, id string) ([32]byte, error) {
	var key [32]byte
	path := fmt.Sprintf("%s/%s_master.key", dir, id)

	if fileExists(path) {
		raw, err := readFile(path)
		if err != nil {
			return key, err
		}
		if len(raw) != 32 {
			return key, NewEncryptionError("corrupt master key file")
		}
		copy(key[:], raw)
		return key, nil
	}

	if _, err := rand.Read(key[:]); err != nil {
		return key, NewEncryptionError("could not generate master key")
	}
	if err := writeKeyFile(path, key[:]); err != nil {
		return key, err
	}
	return key, nil
}
