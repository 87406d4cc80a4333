// Package keymanager implements the K collaborator: header sizing,
// file encryption key (FEK) generation, and AEAD sealing/opening of
// meta and block payloads.
//
// Every object is protected by its own randomly generated FEK. The
// FEK itself never touches the backing store unwrapped: it is
// wrapped under a key derived from the device root secret and the
// current session's UUID, and the wrapped FEK lives inside the meta
// file's ciphertext header. Block files take the already-unwrapped
// FEK as an explicit input, mirroring how the original REE
// filesystem threads fek through tee_fs_fek_crypt.
package keymanager

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/hkdf"
)

// FileKind distinguishes the meta file from a data block file, since
// they use different AEAD header layouts.
type FileKind int

const (
	MetaFile FileKind = iota
	BlockFile
)

func (k FileKind) String() string {
	switch k {
	case MetaFile:
		return "meta"
	case BlockFile:
		return "block"
	default:
		return "unknown"
	}
}

const (
	// NonceLen is the AES-GCM nonce length in bytes.
	NonceLen = 12

	// GCMTagLen is the AES-GCM authentication tag length in bytes.
	GCMTagLen = 16

	// aesKeyLen is the length of an AES-256 key and of the FEK itself.
	aesKeyLen = 32

	// hkdfInfo is the domain-separation string for FEK-wrap-key
	// derivation, the symmetric analogue of method42's HKDFInfo.
	hkdfInfo = "secureobjfs-fek-wrap"
)

// SessionAccessor supplies the UUID of the currently active session,
// used to derive the key that wraps/unwraps FEKs. Satisfied by
// session.Accessor; declared locally to avoid an import cycle.
type SessionAccessor interface {
	CurrentSessionUUID() [16]byte
}

// KeyManager is the K collaborator described by the external
// interfaces: it knows how big AEAD headers are for each file kind,
// how to mint a fresh FEK for a new object, and how to seal/open
// payloads under that FEK.
type KeyManager interface {
	// HeaderSize returns the number of AEAD overhead bytes prefixed
	// to every ciphertext of the given kind.
	HeaderSize(kind FileKind) int

	// FEKSize returns the length in bytes of a file encryption key.
	FEKSize() int

	// NumBlocksPerFile returns this manager's configured default
	// block count for newly created objects.
	NumBlocksPerFile() int

	// GenerateFEK mints a fresh random FEK for uuid.
	GenerateFEK(uuid [16]byte) ([]byte, error)

	// Encrypt seals plaintext under fek. For MetaFile, fek may be
	// empty — the manager treats an empty fek as "wrap a freshly
	// generated FEK and embed it in the header"; inspect the
	// ciphertext via Decrypt to recover the FEK actually used. For
	// BlockFile, fek must be the object's existing (already
	// unwrapped) FEK.
	Encrypt(kind FileKind, plaintext, fek []byte) (ciphertext []byte, err error)

	// Decrypt opens ciphertext. For MetaFile, the header's wrapped
	// FEK is unwrapped using the current session UUID and returned
	// as outFEK. For BlockFile, fek must be supplied by the caller
	// and outFEK is simply that same fek echoed back.
	Decrypt(kind FileKind, ciphertext, fek []byte) (plaintext, outFEK []byte, err error)
}

// DeviceKeyManager is the concrete KeyManager backed by a per-device
// root secret and an injected session accessor. It never persists the
// root secret itself; callers provision it once (e.g. from
// TEE-protected storage) and hold it for the process lifetime.
type DeviceKeyManager struct {
	rootSecret       []byte
	session          SessionAccessor
	numBlocksPerFile int
	log              zerolog.Logger
}

// New constructs a DeviceKeyManager. rootSecret must be non-empty and
// is used as HKDF input key material for every FEK-wrap derivation;
// session supplies the UUID that selects the wrap key on every
// call; numBlocksPerFile configures the default block count new
// objects are sized for. A zero zerolog.Logger discards all output.
func New(rootSecret []byte, session SessionAccessor, numBlocksPerFile int, log zerolog.Logger) (*DeviceKeyManager, error) {
	if len(rootSecret) == 0 {
		return nil, ErrEmptyRootSecret
	}
	if session == nil {
		return nil, ErrNilSessionAccessor
	}
	if numBlocksPerFile <= 0 {
		return nil, ErrInvalidBlockCount
	}
	return &DeviceKeyManager{
		rootSecret:       rootSecret,
		session:          session,
		numBlocksPerFile: numBlocksPerFile,
		log:              log,
	}, nil
}

// HeaderSize returns the non-payload overhead of a sealed ciphertext
// of the given kind. For MetaFile this covers both the wrapped-FEK
// block (FEKSize + nonce + tag) prefixed to every meta ciphertext and
// the nonce+tag of the meta body's own AEAD seal; for BlockFile it is
// simply the block's own nonce+tag.
func (m *DeviceKeyManager) HeaderSize(kind FileKind) int {
	switch kind {
	case MetaFile:
		return m.FEKSize() + 2*(NonceLen+GCMTagLen)
	default:
		return NonceLen + GCMTagLen
	}
}

func (m *DeviceKeyManager) FEKSize() int { return aesKeyLen }

func (m *DeviceKeyManager) NumBlocksPerFile() int { return m.numBlocksPerFile }

func (m *DeviceKeyManager) GenerateFEK(uuid [16]byte) ([]byte, error) {
	fek := make([]byte, aesKeyLen)
	if _, err := rand.Read(fek); err != nil {
		m.log.Error().Err(err).Str("uuid", fmt.Sprintf("%x", uuid)).Msg("keymanager: FEK generation failed")
		return nil, fmt.Errorf("keymanager: generate fek: %w", err)
	}
	return fek, nil
}

// Encrypt implements KeyManager.
func (m *DeviceKeyManager) Encrypt(kind FileKind, plaintext, fek []byte) ([]byte, error) {
	switch kind {
	case MetaFile:
		return m.encryptMeta(plaintext, fek)
	case BlockFile:
		return m.encryptBlock(fek, plaintext)
	default:
		return nil, fmt.Errorf("keymanager: %w: %v", ErrInvalidFileKind, kind)
	}
}

// Decrypt implements KeyManager.
func (m *DeviceKeyManager) Decrypt(kind FileKind, ciphertext, fek []byte) ([]byte, []byte, error) {
	switch kind {
	case MetaFile:
		return m.decryptMeta(ciphertext)
	case BlockFile:
		plaintext, err := m.decryptBlock(fek, ciphertext)
		if err != nil {
			return nil, nil, err
		}
		return plaintext, fek, nil
	default:
		return nil, nil, fmt.Errorf("keymanager: %w: %v", ErrInvalidFileKind, kind)
	}
}

// encryptMeta wraps fek (generating one if empty) under the
// session-derived wrap key, seals plaintext separately under fek, and
// returns wrappedFEK || sealedBody, the layout decryptMeta splits
// apart again.
func (m *DeviceKeyManager) encryptMeta(plaintext, fek []byte) ([]byte, error) {
	uuid := m.session.CurrentSessionUUID()

	if len(fek) == 0 {
		generated, err := m.GenerateFEK(uuid)
		if err != nil {
			return nil, err
		}
		fek = generated
	}
	if len(fek) != aesKeyLen {
		return nil, fmt.Errorf("keymanager: %w: fek must be %d bytes", ErrInvalidFEK, aesKeyLen)
	}

	wrapKey, err := m.deriveWrapKey(uuid)
	if err != nil {
		return nil, err
	}

	wrappedFEK, err := aesGCMSeal(wrapKey, fek)
	if err != nil {
		return nil, fmt.Errorf("keymanager: wrap fek: %w", err)
	}

	body, err := aesGCMSeal(fek, plaintext)
	if err != nil {
		return nil, fmt.Errorf("keymanager: seal meta: %w", err)
	}

	out := make([]byte, 0, len(wrappedFEK)+len(body))
	out = append(out, wrappedFEK...)
	out = append(out, body...)
	return out, nil
}

func (m *DeviceKeyManager) decryptMeta(ciphertext []byte) ([]byte, []byte, error) {
	wrappedLen := aesKeyLen + NonceLen + GCMTagLen
	if len(ciphertext) < wrappedLen {
		m.log.Error().Msg("keymanager: meta ciphertext too short")
		return nil, nil, ErrMACInvalid
	}

	uuid := m.session.CurrentSessionUUID()
	wrapKey, err := m.deriveWrapKey(uuid)
	if err != nil {
		return nil, nil, err
	}

	fek, err := aesGCMOpen(wrapKey, ciphertext[:wrappedLen])
	if err != nil {
		m.log.Error().Err(err).Msg("keymanager: fek unwrap failed")
		return nil, nil, ErrMACInvalid
	}

	plaintext, err := aesGCMOpen(fek, ciphertext[wrappedLen:])
	if err != nil {
		m.log.Error().Err(err).Msg("keymanager: meta open failed")
		return nil, nil, ErrMACInvalid
	}

	return plaintext, fek, nil
}

func (m *DeviceKeyManager) encryptBlock(fek, plaintext []byte) ([]byte, error) {
	if len(fek) != aesKeyLen {
		return nil, fmt.Errorf("keymanager: %w: fek must be %d bytes", ErrInvalidFEK, aesKeyLen)
	}
	ciphertext, err := aesGCMSeal(fek, plaintext)
	if err != nil {
		return nil, fmt.Errorf("keymanager: seal block: %w", err)
	}
	return ciphertext, nil
}

func (m *DeviceKeyManager) decryptBlock(fek, ciphertext []byte) ([]byte, error) {
	if len(fek) != aesKeyLen {
		return nil, fmt.Errorf("keymanager: %w: fek must be %d bytes", ErrInvalidFEK, aesKeyLen)
	}
	plaintext, err := aesGCMOpen(fek, ciphertext)
	if err != nil {
		m.log.Error().Err(err).Msg("keymanager: block open failed")
		return nil, ErrMACInvalid
	}
	return plaintext, nil
}

// deriveWrapKey derives the 32-byte key used to wrap/unwrap FEKs for
// uuid, via HKDF-SHA256(rootSecret, salt=uuid, info=hkdfInfo). This is
// the symmetric analogue of method42.DeriveAESKey: deterministic in
// (rootSecret, uuid), so the same session can always re-derive its
// own wrap key without a handshake.
func (m *DeviceKeyManager) deriveWrapKey(uuid [16]byte) ([]byte, error) {
	r := hkdf.New(sha256.New, m.rootSecret, uuid[:], []byte(hkdfInfo))
	key := make([]byte, aesKeyLen)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHKDFFailure, err)
	}
	return key, nil
}

// aesGCMSeal encrypts plaintext with AES-256-GCM under key. Returns
// nonce(12B) || ciphertext || tag(16B).
func aesGCMSeal(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// aesGCMOpen decrypts nonce(12B) || ciphertext || tag(16B) under key.
func aesGCMOpen(key, sealed []byte) ([]byte, error) {
	if len(sealed) < NonceLen+GCMTagLen {
		return nil, ErrMACInvalid
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm: %w", err)
	}
	nonce, body := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, body, nil)
	if err != nil {
		return nil, ErrMACInvalid
	}
	if plaintext == nil {
		plaintext = []byte{}
	}
	return plaintext, nil
}
