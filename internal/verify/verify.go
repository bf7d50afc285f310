// Package verify checks downloaded artifacts against the digests and
// signatures declared in the catalog.
//
// The signature is an HMAC-SHA256, keyed by the catalog-declared key, over the
// lowercase hex SHA-256 digest of the artifact. It proves the artifact is the
// one the catalog author committed to. It is not publisher code signing and
// does not replace Authenticode verification.
package verify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Cornman92/Better11-sub004/internal/domain/app"
	"github.com/Cornman92/Better11-sub004/internal/ports"
)

// Verifier implements ports.Verifier.
type Verifier struct{}

// New returns a Verifier.
func New() *Verifier { return &Verifier{} }

// FileSHA256 returns the lowercase hex SHA-256 digest of the file at path.
func FileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", app.NewError(app.ErrCodeDownload, "open artifact", err, map[string]interface{}{"path": path})
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", app.NewError(app.ErrCodeDownload, "read artifact", err, map[string]interface{}{"path": path})
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// VerifyHash compares the file digest with expectedHex, ignoring case, and
// returns the actual digest.
func VerifyHash(path, expectedHex string) (string, error) {
	actual, err := FileSHA256(path)
	if err != nil {
		return "", err
	}
	expected := strings.ToLower(strings.TrimSpace(expectedHex))
	if actual != expected {
		return actual, app.NewHashMismatchError(path, expected, actual)
	}
	return actual, nil
}

// VerifySignature checks the base64 HMAC signature over the file digest.
func VerifySignature(path, signatureB64, keyB64 string) error {
	signature, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil {
		return app.NewError(app.ErrCodeSignature, "decode signature", err, map[string]interface{}{"path": path})
	}
	key, err := base64.StdEncoding.DecodeString(keyB64)
	if err != nil {
		return app.NewError(app.ErrCodeSignature, "decode signature key", err, map[string]interface{}{"path": path})
	}

	digest, err := FileSHA256(path)
	if err != nil {
		return err
	}
	if !hmac.Equal(Sign(digest, key), signature) {
		return app.NewError(app.ErrCodeSignature, "signature does not match artifact digest", nil, map[string]interface{}{"path": path})
	}
	return nil
}

// Sign computes the catalog signature bytes for a hex digest.
func Sign(digestHex string, key []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(digestHex))
	return mac.Sum(nil)
}

// Verify checks the digest declared by meta, and the signature when meta
// declares one.
func (v *Verifier) Verify(meta app.Metadata, path string) error {
	if _, err := VerifyHash(path, meta.SHA256); err != nil {
		return withApp(err, meta.ID)
	}
	if !meta.HasSignature() {
		return nil
	}
	if err := VerifySignature(path, meta.Signature, meta.SignatureKey); err != nil {
		return app.NewError(app.ErrCodeSignature,
			fmt.Sprintf("signature verification failed for %s", meta.ID),
			err,
			map[string]interface{}{"app_id": meta.ID, "path": path},
		)
	}
	return nil
}

func withApp(err error, appID string) error {
	if de, ok := err.(*app.DomainError); ok {
		return de.WithContext(map[string]interface{}{"app_id": appID})
	}
	return err
}

var _ ports.Verifier = (*Verifier)(nil)
