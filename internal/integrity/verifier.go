package integrity

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"os"

	"golang.org/x/crypto/blake2b"

	"github.com/rowan/backstop/internal/core/domain"
)

// VerifyOutcome distinguishes a checksum mismatch (failed) from an
// unavailable algorithm or unreadable payload (error).
type VerifyOutcome string

const (
	VerifyPassed VerifyOutcome = "passed"
	VerifyFailed VerifyOutcome = "failed"
	VerifyError  VerifyOutcome = "error"
)

// Verifier computes and validates content digests. Compute is pure and
// deterministic for identical input bytes.
type Verifier struct{}

func NewVerifier() *Verifier {
	return &Verifier{}
}

func newHasher(algorithm domain.ChecksumAlgorithm) (hash.Hash, error) {
	switch algorithm {
	case domain.AlgorithmMD5:
		return md5.New(), nil
	case domain.AlgorithmSHA1:
		return sha1.New(), nil
	case domain.AlgorithmSHA256:
		return sha256.New(), nil
	case domain.AlgorithmSHA512:
		return sha512.New(), nil
	case domain.AlgorithmBLAKE2:
		return blake2b.New256(nil)
	case domain.AlgorithmCRC32:
		return crc32.NewIEEE(), nil
	default:
		return nil, fmt.Errorf("unsupported checksum algorithm: %s", algorithm)
	}
}

// Compute returns the hex digest of payload under the given algorithm.
func (v *Verifier) Compute(payload []byte, algorithm domain.ChecksumAlgorithm) (string, error) {
	h, err := newHasher(algorithm)
	if err != nil {
		return "", err
	}
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ComputeReader streams r through the digest, for payloads too large to
// hold in memory.
func (v *Verifier) ComputeReader(r io.Reader, algorithm domain.ChecksumAlgorithm) (string, error) {
	h, err := newHasher(algorithm)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("failed to read payload: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ComputeFile digests the file at path.
func (v *Verifier) ComputeFile(path string, algorithm domain.ChecksumAlgorithm) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open payload: %w", err)
	}
	defer f.Close()
	return v.ComputeReader(f, algorithm)
}

// Verify compares the payload digest against expected.
func (v *Verifier) Verify(payload []byte, expected string, algorithm domain.ChecksumAlgorithm) (VerifyOutcome, error) {
	got, err := v.Compute(payload, algorithm)
	if err != nil {
		return VerifyError, err
	}
	if got != expected {
		return VerifyFailed, nil
	}
	return VerifyPassed, nil
}

// VerifyFile compares the digest of the file at path against expected.
func (v *Verifier) VerifyFile(path, expected string, algorithm domain.ChecksumAlgorithm) (VerifyOutcome, error) {
	got, err := v.ComputeFile(path, algorithm)
	if err != nil {
		return VerifyError, err
	}
	if got != expected {
		return VerifyFailed, nil
	}
	return VerifyPassed, nil
}
