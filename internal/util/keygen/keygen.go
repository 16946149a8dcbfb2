package keygen

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/ssh"
)

// MinRSABits is the smallest RSA key Azure accepts for Linux admin users.
const MinRSABits = 2048

// DefaultRSABits is used when azhpc generates the admin key itself.
const DefaultRSABits = 3072

// KeyPair holds an RSA key pair in ready-to-use formats.
type KeyPair struct {
	// PrivateKey is the RSA private key in PEM-encoded PKCS#1 format.
	PrivateKey []byte
	// PublicKey is the public key in OpenSSH authorized_keys format.
	PublicKey []byte
	// Fingerprint is the SHA256 fingerprint of the public key.
	Fingerprint string
}

// GenerateRSAKeyPair generates a new RSA key pair with the specified bit size.
func GenerateRSAKeyPair(bits int) (*KeyPair, error) {
	if bits < MinRSABits {
		return nil, fmt.Errorf("rsa key size %d is below the minimum of %d", bits, MinRSABits)
	}
	privateKey, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate RSA private key: %w", err)
	}

	privateKeyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
	})

	pub, err := ssh.NewPublicKey(&privateKey.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create SSH public key: %w", err)
	}

	return &KeyPair{
		PrivateKey:  privateKeyPEM,
		PublicKey:   ssh.MarshalAuthorizedKey(pub),
		Fingerprint: ssh.FingerprintSHA256(pub),
	}, nil
}

// ValidateAuthorizedKey parses an authorized_keys line and checks it is a key
// type Azure accepts for the admin user. It returns the key fingerprint.
func ValidateAuthorizedKey(line string) (string, error) {
	pub, _, _, _, err := ssh.ParseAuthorizedKey([]byte(strings.TrimSpace(line)))
	if err != nil {
		return "", fmt.Errorf("invalid ssh public key: %w", err)
	}

	switch pub.Type() {
	case ssh.KeyAlgoED25519:
	case ssh.KeyAlgoRSA:
		cpk, ok := pub.(ssh.CryptoPublicKey)
		if !ok {
			return "", errors.New("unable to inspect rsa public key")
		}
		rsaKey, ok := cpk.CryptoPublicKey().(*rsa.PublicKey)
		if !ok {
			return "", errors.New("unable to inspect rsa public key")
		}
		if rsaKey.N.BitLen() < MinRSABits {
			return "", fmt.Errorf("rsa key size %d is below the minimum of %d", rsaKey.N.BitLen(), MinRSABits)
		}
	default:
		return "", fmt.Errorf("unsupported ssh key type %q", pub.Type())
	}
	return ssh.FingerprintSHA256(pub), nil
}

// ResolveAdminKey turns the --admin-ssh-key value into an authorized_keys
// line. value may be a key literal or a path to a .pub file. An empty value
// generates a fresh key pair, which is returned so the caller can persist the
// private half.
func ResolveAdminKey(value string) (string, *KeyPair, error) {
	if value == "" {
		kp, err := GenerateRSAKeyPair(DefaultRSABits)
		if err != nil {
			return "", nil, err
		}
		return strings.TrimSpace(string(kp.PublicKey)), kp, nil
	}

	line := value
	if !strings.HasPrefix(value, "ssh-") {
		data, err := os.ReadFile(value)
		if err != nil {
			return "", nil, fmt.Errorf("failed to read ssh public key: %w", err)
		}
		line = string(data)
	}

	if _, err := ValidateAuthorizedKey(line); err != nil {
		return "", nil, err
	}
	return strings.TrimSpace(line), nil, nil
}
