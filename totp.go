package clinicauth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const totpSecretBytes = 20

// backupCodeAlphabet avoids characters that are ambiguous when read back
// over the phone to a patient.
const backupCodeAlphabet = "ABCDEFGHJKMNPQRSTVWXYZ23456789"

type twoFactorManager struct {
	config TwoFactorConfig
}

func newTwoFactorManager(cfg TwoFactorConfig) *twoFactorManager {
	return &twoFactorManager{config: cfg}
}

// GenerateSecret returns a fresh random TOTP seed and its base32 form.
func (m *twoFactorManager) GenerateSecret() ([]byte, string, error) {
	raw := make([]byte, totpSecretBytes)
	if _, err := rand.Read(raw); err != nil {
		return nil, "", err
	}

	enc := base32.StdEncoding.WithPadding(base32.NoPadding)
	return raw, enc.EncodeToString(raw), nil
}

// ProvisionURI renders the otpauth:// URI consumed by authenticator apps.
func (m *twoFactorManager) ProvisionURI(secretBase32, account string) string {
	issuer := m.config.Issuer
	label := url.PathEscape(issuer + ":" + account)

	v := url.Values{}
	v.Set("secret", secretBase32)
	v.Set("issuer", issuer)
	v.Set("period", strconv.Itoa(m.config.Period))
	v.Set("digits", strconv.Itoa(m.config.Digits))
	v.Set("algorithm", "SHA1")

	return "otpauth://totp/" + label + "?" + v.Encode()
}

// VerifyCode validates a numeric code against the secret at the given time,
// accepting the configured skew in time steps on either side. It returns the
// matched time step for replay tracking.
func (m *twoFactorManager) VerifyCode(secret []byte, code string, now time.Time) (bool, int64, error) {
	trimmed := strings.TrimSpace(code)
	if len(trimmed) != m.config.Digits || !isDigits(trimmed) {
		return false, 0, nil
	}

	if len(secret) == 0 {
		return false, 0, errors.New("empty totp secret")
	}

	baseStep := now.Unix() / int64(m.config.Period)
	for offset := -m.config.Skew; offset <= m.config.Skew; offset++ {
		step := baseStep + int64(offset)
		if step < 0 {
			continue
		}
		generated := hotpCode(secret, step, m.config.Digits)
		if subtle.ConstantTimeCompare([]byte(generated), []byte(trimmed)) == 1 {
			return true, step, nil
		}
	}

	return false, 0, nil
}

// GenerateBackupCodes returns the configured number of single-use recovery
// codes together with the SHA-256 hashes that get persisted.
func (m *twoFactorManager) GenerateBackupCodes() ([]string, [][32]byte, error) {
	codes := make([]string, m.config.BackupCodeCount)
	hashes := make([][32]byte, m.config.BackupCodeCount)

	for i := range codes {
		code, err := randomBackupCode(m.config.BackupCodeLength)
		if err != nil {
			return nil, nil, err
		}
		codes[i] = code
		hashes[i] = HashBackupCode(code)
	}

	return codes, hashes, nil
}

// HashBackupCode maps a backup code to its stored hash. Comparison is
// whitespace- and case-insensitive so codes survive manual transcription.
func HashBackupCode(code string) [32]byte {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	return sha256.Sum256([]byte(normalized))
}

func randomBackupCode(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = backupCodeAlphabet[int(b)%len(backupCodeAlphabet)]
	}
	return string(buf), nil
}

func hotpCode(secret []byte, step int64, digits int) string {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(step))

	mac := hmac.New(sha1.New, secret)
	_, _ = mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	bin := (int(sum[offset])&0x7f)<<24 |
		(int(sum[offset+1])&0xff)<<16 |
		(int(sum[offset+2])&0xff)<<8 |
		(int(sum[offset+3]) & 0xff)

	mod := 1
	for i := 0; i < digits; i++ {
		mod *= 10
	}

	return fmt.Sprintf("%0*d", digits, bin%mod)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
