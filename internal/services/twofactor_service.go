package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/OsGift/safawinet-api/internal/utils"
)

// BackupCodeCount is how many recovery codes are issued when 2FA is enabled
const BackupCodeCount = 10

// TwoFactorService wraps TOTP enrollment, verification and backup codes
type TwoFactorService struct {
	issuer string
	now    func() time.Time
}

// NewTwoFactorService creates a new TwoFactorService
func NewTwoFactorService(issuer string) *TwoFactorService {
	return &TwoFactorService{issuer: issuer, now: time.Now}
}

// Issuer is shown by authenticator apps next to the account
func (s *TwoFactorService) Issuer() string { return s.issuer }

// GenerateSecret creates a new TOTP secret and its otpauth:// URL
func (s *TwoFactorService) GenerateSecret(accountName string) (secret, url string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.issuer,
		AccountName: accountName,
		Period:      30,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", "", fmt.Errorf("generating totp secret: %w", err)
	}
	return key.Secret(), key.URL(), nil
}

// ValidateCode checks a 6-digit code, allowing one period of clock skew
func (s *TwoFactorService) ValidateCode(secret, code string) bool {
	code = strings.TrimSpace(code)
	if secret == "" || len(code) != 6 {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, s.now().UTC(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

// GenerateBackupCodes returns plain codes for the user and their bcrypt hashes for storage
func (s *TwoFactorService) GenerateBackupCodes() (plain []string, hashed []string, err error) {
	plain, err = utils.GenerateBackupCodes(BackupCodeCount)
	if err != nil {
		return nil, nil, err
	}
	hashed = make([]string, len(plain))
	for i, c := range plain {
		if hashed[i], err = utils.HashPassword(c); err != nil {
			return nil, nil, err
		}
	}
	return plain, hashed, nil
}

// ConsumeBackupCode looks code up in hashes. On success it returns the hashes
// without the used one; each code works once.
func (s *TwoFactorService) ConsumeBackupCode(hashes []string, code string) ([]string, bool) {
	code = utils.NormalizeBackupCode(code)
	for i, h := range hashes {
		if utils.CheckPasswordHash(code, h) {
			remaining := make([]string, 0, len(hashes)-1)
			remaining = append(remaining, hashes[:i]...)
			remaining = append(remaining, hashes[i+1:]...)
			return remaining, true
		}
	}
	return hashes, false
}
