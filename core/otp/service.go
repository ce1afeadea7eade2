package otp

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"hash/fnv"
	"math/big"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/jkimani/karo/core"
)

var nowFunc = time.Now // mockable

const (
	codeMin    = 100000
	codeSpan   = 900000 // codes are uniform in [100000, 999999]
	lockShards = 64
)

type (
	// Record is one live one-time code. At most one exists per identity.
	Record struct {
		Identity       string
		Code           string
		IssuedAt       time.Time
		ExpiresAt      time.Time
		FailedAttempts int
	}

	// Repository is the keyed storage behind the service. Implementations only
	// need plain save/get/delete; the service serializes compound operations
	// per identity.
	Repository interface {
		Save(rec Record) error
		Get(identity string) (Record, bool, error)
		Delete(identity string) error
		// DeleteExpired removes records whose expiry has passed and reports how
		// many were removed.
		DeleteExpired(now time.Time) (int, error)
	}

	// Service issues and verifies single-use, time-bounded one-time codes keyed
	// by identity (phone number or email).
	Service struct {
		repo        Repository
		maxAttempts int
		locks       [lockShards]sync.Mutex
	}
)

func NewService(repo Repository, conf *core.Config) *Service {
	maxAttempts := conf.OTPMaxVerifyAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Service{repo: repo, maxAttempts: maxAttempts}
}

// Issue generates a fresh 6-digit code for the identity, valid for ttl.
// Any previously issued code for the same identity is invalidated.
func (svc *Service) Issue(identity string, ttl time.Duration) (string, error) {
	code, err := generateCode()
	if err != nil {
		return "", errors.Wrap(err, "generating code")
	}

	lock := svc.lockFor(identity)
	lock.Lock()
	defer lock.Unlock()

	now := nowFunc().UTC()
	rec := Record{
		Identity:  identity,
		Code:      code,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
	if err := svc.repo.Save(rec); err != nil {
		return "", errors.Wrap(err, "saving record")
	}
	return code, nil
}

// Verify reports whether submittedCode is the live code for the identity.
// Absence, mismatch and expiry all collapse to false so callers cannot tell
// which failure occurred. A successful verification consumes the code; a
// mismatch leaves it in place so the legitimate holder can retry, up to the
// configured attempt limit.
func (svc *Service) Verify(identity, submittedCode string) bool {
	lock := svc.lockFor(identity)
	lock.Lock()
	defer lock.Unlock()

	rec, ok, err := svc.repo.Get(identity)
	if err != nil || !ok {
		return false
	}

	now := nowFunc().UTC()
	if !now.Before(rec.ExpiresAt) {
		_ = svc.repo.Delete(identity) // terminal; lazy cleanup
		return false
	}

	if subtle.ConstantTimeCompare([]byte(rec.Code), []byte(submittedCode)) != 1 {
		rec.FailedAttempts++
		if rec.FailedAttempts >= svc.maxAttempts {
			_ = svc.repo.Delete(identity) // locked out; a new code must be issued
		} else {
			_ = svc.repo.Save(rec)
		}
		return false
	}

	if err := svc.repo.Delete(identity); err != nil {
		return false // single-use cannot be guaranteed; fail closed
	}
	return true
}

// SweepExpired removes expired records. Lazy expiry in Verify is what makes
// codes invalid; the sweep only bounds memory and is meant for a ticker.
func (svc *Service) SweepExpired() int {
	n, _ := svc.repo.DeleteExpired(nowFunc().UTC())
	return n
}

func (svc *Service) lockFor(identity string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(identity))
	return &svc.locks[h.Sum32()%lockShards]
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeSpan))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+codeMin), nil
}
