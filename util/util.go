package util

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"math/big"
	"net"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/constraints"
)

// Sha256sumFile returns the hex sha256 digest of a file's contents.
func Sha256sumFile(name string, uppercase bool) (string, error) {
	f, err := os.Open(name)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	digest := hex.EncodeToString(h.Sum(nil))
	if uppercase {
		digest = strings.ToUpper(digest)
	}
	return digest, nil
}

func ToJson(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		log.Printf("ToJson error: %v", err)
		return ""
	}
	return string(b)
}

func UnmarshalJson[T any](source []byte) (T, error) {
	var target T
	err := json.Unmarshal(source, &target)
	return target, err
}

// Check whether file (or dir) of name exists in file system.
func FileExists(name string) (bool, error) {
	_, err := os.Stat(name)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Return the first arg which is non-zero value. If all args are zero, return the zero value.
func FirstNonZeroArg[T comparable](args ...T) T {
	var zero T
	for _, arg := range args {
		if arg != zero {
			return arg
		}
	}
	return zero
}

// ParseInt parses s as an integer, returning defaultValue if it does not parse.
func ParseInt[T constraints.Integer](s string, defaultValue T) T {
	i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return defaultValue
	}
	return T(i)
}

// Return a crypto rand integer of range [min, max].
func RandInt(min, max int64) int64 {
	upperBound := big.NewInt(max - min + 1)
	i, err := rand.Int(rand.Reader, upperBound)
	if err != nil {
		panic(err)
	}
	return min + i.Int64()
}

// CalculateBackoff returns the wait duration before retry number attempt
// (0-based): base doubled per attempt, capped at max, with up to 25% random
// jitter added to avoid thundering herds against a recovering server.
func CalculateBackoff(base, max time.Duration, attempt int) time.Duration {
	d := base
	for i := 0; i < attempt && d < max; i++ {
		d *= 2
	}
	if d > max {
		d = max
	}
	jitter := time.Duration(RandInt(0, int64(d)/4))
	return d + jitter
}

// IsTemporaryError reports whether err looks transient (timeouts, connection
// resets / refusals) and a retry is worthwhile.
func IsTemporaryError(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE)
}
