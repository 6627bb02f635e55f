package kiosks

import (
	"crypto/rand"
	"fmt"
	"math/big"

	pkgerrors "github.com/vendkiosk/kiosk-backend/pkg/errors"
)

const (
	pairCodeSpace    = 10000
	pairCodeAttempts = 50
)

// PairCodeSource answers which 4-digit codes are already assigned.
type PairCodeSource interface {
	PairCodeTaken(code string) (bool, error)
	UsedPairCodes() ([]string, error)
}

// PairCodeAllocator hands out unique 4-digit pairing codes. Random draws are
// tried first; after pairCodeAttempts misses the lowest free code is taken so
// allocation only fails once all 10000 codes are in use.
type PairCodeAllocator struct {
	intn func(n int) (int, error)
}

func NewPairCodeAllocator() *PairCodeAllocator {
	return &PairCodeAllocator{intn: cryptoIntn}
}

// Allocate returns a code that src does not report as taken.
func (a *PairCodeAllocator) Allocate(src PairCodeSource) (string, error) {
	for i := 0; i < pairCodeAttempts; i++ {
		n, err := a.intn(pairCodeSpace)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "draw pair code")
		}
		code := formatPairCode(n)
		taken, err := src.PairCodeTaken(code)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check pair code")
		}
		if !taken {
			return code, nil
		}
	}

	used, err := src.UsedPairCodes()
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pair codes")
	}
	if len(used) < pairCodeSpace {
		seen := make(map[string]struct{}, len(used))
		for _, code := range used {
			seen[code] = struct{}{}
		}
		for n := 0; n < pairCodeSpace; n++ {
			code := formatPairCode(n)
			if _, ok := seen[code]; !ok {
				return code, nil
			}
		}
	}
	return "", pkgerrors.New(pkgerrors.CodeConflict, "pair code space exhausted")
}

func formatPairCode(n int) string {
	return fmt.Sprintf("%04d", n)
}

func cryptoIntn(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}
