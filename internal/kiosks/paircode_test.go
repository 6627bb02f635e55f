package kiosks

import (
	"math/rand"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
	pkgerrors "github.com/vendkiosk/kiosk-backend/pkg/errors"
)

type memoryPairCodes map[string]struct{}

func (m memoryPairCodes) PairCodeTaken(code string) (bool, error) {
	_, ok := m[code]
	return ok, nil
}

func (m memoryPairCodes) UsedPairCodes() ([]string, error) {
	out := make([]string, 0, len(m))
	for code := range m {
		out = append(out, code)
	}
	return out, nil
}

func seededAllocator(seed int64) *PairCodeAllocator {
	rng := rand.New(rand.NewSource(seed))
	return &PairCodeAllocator{intn: func(n int) (int, error) { return rng.Intn(n), nil }}
}

func TestPairCodeAllocatorFillsWholeSpaceThenConflicts(t *testing.T) {
	alloc := seededAllocator(42)
	used := memoryPairCodes{}
	format := regexp.MustCompile(`^\d{4}$`)

	for i := 0; i < pairCodeSpace; i++ {
		code, err := alloc.Allocate(used)
		require.NoError(t, err, "allocation %d", i)
		require.Regexp(t, format, code)
		_, dup := used[code]
		require.False(t, dup, "code %s handed out twice", code)
		used[code] = struct{}{}
	}

	_, err := alloc.Allocate(used)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "got %v", err)
}

func TestPairCodeAllocatorFallsBackToLowestFreeCode(t *testing.T) {
	alloc := &PairCodeAllocator{intn: func(int) (int, error) { return 7, nil }}
	used := memoryPairCodes{"0007": {}, "0000": {}, "0001": {}}

	code, err := alloc.Allocate(used)
	require.NoError(t, err)
	require.Equal(t, "0002", code)
}

func TestBoardCode(t *testing.T) {
	require.Equal(t, "A01", BoardCode(1, 1))
	require.Equal(t, "A03", BoardCode(1, 3))
	require.Equal(t, "H10", BoardCode(8, 10))
}

func TestBuildGridLabelsEverySlot(t *testing.T) {
	slots := buildGrid(5, 8, 10, fixedNow())
	require.Len(t, slots, 80)
	require.Equal(t, 1, slots[0].Row)
	require.Equal(t, 1, slots[0].Col)
	require.Equal(t, "B01", slots[10].BoardCode)
	require.Equal(t, "2-1", *slots[10].Label)
	for _, slot := range slots {
		require.Equal(t, int64(5), slot.KioskID)
		require.Zero(t, slot.MaxCapacity)
		require.True(t, slot.IsEnabled)
	}
}
