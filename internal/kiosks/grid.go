package kiosks

import (
	"fmt"
	"time"

	"github.com/vendkiosk/kiosk-backend/pkg/db/models"
)

// BoardCode labels a slot as {row letter}{col:02d}, e.g. row 1 col 3 is "A03".
func BoardCode(row, col int) string {
	return fmt.Sprintf("%c%02d", rune('A'+row-1), col)
}

// buildGrid lays out the fixed slot grid for a new kiosk.
func buildGrid(kioskID int64, rows, cols int, now time.Time) []models.VendingSlot {
	slots := make([]models.VendingSlot, 0, rows*cols)
	for row := 1; row <= rows; row++ {
		for col := 1; col <= cols; col++ {
			label := fmt.Sprintf("%d-%d", row, col)
			slots = append(slots, models.VendingSlot{
				KioskID:     kioskID,
				Row:         row,
				Col:         col,
				BoardCode:   BoardCode(row, col),
				Label:       &label,
				MaxCapacity: 0,
				IsEnabled:   true,
				CreatedAt:   now,
				UpdatedAt:   now,
			})
		}
	}
	return slots
}
