package models

// All lists every persisted model in dependency order.
func All() []any {
	return []any{
		&Store{},
		&Product{},
		&Kiosk{},
		&VendingSlot{},
		&KioskProduct{},
		&VendingSlotProduct{},
		&KioskScreenImage{},
		&QrAuthSession{},
		&KioskStatusLog{},
	}
}
