package clinic

// Slots is the fixed daily schedule: a morning block, an unlisted lunch hour
// from 1 PM to 2 PM, and an afternoon block.
var Slots = []string{
	"10:00 AM - 10:50 AM",
	"11:00 AM - 11:50 AM",
	"12:00 PM - 12:50 PM",
	"02:00 PM - 02:50 PM",
	"03:00 PM - 03:50 PM",
	"04:00 PM - 04:50 PM",
}

// SlotIndex returns the position of slot in the schedule, or -1.
func SlotIndex(slot string) int {
	for i, s := range Slots {
		if s == slot {
			return i
		}
	}
	return -1
}

func IsValidSlot(slot string) bool {
	return SlotIndex(slot) >= 0
}
