package core

import (
	"sort"
	"time"
)

// IsUnderWarranty reports whether the order's warranty covers the given
// moment: either the warranty is unlimited, or the moment falls inside
// [garantia_start_date, garantia_end_date], bounds included.
func IsUnderWarranty(o *ServiceOrder, at time.Time) bool {
	if o.GarantiaIlimitada {
		return true
	}
	if o.GarantiaStartDate == nil || o.GarantiaEndDate == nil {
		return false
	}
	return !at.Before(*o.GarantiaStartDate) && !at.After(*o.GarantiaEndDate)
}

func priorityRank(p WarrantyPriority) int {
	switch p {
	case PriorityAlta:
		return 3
	case PriorityMedia:
		return 2
	case PriorityBaja:
		return 1
	default:
		return 0
	}
}

// SortByWarrantyPriority orders warranty listings for technician follow-up:
// highest priority first, unlimited warranties before dated ones, and among
// dated warranties the latest-expiring first.
func SortByWarrantyPriority(orders []ServiceOrder) {
	sort.SliceStable(orders, func(i, j int) bool {
		a, b := &orders[i], &orders[j]
		if ra, rb := priorityRank(a.GarantiaPrioridad), priorityRank(b.GarantiaPrioridad); ra != rb {
			return ra > rb
		}
		if a.GarantiaIlimitada != b.GarantiaIlimitada {
			return a.GarantiaIlimitada
		}
		switch {
		case a.GarantiaEndDate == nil:
			return false
		case b.GarantiaEndDate == nil:
			return true
		default:
			return a.GarantiaEndDate.After(*b.GarantiaEndDate)
		}
	})
}
