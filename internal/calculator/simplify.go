package calculator

import (
	"math"

	"github.com/mmynk/tripsplit/internal/models"
)

// CombinedDescription labels a debt merged from more than one expense.
const CombinedDescription = "Combined expenses"

type pair struct {
	from, to string
}

// Simplify merges debts that share the same direction (FromUser, ToUser).
// Opposite directions between two people are left alone; see NetOpposing.
// Merged amounts at or below Epsilon are dropped. The output keeps the order
// in which each pair first appeared.
func Simplify(debts []models.Debt) []models.Debt {
	merged := make(map[pair]*models.Debt)
	counts := make(map[pair]int)
	var order []pair

	for _, d := range debts {
		k := pair{d.FromUser, d.ToUser}
		acc, ok := merged[k]
		if !ok {
			cp := d
			cp.SourceExpenseIDs = appendUnique(nil, d.Sources()...)
			merged[k] = &cp
			counts[k] = 1
			order = append(order, k)
			continue
		}
		acc.Amount += d.Amount
		acc.SourceExpenseIDs = appendUnique(acc.SourceExpenseIDs, d.Sources()...)
		counts[k]++
	}

	out := make([]models.Debt, 0, len(order))
	for _, k := range order {
		d := merged[k]
		if math.Abs(d.Amount) <= Epsilon {
			continue
		}
		if counts[k] > 1 {
			d.Description = CombinedDescription
		}
		out = append(out, *d)
	}
	return out
}

// NetOpposing cancels debts running in opposite directions between the same
// two people, leaving a single debt for the difference. It expects simplified
// input (at most one debt per direction). The surviving debt carries the
// sources of both sides, so settling it settles every contributing expense.
func NetOpposing(debts []models.Debt) []models.Debt {
	index := make(map[pair]int, len(debts))
	for i, d := range debts {
		index[pair{d.FromUser, d.ToUser}] = i
	}

	done := make(map[int]bool, len(debts))
	out := make([]models.Debt, 0, len(debts))
	for i, d := range debts {
		if done[i] {
			continue
		}
		done[i] = true

		j, ok := index[pair{d.ToUser, d.FromUser}]
		if !ok || done[j] {
			out = append(out, d)
			continue
		}
		done[j] = true
		other := debts[j]

		net := d
		net.Amount = d.Amount - other.Amount
		if net.Amount < 0 {
			net.FromUser, net.ToUser = d.ToUser, d.FromUser
			net.Amount = -net.Amount
		}
		net.Description = CombinedDescription
		net.SourceExpenseIDs = appendUnique(appendUnique(nil, d.Sources()...), other.Sources()...)
		if net.Amount <= Epsilon {
			continue
		}
		out = append(out, net)
	}
	return out
}

func appendUnique(dst []string, ids ...string) []string {
	for _, id := range ids {
		found := false
		for _, have := range dst {
			if have == id {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, id)
		}
	}
	return dst
}
