package recipe

import "cafecogs/backend/internal/domain"

// ApplyOverride runs ops in order over a copy of lines. The input slice is
// never modified.
//
//   - add appends a line; an existing line for the same item is kept as is.
//   - remove drops every line for the target item.
//   - replace drops the target lines and puts the new line where the first
//     of them was, or at the end when the target was absent.
//   - multiplier scales the target lines, or every line without a target.
func ApplyOverride(lines []domain.ResolvedLine, ops []domain.OverrideOp) []domain.ResolvedLine {
	working := make([]domain.ResolvedLine, len(lines))
	copy(working, lines)

	for _, op := range ops {
		switch op.Op {
		case domain.OpAdd:
			if line, ok := lineFromOp(op); ok {
				working = append(working, line)
			}
		case domain.OpRemove:
			if op.TargetInventoryItemID == nil {
				continue
			}
			working, _ = without(working, *op.TargetInventoryItemID)
		case domain.OpReplace:
			line, ok := lineFromOp(op)
			if !ok || op.TargetInventoryItemID == nil {
				continue
			}
			var at int
			working, at = without(working, *op.TargetInventoryItemID)
			if at < 0 {
				working = append(working, line)
				continue
			}
			working = append(working, domain.ResolvedLine{})
			copy(working[at+1:], working[at:])
			working[at] = line
		case domain.OpMultiplier:
			if op.Multiplier == nil {
				continue
			}
			for i := range working {
				if op.TargetInventoryItemID == nil || working[i].InventoryItemID == *op.TargetInventoryItemID {
					working[i].Quantity *= *op.Multiplier
				}
			}
		}
	}
	return working
}

// without filters out lines for itemID and reports the index the first of
// them had, or -1.
func without(lines []domain.ResolvedLine, itemID string) ([]domain.ResolvedLine, int) {
	first := -1
	out := lines[:0:0]
	for i, line := range lines {
		if line.InventoryItemID == itemID {
			if first < 0 {
				first = i
			}
			continue
		}
		out = append(out, line)
	}
	return out, first
}

func lineFromOp(op domain.OverrideOp) (domain.ResolvedLine, bool) {
	if op.InventoryItemID == nil || op.Quantity == nil || op.Unit == nil {
		return domain.ResolvedLine{}, false
	}
	line := domain.ResolvedLine{
		InventoryItemID: *op.InventoryItemID,
		Quantity:        *op.Quantity,
		Unit:            *op.Unit,
	}
	if op.LossPct != nil {
		line.LossPct = *op.LossPct
	}
	return line, true
}

// ValidateOps reports the first op that cannot be applied.
func ValidateOps(ops []domain.OverrideOp) (int, string) {
	for i, op := range ops {
		switch op.Op {
		case domain.OpAdd:
			if _, ok := lineFromOp(op); !ok {
				return i, "add needs inventory_item_id, quantity and unit"
			}
		case domain.OpRemove:
			if op.TargetInventoryItemID == nil {
				return i, "remove needs target_inventory_item_id"
			}
		case domain.OpReplace:
			if op.TargetInventoryItemID == nil {
				return i, "replace needs target_inventory_item_id"
			}
			if _, ok := lineFromOp(op); !ok {
				return i, "replace needs inventory_item_id, quantity and unit"
			}
		case domain.OpMultiplier:
			if op.Multiplier == nil {
				return i, "multiplier needs multiplier"
			}
		default:
			return i, "unknown op " + op.Op
		}
	}
	return -1, ""
}
