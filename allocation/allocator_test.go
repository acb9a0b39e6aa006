package allocation

import (
	"testing"

	"github.com/mmdatafocus/fulfillment_backend/config"
	"github.com/mmdatafocus/fulfillment_backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func line(shipment, barcode string, qty int) models.OrderLine {
	return models.OrderLine{
		OrderId:           "PO-" + shipment,
		ShipmentId:        shipment,
		Barcode:           barcode,
		ProductCode:       "SKU-" + barcode,
		ProductName:       "name " + barcode,
		LogisticsCenter:   "XRC01",
		ConfirmedQuantity: qty,
	}
}

func TestScenario_SameShipmentLinesCollapse(t *testing.T) {
	lines := []models.OrderLine{line("S1", "R1001", 5), line("S1", "R1001", 3)}
	groups := Aggregate(lines)
	require.Len(t, groups, 1)
	assert.Equal(t, 8, groups[0].ConfirmedQuantity)

	allocs, usage := Allocate(models.InventorySnapshot{"R1001": 6}, groups, nil)
	require.Len(t, allocs, 1)
	assert.Equal(t, 2, allocs[0].Need)
	assert.Equal(t, 6, allocs[0].Allocated)
	assert.Equal(t, 6, usage["R1001"])
}

func TestAggregate_DropsZeroAndBlank(t *testing.T) {
	lines := []models.OrderLine{
		line("S1", "R1", 0),
		line("S1", "", 4),
		line("S1", "r2", 2),
	}
	groups := Aggregate(lines)
	require.Len(t, groups, 1)
	assert.Equal(t, "R2", groups[0].Barcode)
}

func TestAggregate_FirstSeenOrderAndPairFirstIds(t *testing.T) {
	a := line("S2", "R1", 1)
	a.OrderId, a.ProductCode = "first", "code-first"
	b := line("S1", "R1", 1)
	c := line("S2", "R1", 1)
	c.OrderId, c.ProductCode = "second", "code-second"
	c.LogisticsCenter = "OTHER"

	groups := Aggregate([]models.OrderLine{a, b, c})
	require.Len(t, groups, 3)
	assert.Equal(t, "S2", groups[0].ShipmentId)
	assert.Equal(t, "S1", groups[1].ShipmentId)
	assert.Equal(t, "first", groups[2].OrderId, "order id comes from the first line of (shipment, barcode)")
	assert.Equal(t, "code-first", groups[2].ProductCode)

	SortGroups(groups)
	assert.Equal(t, "S1", groups[0].ShipmentId)
}

func TestAllocate_GreedyFirstGroupServedFirst(t *testing.T) {
	groups := Aggregate([]models.OrderLine{line("S1", "R1", 4), line("S2", "R1", 4), line("S3", "R2", 3)})
	allocs, _ := Allocate(models.InventorySnapshot{"R1": 5}, groups, nil)

	needs := []int{allocs[0].Need, allocs[1].Need, allocs[2].Need}
	assert.Equal(t, []int{0, 3, 3}, needs)
	assert.Len(t, Shortfalls(allocs), 2)
}

func TestAllocate_ZeroInventoryNeedsEverything(t *testing.T) {
	groups := Aggregate([]models.OrderLine{line("S1", "R1", 7)})
	allocs, _ := Allocate(models.InventorySnapshot{"R1": 0}, groups, nil)
	assert.Equal(t, 7, allocs[0].Need)
}

func TestAllocate_DoesNotMutateCallerUsage(t *testing.T) {
	used := models.StockUsage{"R1": 2}
	groups := Aggregate([]models.OrderLine{line("S1", "R1", 3)})
	allocs, usage := Allocate(models.InventorySnapshot{"R1": 4}, groups, used)
	assert.Equal(t, 1, allocs[0].Need)
	assert.Equal(t, 2, used["R1"])
	assert.Equal(t, 4, usage["R1"])
}

func TestRun_SortedOrderChangesPerGroupNeed(t *testing.T) {
	lines := []models.OrderLine{line("S2", "R1", 3), line("S1", "R1", 3)}
	snap := models.InventorySnapshot{"R1": 3}

	first := Run(snap, lines, config.AllocationOrderFirstSeen)
	sorted := Run(snap, lines, config.AllocationOrderSorted)
	assert.Equal(t, "S2", first[0].Group.ShipmentId)
	assert.Equal(t, 0, first[0].Need)
	assert.Equal(t, "S1", sorted[0].Group.ShipmentId)
	assert.Equal(t, 0, sorted[0].Need)
	assert.Equal(t, models.TotalNeed(first), models.TotalNeed(sorted))
}

func genLines(t *rapid.T) []models.OrderLine {
	shipments := []string{"S1", "S2", "S3"}
	barcodes := []string{"R1", "R2", "R3"}
	n := rapid.IntRange(0, 25).Draw(t, "n")
	lines := make([]models.OrderLine, n)
	for i := range lines {
		lines[i] = line(
			rapid.SampledFrom(shipments).Draw(t, "shipment"),
			rapid.SampledFrom(barcodes).Draw(t, "barcode"),
			rapid.IntRange(0, 20).Draw(t, "qty"),
		)
	}
	return lines
}

func permute(t *rapid.T, lines []models.OrderLine) []models.OrderLine {
	out := append([]models.OrderLine(nil), lines...)
	for i := len(out) - 1; i > 0; i-- {
		j := rapid.IntRange(0, i).Draw(t, "swap")
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func totalsByKey(groups []models.AllocationGroup) map[models.GroupKey]int {
	out := map[models.GroupKey]int{}
	for _, g := range groups {
		out[g.GroupKey] += g.ConfirmedQuantity
	}
	return out
}

func TestProperty_AggregationIsPermutationInvariant(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		lines := genLines(t)
		want := totalsByKey(Aggregate(lines))
		got := totalsByKey(Aggregate(permute(t, lines)))
		if len(want) != len(got) {
			t.Fatalf("group count differs: %d vs %d", len(want), len(got))
		}
		for k, v := range want {
			if got[k] != v {
				t.Fatalf("key %+v: expected %d, got %d", k, v, got[k])
			}
		}
	})
}

func TestProperty_TotalShortfallIsOrderIndependent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		lines := genLines(t)
		snap := models.InventorySnapshot{
			"R1": rapid.IntRange(0, 30).Draw(t, "inv1"),
			"R2": rapid.IntRange(0, 30).Draw(t, "inv2"),
		}
		allocs, _ := Allocate(snap, Aggregate(permute(t, lines)), nil)

		confirmed := map[string]int{}
		needs := map[string]int{}
		for _, a := range allocs {
			if a.Need < 0 || a.Need > a.Group.ConfirmedQuantity {
				t.Fatalf("need %d out of range for qty %d", a.Need, a.Group.ConfirmedQuantity)
			}
			if a.Allocated+a.Need != a.Group.ConfirmedQuantity {
				t.Fatalf("allocated %d + need %d != qty %d", a.Allocated, a.Need, a.Group.ConfirmedQuantity)
			}
			confirmed[a.Group.Barcode] += a.Group.ConfirmedQuantity
			needs[a.Group.Barcode] += a.Need
		}
		for bc, q := range confirmed {
			want := max(q-snap[bc], 0)
			if needs[bc] != want {
				t.Fatalf("barcode %s: total need %d, expected max(%d-%d,0)=%d", bc, needs[bc], q, snap[bc], want)
			}
		}
	})
}
