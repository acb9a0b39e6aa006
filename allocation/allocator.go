package allocation

import (
	"sort"

	"github.com/mmdatafocus/fulfillment_backend/config"
	"github.com/mmdatafocus/fulfillment_backend/models"
	"github.com/mmdatafocus/fulfillment_backend/utils"
	"github.com/sirupsen/logrus"
)

var logger = config.GetLogger()

type shipmentBarcode struct {
	shipmentId string
	barcode    string
}

// Aggregate collapses confirmed lines into allocation groups in first-seen order.
// Lines with no barcode or a quantity of zero are dropped here.
func Aggregate(lines []models.OrderLine) []models.AllocationGroup {
	var groups []models.AllocationGroup
	index := map[models.GroupKey]int{}
	firstLine := map[shipmentBarcode]models.OrderLine{}

	for _, l := range lines {
		bc := utils.NormalizeBarcode(l.Barcode)
		if bc == "" || l.ConfirmedQuantity <= 0 {
			continue
		}
		sb := shipmentBarcode{shipmentId: l.ShipmentId, barcode: bc}
		if _, ok := firstLine[sb]; !ok {
			firstLine[sb] = l
		}

		key := models.GroupKey{
			ShipmentId:          l.ShipmentId,
			Barcode:             bc,
			ProductName:         l.ProductName,
			LogisticsCenter:     l.LogisticsCenter,
			ExpectedArrivalDate: utils.FormatDate(l.ExpectedArrivalDate),
		}
		if i, ok := index[key]; ok {
			groups[i].ConfirmedQuantity += l.ConfirmedQuantity
			continue
		}
		first := firstLine[sb]
		index[key] = len(groups)
		groups = append(groups, models.AllocationGroup{
			GroupKey:          key,
			ConfirmedQuantity: l.ConfirmedQuantity,
			OrderId:           first.OrderId,
			ProductCode:       first.ProductCode,
		})
	}
	return groups
}

// SortGroups orders groups by their key fields, the order a sorted group-by produces.
func SortGroups(groups []models.AllocationGroup) {
	sort.SliceStable(groups, func(i, j int) bool {
		a, b := groups[i].GroupKey, groups[j].GroupKey
		if a.ShipmentId != b.ShipmentId {
			return a.ShipmentId < b.ShipmentId
		}
		if a.Barcode != b.Barcode {
			return a.Barcode < b.Barcode
		}
		if a.ProductName != b.ProductName {
			return a.ProductName < b.ProductName
		}
		if a.LogisticsCenter != b.LogisticsCenter {
			return a.LogisticsCenter < b.LogisticsCenter
		}
		return a.ExpectedArrivalDate < b.ExpectedArrivalDate
	})
}

// Allocate walks groups once, in the given order, serving each from what is left of the
// snapshot after earlier groups. The shortfall is the need to re-order. used carries
// consumption from a previous pass and is not modified; the updated usage is returned.
func Allocate(snapshot models.InventorySnapshot, groups []models.AllocationGroup, used models.StockUsage) ([]models.Allocation, models.StockUsage) {
	usage := make(models.StockUsage, len(used))
	for bc, n := range used {
		usage[bc] = n
	}

	allocs := make([]models.Allocation, 0, len(groups))
	for _, g := range groups {
		bc := g.Barcode
		qty := g.ConfirmedQuantity
		if qty < 0 {
			qty = 0
		}
		avail := snapshot.Available(bc) - usage[bc]
		if avail < 0 {
			avail = 0
		}
		take := min(qty, avail)
		allocs = append(allocs, models.Allocation{
			Group:     g,
			Allocated: take,
			Need:      qty - take,
		})
		usage[bc] += take
	}

	logger.WithFields(logrus.Fields{
		"groups":     len(groups),
		"total_need": models.TotalNeed(allocs),
	}).Info("allocation pass finished")
	return allocs, usage
}

// Run aggregates, orders and allocates confirmed lines in one call.
func Run(snapshot models.InventorySnapshot, lines []models.OrderLine, order string) []models.Allocation {
	groups := Aggregate(lines)
	if order == config.AllocationOrderSorted {
		SortGroups(groups)
	}
	allocs, _ := Allocate(snapshot, groups, nil)
	return allocs
}

// Shortfalls keeps the allocations that need a re-order.
func Shortfalls(allocs []models.Allocation) []models.Allocation {
	var out []models.Allocation
	for _, a := range allocs {
		if a.Need > 0 {
			out = append(out, a)
		}
	}
	return out
}
