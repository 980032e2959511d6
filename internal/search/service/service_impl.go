package service

import (
	"context"
	"sort"
	"time"

	availabilitydomain "github.com/posadahq/posada/internal/availability/domain"
	pricingdomain "github.com/posadahq/posada/internal/pricing/domain"
	roomtypedomain "github.com/posadahq/posada/internal/roomtype/domain"
	searchdomain "github.com/posadahq/posada/internal/search/domain"
	"github.com/posadahq/posada/pkg/repository"
	"github.com/posadahq/posada/pkg/tenantctx"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultMaxResults = 10
	maxRoomsPerCombo  = 5
	maxNodesEvaluated = 5000
)

type ServiceParam struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	Availability availabilitydomain.Service
	Pricing      pricingdomain.Service
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	availability availabilitydomain.Service
	pricing      pricingdomain.Service
	roomtyperepo repository.Repository[roomtypedomain.RoomType]
}

func NewService(p ServiceParam) searchdomain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("search.service"),
		availability: p.Availability,
		pricing:      p.Pricing,
		roomtyperepo: repository.ProvideStore[roomtypedomain.RoomType](p.DB),
	}
}

// candidate is a room type with its free units and per-unit stay price.
type candidate struct {
	roomType  roomtypedomain.RoomType
	free      int
	unitPrice decimal.Decimal
	currency  string
}

func (s *Service) Search(ctx context.Context, req searchdomain.SearchRequest) ([]searchdomain.Combination, error) {
	scope, ok := tenantctx.ScopeFromContext(ctx)
	if !ok || scope.TenantID == 0 || scope.PropertyID == 0 {
		return nil, searchdomain.ErrInvalidParty
	}

	checkIn := truncateDate(req.CheckIn)
	checkOut := truncateDate(req.CheckOut)
	if !checkOut.After(checkIn) {
		return nil, searchdomain.ErrInvalidDateRange
	}
	if req.Adults <= 0 || req.Children < 0 {
		return nil, searchdomain.ErrInvalidParty
	}

	candidates, err := s.loadCandidates(ctx, scope, checkIn, checkOut)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return []searchdomain.Combination{}, nil
	}

	combos := enumerate(candidates, req.Adults, req.Children)

	sort.SliceStable(combos, func(i, j int) bool {
		if combos[i].RoomCount != combos[j].RoomCount {
			return combos[i].RoomCount < combos[j].RoomCount
		}
		return combos[i].Total.LessThan(combos[j].Total)
	})

	limit := req.MaxResults
	if limit <= 0 || limit > defaultMaxResults {
		limit = defaultMaxResults
	}
	if len(combos) > limit {
		combos = combos[:limit]
	}
	return combos, nil
}

// loadCandidates prices every active room type once and reads a snapshot
// of free inventory. The search itself takes no locks.
func (s *Service) loadCandidates(ctx context.Context, scope tenantctx.Scope, checkIn, checkOut time.Time) ([]candidate, error) {
	roomTypes, err := s.roomtyperepo.Find(ctx, &roomtypedomain.RoomType{
		TenantID:   scope.TenantID,
		PropertyID: scope.PropertyID,
		Active:     true,
	})
	if err != nil {
		return nil, err
	}

	candidates := make([]candidate, 0, len(roomTypes))
	for _, rt := range roomTypes {
		if rt == nil || rt.MaxAdults <= 0 {
			continue
		}
		free, err := s.availability.AvailableRooms(ctx, rt.ID, checkIn, checkOut)
		if err != nil {
			return nil, err
		}
		if free <= 0 {
			continue
		}
		quote, err := s.pricing.Quote(ctx, pricingdomain.QuoteRequest{
			RoomTypeID: rt.ID,
			CheckIn:    checkIn,
			CheckOut:   checkOut,
		})
		if err != nil {
			s.log.Warn("skipping unpriceable room type",
				zap.String("room_type_id", rt.ID.String()),
				zap.Error(err),
			)
			continue
		}
		candidates = append(candidates, candidate{
			roomType:  *rt,
			free:      free,
			unitPrice: quote.FinalTotal,
			currency:  quote.Currency,
		})
	}

	// cheapest types first, so the bounded walk visits good answers early
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].unitPrice.LessThan(candidates[j].unitPrice)
	})
	return candidates, nil
}

// enumerate walks quantity vectors over the candidate types in index order,
// which makes every composition unique by construction. A branch stops the
// moment capacity covers the party: adding rooms past that point can only
// rank worse. The node budget bounds the walk on large inventories.
func enumerate(candidates []candidate, adults, children int) []searchdomain.Combination {
	var (
		combos     []searchdomain.Combination
		quantities = make([]int, len(candidates))
		nodes      int
	)

	var walk func(idx, rooms, adultCap, childCap int)
	walk = func(idx, rooms, adultCap, childCap int) {
		if nodes >= maxNodesEvaluated {
			return
		}
		nodes++

		if adultCap >= adults && childCap >= children && rooms > 0 {
			combos = append(combos, build(candidates, quantities, adults, children))
			return
		}
		if idx >= len(candidates) || rooms >= maxRoomsPerCombo {
			return
		}

		c := candidates[idx]
		maxQty := c.free
		if maxQty > maxRoomsPerCombo-rooms {
			maxQty = maxRoomsPerCombo - rooms
		}
		for qty := 0; qty <= maxQty; qty++ {
			quantities[idx] = qty
			walk(idx+1, rooms+qty, adultCap+qty*c.roomType.MaxAdults, childCap+qty*c.roomType.MaxChildren)
		}
		quantities[idx] = 0
	}
	walk(0, 0, 0, 0)
	return combos
}

// build materializes one combination, assigning the party greedily across
// the chosen rooms. Subtotals are unit price times quantity, so they sum
// to the combination total exactly.
func build(candidates []candidate, quantities []int, adults, children int) searchdomain.Combination {
	remainingAdults := adults
	remainingChildren := children

	combo := searchdomain.Combination{Total: decimal.Zero}
	for i, qty := range quantities {
		if qty == 0 {
			continue
		}
		c := candidates[i]

		assignAdults := min(remainingAdults, qty*c.roomType.MaxAdults)
		assignChildren := min(remainingChildren, qty*c.roomType.MaxChildren)
		remainingAdults -= assignAdults
		remainingChildren -= assignChildren

		subtotal := c.unitPrice.Mul(decimal.NewFromInt(int64(qty)))
		combo.Rooms = append(combo.Rooms, searchdomain.Component{
			RoomTypeID:      c.roomType.ID,
			RoomTypeName:    c.roomType.Name,
			Quantity:        qty,
			AdultsPerRoom:   ceilDiv(assignAdults, qty),
			ChildrenPerRoom: ceilDiv(assignChildren, qty),
			UnitPrice:       c.unitPrice,
			Subtotal:        subtotal,
		})
		combo.RoomCount += qty
		combo.Total = combo.Total.Add(subtotal)
		if combo.Currency == "" {
			combo.Currency = c.currency
		}
	}
	return combo
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

func truncateDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
