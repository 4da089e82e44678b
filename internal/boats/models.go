package boats

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type SeatingType string

const (
	// SeatingTotal numbers seats 1..N.
	SeatingTotal SeatingType = "TOTAL"
	// SeatingChart labels seats by row letter and position, A1..
	SeatingChart SeatingType = "CHART"
)

type Boat struct {
	ID          uuid.UUID   `json:"id" gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	OwnerID     uuid.UUID   `json:"owner_id" gorm:"type:uuid;not null;index"`
	Name        string      `json:"name" gorm:"not null;size:100"`
	SeatingType SeatingType `json:"seating_type" gorm:"type:varchar(10);not null;default:'CHART'"`
	Rows        int         `json:"rows" gorm:"not null;default:0"`
	SeatsPerRow int         `json:"seats_per_row" gorm:"not null;default:0"`
	TotalSeats  int         `json:"total_seats" gorm:"not null;check:total_seats > 0"`

	// Excluded seats are gaps in a chart layout (aisles, crew seats).
	Excluded datatypes.JSONSlice[string] `json:"excluded,omitempty" gorm:"type:jsonb"`

	IsActive  bool      `json:"is_active" gorm:"default:true"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Boat) TableName() string {
	return "boats"
}

type CreateBoatRequest struct {
	Name        string   `json:"name" binding:"required,min=2,max=100"`
	SeatingType string   `json:"seating_type" binding:"omitempty,oneof=TOTAL CHART"`
	Rows        int      `json:"rows" binding:"omitempty,min=1,max=26"`
	SeatsPerRow int      `json:"seats_per_row" binding:"omitempty,min=1,max=50"`
	TotalSeats  int      `json:"total_seats" binding:"omitempty,min=1,max=1000"`
	Excluded    []string `json:"excluded"`
}

// Layout is the canonical seat list of a boat, in boarding order.
type Layout struct {
	BoatID      string   `json:"boat_id"`
	SeatingType string   `json:"seating_type"`
	Rows        int      `json:"rows"`
	SeatsPerRow int      `json:"seats_per_row"`
	Seats       []string `json:"seats"`
}

// SeatNumbers generates the canonical seat numbers for the boat.
func (b *Boat) SeatNumbers() []string {
	if b.SeatingType == SeatingTotal {
		seats := make([]string, 0, b.TotalSeats)
		for i := 1; i <= b.TotalSeats; i++ {
			seats = append(seats, fmt.Sprintf("%d", i))
		}
		return seats
	}

	excluded := make(map[string]struct{}, len(b.Excluded))
	for _, s := range b.Excluded {
		excluded[s] = struct{}{}
	}

	seats := make([]string, 0, b.Rows*b.SeatsPerRow)
	for r := 0; r < b.Rows; r++ {
		row := string(rune('A' + r))
		for n := 1; n <= b.SeatsPerRow; n++ {
			seat := fmt.Sprintf("%s%d", row, n)
			if _, skip := excluded[seat]; skip {
				continue
			}
			seats = append(seats, seat)
		}
	}
	return seats
}

// Layout returns the boat's seat layout.
func (b *Boat) Layout() Layout {
	return Layout{
		BoatID:      b.ID.String(),
		SeatingType: string(b.SeatingType),
		Rows:        b.Rows,
		SeatsPerRow: b.SeatsPerRow,
		Seats:       b.SeatNumbers(),
	}
}

// HasSeat reports whether seatNo exists in the layout.
func (l Layout) HasSeat(seatNo string) bool {
	for _, s := range l.Seats {
		if s == seatNo {
			return true
		}
	}
	return false
}
