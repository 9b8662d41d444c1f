package handlers

import (
	"strings"
	"time"

	"order-tracker-api/internal/models"

	"github.com/dustin/go-humanize"
)

// vnZone is the display timezone for shipment events (UTC+7).
var vnZone = time.FixedZone("ICT", 7*60*60)

// formatVND renders 150000 as "150.000đ".
func formatVND(n int64) string {
	return strings.ReplaceAll(humanize.Comma(n), ",", ".") + "đ"
}

func formatVNTime(t time.Time) string {
	return t.In(vnZone).Format("15:04:05 • 02/01/2006")
}

// shortAddr collapses whitespace and cuts s to max runes with an ellipsis.
func shortAddr(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}

// ProductView is a cached product as shown to users.
type ProductView struct {
	Name      string `json:"name"`
	Model     string `json:"model"`
	Amount    int    `json:"amount"`
	UnitPrice int64  `json:"unitPrice"`
	Price     string `json:"price"`
	Link      string `json:"link,omitempty"`
}

func newProductView(p models.ProductItem) ProductView {
	v := ProductView{
		Name:      strings.TrimSpace(p.Name),
		Model:     p.ModelName,
		Amount:    p.Quantity(),
		UnitPrice: p.UnitPrice(),
		Link:      p.URL(),
	}
	if v.Name == "" {
		v.Name = "N/A"
	}
	if v.Model == "" {
		v.Model = "—"
	}
	if v.UnitPrice > 0 {
		v.Price = formatQuantityPrice(v.Amount, v.UnitPrice)
	} else {
		v.Price = "x" + humanize.Comma(int64(v.Amount))
	}
	return v
}

func formatQuantityPrice(amount int, unit int64) string {
	return humanize.Comma(int64(amount)) + "×" + formatVND(unit)
}

// RecipientView is the cached delivery destination.
type RecipientView struct {
	Who   string `json:"who,omitempty"`
	Where string `json:"where,omitempty"`
}

func newRecipientView(a models.Address) *RecipientView {
	var parts []string
	for _, s := range []string{a.ShippingName, a.ShippingPhone} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	v := RecipientView{
		Who:   strings.Join(parts, " • "),
		Where: shortAddr(a.ShippingAddress, 90),
	}
	if v.Who == "" && v.Where == "" {
		return nil
	}
	return &v
}
