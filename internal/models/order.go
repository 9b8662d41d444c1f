package models

import (
	"fmt"
	"math"
	"strings"
)

// ProductItem is one product line of an order
type ProductItem struct {
	Name       string `json:"name"`
	ModelName  string `json:"model_name,omitempty"`
	Amount     Int    `json:"amount"`
	OrderPrice Int    `json:"order_price"`
	ItemID     Int    `json:"item_id,omitempty"`
	ShopID     Int    `json:"shop_id,omitempty"`
}

// Quantity returns the ordered amount, defaulting to 1.
func (p ProductItem) Quantity() int {
	if p.Amount <= 0 || p.Amount > math.MaxInt32 {
		return 1
	}
	return int(p.Amount)
}

// UnitPrice returns the price in VND. The order API reports prices scaled
// by 100000 or 100 depending on the endpoint version. An unreadable price
// is 0.
func (p ProductItem) UnitPrice() int64 {
	switch raw := int64(p.OrderPrice); {
	case raw > 1_000_000_000:
		return raw / 100_000
	case raw > 10_000:
		return raw / 100
	default:
		return raw
	}
}

// URL returns the public product page, or "" when ids are missing.
func (p ProductItem) URL() string {
	if p.ItemID == 0 || p.ShopID == 0 {
		return ""
	}
	return fmt.Sprintf("https://shopee.vn/product/%d/%d", p.ShopID, p.ItemID)
}

// Address is the shipping destination of an order
type Address struct {
	ShippingName    string `json:"shipping_name,omitempty"`
	ShippingPhone   string `json:"shipping_phone,omitempty"`
	ShippingAddress string `json:"shipping_address,omitempty"`
}

// DisplayPhone renders 84-prefixed numbers as "(+84) ...".
func (a Address) DisplayPhone() string {
	if strings.HasPrefix(a.ShippingPhone, "84") && len(a.ShippingPhone) > 2 {
		return "(+84) " + a.ShippingPhone[2:]
	}
	return a.ShippingPhone
}

// Meta is the attribute bag cached next to the items.
type Meta struct {
	Address Address `json:"address"`
}

// Order is a single order detail returned by the order API.
type Order struct {
	OrderID                 string        `json:"order_id"`
	TrackingNumber          string        `json:"tracking_number"`
	TrackingInfoDescription string        `json:"tracking_info_description"`
	OrderTime               string        `json:"order_time"`
	ShippingMethod          string        `json:"shipping_method"`
	Address                 Address       `json:"address"`
	ProductInfo             []ProductItem `json:"product_info"`

	// Cookie is copied from the enclosing account entry.
	Cookie string `json:"-"`
}
