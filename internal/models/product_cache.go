package models

// ProductCache is a row of the durable product cache.
// ItemsJSON and MetaJSON hold encoded []ProductItem and Meta payloads.
type ProductCache struct {
	CacheKey  string  `gorm:"column:cache_key;primaryKey"`
	ItemsJSON string  `gorm:"column:items_json;not null"`
	MetaJSON  *string `gorm:"column:meta_json"`
	Ts        int64   `gorm:"column:ts;not null"`
}

// TableName specifies the table name for ProductCache Model
func (ProductCache) TableName() string {
	return "product_cache"
}
