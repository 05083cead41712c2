package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// jsonColumnType picks jsonb on postgres and text elsewhere
func jsonColumnType(db *gorm.DB) string {
	if db.Dialector.Name() == "postgres" {
		return "jsonb"
	}
	return "text"
}

func scanJSON(value interface{}, dest interface{}) error {
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("unsupported json column type %T", value)
	}
	return json.Unmarshal(bytes, dest)
}

// StringList is an ordered list of strings stored as a JSON array
type StringList []string

// Value implements the driver.Valuer interface
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface
func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = StringList{}
		return nil
	}
	return scanJSON(value, (*[]string)(l))
}

func (StringList) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	return jsonColumnType(db)
}

// Contains reports whether s is in the list
func (l StringList) Contains(s string) bool {
	for _, v := range l {
		if v == s {
			return true
		}
	}
	return false
}

// Set returns the list as a lookup set
func (l StringList) Set() map[string]struct{} {
	set := make(map[string]struct{}, len(l))
	for _, v := range l {
		set[v] = struct{}{}
	}
	return set
}

// AthSale records the highest value sale seen for a collection
type AthSale struct {
	Amount    float64 `json:"amount"`
	Buyer     string  `json:"buyer"`
	Seller    string  `json:"seller"`
	Mint      string  `json:"mint"`
	Name      string  `json:"name"`
	Signature string  `json:"signature"`
	Source    string  `json:"source"`
	Timestamp int64   `json:"timestamp"`
}

// Value implements the driver.Valuer interface
func (a AthSale) Value() (driver.Value, error) {
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface
func (a *AthSale) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	return scanJSON(value, a)
}

func (AthSale) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	return jsonColumnType(db)
}

// FloorListing is the marketplace listing that currently sets the floor
type FloorListing struct {
	Amount      int64  `json:"amount"`
	Marketplace string `json:"marketplace"`
	Seller      string `json:"seller"`
	Signature   string `json:"signature"`
}

// CollectionFloor is the cheapest active listing among a collection's tracked mints
type CollectionFloor struct {
	Mint    string       `json:"mint"`
	Name    string       `json:"name"`
	Listing FloorListing `json:"listing"`
}

// Value implements the driver.Valuer interface
func (f CollectionFloor) Value() (driver.Value, error) {
	b, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface
func (f *CollectionFloor) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	return scanJSON(value, f)
}

func (CollectionFloor) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	return jsonColumnType(db)
}
