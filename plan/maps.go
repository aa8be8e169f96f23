package plan

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// FeatureMap maps a feature name to whether the feature is enabled
type FeatureMap map[string]bool

// QuotaMap maps a feature name to an integer amount. Depending on the column
// it either holds the configured limit (Unlimited meaning no cap) or the
// current consumption counter.
type QuotaMap map[string]int64

// Unlimited is the sentinel limit meaning the feature has no cap
const Unlimited int64 = -1

func (f *FeatureMap) Scan(value interface{}) error {
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("Failed to unmarshal jsonb value: %s", value)
	}
	if bytes == nil {
		*f = make(FeatureMap)
		return nil
	}
	return json.Unmarshal(bytes, &f)
}

func (f *FeatureMap) Value() (driver.Value, error) {
	return json.Marshal(f)
}

func (*FeatureMap) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	switch db.Dialector.Name() {
	case "mysql", "sqlite":
		return "JSON"
	case "postgres":
		return "JSONB"
	}
	return ""
}

func (f FeatureMap) Clone() FeatureMap {
	clone := make(FeatureMap)
	for k, v := range f {
		clone[k] = v
	}
	return clone
}

func (q *QuotaMap) Scan(value interface{}) error {
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("Failed to unmarshal jsonb value: %s", value)
	}
	if bytes == nil {
		*q = make(QuotaMap)
		return nil
	}
	return json.Unmarshal(bytes, &q)
}

func (q *QuotaMap) Value() (driver.Value, error) {
	return json.Marshal(q)
}

func (*QuotaMap) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	switch db.Dialector.Name() {
	case "mysql", "sqlite":
		return "JSON"
	case "postgres":
		return "JSONB"
	}
	return ""
}

func (q QuotaMap) Clone() QuotaMap {
	clone := make(QuotaMap)
	for k, v := range q {
		clone[k] = v
	}
	return clone
}
