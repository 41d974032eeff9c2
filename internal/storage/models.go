package storage

// TimeLayout is the timestamp layout used when groupbanker generates a
// transaction time itself. The store never parses Time.
const TimeLayout = "2006-01-02T15:04"

// Transaction represents a stored financial transaction.
type Transaction struct {
	ID          int64   `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Amount      float64 `gorm:"column:amount;not null" json:"amount"`
	Description string  `gorm:"column:description;not null" json:"description"`
	Time        string  `gorm:"column:time;not null" json:"time"`
}

func (Transaction) TableName() string {
	return tableName
}
