package models

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/x/bsonx/bsoncore"
)

// Money is a decimal price. It is stored in Mongo as a string so no
// precision is lost at rest; older documents written as doubles still decode.
type Money struct {
	decimal.Decimal
}

func NewMoney(d decimal.Decimal) Money {
	return Money{Decimal: d}
}

func MoneyFromString(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, err
	}
	return Money{Decimal: d}, nil
}

func (m Money) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bsontype.String, bsoncore.AppendString(nil, m.Decimal.String()), nil
}

func (m *Money) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	switch t {
	case bsontype.String:
		s, _, ok := bsoncore.ReadString(data)
		if !ok {
			return fmt.Errorf("money: malformed bson string")
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return fmt.Errorf("money: %w", err)
		}
		m.Decimal = d
		return nil
	case bsontype.Double:
		f, _, ok := bsoncore.ReadDouble(data)
		if !ok {
			return fmt.Errorf("money: malformed bson double")
		}
		m.Decimal = decimal.NewFromFloat(f)
		return nil
	case bsontype.Null:
		m.Decimal = decimal.Zero
		return nil
	}
	return fmt.Errorf("money: cannot decode bson type %s", t)
}
