package models

// DeliveryAddress is where an order ships. The geo fields are optional
// hints from the device; everything else must be filled in before an
// order can be placed.
type DeliveryAddress struct {
	Name        string   `bson:"name" json:"name" validate:"required"`
	HouseNumber string   `bson:"houseNumber" json:"houseNumber" validate:"required"`
	Street      string   `bson:"street" json:"street" validate:"required"`
	City        string   `bson:"city" json:"city" validate:"required"`
	State       string   `bson:"state" json:"state" validate:"required"`
	PostalCode  string   `bson:"postalCode" json:"postalCode" validate:"required,numeric,len=6"`
	Latitude    *float64 `bson:"latitude,omitempty" json:"latitude,omitempty"`
	Longitude   *float64 `bson:"longitude,omitempty" json:"longitude,omitempty"`
}
