package models

type Counter struct {
	CounterID         string  `json:"counter_id"`
	Name              string  `json:"name"`
	IsActive          bool    `json:"is_active"`
	DisplayOrder      int     `json:"display_order"`
	CurrentCustomerID *string `json:"current_customer_id,omitempty"`
}
