package model

type Seller struct {
	BaseModel
	Name       string  `db:"name" json:"name"` // Unique
	WebsiteURL *string `db:"website_url" json:"website_url"`
	Location   *string `db:"location" json:"location"`
}
