package dto

import "time"

type Partition struct {
	Name string    `db:"name" json:"name"`
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}
