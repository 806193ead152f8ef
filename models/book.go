package models

import "github.com/uptrace/bun"

// Book is an uploaded document. Filename is the storage key of its artifact.
type Book struct {
	bun.BaseModel `bun:"table:books,alias:b"`

	ID       int64  `bun:"id,pk,autoincrement" json:"id"`
	Title    string `bun:"title,notnull" json:"title"`
	Filename string `bun:"filename,notnull" json:"filename"`
}
