package post

import "time"

type Post struct {
	ID             int       `json:"id"`
	AuthorUsername string    `json:"authorUsername"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
}

type CreateRequest struct {
	Content string `json:"content"`
}
