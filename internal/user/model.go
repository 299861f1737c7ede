package user

import "time"

type User struct {
	ID        int       `json:"id"`
	Username  string    `json:"username"`
	Password  string    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	ID          int    `json:"id"`
	Username    string `json:"username"`
}

// Profile is the public summary shown on a user's card.
type Profile struct {
	Username     string    `json:"username"`
	CreatedAt    time.Time `json:"createdAt"`
	Followers    int       `json:"followers"`
	Following    int       `json:"following"`
	Posts        int       `json:"posts"`
	FollowedByMe bool      `json:"followedByMe"`
}
