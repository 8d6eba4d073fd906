package admins

type Admin struct {
	ID           string `bson:"id" json:"id"`
	Username     string `bson:"username" json:"username"`
	PasswordHash string `bson:"password_hash" json:"-"`
	CreatedAt    string `bson:"created_at" json:"created_at"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required,max=100"`
	Password string `json:"password" validate:"required,max=200"`
}

type LoginResult struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}
