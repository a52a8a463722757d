package store

// User is a registered account. PasswordHash never leaves the service layer.
type User struct {
	ID           string
	Email        string
	FullName     string
	PasswordHash string
	Bio          string
	ProfilePic   string
	CreatedAt    int64
	UpdatedAt    int64
}

// Message is a direct message between two users.
// At least one of Text and Image is non-empty.
type Message struct {
	Seq        int64
	ID         string
	SenderID   string
	ReceiverID string
	Text       string
	Image      string
	Seen       bool
	CreatedAt  int64
}

// SeenResult describes a committed unseen->seen transition.
type SeenResult struct {
	// IDs of the messages flipped by the call, in conversation order.
	IDs []string
	// Underflow is set when the unseen counter held fewer messages than were
	// flipped and had to be clamped at zero. It means the index had drifted.
	Underflow bool
}

// Affected returns the number of messages flipped.
func (r SeenResult) Affected() int {
	return len(r.IDs)
}
