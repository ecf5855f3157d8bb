package transport

type TaskCreateRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Location    string   `json:"location"`
	BudgetMin   *float64 `json:"budget_min"`
	BudgetMax   *float64 `json:"budget_max"`
}

type BidSubmitRequest struct {
	// Amount is a pointer so an absent field is distinguishable from 0;
	// both are rejected, but with a precise message.
	Amount  *float64 `json:"amount"`
	Message string   `json:"message"`
}

type AcceptBidRequest struct {
	BidID string `json:"bid_id"`
}

type InquiryRequest struct {
	CounterpartID string `json:"counterpart_id"`
}

type MessageSendRequest struct {
	Body          string `json:"body"`
	AttachmentURL string `json:"attachment_url"`
}

type ProfileUpdateRequest struct {
	Email  string            `json:"email"`
	Status string            `json:"status"`
	Meta   map[string]string `json:"metadata"`
}

type AuthLoginRequest struct {
	UserID string `json:"user_id"`
	TTL    int    `json:"ttl_seconds"`
}

type RefreshRequest struct {
	SessionID string `json:"session_id"`
	TTL       int    `json:"ttl_seconds"`
}
