package domain

// ListingContext is the part of a marketplace listing the chat core needs.
type ListingContext struct {
	ProductID string
	SellerID  string
	Title     string
}

// RfqContext is the part of a request-for-quote the chat core needs.
type RfqContext struct {
	RfqID     string
	ProductID string
	SellerID  string
	BuyerID   string
	Title     string
}
