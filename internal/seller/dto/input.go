package dto

type GetOrCreateSellerInput struct {
	Name       string
	WebsiteURL string
	Location   string
}
