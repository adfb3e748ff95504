package model

import "time"

// QualityGrade classifies the produce quality declared on a listing.
type QualityGrade string

const (
	GradePremium  QualityGrade = "PREMIUM"
	GradeStandard QualityGrade = "STANDARD"
	GradeEconomy  QualityGrade = "ECONOMY"
)

// ParseQualityGrade validates a request-supplied grade string.
func ParseQualityGrade(s string) (QualityGrade, bool) {
	switch QualityGrade(s) {
	case GradePremium, GradeStandard, GradeEconomy:
		return QualityGrade(s), true
	}
	return "", false
}

// ListingStatus tracks a crop listing through its lifecycle.
type ListingStatus string

const (
	ListingDraft            ListingStatus = "DRAFT"
	ListingActive           ListingStatus = "ACTIVE"
	ListingUnderNegotiation ListingStatus = "UNDER_NEGOTIATION"
	ListingSold             ListingStatus = "SOLD"
	ListingCancelled        ListingStatus = "CANCELLED"
)

// ParseListingStatus validates a request-supplied status string.
func ParseListingStatus(s string) (ListingStatus, bool) {
	switch ListingStatus(s) {
	case ListingDraft, ListingActive, ListingUnderNegotiation, ListingSold, ListingCancelled:
		return ListingStatus(s), true
	}
	return "", false
}

// CropListing mirrors the `crop_listings` table. A listing is owned by the
// farmer who created it; buyers place offers against ACTIVE listings.
type CropListing struct {
	ID            string
	FarmerUserID  string
	CropName      string
	QualityGrade  QualityGrade
	Quantity      float64
	ExpectedPrice float64
	Status        ListingStatus
	CreatedAt     time.Time
}
