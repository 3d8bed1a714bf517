package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PrivacyPublic  = "public"
	PrivacyPrivate = "private"
)

const (
	SessionUpcoming  = "upcoming"
	SessionOngoing   = "ongoing"
	SessionCompleted = "completed"
	SessionCancelled = "cancelled"
)

const (
	ProjectOpen       = "open"
	ProjectInProgress = "in-progress"
	ProjectCompleted  = "completed"
)

const (
	CategoryHackathon       = "hackathon"
	CategoryCoursework      = "coursework"
	CategoryResearch        = "research"
	CategoryExtracurricular = "extracurricular"
)

const (
	PaymentPending   = "pending"
	PaymentCompleted = "completed"
	PaymentFailed    = "failed"
)

// Payment purposes. Each has a fixed USDC price.
const (
	PurposeFeaturedPost    = "featured_post"
	PurposeAdvancedFilters = "advanced_filters"
	PurposeResourceBump    = "resource_bump"
	PurposePremiumGroup    = "premium_group"
)

const (
	PostTypeGroup    = "group"
	PostTypeResource = "resource"
)

const (
	NotificationGroupInvite     = "group_invite"
	NotificationSessionReminder = "session_reminder"
	NotificationProjectUpdate   = "project_update"
	NotificationResourceShared  = "resource_shared"
	NotificationPayment         = "payment"
)

const Currency = "USDC"

// USDCDecimals is the number of fractional digits of the USDC token.
const USDCDecimals = 6

const (
	FeaturedDays    = 7
	EntitlementDays = 30
)

var Prices = map[string]decimal.Decimal{
	PurposeFeaturedPost:    decimal.RequireFromString("0.50"),
	PurposeAdvancedFilters: decimal.RequireFromString("1.00"),
	PurposeResourceBump:    decimal.RequireFromString("0.25"),
	PurposePremiumGroup:    decimal.RequireFromString("2.00"),
}

var PremiumGroupFeatures = []string{"advanced_analytics", "priority_support", "custom_branding"}

// Days converts a whole number of days to a duration.
func Days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}

func ValidPurpose(p string) bool {
	_, ok := Prices[p]
	return ok
}

func ValidPrivacy(p string) bool {
	return p == PrivacyPublic || p == PrivacyPrivate
}

func ValidCategory(c string) bool {
	switch c {
	case CategoryHackathon, CategoryCoursework, CategoryResearch, CategoryExtracurricular:
		return true
	}
	return false
}

func ValidProjectStatus(s string) bool {
	return s == ProjectOpen || s == ProjectInProgress || s == ProjectCompleted
}
