package monetization

import (
	"strconv"

	"serialfic-monetization/pkg/errutil"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// PlatformFee returns the fee percentage for a writer, always within
// 0..100. A nil planFee means the plan does not override the default
// subscriber fee; an explicit 0 waives the fee.
func (p Policy) PlatformFee(subscribed bool, planFee *int) int {
	switch {
	case !subscribed:
		return clampPercent(p.NonSubscriberFeePercentage)
	case planFee != nil:
		return clampPercent(*planFee)
	default:
		return clampPercent(p.DefaultSubscriberFeePercentage)
	}
}

func WriterPercentage(platformFee int) int {
	return 100 - clampPercent(platformFee)
}

func clampPercent(v int) int {
	return min(max(v, 0), 100)
}

// WriterShare converts a rupee amount to paise and applies the writer
// percentage: round(round(rupees*100) * pct / 100).
func WriterShare(rupees decimal.Decimal, writerPct int) int64 {
	paise := rupees.Mul(hundred).Round(0)
	return paise.Mul(decimal.NewFromInt(int64(writerPct))).Div(hundred).Round(0).IntPart()
}

// CoinPriceRupees converts a coin cost to its rupee price.
func (p Policy) CoinPriceRupees(coins int64) decimal.Decimal {
	return decimal.NewFromInt(coins).Div(decimal.NewFromFloat(p.CoinsPerRupee))
}

// CoinsRequired is round(price * coinsPerRupee).
func (p Policy) CoinsRequired(priceRupees decimal.Decimal) int64 {
	return priceRupees.Mul(decimal.NewFromFloat(p.CoinsPerRupee)).Round(0).IntPart()
}

// AdPerUnlockRupees is one impression's revenue at the given eCPM; ecpm <= 0
// uses the policy eCPM.
func (p Policy) AdPerUnlockRupees(ecpm float64) decimal.Decimal {
	if ecpm <= 0 {
		ecpm = p.ECPM
	}
	return decimal.NewFromFloat(ecpm).Div(decimal.NewFromInt(1000))
}

// ParseECPMRate reads the ecpmRate query override. Empty means "use the
// policy eCPM" and comes back as 0.
func ParseECPMRate(raw string) (float64, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return 0, errutil.ValidationFailed("invalid ecpmRate", err, errutil.WithDetails(errutil.Detail{
			Field:   "ecpmRate",
			Message: "must be a non-negative number",
		}))
	}
	return v, nil
}
