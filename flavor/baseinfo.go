package flavor

import (
	"fmt"
	"strings"
	"time"

	"github.com/beevik/etree"

	"github.com/benedoc-inc/facturx/types"
)

// BaseInfo is the handful of header fields used to derive default PDF metadata
type BaseInfo struct {
	Number   string
	Date     time.Time // zero when absent or not in format 102
	TypeCode string
	Issuer   string
}

// ExtractBaseInfo reads document number, issue date, type code and issuing
// party from a classified document. Missing fields are left empty.
func ExtractBaseInfo(root *etree.Element, d Descriptor) BaseInfo {
	header := "ExchangedDocument"
	if d.Flavor == ZUGFeRD1 {
		header = "HeaderExchangedDocument"
	}

	info := BaseInfo{
		Number:   textAt(root, header, "ID"),
		TypeCode: textAt(root, header, "TypeCode"),
	}
	if raw := textAt(root, header, "IssueDateTime", "DateTimeString"); raw != "" {
		if t, err := time.Parse("20060102", raw); err == nil {
			info.Date = t
		}
	}

	party := "SellerTradeParty"
	if d.Flavor == OrderX && d.OrderType != OrderResponse {
		party = "BuyerTradeParty"
	}
	transaction, agreement := "SupplyChainTradeTransaction", "ApplicableHeaderTradeAgreement"
	if d.Flavor == ZUGFeRD1 {
		transaction, agreement = "SpecifiedSupplyChainTradeTransaction", "ApplicableSupplyChainTradeAgreement"
	}
	info.Issuer = textAt(root, transaction, agreement, party, "Name")
	return info
}

// Metadata derives English title, subject and keywords the way the
// reference tooling does, e.g. "Akretion: Invoice I1242".
func (b BaseInfo) Metadata(d Descriptor) types.DocumentMetadata {
	kind := "Invoice"
	standard := "Factur-X"
	switch d.Flavor {
	case OrderX:
		standard = "Order-X"
		switch d.OrderType {
		case OrderChange:
			kind = "Order Change"
		case OrderResponse:
			kind = "Order Response"
		default:
			kind = "Order"
		}
	case ZUGFeRD1:
		standard = "ZUGFeRD"
	}
	if d.Flavor != OrderX && b.TypeCode == "381" {
		kind = "Refund"
	}

	subject := fmt.Sprintf("%s %s %s", standard, kind, b.Number)
	if !b.Date.IsZero() {
		subject += " dated " + b.Date.Format("2006-01-02")
	}
	if b.Issuer != "" {
		subject += " issued by " + b.Issuer
	}

	title := strings.TrimSpace(kind + " " + b.Number)
	if b.Issuer != "" {
		title = b.Issuer + ": " + title
	}

	return types.DocumentMetadata{
		Title:    title,
		Author:   b.Issuer,
		Subject:  strings.Join(strings.Fields(subject), " "),
		Keywords: kind + ", " + standard,
	}
}

func textAt(root *etree.Element, tags ...string) string {
	if el := childPath(root, tags...); el != nil {
		return strings.TrimSpace(el.Text())
	}
	return ""
}
