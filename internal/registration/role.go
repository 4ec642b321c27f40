// Package registration implements the multi-step account registration
// wizard: which steps a role sees, what each step requires, the controller
// that moves through them and the payload finally sent to the API.
package registration

import (
	"strings"

	"github.com/seasky/seasky-web/pkg/forms"
)

// AccountType is the kind of account being registered.
type AccountType string

const (
	AccountUnknown    AccountType = ""
	AccountClient     AccountType = "client"
	AccountSupplier   AccountType = "fournisseur"
	AccountMerchant   AccountType = "commercant"
	AccountDriver     AccountType = "livreur"
	AccountPDV        AccountType = "pdv"
	AccountEnterprise AccountType = "entreprise"
)

// AccountTypes lists the selectable account types in display order.
var AccountTypes = []AccountType{
	AccountClient,
	AccountSupplier,
	AccountMerchant,
	AccountDriver,
	AccountPDV,
	AccountEnterprise,
}

var accountAliases = map[string]AccountType{
	"client":        AccountClient,
	"fournisseur":   AccountSupplier,
	"supplier":      AccountSupplier,
	"commercant":    AccountMerchant,
	"merchant":      AccountMerchant,
	"livreur":       AccountDriver,
	"driver":        AccountDriver,
	"delivery":      AccountDriver,
	"pdv":           AccountPDV,
	"pos":           AccountPDV,
	"point_of_sale": AccountPDV,
	"point-of-sale": AccountPDV,
	"entreprise":    AccountEnterprise,
	"enterprise":    AccountEnterprise,
	"partenaire":    AccountEnterprise, // partners register as enterprises
}

// ParseAccountType resolves a value or alias. ok is false for unknown
// values, which get the minimal step set.
func ParseAccountType(s string) (AccountType, bool) {
	at, ok := accountAliases[strings.ToLower(strings.TrimSpace(s))]
	return at, ok
}

// Sub-type values.
const (
	SubIndividual  = "individuel"
	SubFamily      = "famille"
	SubEnterprise  = "entreprise"
	SubBoutique    = "boutique"
	SubRestaurant  = "restaurant"
	SubSupermarket = "supermarche"
)

// MerchantType is the only merchant_type the backend accepts; the
// merchant's choice travels in boutique_type.
const MerchantType = "boutique"

var subTypes = map[AccountType][]forms.Option{
	AccountClient: {
		{Value: SubIndividual, Label: "Individuel"},
		{Value: SubFamily, Label: "Famille"},
	},
	AccountSupplier: {
		{Value: SubIndividual, Label: "Individuel"},
		{Value: SubEnterprise, Label: "Entreprise"},
	},
	AccountDriver: {
		{Value: SubIndividual, Label: "Individuel"},
		{Value: SubEnterprise, Label: "Entreprise"},
		{Value: SubBoutique, Label: "Boutique"},
	},
	AccountMerchant: {
		{Value: SubBoutique, Label: "Boutique"},
		{Value: SubRestaurant, Label: "Restaurant"},
		{Value: SubSupermarket, Label: "Supermarché"},
	},
}

var subTypeFields = map[AccountType]string{
	AccountClient:   "client_type",
	AccountSupplier: "supplier_type",
	AccountDriver:   "delivery_type",
	AccountMerchant: "boutique_type",
}

// roleFields are written by SelectRole rather than typed by the user.
var roleFields = []string{
	"account_type",
	"role",
	"client_type",
	"supplier_type",
	"delivery_type",
	"merchant_type",
}

// SubTypes returns the categories offered for at, or nil.
func SubTypes(at AccountType) []forms.Option {
	return subTypes[at]
}

// SubTypeField is the form field holding at's category, or "".
func SubTypeField(at AccountType) string {
	return subTypeFields[at]
}

// RoleSelection is the chosen account type and category.
type RoleSelection struct {
	AccountType string `msgpack:"account_type"`
	SubType     string `msgpack:"sub_type"`
}

// Type returns the canonical account type, or AccountUnknown.
func (r RoleSelection) Type() AccountType {
	at, _ := ParseAccountType(r.AccountType)
	return at
}

// Is reports whether r is account type at with category sub.
func (r RoleSelection) Is(at AccountType, sub string) bool {
	return r.Type() == at && r.SubType == sub
}

// validSubType reports whether sub is offered for r's account type. An
// empty sub-type is valid; the credentials step requires it later.
func (r RoleSelection) validSubType() bool {
	if r.SubType == "" {
		return true
	}
	for _, o := range subTypes[r.Type()] {
		if o.Value == r.SubType {
			return true
		}
	}
	return false
}

// BackendRole maps an account type onto the role the API stores:
// enterprises register as partners and unknown values as clients.
func BackendRole(at AccountType) string {
	switch at {
	case AccountUnknown:
		return string(AccountClient)
	case AccountEnterprise:
		return "partenaire"
	default:
		return string(at)
	}
}

// NeedsContract reports whether the partnership contract must be
// accepted.
func (r RoleSelection) NeedsContract() bool {
	return r.Type() == AccountEnterprise || r.Is(AccountSupplier, SubEnterprise)
}

// SkipsPersonFields reports whether gender and date of birth are optional
// because the account represents a company.
func (r RoleSelection) SkipsPersonFields() bool {
	return r.Is(AccountDriver, SubEnterprise) || r.Is(AccountSupplier, SubEnterprise)
}

// NeedsBusinessDocuments reports whether the documents step is mandatory.
func (r RoleSelection) NeedsBusinessDocuments() bool {
	return r.Type() == AccountEnterprise || r.Is(AccountSupplier, SubEnterprise)
}
