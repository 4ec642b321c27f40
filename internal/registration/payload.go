package registration

import (
	"github.com/seasky/seasky-web/internal/apiclient"
	"github.com/seasky/seasky-web/pkg/uploads"
)

// alwaysSent are booleans the API expects even when false.
var alwaysSent = []string{"id_no_expiry", "accepted_terms", "accepted_contract"}

// BuildPayload flattens the form into the registration body. Empty values
// are dropped, password2 travels as confirm_password and files become
// multipart parts.
func BuildPayload(data FormData, role RoleSelection) *apiclient.Payload {
	p := apiclient.NewPayload()

	for key, value := range data {
		switch v := value.(type) {
		case nil:
		case string:
			if v != "" {
				p.Set(key, v)
			}
		case bool:
			p.Set(key, v)
		case []string:
			if len(v) > 0 {
				p.Set(key, append([]string(nil), v...))
			}
		case []any:
			if list := data.Strings(key); len(list) > 0 {
				p.Set(key, list)
			}
		case *uploads.Document:
			if v != nil {
				p.Attach(key, apiclient.File{FileName: v.FileName, ContentType: v.ContentType, Data: v.Data})
			}
		default:
			p.Set(key, v)
		}
	}

	for _, key := range alwaysSent {
		p.Set(key, data.Bool(key))
	}

	delete(p.Fields, "password2")
	if pw2 := data.String("password2"); pw2 != "" {
		p.Set("confirm_password", pw2)
	}

	at := role.Type()
	if at == AccountUnknown {
		at, _ = ParseAccountType(data.String("account_type"))
	}
	if at != AccountUnknown {
		p.Set("account_type", string(at))
	}
	if data.String("role") == "" {
		p.Set("role", BackendRole(at))
	}
	if at == AccountMerchant {
		p.Set("merchant_type", MerchantType)
	}
	return p
}
