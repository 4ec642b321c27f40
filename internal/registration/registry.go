package registration

import "slices"

// StepID names a wizard section.
type StepID string

const (
	StepCredentials StepID = "credentials"
	StepPersonal    StepID = "personal"
	StepIdentity    StepID = "identity"
	StepAddress     StepID = "address"
	StepEmergency   StepID = "emergency"
	StepBoutique    StepID = "boutique"
	StepDocuments   StepID = "documents"
	StepDelivery    StepID = "delivery"
	StepSummary     StepID = "summary"
)

// StepDescriptor is one visible step.
type StepDescriptor struct {
	Index int
	ID    StepID

	// Label is an i18n key.
	Label string

	// Fields are the fields the step renders, in order.
	Fields []string

	required func(role RoleSelection, data FormData) []string
}

// RequiredFields returns the fields that must be filled before leaving
// the step.
func (s StepDescriptor) RequiredFields(role RoleSelection, data FormData) []string {
	if s.required == nil {
		return nil
	}
	return s.required(role, data)
}

// Owns reports whether the step renders field.
func (s StepDescriptor) Owns(field string) bool {
	return slices.Contains(s.Fields, field)
}

type stepDef struct {
	fields   func(role RoleSelection) []string
	required func(role RoleSelection, data FormData) []string
}

func fixed(fields ...string) func(RoleSelection) []string {
	return func(RoleSelection) []string { return fields }
}

var stepDefs = map[StepID]stepDef{
	StepCredentials: {
		fields: func(role RoleSelection) []string {
			fields := []string{"username", "email", "password", "password2"}
			if f := SubTypeField(role.Type()); f != "" {
				fields = append([]string{f}, fields...)
			}
			return fields
		},
		required: func(role RoleSelection, _ FormData) []string {
			req := []string{"username", "email", "password", "password2"}
			if f := SubTypeField(role.Type()); f != "" {
				req = append([]string{f}, req...)
			}
			return req
		},
	},
	StepPersonal: {
		fields: fixed("full_name", "phone", "secondary_phone", "gender", "date_of_birth", "nationality", "job_title"),
		required: func(role RoleSelection, _ FormData) []string {
			if role.SkipsPersonFields() {
				return []string{"full_name", "phone", "nationality"}
			}
			return []string{"full_name", "phone", "gender", "date_of_birth", "nationality"}
		},
	},
	StepIdentity: {
		fields: fixed("id_type", "id_number", "id_issue_date", "id_expiry_date", "id_no_expiry",
			"id_front_image", "id_back_image", "passport_photo", "proof_of_address"),
		required: func(_ RoleSelection, data FormData) []string {
			req := []string{"id_type", "id_number", "id_issue_date"}
			if !data.Bool("id_no_expiry") {
				req = append(req, "id_expiry_date")
			}
			return req
		},
	},
	StepAddress: {
		fields: func(role RoleSelection) []string {
			fields := []string{"address_line", "province", "commune", "colline_or_quartier"}
			if role.Type() == AccountClient {
				fields = append(fields, "preferred_delivery_time", "delivery_instructions")
			}
			return fields
		},
		required: func(role RoleSelection, _ FormData) []string {
			req := []string{"address_line", "province", "commune"}
			if role.Type() == AccountClient {
				req = append(req, "colline_or_quartier")
			}
			return req
		},
	},
	StepEmergency: {
		fields: fixed("emergency_contact_name", "emergency_contact_phone", "emergency_contact_relationship"),
		required: func(RoleSelection, FormData) []string {
			return []string{"emergency_contact_name", "emergency_contact_phone", "emergency_contact_relationship"}
		},
	},
	StepBoutique: {
		fields: fixed("business_name", "boutique_type", "boutique_services", "boutique_document"),
		required: func(RoleSelection, FormData) []string {
			return []string{"business_name", "boutique_type", "boutique_services", "boutique_document"}
		},
	},
	StepDocuments: {
		fields: fixed("business_name", "business_entity_type", "business_registration_number",
			"business_tax_id", "business_doc_expiry_date", "business_document"),
		required: func(role RoleSelection, _ FormData) []string {
			if !role.NeedsBusinessDocuments() {
				return nil
			}
			return []string{"business_name", "business_entity_type", "business_registration_number", "business_document"}
		},
	},
	StepDelivery: {
		fields: fixed("full_name", "phone", "delivery_vehicle", "vehicle_registration", "lumicash_msisdn"),
		required: func(_ RoleSelection, data FormData) []string {
			req := []string{"full_name", "phone", "delivery_vehicle"}
			if vehiclesNeedingRegistration[data.String("delivery_vehicle")] {
				req = append(req, "vehicle_registration")
			}
			return req
		},
	},
	StepSummary: {
		fields: func(role RoleSelection) []string {
			if role.NeedsContract() {
				return []string{"accepted_terms", "accepted_contract"}
			}
			return []string{"accepted_terms"}
		},
		required: func(role RoleSelection, _ FormData) []string {
			if role.NeedsContract() {
				return []string{"accepted_terms", "accepted_contract"}
			}
			return []string{"accepted_terms"}
		},
	},
}

// stepOrder is the step table per account type. Unknown account types
// fail closed to credentials plus terms.
var stepOrder = map[AccountType][]StepID{
	AccountClient:     {StepCredentials, StepPersonal, StepIdentity, StepAddress, StepSummary},
	AccountSupplier:   {StepCredentials, StepPersonal, StepIdentity, StepAddress, StepDocuments, StepSummary},
	AccountMerchant:   {StepCredentials, StepPersonal, StepBoutique, StepAddress, StepDocuments, StepSummary},
	AccountDriver:     {StepCredentials, StepDelivery, StepSummary},
	AccountPDV:        {StepCredentials, StepPersonal, StepAddress, StepEmergency, StepSummary},
	AccountEnterprise: {StepCredentials, StepPersonal, StepIdentity, StepAddress, StepDocuments, StepSummary},
	AccountUnknown:    {StepCredentials, StepSummary},
}

// VisibleSteps returns the ordered steps for role. Indices are contiguous
// from 0 and the last step is always the summary.
func VisibleSteps(role RoleSelection) []StepDescriptor {
	order := stepOrder[role.Type()]
	steps := make([]StepDescriptor, len(order))
	for i, id := range order {
		def := stepDefs[id]
		steps[i] = StepDescriptor{
			Index:    i,
			ID:       id,
			Label:    "steps." + string(id),
			Fields:   slices.Clone(def.fields(role)),
			required: def.required,
		}
	}
	return steps
}

// StepIndex returns the index of id among steps, or -1.
func StepIndex(steps []StepDescriptor, id StepID) int {
	for _, s := range steps {
		if s.ID == id {
			return s.Index
		}
	}
	return -1
}

// OwningStep returns the index of the first step rendering field, or -1.
func OwningStep(steps []StepDescriptor, field string) int {
	for _, s := range steps {
		if s.Owns(field) {
			return s.Index
		}
	}
	return -1
}
