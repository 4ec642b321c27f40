package registration

import (
	"errors"
	"fmt"
	"maps"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/seasky/seasky-web/pkg/forms"
	"github.com/seasky/seasky-web/pkg/uploads"
)

// DateLayout is the wire format of every date field.
const DateLayout = "2006-01-02"

// now is replaced in tests.
var now = time.Now

// FormData is the wizard's single record. It holds the fields of every
// role; validators only look at the fields of visible steps.
type FormData map[string]any

// String returns a text field, or "".
func (d FormData) String(key string) string {
	s, _ := d[key].(string)
	return s
}

// Bool returns a checkbox field.
func (d FormData) Bool(key string) bool {
	b, _ := d[key].(bool)
	return b
}

// Strings returns a multi-choice field.
func (d FormData) Strings(key string) []string {
	switch v := d[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// File returns an uploaded document, or nil.
func (d FormData) File(key string) *uploads.Document {
	doc, _ := d[key].(*uploads.Document)
	return doc
}

// Clone returns a shallow copy. Lists are copied too.
func (d FormData) Clone() FormData {
	out := maps.Clone(d)
	if out == nil {
		out = FormData{}
	}
	for k, v := range out {
		if list, ok := v.([]string); ok {
			out[k] = append([]string(nil), list...)
		}
	}
	return out
}

// Errors maps a field to its current message. A key is present only while
// the field is invalid.
type Errors map[string]string

// Field options.
var (
	GenderOptions = []forms.Option{
		{Value: "male", Label: "Masculin"},
		{Value: "female", Label: "Féminin"},
		{Value: "other", Label: "Autre"},
	}

	IDTypeOptions = []forms.Option{
		{Value: "cni", Label: "Carte Nationale d'Identité"},
		{Value: "passport", Label: "Passeport"},
		{Value: "driving_license", Label: "Permis de conduire"},
		{Value: "residence_card", Label: "Carte de résidence"},
		{Value: "other", Label: "Autre"},
	}

	NationalityOptions = []forms.Option{
		{Value: "burundian", Label: "Burundaise"},
		{Value: "rwandan", Label: "Rwandaise"},
		{Value: "congolese", Label: "Congolaise (RDC)"},
		{Value: "tanzanian", Label: "Tanzanienne"},
		{Value: "kenyan", Label: "Kenyane"},
		{Value: "ugandan", Label: "Ougandaise"},
		{Value: "french", Label: "Française"},
		{Value: "belgian", Label: "Belge"},
		{Value: "american", Label: "Américaine"},
		{Value: "other_african", Label: "Autre Africaine"},
		{Value: "other", Label: "Autre nationalité"},
	}

	ProvinceOptions = []forms.Option{
		{Value: "bujumbura_mairie", Label: "Bujumbura Mairie"},
		{Value: "bujumbura_rural", Label: "Bujumbura Rural"},
		{Value: "bubanza", Label: "Bubanza"},
		{Value: "cibitoke", Label: "Cibitoke"},
		{Value: "gitega", Label: "Gitega"},
		{Value: "karuzi", Label: "Karuzi"},
		{Value: "kayanza", Label: "Kayanza"},
		{Value: "kirundo", Label: "Kirundo"},
		{Value: "makamba", Label: "Makamba"},
		{Value: "muramvya", Label: "Muramvya"},
		{Value: "muyinga", Label: "Muyinga"},
		{Value: "mwaro", Label: "Mwaro"},
		{Value: "ngozi", Label: "Ngozi"},
		{Value: "rutana", Label: "Rutana"},
		{Value: "ruyigi", Label: "Ruyigi"},
		{Value: "bururi", Label: "Bururi"},
		{Value: "rumonge", Label: "Rumonge"},
	}

	BoutiqueTypeOptions = subTypes[AccountMerchant]

	BoutiqueServiceOptions = []forms.Option{
		{Value: "VENTE_AU_DETAIL", Label: "Vente au détail"},
		{Value: "VENTE_EN_GROS", Label: "Vente en gros"},
		{Value: "LIVRAISON_A_DOMICILE", Label: "Livraison à domicile"},
		{Value: "SERVICE_CAFE", Label: "Service café"},
		{Value: "RESTAURATION", Label: "Restauration"},
		{Value: "VENTE_TAKE_AWAY", Label: "Vente à emporter"},
		{Value: "CATERING", Label: "Traiteur"},
		{Value: "AUTRE", Label: "Autre service"},
	}

	BusinessEntityOptions = []forms.Option{
		{Value: "individual", Label: "Individuel"},
		{Value: "company", Label: "Société"},
		{Value: "cooperative", Label: "Coopérative"},
		{Value: "association", Label: "Association"},
		{Value: "other", Label: "Autre"},
	}

	VehicleOptions = []forms.Option{
		{Value: "motorcycle", Label: "Moto"},
		{Value: "bicycle", Label: "Vélo"},
		{Value: "car", Label: "Voiture"},
		{Value: "truck", Label: "Camion"},
		{Value: "walking", Label: "À pied"},
	}

	DeliveryTimeOptions = []forms.Option{
		{Value: "morning", Label: "Matin (6h - 12h)"},
		{Value: "afternoon", Label: "Après-midi (12h - 18h)"},
		{Value: "evening", Label: "Soir (18h - 21h)"},
		{Value: "anytime", Label: "N'importe quand"},
	}
)

// vehiclesNeedingRegistration carry a plate number.
var vehiclesNeedingRegistration = map[string]bool{"motorcycle": true, "car": true, "truck": true}

// PhonePrefixes are the Burundi mobile prefixes.
var PhonePrefixes = []string{"61", "62", "65", "66", "67", "68", "69", "71", "72", "76", "77", "78", "79"}

var (
	errNotPhone   = errors.New("not a Burundi phone number")
	errBadDate    = errors.New("not a date")
	errUnderage   = errors.New("under 18")
	errFutureDate = errors.New("date in the future")
	errPastDate   = errors.New("date in the past")
	errWeakPass   = errors.New("weak password")
	errBadChoice  = errors.New("unknown choice")
)

// NormalizePhone strips spaces, dashes and plus signs.
func NormalizePhone(phone string) string {
	return strings.NewReplacer(" ", "", "-", "", "+", "").Replace(phone)
}

// IsBurundiPhone reports whether phone is an 8 digit Burundi mobile number.
func IsBurundiPhone(phone string) bool {
	p := NormalizePhone(phone)
	if len(p) != 8 {
		return false
	}
	for _, r := range p {
		if r < '0' || r > '9' {
			return false
		}
	}
	for _, prefix := range PhonePrefixes {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

var phoneMessage = fmt.Sprintf("Format invalide. Exemple: 61234567. Préfixes acceptés: %s", strings.Join(PhonePrefixes, ", "))

func phone() forms.Validator {
	return forms.Custom(func(v any) error {
		s, _ := v.(string)
		if s == "" || IsBurundiPhone(s) {
			return nil
		}
		return errNotPhone
	}, phoneMessage)
}

func parseDate(v any) (time.Time, bool, error) {
	s, _ := v.(string)
	if s == "" {
		return time.Time{}, false, nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, false, errBadDate
	}
	return t, true, nil
}

func date(msg string) forms.Validator {
	return forms.Custom(func(v any) error {
		_, _, err := parseDate(v)
		return err
	}, msg)
}

// Age returns the age in full years at now.
func Age(birth, at time.Time) int {
	age := at.Year() - birth.Year()
	if at.Month() < birth.Month() || (at.Month() == birth.Month() && at.Day() < birth.Day()) {
		age--
	}
	return age
}

func adult() forms.Validator {
	return forms.Custom(func(v any) error {
		t, ok, err := parseDate(v)
		if err != nil || !ok {
			return err
		}
		if Age(t, now()) < 18 {
			return errUnderage
		}
		return nil
	}, "Vous devez avoir au moins 18 ans")
}

func notFuture(msg string) forms.Validator {
	return forms.Custom(func(v any) error {
		t, ok, err := parseDate(v)
		if err != nil || !ok {
			return err
		}
		if t.After(now()) {
			return errFutureDate
		}
		return nil
	}, msg)
}

// today is the current calendar date in the clock's location, at UTC
// midnight like the dates parseDate returns.
func today() time.Time {
	y, m, d := now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func notPast(msg string) forms.Validator {
	return forms.Custom(func(v any) error {
		t, ok, err := parseDate(v)
		if err != nil || !ok {
			return err
		}
		if t.Before(today()) {
			return errPastDate
		}
		return nil
	}, msg)
}

func strongPassword() forms.Validator {
	return forms.Custom(func(v any) error {
		s, _ := v.(string)
		if s == "" {
			return nil
		}
		var upper, lower, digit bool
		for _, r := range s {
			switch {
			case unicode.IsUpper(r):
				upper = true
			case unicode.IsLower(r):
				lower = true
			case unicode.IsDigit(r):
				digit = true
			}
		}
		if !upper || !lower || !digit {
			return errWeakPass
		}
		return nil
	}, "Doit contenir au moins une majuscule, une minuscule et un chiffre")
}

func allOf(options []forms.Option) forms.Validator {
	allowed := make(map[string]bool, len(options))
	for _, o := range options {
		allowed[o.Value] = true
	}
	return forms.Custom(func(v any) error {
		for _, s := range (FormData{"v": v}).Strings("v") {
			if !allowed[s] {
				return errBadChoice
			}
		}
		return nil
	}, "Service inconnu")
}

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

var imageAndPDF = []string{"image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp", "application/pdf"}

func file(name, label string, opts ...forms.FieldOption) forms.Field {
	return forms.NewField(name, forms.FieldFile, label, append([]forms.FieldOption{forms.WithAccept(imageAndPDF...)}, opts...)...)
}

var catalog = map[string]forms.Field{}

func register(fields ...forms.Field) {
	for _, f := range fields {
		catalog[f.Name] = f
	}
}

func init() {
	register(
		forms.NewField("client_type", forms.FieldSelect, "Profil client", forms.WithOptions(subTypes[AccountClient]...)),
		forms.NewField("supplier_type", forms.FieldSelect, "Type de fournisseur", forms.WithOptions(subTypes[AccountSupplier]...)),
		forms.NewField("delivery_type", forms.FieldSelect, "Type de livreur", forms.WithOptions(subTypes[AccountDriver]...)),

		forms.NewField("username", forms.FieldText, "Nom d'utilisateur",
			forms.WithPlaceholder("ex: amina_nd"),
			forms.WithValidator(
				forms.MinLength(3, "Minimum 3 caractères"),
				forms.PatternValidator{Re: usernamePattern, Msg: "Caractères autorisés: lettres, chiffres et underscore (_)"},
			)),
		forms.NewField("email", forms.FieldEmail, "Adresse email", forms.WithValidator(forms.Email())),
		forms.NewField("password", forms.FieldPassword, "Mot de passe",
			forms.WithHelp("8 caractères minimum, avec majuscule, minuscule et chiffre"),
			forms.WithValidator(forms.MinLength(8, "Minimum 8 caractères"), strongPassword())),
		forms.NewField("password2", forms.FieldPassword, "Confirmer le mot de passe"),

		forms.NewField("full_name", forms.FieldText, "Nom complet", forms.WithValidator(forms.MinLength(2, "Le nom est trop court"))),
		forms.NewField("phone", forms.FieldTel, "Téléphone", forms.WithPlaceholder("61234567"), forms.WithValidator(phone())),
		forms.NewField("secondary_phone", forms.FieldTel, "Téléphone secondaire", forms.WithValidator(phone())),
		forms.NewField("gender", forms.FieldSelect, "Genre", forms.WithOptions(GenderOptions...)),
		forms.NewField("date_of_birth", forms.FieldDate, "Date de naissance",
			forms.WithValidator(date("Date invalide"), adult())),
		forms.NewField("nationality", forms.FieldSelect, "Nationalité", forms.WithOptions(NationalityOptions...)),
		forms.NewField("job_title", forms.FieldText, "Profession"),

		forms.NewField("id_type", forms.FieldSelect, "Type de pièce d'identité", forms.WithOptions(IDTypeOptions...)),
		forms.NewField("id_number", forms.FieldText, "Numéro de la pièce", forms.WithValidator(forms.MinLength(4, "Le numéro est trop court"))),
		forms.NewField("id_issue_date", forms.FieldDate, "Date d'émission",
			forms.WithValidator(date("Date invalide"), notFuture("La date d'émission ne peut pas être dans le futur"))),
		forms.NewField("id_expiry_date", forms.FieldDate, "Date d'expiration",
			forms.WithValidator(date("Date invalide"), notPast("La pièce d'identité est expirée"))),
		forms.NewField("id_no_expiry", forms.FieldCheckbox, "Pièce sans date d'expiration"),
		file("id_front_image", "Recto de la pièce"),
		file("id_back_image", "Verso de la pièce"),
		file("passport_photo", "Photo d'identité", forms.WithAccept("image/jpeg", "image/jpg", "image/png", "image/webp")),
		file("proof_of_address", "Justificatif de domicile"),

		forms.NewField("address_line", forms.FieldText, "Adresse",
			forms.WithValidator(forms.MinLength(5, "L'adresse est trop courte, soyez plus précis"))),
		forms.NewField("province", forms.FieldSelect, "Province", forms.WithOptions(ProvinceOptions...)),
		forms.NewField("commune", forms.FieldText, "Commune"),
		forms.NewField("colline_or_quartier", forms.FieldText, "Colline ou quartier"),
		forms.NewField("preferred_delivery_time", forms.FieldSelect, "Heure de livraison préférée", forms.WithOptions(DeliveryTimeOptions...)),
		forms.NewField("delivery_instructions", forms.FieldTextarea, "Instructions de livraison"),

		forms.NewField("emergency_contact_name", forms.FieldText, "Nom du contact d'urgence",
			forms.WithValidator(forms.MinLength(2, "Le nom est trop court"))),
		forms.NewField("emergency_contact_phone", forms.FieldTel, "Téléphone du contact d'urgence", forms.WithValidator(phone())),
		forms.NewField("emergency_contact_relationship", forms.FieldText, "Lien avec le contact"),

		forms.NewField("business_name", forms.FieldText, "Nom commercial"),
		forms.NewField("boutique_type", forms.FieldSelect, "Type de boutique", forms.WithOptions(BoutiqueTypeOptions...)),
		forms.NewField("boutique_services", forms.FieldMultiple, "Services proposés",
			forms.WithOptions(BoutiqueServiceOptions...), forms.WithValidator(allOf(BoutiqueServiceOptions))),
		file("boutique_document", "Document d'agrément de la boutique"),

		forms.NewField("business_entity_type", forms.FieldSelect, "Type d'entité", forms.WithOptions(BusinessEntityOptions...)),
		forms.NewField("business_registration_number", forms.FieldText, "Numéro d'enregistrement (RC)"),
		forms.NewField("business_tax_id", forms.FieldText, "Numéro d'identification fiscale (NIF)"),
		forms.NewField("business_doc_expiry_date", forms.FieldDate, "Expiration du document",
			forms.WithValidator(date("Date invalide"))),
		file("business_document", "Document d'entreprise"),

		forms.NewField("delivery_vehicle", forms.FieldSelect, "Véhicule", forms.WithOptions(VehicleOptions...)),
		forms.NewField("vehicle_registration", forms.FieldText, "Immatriculation"),
		forms.NewField("lumicash_msisdn", forms.FieldTel, "Numéro Lumicash", forms.WithValidator(phone())),

		forms.NewField("accepted_terms", forms.FieldCheckbox, "J'accepte les conditions générales d'utilisation"),
		forms.NewField("accepted_contract", forms.FieldCheckbox, "J'accepte le contrat de partenariat"),
	)
}

// Field returns the descriptor of a form field.
func Field(name string) (forms.Field, bool) {
	f, ok := catalog[name]
	return f, ok
}

// Label returns the display label of a field, or its name.
func Label(name string) string {
	if f, ok := catalog[name]; ok {
		return f.Label
	}
	return name
}

// IsFileField reports whether name holds an uploaded document.
func IsFileField(name string) bool {
	f, ok := catalog[name]
	return ok && f.Type == forms.FieldFile
}

var requiredMessages = map[string]string{
	"client_type":                    "Veuillez sélectionner votre profil client",
	"supplier_type":                  "Veuillez choisir votre type de fournisseur",
	"delivery_type":                  "Veuillez choisir votre type de livraison",
	"username":                       "Le nom d'utilisateur est requis",
	"email":                          "L'adresse email est requise",
	"password":                       "Le mot de passe est requis",
	"password2":                      "La confirmation du mot de passe est requise",
	"full_name":                      "Le nom complet est requis",
	"phone":                          "Le numéro de téléphone est requis",
	"gender":                         "Le genre est requis",
	"date_of_birth":                  "La date de naissance est requise",
	"nationality":                    "La nationalité est requise",
	"id_type":                        "Le type de pièce d'identité est requis",
	"id_number":                      "Le numéro de la pièce d'identité est requis",
	"id_issue_date":                  "La date d'émission est requise",
	"id_expiry_date":                 "La date d'expiration est requise",
	"address_line":                   "L'adresse est requise",
	"province":                       "La province est requise",
	"commune":                        "La commune est requise",
	"colline_or_quartier":            "Le quartier ou la colline est requis pour les livraisons",
	"emergency_contact_name":         "Le nom du contact d'urgence est requis",
	"emergency_contact_phone":        "Le téléphone du contact d'urgence est requis",
	"emergency_contact_relationship": "Le lien avec le contact d'urgence est requis",
	"business_name":                  "Le nom commercial est requis",
	"boutique_type":                  "Le type de boutique est requis",
	"boutique_services":              "Au moins un service doit être sélectionné",
	"boutique_document":              "Le document d'agrément de la boutique est requis",
	"business_entity_type":           "Le type d'entité commerciale est requis",
	"business_registration_number":   "Le numéro d'enregistrement est requis",
	"business_document":              "Le document d'entreprise est requis",
	"delivery_vehicle":               "Le type de véhicule est requis",
	"vehicle_registration":           "L'immatriculation du véhicule est requise",
	"accepted_terms":                 "Vous devez accepter les conditions générales d'utilisation",
	"accepted_contract":              "Vous devez accepter le contrat de partenariat",
}

// RequiredMessage is the message for a required field left empty.
func RequiredMessage(name string) string {
	if msg, ok := requiredMessages[name]; ok {
		return msg
	}
	return "Ce champ est requis"
}
