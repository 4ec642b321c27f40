package apiclient

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// Endpoint paths, relative to /api/v1.
const (
	PathRegister        = "/auth/register/"
	PathLogin           = "/auth/login/"
	PathLogout          = "/auth/logout/"
	PathRefresh         = "/auth/refresh/"
	PathProfile         = "/me/profile/"
	PathScanQR          = "/qr/scan/"
	PathConfirmDelivery = "/deliveries/confirm-from-scan/"
	PathMyPDV           = "/pdv/my-pdv/"
	PathReportSale      = "/pdv/report-sale/"
)

// AuthResponse is returned by register, login and refresh. Tokens come
// either at the top level or under "tokens".
type AuthResponse struct {
	Access  string         `json:"access,omitempty"`
	Refresh string         `json:"refresh,omitempty"`
	Tokens  *TokenPair     `json:"tokens,omitempty"`
	User    map[string]any `json:"user,omitempty"`
	Message string         `json:"message,omitempty"`
	Detail  string         `json:"detail,omitempty"`
	Success bool           `json:"success,omitempty"`
}

type TokenPair struct {
	Access  string `json:"access,omitempty"`
	Refresh string `json:"refresh,omitempty"`
}

// AccessToken returns the access token from either location.
func (r *AuthResponse) AccessToken() string {
	if r.Access != "" {
		return r.Access
	}
	if r.Tokens != nil {
		return r.Tokens.Access
	}
	return ""
}

// RefreshToken returns the refresh token from either location.
func (r *AuthResponse) RefreshToken() string {
	if r.Refresh != "" {
		return r.Refresh
	}
	if r.Tokens != nil {
		return r.Tokens.Refresh
	}
	return ""
}

// Profile is the authenticated user's profile.
type Profile struct {
	ID          int    `json:"id,omitempty"`
	Username    string `json:"username,omitempty"`
	Email       string `json:"email,omitempty"`
	FullName    string `json:"full_name,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Role        string `json:"role,omitempty"`
	AccountType string `json:"account_type,omitempty"`
	IsSuperuser bool   `json:"is_superuser,omitempty"`
	IsStaff     bool   `json:"is_staff,omitempty"`
	IsActive    bool   `json:"is_active,omitempty"`
	DateJoined  string `json:"date_joined,omitempty"`
	LastLogin   string `json:"last_login,omitempty"`
}

// EffectiveRole is "admin" for staff, otherwise the role or account type,
// defaulting to "client".
func (p *Profile) EffectiveRole() string {
	if p == nil {
		return "client"
	}
	if p.IsSuperuser || p.IsStaff {
		return "admin"
	}
	for _, r := range []string{p.Role, p.AccountType} {
		if r != "" {
			return strings.ToLower(r)
		}
	}
	return "client"
}

// QRScanResult describes what a scanned code refers to.
type QRScanResult struct {
	Success bool       `json:"success,omitempty"`
	Message string     `json:"message,omitempty"`
	Data    any        `json:"data,omitempty"`
	Token   *QRToken   `json:"token,omitempty"`
	Subject *QRSubject `json:"subject,omitempty"`
}

type QRToken struct {
	Code       string `json:"code,omitempty"`
	Purpose    string `json:"purpose,omitempty"`
	TTLSeconds int    `json:"ttl_seconds,omitempty"`
	ExpiresAt  string `json:"expires_at,omitempty"`
}

type QRSubject struct {
	ID       int    `json:"id,omitempty"`
	Type     string `json:"type,omitempty"`
	Name     string `json:"name,omitempty"`
	FullName string `json:"full_name,omitempty"`
	Username string `json:"username,omitempty"`
}

// DeliveryConfirmation confirms a delivery to a point of sale from a
// scanned code. Either Code or QRData identifies the delivery.
type DeliveryConfirmation struct {
	Code           string
	QRData         string
	PDVID          int
	QuantityLiters float64
}

// SaleReport records liters sold at a point of sale.
type SaleReport struct {
	PDVID      int
	LitersSold float64
	Notes      string
}

// PDV is a point of sale.
type PDV struct {
	ID              int       `json:"id"`
	Name            string    `json:"name"`
	Province        string    `json:"province,omitempty"`
	Commune         string    `json:"commune,omitempty"`
	Address         string    `json:"address,omitempty"`
	AgentUsername   string    `json:"agent_username,omitempty"`
	AgentFullName   string    `json:"agent_full_name,omitempty"`
	AgentPhone      string    `json:"agent_phone,omitempty"`
	PartnerUsername string    `json:"partner_username,omitempty"`
	PartnerFullName string    `json:"partner_full_name,omitempty"`
	Stock           *PDVStock `json:"stock,omitempty"`
	CreatedAt       string    `json:"created_at,omitempty"`
	UpdatedAt       string    `json:"updated_at,omitempty"`
}

type PDVStock struct {
	CurrentLiters any    `json:"current_liters,omitempty"`
	LastEventAt   string `json:"last_event_at,omitempty"`
	UpdatedAt     string `json:"updated_at,omitempty"`
}

// Register creates an account. Returned tokens are saved when the client
// authenticates with a TokenStore.
func (c *Client) Register(ctx context.Context, payload *Payload) (*AuthResponse, error) {
	var res AuthResponse
	if err := c.post(ctx, PathRegister, payload, &res); err != nil {
		return nil, err
	}
	c.saveTokens(&res)
	return &res, nil
}

// Login authenticates with username and password.
func (c *Client) Login(ctx context.Context, username, password string) (*AuthResponse, error) {
	body := NewPayload().Set("username", username).Set("password", password)

	var res AuthResponse
	if err := c.post(ctx, PathLogin, body, &res); err != nil {
		return nil, loginError(err)
	}
	if strings.Contains(res.Detail, "Identifiants invalides") {
		return nil, &APIError{Status: http.StatusForbidden, Message: "Nom d'utilisateur ou mot de passe incorrect"}
	}
	if res.AccessToken() == "" {
		return nil, &APIError{Status: http.StatusInternalServerError, Message: "Réponse de connexion incomplète: tokens manquants"}
	}
	c.saveTokens(&res)
	return &res, nil
}

// loginError rewrites the API's 403 details into the messages shown on
// the login form.
func loginError(err error) error {
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusForbidden {
		return err
	}
	detail, _ := apiErr.Payload["detail"].(string)
	switch {
	case strings.Contains(detail, "Identifiants invalides"):
		return &APIError{Status: apiErr.Status, Message: "Nom d'utilisateur ou mot de passe incorrect", Payload: apiErr.Payload}
	case strings.Contains(detail, "compte est désactivé"):
		return &APIError{Status: apiErr.Status, Message: "Votre compte est désactivé. Contactez l'administrateur.", Payload: apiErr.Payload}
	}
	return err
}

// Logout revokes the refresh token and clears stored tokens.
func (c *Client) Logout(ctx context.Context) error {
	store, _ := c.tokens.(*TokenStore)
	refresh := ""
	if store != nil {
		refresh = store.Refresh()
	}
	if err := c.post(ctx, PathLogout, NewPayload().Set("refresh", refresh), nil); err != nil {
		return err
	}
	if store != nil {
		store.Clear()
	}
	return nil
}

// Refresh exchanges the stored refresh token for a new access token.
func (c *Client) Refresh(ctx context.Context) (*AuthResponse, error) {
	store, _ := c.tokens.(*TokenStore)
	if store == nil || store.Refresh() == "" {
		return nil, ErrNoRefreshToken
	}
	var res AuthResponse
	if err := c.post(ctx, PathRefresh, NewPayload().Set("refresh", store.Refresh()), &res); err != nil {
		return nil, err
	}
	c.saveTokens(&res)
	return &res, nil
}

// Profile fetches the current user.
func (c *Client) Profile(ctx context.Context) (*Profile, error) {
	var p Profile
	if err := c.get(ctx, PathProfile, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ScanQR resolves a scanned QR payload.
func (c *Client) ScanQR(ctx context.Context, qrData string) (*QRScanResult, error) {
	body := NewPayload().Set("qr_data", qrData).Set("code", qrData)
	var res QRScanResult
	if err := c.post(ctx, PathScanQR, body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ConfirmDeliveryFromScan confirms a delivery at a point of sale.
func (c *Client) ConfirmDeliveryFromScan(ctx context.Context, in DeliveryConfirmation) (map[string]any, error) {
	body := NewPayload().Set("quantity_liters", in.QuantityLiters)
	if in.PDVID > 0 {
		body.Set("pdv_id", in.PDVID)
	}
	if in.QRData != "" {
		body.Set("qr_data", in.QRData)
	}
	if in.Code != "" {
		body.Set("code", in.Code)
	}
	var res map[string]any
	if err := c.post(ctx, PathConfirmDelivery, body, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// MyPDV fetches the point of sale of the current agent.
func (c *Client) MyPDV(ctx context.Context) (*PDV, error) {
	var p PDV
	if err := c.get(ctx, PathMyPDV, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ReportSale records a sale at a point of sale.
func (c *Client) ReportSale(ctx context.Context, in SaleReport) (map[string]any, error) {
	body := NewPayload().Set("pdv_id", in.PDVID).Set("liters_sold", in.LitersSold)
	if in.Notes != "" {
		body.Set("notes", in.Notes)
	}
	var res map[string]any
	if err := c.post(ctx, PathReportSale, body, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// Ping reports whether the API answers at all. Any HTTP response counts.
func (c *Client) Ping(ctx context.Context) error {
	err := c.do(ctx, request{method: http.MethodGet, path: Prefix + "/"}, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status < 500 {
		return nil
	}
	return err
}

func (c *Client) saveTokens(res *AuthResponse) {
	if store, ok := c.tokens.(*TokenStore); ok {
		store.SetTokens(res.AccessToken(), res.RefreshToken())
	}
}
