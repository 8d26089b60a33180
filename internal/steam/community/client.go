// Package community talks to the steamcommunity.com web endpoints used by
// the mobile app: public profiles and trade/market confirmations.
package community

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/thunder/internal/logging"
	"github.com/dmitrijs2005/thunder/internal/steam"
)

const (
	DefaultBaseURL = "https://steamcommunity.com"

	mobileUserAgent = "Mozilla/5.0 (Linux; Android 9; Valve Steam App Version/3) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/71.0.3578.99 Mobile Safari/537.36"
	maxBody         = 4 << 20
)

// mobileCookies mark requests as coming from the Steam mobile app, without
// which the confirmation endpoints refuse to answer.
var mobileCookies = []string{"mobileClient=android", "mobileClientVersion=777777 3.6.4"}

type Client struct {
	baseURL string
	http    *http.Client
	logger  logging.Logger
}

var (
	_ steam.Profiles      = (*Client)(nil)
	_ steam.Confirmations = (*Client)(nil)
)

// NewClient returns a client for baseURL (DefaultBaseURL when empty).
// Redirects are not followed: the community site answers an expired session
// with a redirect to the login page.
func NewClient(baseURL string, timeout time.Duration, logger logging.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: logger,
	}
}

type xmlProfile struct {
	SteamID64   string `xml:"steamID64"`
	PersonaName string `xml:"steamID"`
	AvatarFull  string `xml:"avatarFull"`
	Error       string `xml:"error"`
}

func (c *Client) Profile(ctx context.Context, id64 string) (steam.Profile, error) {
	u := c.baseURL + "/profiles/" + url.PathEscape(id64) + "?xml=1"
	body, err := c.do(ctx, http.MethodGet, u, nil, nil)
	if err != nil {
		return steam.Profile{}, err
	}

	var p xmlProfile
	if err := xml.Unmarshal(body, &p); err != nil {
		return steam.Profile{}, steam.NewError(steam.KindTransport, "decode profile: %v", err)
	}
	if p.Error != "" {
		return steam.Profile{}, steam.NewError(steam.KindUnknown, "profile %s: %s", id64, strings.TrimSpace(p.Error))
	}

	return steam.Profile{
		PersonaName: strings.TrimSpace(p.PersonaName),
		AvatarURL:   strings.TrimSpace(p.AvatarFull),
	}, nil
}

type confListResponse struct {
	Success  bool      `json:"success"`
	NeedAuth bool      `json:"needauth"`
	Message  string    `json:"message"`
	Conf     []confDTO `json:"conf"`
}

type confDTO struct {
	Type         int      `json:"type"`
	TypeName     string   `json:"type_name"`
	ID           string   `json:"id"`
	CreatorID    string   `json:"creator_id"`
	Nonce        string   `json:"nonce"`
	CreationTime int64    `json:"creation_time"`
	Icon         string   `json:"icon"`
	Headline     string   `json:"headline"`
	Summary      []string `json:"summary"`
}

func (d confDTO) toConfirmation() steam.Confirmation {
	return steam.Confirmation{
		ID:        d.ID,
		Nonce:     d.Nonce,
		Type:      d.Type,
		TypeName:  d.TypeName,
		CreatorID: d.CreatorID,
		CreatedAt: time.Unix(d.CreationTime, 0).UTC(),
		Headline:  d.Headline,
		Summary:   d.Summary,
		Icon:      d.Icon,
	}
}

type opResponse struct {
	Success  bool   `json:"success"`
	NeedAuth bool   `json:"needauth"`
	Message  string `json:"message"`
}

func (c *Client) ListConfirmations(ctx context.Context, who steam.Identity, req steam.SignedRequest) ([]steam.Confirmation, error) {
	q := signedQuery(who, req)
	body, err := c.do(ctx, http.MethodGet, c.baseURL+"/mobileconf/getlist?"+q.Encode(), who.Cookies, nil)
	if err != nil {
		return nil, err
	}

	var r confListResponse
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, steam.NewError(steam.KindTransport, "decode confirmations: %v", err)
	}
	if r.NeedAuth {
		return nil, steam.NewError(steam.KindNotLoggedIn, "confirmation list needs auth")
	}
	if !r.Success {
		return nil, steam.NewError(steam.KindUnknown, "confirmation list failed: %s", r.Message)
	}

	out := make([]steam.Confirmation, 0, len(r.Conf))
	for _, d := range r.Conf {
		out = append(out, d.toConfirmation())
	}
	return out, nil
}

func (c *Client) RespondConfirmation(ctx context.Context, who steam.Identity, ref steam.ConfirmationRef, req steam.SignedRequest, accept bool) error {
	q := signedQuery(who, req)
	q.Set("op", opName(accept))
	q.Set("cid", ref.ID)
	q.Set("ck", ref.Nonce)

	body, err := c.do(ctx, http.MethodGet, c.baseURL+"/mobileconf/ajaxop?"+q.Encode(), who.Cookies, nil)
	if err != nil {
		return err
	}
	return checkOp(body, "respond "+ref.ID)
}

func (c *Client) AcceptAllConfirmations(ctx context.Context, who steam.Identity, refs []steam.ConfirmationRef, req steam.SignedRequest) error {
	form := signedQuery(who, req)
	form.Set("op", opName(true))
	for _, r := range refs {
		form.Add("cid[]", r.ID)
		form.Add("ck[]", r.Nonce)
	}

	body, err := c.do(ctx, http.MethodPost, c.baseURL+"/mobileconf/multiajaxop", who.Cookies, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	return checkOp(body, "accept all")
}

func opName(accept bool) string {
	if accept {
		return "allow"
	}
	return "cancel"
}

func signedQuery(who steam.Identity, req steam.SignedRequest) url.Values {
	q := url.Values{}
	q.Set("p", who.DeviceID)
	q.Set("a", who.SteamID)
	q.Set("k", req.Key)
	q.Set("t", strconv.FormatInt(req.Time, 10))
	q.Set("m", "react")
	q.Set("tag", req.Tag)
	return q
}

func checkOp(body []byte, what string) error {
	var r opResponse
	if err := json.Unmarshal(body, &r); err != nil {
		return steam.NewError(steam.KindTransport, "decode %s: %v", what, err)
	}
	if r.NeedAuth {
		return steam.NewError(steam.KindNotLoggedIn, "%s needs auth", what)
	}
	if !r.Success {
		return steam.NewError(steam.KindUnknown, "%s failed: %s", what, r.Message)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, u string, cookies []string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", mobileUserAgent)
	req.Header.Set("Accept", "application/json, text/xml, */*")
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	}
	if len(cookies) > 0 {
		req.Header.Set("Cookie", strings.Join(append(append([]string{}, mobileCookies...), cookies...), "; "))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, steam.NewError(steam.KindTransport, "%s %s: %v", method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug(ctx, "community request", "method", method, "path", req.URL.Path, "status", resp.StatusCode)

	switch {
	case resp.StatusCode >= 300 && resp.StatusCode < 400,
		resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden:
		return nil, steam.NewError(steam.KindNotLoggedIn, "%s: status %d", req.URL.Path, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, steam.NewError(steam.KindRateLimited, "%s", req.URL.Path)
	case resp.StatusCode != http.StatusOK:
		return nil, steam.NewError(steam.KindTransport, "%s: status %d", req.URL.Path, resp.StatusCode)
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, steam.NewError(steam.KindTransport, "read %s: %v", req.URL.Path, err)
	}
	return b, nil
}
