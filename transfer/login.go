package transfer

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/moyoez/cloudsend/tool"
	"github.com/moyoez/cloudsend/types"
)

// Login exchanges credentials for an access token and stores it on the client.
func (c *Client) Login(ctx context.Context, username, password string) (types.TokenResponse, error) {
	if username == "" || password == "" {
		return types.TokenResponse{}, fmt.Errorf("username and password are required")
	}
	targetURL, err := tool.BuildLoginURL(c.baseURL)
	if err != nil {
		return types.TokenResponse{}, err
	}
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)
	encoded := form.Encode()

	body, _, err := c.do(ctx, "login", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, targetURL, strings.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
	if err != nil {
		return types.TokenResponse{}, err
	}

	var token types.TokenResponse
	if err := sonic.Unmarshal(body, &token); err != nil {
		return types.TokenResponse{}, fmt.Errorf("failed to parse login response: %v", err)
	}
	if token.AccessToken == "" {
		return types.TokenResponse{}, fmt.Errorf("login response carried no access token")
	}
	c.SetToken(token.AccessToken)
	return token, nil
}
